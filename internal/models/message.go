package models

import (
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	MessageTypeAutomated     = "automated"             // machine-authored protocol message
	MessageTypeAudit         = "audit"                 // one-sided confirmation echo
	MessageTypePaymentUpdate = "system_payment_update" // ledger events
)

// ActionButton is a single option rendered for the awaited party.
type ActionButton struct {
	Label   string         `json:"label"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ActionInput describes a free-entry field (e.g. counter-offer amount).
type ActionInput struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Type   string `json:"type"` // "amount" | "text"
	Action string `json:"action"`
}

// ActionData is the "required action" descriptor embedded in a protocol
// message. VisibleTo must equal the negotiation's awaiting role.
type ActionData struct {
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle,omitempty"`
	VisibleTo string         `json:"visible_to"`
	Buttons   []ActionButton `json:"buttons,omitempty"`
	Input     *ActionInput   `json:"input,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Message struct {
	ID             uuid.UUID   `json:"id"`
	NegotiationID  uuid.UUID   `json:"negotiation_id"`
	SenderID       *uuid.UUID  `json:"sender_id,omitempty"`
	ReceiverID     *uuid.UUID  `json:"receiver_id,omitempty"` // nil for broadcast/system
	MessageType    string      `json:"message_type"`
	Body           string      `json:"body"`
	ActionRequired bool        `json:"action_required"`
	ActionData     *ActionData `json:"action_data,omitempty"`
	AttachmentURLs []string    `json:"attachment_urls,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
