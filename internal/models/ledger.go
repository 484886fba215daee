package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger directions and types
const (
	LedgerDirectionIn  = "in"
	LedgerDirectionOut = "out"

	LedgerTypeCredit = "credit"
	LedgerTypeDebit  = "debit"
)

// Payment stages
const (
	StageAdvance  = "advance"
	StageFinal    = "final"
	StageRefund   = "refund"
	StageReceived = "received"
)

// LedgerTransaction is an immutable money-movement record. Corrections are
// new offsetting rows, never updates.
type LedgerTransaction struct {
	ID             uuid.UUID  `json:"id"`
	NegotiationID  uuid.UUID  `json:"negotiation_id"`
	Direction      string     `json:"direction"`
	Type           string     `json:"type"`
	AmountPaise    int64      `json:"amount_paise"`
	PaymentStage   string     `json:"payment_stage"`
	SenderID       *uuid.UUID `json:"sender_id,omitempty"`
	ReceiverID     *uuid.UUID `json:"receiver_id,omitempty"`
	PaymentOrderID *uuid.UUID `json:"payment_order_id,omitempty"`
	EscrowHoldID   *uuid.UUID `json:"escrow_hold_id,omitempty"`
	Note           *string    `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
