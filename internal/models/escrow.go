package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// EscrowHold is one release cycle of confirmed funds, linked to the payment
// order that funded it.
type EscrowHold struct {
	ID             uuid.UUID  `json:"id"`
	NegotiationID  uuid.UUID  `json:"negotiation_id"`
	PaymentOrderID uuid.UUID  `json:"payment_order_id"`
	AmountPaise    int64      `json:"amount_paise"`
	Status         string     `json:"status"`
	ReleaseReason  *string    `json:"release_reason,omitempty"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
