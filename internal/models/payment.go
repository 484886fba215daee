package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentOrderStatusCreated  = "created"
	PaymentOrderStatusVerified = "verified"
)

// PaymentOrder is one gateway order. Upserted by gateway order id so webhook
// retries stay idempotent.
type PaymentOrder struct {
	ID               uuid.UUID `json:"id"`
	NegotiationID    uuid.UUID `json:"negotiation_id"`
	PayerID          uuid.UUID `json:"payer_id"`
	PayeeID          uuid.UUID `json:"payee_id"`
	AmountPaise      int64     `json:"amount_paise"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	Receipt          string    `json:"receipt"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID *string   `json:"gateway_payment_id,omitempty"`
	GatewaySignature *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
