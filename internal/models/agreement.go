package models

import (
	"time"

	"github.com/google/uuid"
)

// Agreement statuses (coarse lifecycle, 1:1 with a negotiation)
const (
	AgreementStatusConnected     = "connected"
	AgreementStatusNegotiating   = "negotiating"
	AgreementStatusFinalized     = "finalized"
	AgreementStatusPaid          = "paid"
	AgreementStatusWorkSubmitted = "work_submitted"
	AgreementStatusWorkApproved  = "work_approved"
	AgreementStatusWorkRejected  = "work_rejected"
	AgreementStatusCompleted     = "completed"
)

// Agreement records the money side of a negotiation. ProposedAmountPaise
// moves while the parties haggle; FinalAgreedAmountPaise is written once and
// never changes afterwards.
type Agreement struct {
	ID                     uuid.UUID `json:"id"`
	NegotiationID          uuid.UUID `json:"negotiation_id"`
	ProposedAmountPaise    int64     `json:"proposed_amount_paise"`
	FinalAgreedAmountPaise *int64    `json:"final_agreed_amount_paise,omitempty"`
	Status                 string    `json:"status"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
