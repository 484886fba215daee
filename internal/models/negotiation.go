package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor roles
const (
	RoleRequester = "requester"
	RoleProvider  = "provider"
	RoleAdmin     = "admin"
	RoleNone      = "" // terminal states await nobody
)

// Flow states
const (
	StateResponding            = "responding"
	StateDetailing             = "detailing"
	StateReviewing             = "reviewing"
	StatePricing               = "pricing"
	StatePriceResponse         = "price_response"
	StateNegotiatingPermission = "negotiating_permission"
	StateCounterInput          = "counter_input"
	StateCounterResponse       = "counter_response"
	StateFinalResponse         = "final_response"
	StatePaymentPending        = "payment_pending"
	StatePaymentCompleted      = "payment_completed"
	StateWorkInProgress        = "work_in_progress"
	StateWorkSubmitted         = "work_submitted"
	StateWorkFinalReview       = "work_final_review"
	StateWorkApproved          = "work_approved"
	StateWorkRejected          = "work_rejected"
	StateAdminPaymentPending   = "admin_payment_pending"
	StateAdminPaymentComplete  = "admin_payment_complete"
	StateClosed                = "closed"
	StateChatClosed            = "chat_closed"
)

// Actions
const (
	ActionAcceptConnection = "accept_connection"
	ActionRejectConnection = "reject_connection"
	ActionSubmitDetails    = "submit_details"
	ActionAcceptScope      = "accept_scope"
	ActionDenyScope        = "deny_scope"
	ActionOfferPrice       = "offer_price"
	ActionAcceptPrice      = "accept_price"
	ActionRejectPrice      = "reject_price"
	ActionNegotiate        = "negotiate"
	ActionAllowNegotiation = "allow_negotiation"
	ActionDenyNegotiation  = "deny_negotiation"
	ActionCounterOffer     = "counter_offer"
	ActionAcceptCounter    = "accept_counter"
	ActionRejectCounter    = "reject_counter"
	ActionFinalOffer       = "final_offer"
	ActionAcceptFinal      = "accept_final"
	ActionRejectFinal      = "reject_final"
	ActionInitiatePayment  = "initiate_payment"
	ActionStartWork        = "start_work"
	ActionSubmitWork       = "submit_work"
	ActionApproveWork      = "approve_work"
	ActionRequestRevision  = "request_revision"
	ActionRejectWork       = "reject_work"
	ActionContinueWorking  = "continue_working"
	ActionRejectProject    = "reject_project"
	ActionReceiveFunds     = "receive_funds"
	ActionReleaseAdvance   = "release_advance"
	ActionReleaseFinal     = "release_final"
	ActionRefund           = "refund"
	ActionClose            = "close"
	ActionForceClose       = "force_close"
)

// StateAwaitingRole maps every flow state to the single role whose action is
// legal there. Terminal states map to RoleNone.
var StateAwaitingRole = map[string]string{
	StateResponding:            RoleProvider,
	StateDetailing:             RoleProvider,
	StateReviewing:             RoleRequester,
	StatePricing:               RoleProvider,
	StatePriceResponse:         RoleRequester,
	StateNegotiatingPermission: RoleProvider,
	StateCounterInput:          RoleRequester,
	StateCounterResponse:       RoleProvider,
	StateFinalResponse:         RoleRequester,
	StatePaymentPending:        RoleProvider,
	StatePaymentCompleted:      RoleRequester,
	StateWorkInProgress:        RoleRequester,
	StateWorkSubmitted:         RoleProvider,
	StateWorkFinalReview:       RoleProvider,
	StateWorkApproved:          RoleNone,
	StateWorkRejected:          RoleProvider,
	StateAdminPaymentPending:   RoleAdmin,
	StateAdminPaymentComplete:  RoleAdmin,
	StateClosed:                RoleNone,
	StateChatClosed:            RoleNone,
}

// NegotiationRules: (state, action) -> role that may perform it.
// Admin settlement actions are keyed here too; ActionForceClose is the one
// deliberate escape hatch and is checked separately (legal from any
// non-terminal state).
var NegotiationRules = map[string]map[string]string{
	StateResponding: {
		ActionAcceptConnection: RoleProvider,
		ActionRejectConnection: RoleProvider,
	},
	StateDetailing: {
		ActionSubmitDetails: RoleProvider,
	},
	StateReviewing: {
		ActionAcceptScope: RoleRequester,
		ActionDenyScope:   RoleRequester,
	},
	StatePricing: {
		ActionOfferPrice: RoleProvider,
	},
	StatePriceResponse: {
		ActionAcceptPrice: RoleRequester,
		ActionRejectPrice: RoleRequester,
		ActionNegotiate:   RoleRequester,
	},
	StateNegotiatingPermission: {
		ActionAllowNegotiation: RoleProvider,
		ActionDenyNegotiation:  RoleProvider,
	},
	StateCounterInput: {
		ActionCounterOffer: RoleRequester,
	},
	StateCounterResponse: {
		ActionAcceptCounter: RoleProvider,
		ActionRejectCounter: RoleProvider,
		ActionFinalOffer:    RoleProvider,
	},
	StateFinalResponse: {
		ActionAcceptFinal: RoleRequester,
		ActionRejectFinal: RoleRequester,
	},
	StatePaymentPending: {
		ActionInitiatePayment: RoleProvider,
		ActionReceiveFunds:    RoleAdmin,
	},
	StatePaymentCompleted: {
		ActionStartWork:      RoleRequester,
		ActionReleaseAdvance: RoleAdmin,
	},
	StateWorkInProgress: {
		ActionSubmitWork:     RoleRequester,
		ActionReleaseAdvance: RoleAdmin,
	},
	StateWorkSubmitted: {
		ActionApproveWork:     RoleProvider,
		ActionRequestRevision: RoleProvider,
	},
	StateWorkFinalReview: {
		ActionApproveWork: RoleProvider,
		ActionRejectWork:  RoleProvider,
	},
	StateWorkRejected: {
		ActionContinueWorking: RoleProvider,
		ActionRejectProject:   RoleProvider,
	},
	StateAdminPaymentPending: {
		ActionReleaseFinal: RoleAdmin,
		ActionRefund:       RoleAdmin,
	},
	StateAdminPaymentComplete: {
		ActionClose: RoleAdmin,
	},
	StateWorkApproved: {},
	// Terminal for the parties, but an admin can still refund funds
	// stranded in escrow (project rejected or force-closed mid-flight).
	StateClosed:     {ActionRefund: RoleAdmin},
	StateChatClosed: {ActionRefund: RoleAdmin},
}

// AllActions is the closed set of known action names. Anything outside it is
// rejected as unsupported rather than illegal.
var AllActions = map[string]bool{
	ActionAcceptConnection: true, ActionRejectConnection: true,
	ActionSubmitDetails: true,
	ActionAcceptScope:   true, ActionDenyScope: true,
	ActionOfferPrice:  true,
	ActionAcceptPrice: true, ActionRejectPrice: true, ActionNegotiate: true,
	ActionAllowNegotiation: true, ActionDenyNegotiation: true,
	ActionCounterOffer:  true,
	ActionAcceptCounter: true, ActionRejectCounter: true, ActionFinalOffer: true,
	ActionAcceptFinal: true, ActionRejectFinal: true,
	ActionInitiatePayment: true,
	ActionStartWork:       true, ActionSubmitWork: true,
	ActionApproveWork: true, ActionRequestRevision: true, ActionRejectWork: true,
	ActionContinueWorking: true, ActionRejectProject: true,
	ActionReceiveFunds: true, ActionReleaseAdvance: true, ActionReleaseFinal: true,
	ActionRefund: true, ActionClose: true, ActionForceClose: true,
}

// RuleFor returns the role allowed to perform action in state.
func RuleFor(state, action string) (string, bool) {
	actions, ok := NegotiationRules[state]
	if !ok {
		return "", false
	}
	role, ok := actions[action]
	return role, ok
}

func IsTerminalState(state string) bool {
	return StateAwaitingRole[state] == RoleNone
}

// Negotiation round outcomes
const (
	RoundOutcomePending   = "pending"
	RoundOutcomeAccepted  = "accepted"
	RoundOutcomeRejected  = "rejected"
	RoundOutcomeCountered = "countered"
	RoundOutcomeFinal     = "final"
)

type Negotiation struct {
	ID               uuid.UUID  `json:"id"`
	RequesterID      uuid.UUID  `json:"requester_id"`
	ProviderID       uuid.UUID  `json:"provider_id"`
	ListingID        *uuid.UUID `json:"listing_id,omitempty"`
	OpenCallID       *uuid.UUID `json:"open_call_id,omitempty"`
	FlowState        string     `json:"flow_state"`
	AwaitingRole     string     `json:"awaiting_role"`
	NegotiationRound int        `json:"negotiation_round"`
	RevisionCount    int        `json:"revision_count"`
	MaxRevisions     int        `json:"max_revisions"`
	StateVersion     int64      `json:"state_version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RoleOf resolves which negotiation role a user holds, RoleNone for strangers.
func (n *Negotiation) RoleOf(userID uuid.UUID) string {
	switch userID {
	case n.RequesterID:
		return RoleRequester
	case n.ProviderID:
		return RoleProvider
	}
	return RoleNone
}

// CounterpartOf returns the other party's user id.
func (n *Negotiation) CounterpartOf(userID uuid.UUID) uuid.UUID {
	if userID == n.RequesterID {
		return n.ProviderID
	}
	return n.RequesterID
}

// UserForRole maps a party role to its user id; admin and none yield uuid.Nil.
func (n *Negotiation) UserForRole(role string) uuid.UUID {
	switch role {
	case RoleRequester:
		return n.RequesterID
	case RoleProvider:
		return n.ProviderID
	}
	return uuid.Nil
}

// NegotiationRound is one entry of the price-haggling history.
type NegotiationRound struct {
	ID            uuid.UUID `json:"id"`
	NegotiationID uuid.UUID `json:"negotiation_id"`
	Round         int       `json:"round"`
	ProposerRole  string    `json:"proposer_role"`
	AmountPaise   int64     `json:"amount_paise"`
	Outcome       string    `json:"outcome"`
	CreatedAt     time.Time `json:"created_at"`
}
