package services

import (
	"fmt"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
)

// Actor is the resolved identity of whoever submitted an action.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// ActionInput is the payload of a requested action.
type ActionInput struct {
	Action       string
	AmountPaise  int64
	Note         string
	Deliverables []string
	Reason       string
}

// Side effects a transition asks the orchestrator to run. State, message,
// agreement and ledger writes commit in one transaction; the gateway call
// for effectCreateOrder runs before it and aborts everything on failure.
type effectKind int

const (
	effectNone           effectKind = iota
	effectCreateOrder               // resolve amount, create gateway order, debit payer
	effectReceiveFunds              // admin-confirmed deposit: credit payee, open escrow
	effectReleaseHold               // mark the escrow hold released
	effectReleaseAdvance            // pay out the advance split from the held amount
	effectReleaseFinal              // pay out the remainder
	effectRefund                    // return the held amount to the payer
)

type messageSpec struct {
	Body         string
	Type         string // defaults to MessageTypeAutomated
	ReceiverRole string // defaults to the next awaiting role
	ActionData   *models.ActionData
	Attachments  []string
}

// transitionOutcome is the declarative result of a legal transition. The
// orchestrator persists it; applyOutcome mirrors it onto in-memory entities.
type transitionOutcome struct {
	NextState string
	Message   messageSpec

	EnsureAgreement bool
	SetProposed     *int64
	SetFinal        bool // copy proposed into final (write-once)
	AgreementStatus string

	AppendRound       *models.NegotiationRound
	CloseRound        string // outcome for the latest pending history entry
	IncrementRevision bool

	Effect       effectKind
	EffectReason string
}

// transitionCtx carries everything a handler may consult. Handlers are pure:
// they read the context and return an outcome, nothing else.
type transitionCtx struct {
	Neg        *models.Negotiation
	Agreement  *models.Agreement // nil until the first price action
	Actor      Actor
	Input      ActionInput
	Breakdown  func(totalPaise int64) models.Breakdown
	RoundCap   int // 0 = uncapped
	EscrowHeld bool
}

type transitionFunc func(c *transitionCtx) (*transitionOutcome, error)

// transitionTable maps action -> handler. Legality of (state, action, actor)
// is checked by the engine against models.NegotiationRules before dispatch,
// so handlers only validate payloads and compute outcomes.
var transitionTable = map[string]transitionFunc{
	models.ActionAcceptConnection: handleAcceptConnection,
	models.ActionRejectConnection: handleRejectConnection,
	models.ActionSubmitDetails:    handleSubmitDetails,
	models.ActionAcceptScope:      handleAcceptScope,
	models.ActionDenyScope:        handleDenyScope,
	models.ActionOfferPrice:       handleOfferPrice,
	models.ActionAcceptPrice:      handleAcceptPrice,
	models.ActionRejectPrice:      handleRejectPrice,
	models.ActionNegotiate:        handleNegotiate,
	models.ActionAllowNegotiation: handleAllowNegotiation,
	models.ActionDenyNegotiation:  handleDenyNegotiation,
	models.ActionCounterOffer:     handleCounterOffer,
	models.ActionAcceptCounter:    handleAcceptCounter,
	models.ActionRejectCounter:    handleRejectCounter,
	models.ActionFinalOffer:       handleFinalOffer,
	models.ActionAcceptFinal:      handleAcceptFinal,
	models.ActionRejectFinal:      handleRejectFinal,
	models.ActionInitiatePayment:  handleInitiatePayment,
	models.ActionStartWork:        handleStartWork,
	models.ActionSubmitWork:       handleSubmitWork,
	models.ActionApproveWork:      handleApproveWork,
	models.ActionRequestRevision:  handleRequestRevision,
	models.ActionRejectWork:       handleRejectWork,
	models.ActionContinueWorking:  handleContinueWorking,
	models.ActionRejectProject:    handleRejectProject,
	models.ActionReceiveFunds:     handleReceiveFunds,
	models.ActionReleaseAdvance:   handleReleaseAdvance,
	models.ActionReleaseFinal:     handleReleaseFinal,
	models.ActionRefund:           handleRefund,
	models.ActionClose:            handleClose,
	models.ActionForceClose:       handleForceClose,
}

// ---- connection & scope ----

func handleAcceptConnection(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateDetailing,
		Message: messageSpec{
			Body:         "Connection accepted. Share the collaboration scope to continue.",
			ReceiverRole: models.RoleRequester,
			ActionData: &models.ActionData{
				Title:     "Describe the scope",
				Subtitle:  "Outline deliverables, timeline and expectations",
				VisibleTo: models.RoleProvider,
				Input:     &models.ActionInput{Name: "note", Label: "Scope details", Type: "text", Action: models.ActionSubmitDetails},
			},
		},
	}, nil
}

func handleRejectConnection(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateChatClosed,
		Message:   messageSpec{Body: "Connection request declined.", ReceiverRole: models.RoleRequester},
	}, nil
}

func handleSubmitDetails(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.Note == "" {
		return nil, fmt.Errorf("%w: scope details are required", ErrValidation)
	}
	return &transitionOutcome{
		NextState: models.StateReviewing,
		Message: messageSpec{
			Body: c.Input.Note,
			ActionData: &models.ActionData{
				Title:     "Review the proposed scope",
				VisibleTo: models.RoleRequester,
				Buttons: []models.ActionButton{
					{Label: "Accept scope", Action: models.ActionAcceptScope},
					{Label: "Decline", Action: models.ActionDenyScope},
				},
			},
		},
	}, nil
}

func handleAcceptScope(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StatePricing,
		Message: messageSpec{
			Body: "Scope accepted. Waiting for a price offer.",
			ActionData: &models.ActionData{
				Title:     "Make a price offer",
				VisibleTo: models.RoleProvider,
				Input:     &models.ActionInput{Name: "amount_paise", Label: "Offer amount", Type: "amount", Action: models.ActionOfferPrice},
			},
		},
	}, nil
}

func handleDenyScope(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateChatClosed,
		Message:   messageSpec{Body: "Scope declined. Negotiation closed."},
	}, nil
}

// ---- pricing & counter loop ----

func handleOfferPrice(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: a positive amount is required", ErrValidation)
	}
	amount := c.Input.AmountPaise
	b := c.Breakdown(amount)
	return &transitionOutcome{
		NextState:       models.StatePriceResponse,
		EnsureAgreement: true,
		SetProposed:     &amount,
		AgreementStatus: models.AgreementStatusNegotiating,
		AppendRound: &models.NegotiationRound{
			Round:        c.Neg.NegotiationRound + 1,
			ProposerRole: models.RoleProvider,
			AmountPaise:  amount,
			Outcome:      models.RoundOutcomePending,
		},
		Message: messageSpec{
			Body: fmt.Sprintf("Price offered: %s.", formatPaise(amount)),
			ActionData: &models.ActionData{
				Title:     "Respond to the price offer",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleRequester,
				Payload:   breakdownPayload(b),
				Buttons: []models.ActionButton{
					{Label: "Accept", Action: models.ActionAcceptPrice},
					{Label: "Reject", Action: models.ActionRejectPrice},
					{Label: "Negotiate", Action: models.ActionNegotiate},
				},
			},
		},
	}, nil
}

func handleAcceptPrice(c *transitionCtx) (*transitionOutcome, error) {
	if c.Agreement == nil {
		return nil, fmt.Errorf("%w: no price has been proposed", ErrValidation)
	}
	b := c.Breakdown(c.Agreement.ProposedAmountPaise)
	return &transitionOutcome{
		NextState:       models.StatePaymentPending,
		SetFinal:        true,
		AgreementStatus: models.AgreementStatusFinalized,
		CloseRound:      models.RoundOutcomeAccepted,
		Message: messageSpec{
			Body: fmt.Sprintf("Price of %s accepted. Awaiting payment.", formatPaise(c.Agreement.ProposedAmountPaise)),
			ActionData: &models.ActionData{
				Title:     "Complete the payment",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleProvider,
				Payload:   breakdownPayload(b),
				Buttons:   []models.ActionButton{{Label: "Pay now", Action: models.ActionInitiatePayment}},
			},
		},
	}, nil
}

func handleRejectPrice(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:  models.StateChatClosed,
		CloseRound: models.RoundOutcomeRejected,
		Message:    messageSpec{Body: "Price offer rejected. Negotiation closed."},
	}, nil
}

func handleNegotiate(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateNegotiatingPermission,
		Message: messageSpec{
			Body: "Requester would like to negotiate the price.",
			ActionData: &models.ActionData{
				Title:     "Allow counter-offers?",
				VisibleTo: models.RoleProvider,
				Buttons: []models.ActionButton{
					{Label: "Allow", Action: models.ActionAllowNegotiation},
					{Label: "Decline", Action: models.ActionDenyNegotiation},
				},
			},
		},
	}, nil
}

func handleAllowNegotiation(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateCounterInput,
		Message: messageSpec{
			Body: "Negotiation opened. Submit a counter-offer.",
			ActionData: &models.ActionData{
				Title:     "Make a counter-offer",
				VisibleTo: models.RoleRequester,
				Input:     &models.ActionInput{Name: "amount_paise", Label: "Counter amount", Type: "amount", Action: models.ActionCounterOffer},
			},
		},
	}, nil
}

func handleDenyNegotiation(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateChatClosed,
		Message:   messageSpec{Body: "Negotiation declined. Chat closed."},
	}, nil
}

func handleCounterOffer(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: a positive amount is required", ErrValidation)
	}
	if c.Agreement == nil {
		return nil, fmt.Errorf("%w: no price has been proposed", ErrValidation)
	}
	amount := c.Input.AmountPaise
	b := c.Breakdown(amount)
	return &transitionOutcome{
		NextState:       models.StateCounterResponse,
		SetProposed:     &amount,
		AgreementStatus: models.AgreementStatusNegotiating,
		CloseRound:      models.RoundOutcomeCountered,
		AppendRound: &models.NegotiationRound{
			Round:        c.Neg.NegotiationRound + 1,
			ProposerRole: models.RoleRequester,
			AmountPaise:  amount,
			Outcome:      models.RoundOutcomePending,
		},
		Message: messageSpec{
			Body: fmt.Sprintf("Counter-offer: %s.", formatPaise(amount)),
			ActionData: &models.ActionData{
				Title:     "Respond to the counter-offer",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleProvider,
				Payload:   breakdownPayload(b),
				Buttons: []models.ActionButton{
					{Label: "Accept", Action: models.ActionAcceptCounter},
					{Label: "Reject", Action: models.ActionRejectCounter},
					{Label: "Make final offer", Action: models.ActionFinalOffer},
				},
			},
		},
	}, nil
}

func handleAcceptCounter(c *transitionCtx) (*transitionOutcome, error) {
	if c.Agreement == nil {
		return nil, fmt.Errorf("%w: no counter-offer on record", ErrValidation)
	}
	b := c.Breakdown(c.Agreement.ProposedAmountPaise)
	return &transitionOutcome{
		NextState:       models.StatePaymentPending,
		SetFinal:        true,
		AgreementStatus: models.AgreementStatusFinalized,
		CloseRound:      models.RoundOutcomeAccepted,
		Message: messageSpec{
			Body: fmt.Sprintf("Counter-offer of %s accepted. Awaiting payment.", formatPaise(c.Agreement.ProposedAmountPaise)),
			ActionData: &models.ActionData{
				Title:     "Complete the payment",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleProvider,
				Payload:   breakdownPayload(b),
				Buttons:   []models.ActionButton{{Label: "Pay now", Action: models.ActionInitiatePayment}},
			},
		},
	}, nil
}

func handleRejectCounter(c *transitionCtx) (*transitionOutcome, error) {
	// With a configured round cap, rejecting past the cap force-closes
	// instead of looping forever.
	if c.RoundCap > 0 && c.Neg.NegotiationRound >= c.RoundCap {
		return &transitionOutcome{
			NextState:  models.StateChatClosed,
			CloseRound: models.RoundOutcomeRejected,
			Message:    messageSpec{Body: "Counter-offer rejected. Negotiation round limit reached, chat closed."},
		}, nil
	}
	return &transitionOutcome{
		NextState:  models.StateCounterInput,
		CloseRound: models.RoundOutcomeRejected,
		Message: messageSpec{
			Body: "Counter-offer rejected. You may submit a new counter-offer.",
			ActionData: &models.ActionData{
				Title:     "Make another counter-offer",
				VisibleTo: models.RoleRequester,
				Input:     &models.ActionInput{Name: "amount_paise", Label: "Counter amount", Type: "amount", Action: models.ActionCounterOffer},
			},
		},
	}, nil
}

func handleFinalOffer(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.AmountPaise <= 0 {
		return nil, fmt.Errorf("%w: a positive amount is required", ErrValidation)
	}
	amount := c.Input.AmountPaise
	b := c.Breakdown(amount)
	return &transitionOutcome{
		NextState:       models.StateFinalResponse,
		SetProposed:     &amount,
		AgreementStatus: models.AgreementStatusNegotiating,
		CloseRound:      models.RoundOutcomeRejected,
		AppendRound: &models.NegotiationRound{
			Round:        c.Neg.NegotiationRound + 1,
			ProposerRole: models.RoleProvider,
			AmountPaise:  amount,
			Outcome:      models.RoundOutcomeFinal,
		},
		Message: messageSpec{
			Body: fmt.Sprintf("Final offer: %s. Accept or reject.", formatPaise(amount)),
			ActionData: &models.ActionData{
				Title:     "Final offer",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleRequester,
				Payload:   breakdownPayload(b),
				Buttons: []models.ActionButton{
					{Label: "Accept", Action: models.ActionAcceptFinal},
					{Label: "Reject", Action: models.ActionRejectFinal},
				},
			},
		},
	}, nil
}

func handleAcceptFinal(c *transitionCtx) (*transitionOutcome, error) {
	if c.Agreement == nil {
		return nil, fmt.Errorf("%w: no final offer on record", ErrValidation)
	}
	b := c.Breakdown(c.Agreement.ProposedAmountPaise)
	return &transitionOutcome{
		NextState:       models.StatePaymentPending,
		SetFinal:        true,
		AgreementStatus: models.AgreementStatusFinalized,
		Message: messageSpec{
			Body: fmt.Sprintf("Final offer of %s accepted. Awaiting payment.", formatPaise(c.Agreement.ProposedAmountPaise)),
			ActionData: &models.ActionData{
				Title:     "Complete the payment",
				Subtitle:  breakdownSubtitle(b),
				VisibleTo: models.RoleProvider,
				Payload:   breakdownPayload(b),
				Buttons:   []models.ActionButton{{Label: "Pay now", Action: models.ActionInitiatePayment}},
			},
		},
	}, nil
}

func handleRejectFinal(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateChatClosed,
		Message:   messageSpec{Body: "Final offer rejected. Negotiation closed."},
	}, nil
}

// ---- payment ----

func handleInitiatePayment(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.AmountPaise < 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	// Amount resolution and gateway order creation happen in the
	// orchestrator; the pay action payload is filled there too.
	return &transitionOutcome{
		NextState: models.StatePaymentPending,
		Effect:    effectCreateOrder,
		Message: messageSpec{
			Body:         "Payment order created. Complete the payment to fund escrow.",
			Type:         models.MessageTypeAudit,
			ReceiverRole: models.RoleProvider,
			ActionData: &models.ActionData{
				Title:     "Pay into escrow",
				VisibleTo: models.RoleProvider,
			},
		},
	}, nil
}

func handleReceiveFunds(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:       models.StatePaymentCompleted,
		AgreementStatus: models.AgreementStatusPaid,
		Effect:          effectReceiveFunds,
		EffectReason:    "funds received by admin",
		Message: messageSpec{
			Body:         "Payment received and held in escrow. Work can begin.",
			Type:         models.MessageTypePaymentUpdate,
			ReceiverRole: models.RoleRequester,
			ActionData: &models.ActionData{
				Title:     "Start the work",
				VisibleTo: models.RoleRequester,
				Buttons:   []models.ActionButton{{Label: "Start work", Action: models.ActionStartWork}},
			},
		},
	}, nil
}

// ---- work lifecycle ----

func handleStartWork(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateWorkInProgress,
		Message: messageSpec{
			Body:         "Work started.",
			ReceiverRole: models.RoleProvider,
			ActionData: &models.ActionData{
				Title:     "Submit your work when ready",
				VisibleTo: models.RoleRequester,
				Input:     &models.ActionInput{Name: "deliverables", Label: "Deliverable links", Type: "text", Action: models.ActionSubmitWork},
			},
		},
	}, nil
}

func handleSubmitWork(c *transitionCtx) (*transitionOutcome, error) {
	// Once the revision budget is spent the review collapses to
	// approve-or-reject-final only.
	if c.Neg.RevisionCount >= c.Neg.MaxRevisions {
		return &transitionOutcome{
			NextState:       models.StateWorkFinalReview,
			AgreementStatus: models.AgreementStatusWorkSubmitted,
			Message: messageSpec{
				Body:        "Work resubmitted. No revisions remain.",
				Attachments: c.Input.Deliverables,
				ActionData: &models.ActionData{
					Title:     "Final review",
					Subtitle:  "All revisions are used up",
					VisibleTo: models.RoleProvider,
					Buttons: []models.ActionButton{
						{Label: "Approve", Action: models.ActionApproveWork},
						{Label: "Reject final work", Action: models.ActionRejectWork},
					},
				},
			},
		}, nil
	}
	return &transitionOutcome{
		NextState:       models.StateWorkSubmitted,
		AgreementStatus: models.AgreementStatusWorkSubmitted,
		Message: messageSpec{
			Body:        "Work submitted for review.",
			Attachments: c.Input.Deliverables,
			ActionData: &models.ActionData{
				Title:     "Review the submitted work",
				VisibleTo: models.RoleProvider,
				Buttons: []models.ActionButton{
					{Label: "Approve", Action: models.ActionApproveWork},
					{Label: "Request revision", Action: models.ActionRequestRevision},
				},
			},
		},
	}, nil
}

func handleApproveWork(c *transitionCtx) (*transitionOutcome, error) {
	if c.EscrowHeld {
		return &transitionOutcome{
			NextState:       models.StateAdminPaymentPending,
			AgreementStatus: models.AgreementStatusWorkApproved,
			Effect:          effectReleaseHold,
			EffectReason:    "work approved",
			Message: messageSpec{
				Body:         "Work approved. Escrow released, payout pending settlement.",
				ReceiverRole: models.RoleRequester,
			},
		}, nil
	}
	return &transitionOutcome{
		NextState:       models.StateWorkApproved,
		AgreementStatus: models.AgreementStatusWorkApproved,
		Message: messageSpec{
			Body:         "Work approved.",
			ReceiverRole: models.RoleRequester,
		},
	}, nil
}

func handleRequestRevision(c *transitionCtx) (*transitionOutcome, error) {
	if c.Neg.RevisionCount >= c.Neg.MaxRevisions {
		return nil, fmt.Errorf("%w: revision limit reached", ErrIllegalTransition)
	}
	body := "Revision requested."
	if c.Input.Note != "" {
		body = fmt.Sprintf("Revision requested: %s", c.Input.Note)
	}
	return &transitionOutcome{
		NextState:         models.StateWorkInProgress,
		IncrementRevision: true,
		Message: messageSpec{
			Body: body,
			ActionData: &models.ActionData{
				Title:     "Rework and resubmit",
				VisibleTo: models.RoleRequester,
				Input:     &models.ActionInput{Name: "deliverables", Label: "Deliverable links", Type: "text", Action: models.ActionSubmitWork},
			},
		},
	}, nil
}

func handleRejectWork(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:       models.StateWorkRejected,
		AgreementStatus: models.AgreementStatusWorkRejected,
		Message: messageSpec{
			Body:         "Final work rejected.",
			ReceiverRole: models.RoleRequester,
			ActionData: &models.ActionData{
				Title:     "How do you want to proceed?",
				VisibleTo: models.RoleProvider,
				Buttons: []models.ActionButton{
					{Label: "Let work continue", Action: models.ActionContinueWorking},
					{Label: "Reject the project", Action: models.ActionRejectProject},
				},
			},
		},
	}, nil
}

func handleContinueWorking(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:       models.StateWorkInProgress,
		AgreementStatus: models.AgreementStatusPaid,
		Message: messageSpec{
			Body: "Work may continue. Resubmit when ready.",
			ActionData: &models.ActionData{
				Title:     "Resubmit your work",
				VisibleTo: models.RoleRequester,
				Input:     &models.ActionInput{Name: "deliverables", Label: "Deliverable links", Type: "text", Action: models.ActionSubmitWork},
			},
		},
	}, nil
}

func handleRejectProject(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState: models.StateChatClosed,
		Message: messageSpec{
			Body:         "Project rejected. Held funds will be settled by an administrator.",
			ReceiverRole: models.RoleRequester,
		},
	}, nil
}

// ---- admin settlement ----

func handleReleaseAdvance(c *transitionCtx) (*transitionOutcome, error) {
	if !c.EscrowHeld {
		return nil, fmt.Errorf("%w: no funds held in escrow", ErrValidation)
	}
	// Self-loop: an advance payout changes no flow state.
	return &transitionOutcome{
		NextState:    c.Neg.FlowState,
		Effect:       effectReleaseAdvance,
		EffectReason: "advance released",
		Message: messageSpec{
			Body:         "Advance payment released from escrow.",
			Type:         models.MessageTypePaymentUpdate,
			ReceiverRole: models.RoleRequester,
		},
	}, nil
}

func handleReleaseFinal(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:    models.StateAdminPaymentComplete,
		Effect:       effectReleaseFinal,
		EffectReason: "final payout",
		Message: messageSpec{
			Body:         "Final payment released.",
			Type:         models.MessageTypePaymentUpdate,
			ReceiverRole: models.RoleRequester,
		},
	}, nil
}

func handleRefund(c *transitionCtx) (*transitionOutcome, error) {
	reason := c.Input.Reason
	if reason == "" {
		reason = "refunded by admin"
	}
	// From the payout queue a refund closes the negotiation; a stranded
	// hold in an already-closed chat is refunded in place.
	next := models.StateClosed
	if models.IsTerminalState(c.Neg.FlowState) {
		next = c.Neg.FlowState
	}
	return &transitionOutcome{
		NextState:    next,
		Effect:       effectRefund,
		EffectReason: reason,
		Message: messageSpec{
			Body:         "Escrowed funds refunded to the payer.",
			Type:         models.MessageTypePaymentUpdate,
			ReceiverRole: models.RoleProvider,
		},
	}, nil
}

func handleClose(c *transitionCtx) (*transitionOutcome, error) {
	return &transitionOutcome{
		NextState:       models.StateClosed,
		AgreementStatus: models.AgreementStatusCompleted,
		Message:         messageSpec{Body: "Collaboration settled and closed."},
	}, nil
}

func handleForceClose(c *transitionCtx) (*transitionOutcome, error) {
	if c.Input.Reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to force-close", ErrValidation)
	}
	return &transitionOutcome{
		NextState: models.StateClosed,
		Message:   messageSpec{Body: fmt.Sprintf("Negotiation closed by admin: %s", c.Input.Reason)},
	}, nil
}

// applyOutcome mirrors an outcome onto the in-memory entities the way the
// persistence layer will. The returned agreement is non-nil if one exists
// after the transition.
func applyOutcome(neg *models.Negotiation, ag *models.Agreement, out *transitionOutcome) *models.Agreement {
	neg.FlowState = out.NextState
	neg.AwaitingRole = models.StateAwaitingRole[out.NextState]
	if out.AppendRound != nil {
		neg.NegotiationRound = out.AppendRound.Round
	}
	if out.IncrementRevision {
		neg.RevisionCount++
	}

	if ag == nil && out.EnsureAgreement {
		ag = &models.Agreement{
			NegotiationID: neg.ID,
			Status:        models.AgreementStatusConnected,
		}
	}
	if ag != nil {
		if out.SetProposed != nil {
			ag.ProposedAmountPaise = *out.SetProposed
		}
		if out.SetFinal && ag.FinalAgreedAmountPaise == nil {
			final := ag.ProposedAmountPaise
			ag.FinalAgreedAmountPaise = &final
		}
		if out.AgreementStatus != "" {
			ag.Status = out.AgreementStatus
		}
	}
	return ag
}

func breakdownPayload(b models.Breakdown) map[string]any {
	return map[string]any{
		"amount_paise":     b.TotalPaise,
		"commission_bps":   b.CommissionBPS,
		"commission_paise": b.CommissionPaise,
		"net_paise":        b.NetPaise,
		"advance_paise":    b.AdvancePaise,
		"final_paise":      b.FinalPaise,
	}
}

func breakdownSubtitle(b models.Breakdown) string {
	return fmt.Sprintf("Total %s · Commission %s · Net %s · Advance %s · Final %s",
		formatPaise(b.TotalPaise), formatPaise(b.CommissionPaise), formatPaise(b.NetPaise),
		formatPaise(b.AdvancePaise), formatPaise(b.FinalPaise))
}

func formatPaise(p int64) string {
	if p%100 == 0 {
		return fmt.Sprintf("₹%d", p/100)
	}
	return fmt.Sprintf("₹%d.%02d", p/100, p%100)
}
