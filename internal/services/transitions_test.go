package services

import (
	"testing"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flow drives the pure transition core the way the engine does: legality
// check against the rule table, handler dispatch, then applyOutcome. It
// keeps the round history in memory so scenarios can assert on it.
type flow struct {
	neg        *models.Negotiation
	ag         *models.Agreement
	rounds     []models.NegotiationRound
	escrowHeld bool
	roundCap   int
	bps        int
	advanceBPS int
}

func newFlow() *flow {
	return &flow{
		neg: &models.Negotiation{
			ID:           uuid.New(),
			RequesterID:  uuid.New(),
			ProviderID:   uuid.New(),
			FlowState:    models.StateResponding,
			AwaitingRole: models.RoleProvider,
			MaxRevisions: 3,
		},
		bps:        1000,
		advanceBPS: 3000,
	}
}

func (f *flow) actorFor(role string) Actor {
	return Actor{UserID: f.neg.UserForRole(role), Role: role}
}

func (f *flow) try(t *testing.T, role string, input ActionInput) (*transitionOutcome, error) {
	t.Helper()
	required, ok := models.RuleFor(f.neg.FlowState, input.Action)
	if input.Action == models.ActionForceClose {
		required, ok = models.RoleAdmin, role == models.RoleAdmin && !models.IsTerminalState(f.neg.FlowState)
	}
	if !ok || required != role {
		return nil, ErrIllegalTransition
	}

	handler := transitionTable[input.Action]
	require.NotNil(t, handler, "no handler for %s", input.Action)

	out, err := handler(&transitionCtx{
		Neg:       f.neg,
		Agreement: f.ag,
		Actor:     f.actorFor(role),
		Input:     input,
		Breakdown: func(total int64) models.Breakdown {
			return ComputeBreakdown(total, f.bps, f.advanceBPS)
		},
		RoundCap:   f.roundCap,
		EscrowHeld: f.escrowHeld,
	})
	if err != nil {
		return nil, err
	}

	if out.CloseRound != "" {
		for i := len(f.rounds) - 1; i >= 0; i-- {
			if f.rounds[i].Outcome == models.RoundOutcomePending {
				f.rounds[i].Outcome = out.CloseRound
				break
			}
		}
	}
	if out.AppendRound != nil {
		f.rounds = append(f.rounds, *out.AppendRound)
	}
	f.ag = applyOutcome(f.neg, f.ag, out)
	return out, nil
}

func (f *flow) step(t *testing.T, role string, input ActionInput) *transitionOutcome {
	t.Helper()
	out, err := f.try(t, role, input)
	require.NoError(t, err, "action %s in state %s", input.Action, f.neg.FlowState)
	return out
}

func TestHappyPathToSettlement(t *testing.T) {
	f := newFlow()

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionAcceptConnection})
	assert.Equal(t, models.StateDetailing, f.neg.FlowState)
	assert.Equal(t, models.RoleProvider, f.neg.AwaitingRole)

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionSubmitDetails, Note: "3 posts, 2 weeks"})
	assert.Equal(t, models.StateReviewing, f.neg.FlowState)

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionAcceptScope})
	assert.Equal(t, models.StatePricing, f.neg.FlowState)

	// ₹1000 offer
	out := f.step(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: 100000})
	assert.Equal(t, models.StatePriceResponse, f.neg.FlowState)
	assert.Equal(t, 1, f.neg.NegotiationRound)
	require.NotNil(t, f.ag)
	assert.Equal(t, int64(100000), f.ag.ProposedAmountPaise)
	assert.Nil(t, f.ag.FinalAgreedAmountPaise)

	payload := out.Message.ActionData.Payload
	assert.Equal(t, int64(10000), payload["commission_paise"])
	assert.Equal(t, int64(90000), payload["net_paise"])
	assert.Equal(t, int64(27000), payload["advance_paise"])
	assert.Equal(t, int64(63000), payload["final_paise"])

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionAcceptPrice})
	assert.Equal(t, models.StatePaymentPending, f.neg.FlowState)
	assert.Equal(t, models.AgreementStatusFinalized, f.ag.Status)
	require.NotNil(t, f.ag.FinalAgreedAmountPaise)
	assert.Equal(t, int64(100000), *f.ag.FinalAgreedAmountPaise)
	assert.Equal(t, models.RoundOutcomeAccepted, f.rounds[0].Outcome)

	out = f.step(t, models.RoleProvider, ActionInput{Action: models.ActionInitiatePayment})
	assert.Equal(t, effectCreateOrder, out.Effect)
	assert.Equal(t, models.StatePaymentPending, f.neg.FlowState)

	// Gateway confirmation advances to payment_completed outside the table;
	// mirror it here.
	f.neg.FlowState = models.StatePaymentCompleted
	f.neg.AwaitingRole = models.StateAwaitingRole[models.StatePaymentCompleted]
	f.ag.Status = models.AgreementStatusPaid
	f.escrowHeld = true

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionStartWork})
	assert.Equal(t, models.StateWorkInProgress, f.neg.FlowState)

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionSubmitWork, Deliverables: []string{"https://example.com/draft"}})
	assert.Equal(t, models.StateWorkSubmitted, f.neg.FlowState)
	assert.Equal(t, models.AgreementStatusWorkSubmitted, f.ag.Status)

	out = f.step(t, models.RoleProvider, ActionInput{Action: models.ActionApproveWork})
	assert.Equal(t, models.StateAdminPaymentPending, f.neg.FlowState)
	assert.Equal(t, effectReleaseHold, out.Effect)
	assert.Equal(t, models.AgreementStatusWorkApproved, f.ag.Status)

	out = f.step(t, models.RoleAdmin, ActionInput{Action: models.ActionReleaseFinal})
	assert.Equal(t, models.StateAdminPaymentComplete, f.neg.FlowState)
	assert.Equal(t, effectReleaseFinal, out.Effect)

	f.step(t, models.RoleAdmin, ActionInput{Action: models.ActionClose})
	assert.Equal(t, models.StateClosed, f.neg.FlowState)
	assert.Equal(t, models.AgreementStatusCompleted, f.ag.Status)
	assert.True(t, models.IsTerminalState(f.neg.FlowState))
}

func TestCounterOfferRoundHistory(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StatePricing
	f.neg.AwaitingRole = models.RoleProvider

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: 100000})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionNegotiate})
	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionAllowNegotiation})

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionCounterOffer, AmountPaise: 80000})
	assert.Equal(t, models.StateCounterResponse, f.neg.FlowState)
	assert.Equal(t, 2, f.neg.NegotiationRound)
	assert.Equal(t, int64(80000), f.ag.ProposedAmountPaise)

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRejectCounter})
	assert.Equal(t, models.StateCounterInput, f.neg.FlowState)

	require.Len(t, f.rounds, 2)
	assert.Equal(t, models.RoleProvider, f.rounds[0].ProposerRole)
	assert.Equal(t, models.RoundOutcomeCountered, f.rounds[0].Outcome)
	assert.Equal(t, models.RoleRequester, f.rounds[1].ProposerRole)
	assert.Equal(t, models.RoundOutcomeRejected, f.rounds[1].Outcome)

	// No acceptance happened, so nothing may be final.
	assert.Nil(t, f.ag.FinalAgreedAmountPaise)
}

func TestFinalOfferAccept(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StatePricing
	f.neg.AwaitingRole = models.RoleProvider

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: 100000})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionNegotiate})
	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionAllowNegotiation})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionCounterOffer, AmountPaise: 80000})

	out := f.step(t, models.RoleProvider, ActionInput{Action: models.ActionFinalOffer, AmountPaise: 90000})
	assert.Equal(t, models.StateFinalResponse, f.neg.FlowState)
	assert.Equal(t, 3, f.neg.NegotiationRound)
	require.NotNil(t, out.Message.ActionData)

	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionAcceptFinal})
	assert.Equal(t, models.StatePaymentPending, f.neg.FlowState)
	require.NotNil(t, f.ag.FinalAgreedAmountPaise)
	assert.Equal(t, int64(90000), *f.ag.FinalAgreedAmountPaise)
}

func TestRoundCapForcesClose(t *testing.T) {
	f := newFlow()
	f.roundCap = 2
	f.neg.FlowState = models.StatePricing
	f.neg.AwaitingRole = models.RoleProvider

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: 100000})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionNegotiate})
	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionAllowNegotiation})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionCounterOffer, AmountPaise: 80000})

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRejectCounter})
	assert.Equal(t, models.StateChatClosed, f.neg.FlowState)
	assert.True(t, models.IsTerminalState(f.neg.FlowState))
}

func TestRevisionExhaustionRoutesToFinalReview(t *testing.T) {
	f := newFlow()
	f.neg.MaxRevisions = 2
	f.neg.FlowState = models.StateWorkInProgress
	f.neg.AwaitingRole = models.RoleRequester
	f.escrowHeld = true

	for i := 1; i <= 2; i++ {
		f.step(t, models.RoleRequester, ActionInput{Action: models.ActionSubmitWork})
		assert.Equal(t, models.StateWorkSubmitted, f.neg.FlowState, "submission %d", i)

		f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRequestRevision, Note: "tighten the intro"})
		assert.Equal(t, models.StateWorkInProgress, f.neg.FlowState)
		assert.Equal(t, i, f.neg.RevisionCount)
	}

	out := f.step(t, models.RoleRequester, ActionInput{Action: models.ActionSubmitWork})
	assert.Equal(t, models.StateWorkFinalReview, f.neg.FlowState)

	actions := map[string]bool{}
	for _, b := range out.Message.ActionData.Buttons {
		actions[b.Action] = true
	}
	assert.True(t, actions[models.ActionApproveWork])
	assert.True(t, actions[models.ActionRejectWork])
	assert.False(t, actions[models.ActionRequestRevision], "no revision option after the budget is spent")

	// A further revision request is illegal outright.
	_, err := f.try(t, models.RoleProvider, ActionInput{Action: models.ActionRequestRevision})
	assert.Error(t, err)
}

func TestRejectedFinalWorkPaths(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StateWorkFinalReview
	f.neg.AwaitingRole = models.RoleProvider
	f.neg.RevisionCount = 3
	f.escrowHeld = true

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRejectWork})
	assert.Equal(t, models.StateWorkRejected, f.neg.FlowState)
	assert.Equal(t, models.RoleProvider, f.neg.AwaitingRole)

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionContinueWorking})
	assert.Equal(t, models.StateWorkInProgress, f.neg.FlowState)

	// Resubmission with the budget spent goes straight to final review.
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionSubmitWork})
	assert.Equal(t, models.StateWorkFinalReview, f.neg.FlowState)

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRejectWork})
	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionRejectProject})
	assert.Equal(t, models.StateChatClosed, f.neg.FlowState)
}

func TestWrongRoleLeavesStateUnchanged(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StatePriceResponse
	f.neg.AwaitingRole = models.RoleRequester
	f.ag = &models.Agreement{NegotiationID: f.neg.ID, ProposedAmountPaise: 100000, Status: models.AgreementStatusNegotiating}

	// The provider cannot answer their own offer.
	_, err := f.try(t, models.RoleProvider, ActionInput{Action: models.ActionAcceptPrice})
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, models.StatePriceResponse, f.neg.FlowState)

	// Nor can anyone run an action from a different phase.
	_, err = f.try(t, models.RoleRequester, ActionInput{Action: models.ActionSubmitWork})
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, models.StatePriceResponse, f.neg.FlowState)
}

func TestFinalAmountWriteOnce(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StatePricing
	f.neg.AwaitingRole = models.RoleProvider

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: 100000})
	f.step(t, models.RoleRequester, ActionInput{Action: models.ActionAcceptPrice})
	require.NotNil(t, f.ag.FinalAgreedAmountPaise)
	assert.Equal(t, int64(100000), *f.ag.FinalAgreedAmountPaise)

	// Even a direct re-application of a finalizing outcome cannot move it.
	amount := int64(50000)
	applyOutcome(f.neg, f.ag, &transitionOutcome{
		NextState:   f.neg.FlowState,
		SetProposed: &amount,
		SetFinal:    true,
	})
	assert.Equal(t, int64(100000), *f.ag.FinalAgreedAmountPaise)
}

func TestPayloadValidation(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StatePricing
	f.neg.AwaitingRole = models.RoleProvider

	_, err := f.try(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.try(t, models.RoleProvider, ActionInput{Action: models.ActionOfferPrice, AmountPaise: -5})
	assert.ErrorIs(t, err, ErrValidation)

	f.neg.FlowState = models.StateDetailing
	_, err = f.try(t, models.RoleProvider, ActionInput{Action: models.ActionSubmitDetails})
	assert.ErrorIs(t, err, ErrValidation)

	f.neg.FlowState = models.StateWorkInProgress
	_, err = f.try(t, models.RoleAdmin, ActionInput{Action: models.ActionForceClose})
	assert.ErrorIs(t, err, ErrValidation)

	out, err := f.try(t, models.RoleAdmin, ActionInput{Action: models.ActionForceClose, Reason: "dispute"})
	require.NoError(t, err)
	assert.Equal(t, models.StateClosed, out.NextState)
}

func TestActionVisibilityMatchesAwaitingRole(t *testing.T) {
	f := newFlow()

	out := f.step(t, models.RoleProvider, ActionInput{Action: models.ActionAcceptConnection})
	require.NotNil(t, out.Message.ActionData)
	assert.Equal(t, f.neg.AwaitingRole, out.Message.ActionData.VisibleTo)

	f.step(t, models.RoleProvider, ActionInput{Action: models.ActionSubmitDetails, Note: "scope"})
	out = f.step(t, models.RoleRequester, ActionInput{Action: models.ActionAcceptScope})
	require.NotNil(t, out.Message.ActionData)
	assert.Equal(t, f.neg.AwaitingRole, out.Message.ActionData.VisibleTo)
}

func TestRefundRouting(t *testing.T) {
	f := newFlow()
	f.neg.FlowState = models.StateAdminPaymentPending
	f.neg.AwaitingRole = models.RoleAdmin
	f.escrowHeld = true

	// Only an admin may refund, and the payout queue drains to closed.
	_, err := f.try(t, models.RoleProvider, ActionInput{Action: models.ActionRefund})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	out := f.step(t, models.RoleAdmin, ActionInput{Action: models.ActionRefund, Reason: "dispute"})
	assert.Equal(t, models.StateClosed, f.neg.FlowState)
	assert.Equal(t, effectRefund, out.Effect)

	// A hold stranded in a closed chat is refunded in place.
	f = newFlow()
	f.neg.FlowState = models.StateChatClosed
	f.neg.AwaitingRole = models.RoleNone
	f.escrowHeld = true

	out = f.step(t, models.RoleAdmin, ActionInput{Action: models.ActionRefund, Reason: "project rejected"})
	assert.Equal(t, models.StateChatClosed, f.neg.FlowState)
	assert.Equal(t, effectRefund, out.Effect)
}
