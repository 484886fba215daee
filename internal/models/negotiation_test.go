package models

import (
	"testing"

	"github.com/google/uuid"
)

func mustUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func TestRuleFor(t *testing.T) {
	tests := []struct {
		state    string
		action   string
		role     string
		expected bool
	}{
		// Happy path
		{StateResponding, ActionAcceptConnection, RoleProvider, true},
		{StateResponding, ActionRejectConnection, RoleProvider, true},
		{StateDetailing, ActionSubmitDetails, RoleProvider, true},
		{StateReviewing, ActionAcceptScope, RoleRequester, true},
		{StateReviewing, ActionDenyScope, RoleRequester, true},
		{StatePricing, ActionOfferPrice, RoleProvider, true},
		{StatePriceResponse, ActionAcceptPrice, RoleRequester, true},
		{StatePriceResponse, ActionNegotiate, RoleRequester, true},
		{StateNegotiatingPermission, ActionAllowNegotiation, RoleProvider, true},
		{StateCounterInput, ActionCounterOffer, RoleRequester, true},
		{StateCounterResponse, ActionAcceptCounter, RoleProvider, true},
		{StateCounterResponse, ActionRejectCounter, RoleProvider, true},
		{StateCounterResponse, ActionFinalOffer, RoleProvider, true},
		{StateFinalResponse, ActionAcceptFinal, RoleRequester, true},
		{StatePaymentPending, ActionInitiatePayment, RoleProvider, true},
		{StatePaymentCompleted, ActionStartWork, RoleRequester, true},
		{StateWorkInProgress, ActionSubmitWork, RoleRequester, true},
		{StateWorkSubmitted, ActionApproveWork, RoleProvider, true},
		{StateWorkSubmitted, ActionRequestRevision, RoleProvider, true},
		{StateWorkFinalReview, ActionApproveWork, RoleProvider, true},
		{StateWorkFinalReview, ActionRejectWork, RoleProvider, true},
		{StateWorkRejected, ActionContinueWorking, RoleProvider, true},
		{StateAdminPaymentPending, ActionReleaseFinal, RoleAdmin, true},
		{StateAdminPaymentPending, ActionRefund, RoleAdmin, true},
		{StateAdminPaymentComplete, ActionClose, RoleAdmin, true},

		// Wrong state
		{StateResponding, ActionOfferPrice, "", false},
		{StatePricing, ActionAcceptPrice, "", false},
		{StateWorkSubmitted, ActionRejectWork, "", false},
		{StateWorkFinalReview, ActionRequestRevision, "", false},
		{StateChatClosed, ActionAcceptConnection, "", false},
		{StateClosed, ActionRefund, "", false},
		{StateWorkApproved, ActionApproveWork, "", false},
		{"nonexistent", ActionAcceptPrice, "", false},
		{StatePricing, "nonexistent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.state+"/"+tt.action, func(t *testing.T) {
			role, ok := RuleFor(tt.state, tt.action)
			if ok != tt.expected {
				t.Fatalf("RuleFor(%q, %q) ok = %v, want %v", tt.state, tt.action, ok, tt.expected)
			}
			if ok && role != tt.role {
				t.Errorf("RuleFor(%q, %q) role = %q, want %q", tt.state, tt.action, role, tt.role)
			}
		})
	}
}

func TestAllStatesHaveAwaitingRole(t *testing.T) {
	allStates := []string{
		StateResponding, StateDetailing, StateReviewing,
		StatePricing, StatePriceResponse, StateNegotiatingPermission,
		StateCounterInput, StateCounterResponse, StateFinalResponse,
		StatePaymentPending, StatePaymentCompleted,
		StateWorkInProgress, StateWorkSubmitted, StateWorkFinalReview,
		StateWorkApproved, StateWorkRejected,
		StateAdminPaymentPending, StateAdminPaymentComplete,
		StateClosed, StateChatClosed,
	}

	for _, state := range allStates {
		if _, ok := StateAwaitingRole[state]; !ok {
			t.Errorf("state %q missing from StateAwaitingRole map", state)
		}
		if _, ok := NegotiationRules[state]; !ok {
			t.Errorf("state %q missing from NegotiationRules map", state)
		}
	}
}

func TestRuleRoleMatchesAwaitingRole(t *testing.T) {
	// Every party-role rule must agree with the state's awaiting role; admin
	// rules are privileged and exempt.
	for state, actions := range NegotiationRules {
		for action, role := range actions {
			if role == RoleAdmin {
				continue
			}
			if awaiting := StateAwaitingRole[state]; role != awaiting {
				t.Errorf("rule (%s, %s) allows %q but state awaits %q", state, action, role, awaiting)
			}
		}
	}
}

func TestTerminalStatesHaveNoPartyActions(t *testing.T) {
	terminal := []string{StateWorkApproved, StateClosed, StateChatClosed}
	for _, state := range terminal {
		if !IsTerminalState(state) {
			t.Errorf("state %q should be terminal", state)
		}
		if actions := NegotiationRules[state]; len(actions) != 0 {
			t.Errorf("terminal state %q should have no actions, got %v", state, actions)
		}
	}
}

func TestRoleOfAndCounterpart(t *testing.T) {
	n := Negotiation{}
	n.RequesterID = mustUUID("11111111-1111-1111-1111-111111111111")
	n.ProviderID = mustUUID("22222222-2222-2222-2222-222222222222")

	if got := n.RoleOf(n.RequesterID); got != RoleRequester {
		t.Errorf("RoleOf(requester) = %q", got)
	}
	if got := n.RoleOf(n.ProviderID); got != RoleProvider {
		t.Errorf("RoleOf(provider) = %q", got)
	}
	if got := n.RoleOf(mustUUID("33333333-3333-3333-3333-333333333333")); got != RoleNone {
		t.Errorf("RoleOf(stranger) = %q", got)
	}
	if got := n.CounterpartOf(n.RequesterID); got != n.ProviderID {
		t.Errorf("CounterpartOf(requester) = %v", got)
	}
}
