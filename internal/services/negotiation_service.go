package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/payments"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/collab-platform/backend/internal/syncutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NegotiationService runs the whole workflow: legality checks, the pure
// transition handlers, money effects and persistence. Transitions for one
// negotiation are serialized with a keyed lock and committed with a
// version compare-and-swap, so a stale client loses instead of corrupting
// state.
type NegotiationService struct {
	pool          db
	negRepo       negotiationStore
	agreementRepo agreementStore
	messageRepo   messageStore
	paymentRepo   paymentStore
	escrowRepo    escrowStore
	ledgerRepo    ledgerStore
	auditRepo     auditStore
	commission    *CommissionService
	escrow        *EscrowService
	gateway       payments.Gateway
	notifier      *Notifier
	locks         *syncutil.KeyedMutex
	cfg           *config.Config
	log           *zap.Logger
}

func NewNegotiationService(
	pool db,
	negRepo negotiationStore,
	agreementRepo agreementStore,
	messageRepo messageStore,
	paymentRepo paymentStore,
	escrowRepo escrowStore,
	ledgerRepo ledgerStore,
	auditRepo auditStore,
	commission *CommissionService,
	escrow *EscrowService,
	gateway payments.Gateway,
	notifier *Notifier,
	cfg *config.Config,
	log *zap.Logger,
) *NegotiationService {
	return &NegotiationService{
		pool:          pool,
		negRepo:       negRepo,
		agreementRepo: agreementRepo,
		messageRepo:   messageRepo,
		paymentRepo:   paymentRepo,
		escrowRepo:    escrowRepo,
		ledgerRepo:    ledgerRepo,
		auditRepo:     auditRepo,
		commission:    commission,
		escrow:        escrow,
		gateway:       gateway,
		notifier:      notifier,
		locks:         syncutil.NewKeyedMutex(),
		cfg:           cfg,
		log:           log,
	}
}

type CreateNegotiationInput struct {
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	ListingID   *uuid.UUID
	OpenCallID  *uuid.UUID
	IntroNote   string
}

// CreateNegotiation opens a connection request toward the provider. One
// negotiation exists per (requester, provider, subject); a repeat create
// returns the existing one.
func (s *NegotiationService) CreateNegotiation(ctx context.Context, in CreateNegotiationInput) (*models.Negotiation, error) {
	if in.RequesterID == in.ProviderID {
		return nil, fmt.Errorf("%w: requester and provider must differ", ErrValidation)
	}
	if in.RequesterID == uuid.Nil || in.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: both parties are required", ErrValidation)
	}

	existing, err := s.negRepo.GetBySubject(ctx, in.RequesterID, in.ProviderID, in.ListingID, in.OpenCallID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	neg := &models.Negotiation{
		RequesterID:  in.RequesterID,
		ProviderID:   in.ProviderID,
		ListingID:    in.ListingID,
		OpenCallID:   in.OpenCallID,
		FlowState:    models.StateResponding,
		AwaitingRole: models.RoleProvider,
		MaxRevisions: s.cfg.MaxRevisionsDefault,
	}
	if err := s.negRepo.Create(ctx, neg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	body := in.IntroNote
	if body == "" {
		body = "Connection requested."
	}
	sender := in.RequesterID
	receiver := in.ProviderID
	msg := &models.Message{
		NegotiationID:  neg.ID,
		SenderID:       &sender,
		ReceiverID:     &receiver,
		MessageType:    models.MessageTypeAutomated,
		Body:           body,
		ActionRequired: true,
		ActionData: &models.ActionData{
			Title:     "Respond to the connection request",
			VisibleTo: models.RoleProvider,
			Buttons: []models.ActionButton{
				{Label: "Accept", Action: models.ActionAcceptConnection},
				{Label: "Decline", Action: models.ActionRejectConnection},
			},
		},
	}
	if err := s.messageRepo.InsertTx(ctx, s.pool, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit(ctx, &in.RequesterID, models.RoleRequester, "create_negotiation", neg.ID, nil)
	s.notifier.Fanout(ctx, neg, msg)
	return neg, nil
}

// Apply runs one action against a negotiation. The returned negotiation and
// message reflect the committed transition.
func (s *NegotiationService) Apply(ctx context.Context, negotiationID, actorID uuid.UUID, isAdmin bool, input ActionInput) (*models.Negotiation, *models.Message, error) {
	if !models.AllActions[input.Action] {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, input.Action)
	}

	unlock, err := s.locks.Lock(ctx, negotiationID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	neg, err := s.negRepo.GetByID(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: negotiation not found", ErrValidation)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	role, err := s.authorize(neg, actorID, isAdmin, input.Action)
	if err != nil {
		return nil, nil, err
	}

	agreement, err := s.loadAgreement(ctx, neg.ID)
	if err != nil {
		return nil, nil, err
	}
	escrowHeld, err := s.escrowRepo.HasHeld(ctx, neg.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	bps := s.commission.CurrentBPS(ctx)
	tc := &transitionCtx{
		Neg:       neg,
		Agreement: agreement,
		Actor:     Actor{UserID: actorID, Role: role},
		Input:     input,
		Breakdown: func(total int64) models.Breakdown {
			return ComputeBreakdown(total, bps, s.cfg.AdvanceBPS)
		},
		RoundCap:   s.cfg.NegotiationRoundCap,
		EscrowHeld: escrowHeld,
	}

	handler := transitionTable[input.Action]
	out, err := handler(tc)
	if err != nil {
		return nil, nil, err
	}

	fx, err := s.prepareEffect(ctx, neg, agreement, tc, out)
	if err != nil {
		return nil, nil, err
	}

	fromState := neg.FlowState
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	expected := neg.StateVersion
	agreement = applyOutcome(neg, agreement, out)

	if err := s.negRepo.UpdateStateTx(ctx, tx, neg, expected); err != nil {
		return nil, nil, err
	}
	if agreement != nil {
		if agreement.ID == uuid.Nil {
			err = s.agreementRepo.CreateTx(ctx, tx, agreement)
		} else {
			err = s.agreementRepo.UpdateTx(ctx, tx, agreement)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	if out.CloseRound != "" {
		if err := s.negRepo.CloseLatestRoundTx(ctx, tx, neg.ID, out.CloseRound); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	if out.AppendRound != nil {
		out.AppendRound.NegotiationID = neg.ID
		if err := s.negRepo.AppendRoundTx(ctx, tx, out.AppendRound); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	if err := s.runEffect(ctx, tx, neg, out, fx); err != nil {
		return nil, nil, err
	}

	msg := s.buildMessage(neg, actorID, out, fx)
	if err := s.messageRepo.InsertTx(ctx, tx, msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit(ctx, &actorID, role, input.Action, neg.ID, map[string]any{
		"from": fromState,
		"to":   neg.FlowState,
	})
	s.notifier.Fanout(ctx, neg, msg)
	if fx != nil && fx.stage != "" {
		s.notifier.PaymentUpdate(ctx, neg, fx.stage, fx.amountPaise)
	}

	s.log.Info("negotiation transition",
		zap.String("negotiation_id", neg.ID.String()),
		zap.String("action", input.Action),
		zap.String("from", fromState),
		zap.String("to", neg.FlowState),
		zap.String("actor_role", role))
	return neg, msg, nil
}

// ConfirmPayment is the gateway callback: verify the signature, freeze the
// funds and advance to payment_completed. A duplicate confirmation returns
// the already-advanced negotiation without side effects.
func (s *NegotiationService) ConfirmPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.Negotiation, error) {
	order, err := s.paymentRepo.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown payment order", ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !s.gateway.VerifySignature(gatewayOrderID, gatewayPaymentID, signature) {
		return nil, ErrInvalidSignature
	}

	unlock, err := s.locks.Lock(ctx, order.NegotiationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	neg, err := s.negRepo.GetByID(ctx, order.NegotiationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order.Status == models.PaymentOrderStatusVerified {
		return neg, nil
	}
	if neg.FlowState != models.StatePaymentPending {
		return nil, fmt.Errorf("%w: negotiation is not awaiting payment", ErrIllegalTransition)
	}

	agreement, err := s.loadAgreement(ctx, neg.ID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	ok, err := s.paymentRepo.MarkVerifiedTx(ctx, tx, order.ID, gatewayPaymentID, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		// Lost a race with another confirmation of the same order.
		return neg, nil
	}
	if _, err := s.escrow.FreezeTx(ctx, tx, neg, order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	expected := neg.StateVersion
	neg.FlowState = models.StatePaymentCompleted
	neg.AwaitingRole = models.StateAwaitingRole[models.StatePaymentCompleted]
	if err := s.negRepo.UpdateStateTx(ctx, tx, neg, expected); err != nil {
		return nil, err
	}
	if agreement != nil {
		agreement.Status = models.AgreementStatusPaid
		if err := s.agreementRepo.UpdateTx(ctx, tx, agreement); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}

	receiver := neg.RequesterID
	msg := &models.Message{
		NegotiationID:  neg.ID,
		ReceiverID:     &receiver,
		MessageType:    models.MessageTypePaymentUpdate,
		Body:           "Payment verified and held in escrow. Work can begin.",
		ActionRequired: true,
		ActionData: &models.ActionData{
			Title:     "Start the work",
			VisibleTo: models.RoleRequester,
			Buttons:   []models.ActionButton{{Label: "Start work", Action: models.ActionStartWork}},
			Payload:   map[string]any{"amount_paise": order.AmountPaise},
		},
	}
	if err := s.messageRepo.InsertTx(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit(ctx, nil, "system", "confirm_payment", neg.ID, map[string]any{
		"gateway_order_id": gatewayOrderID,
		"amount_paise":     order.AmountPaise,
	})
	s.notifier.Fanout(ctx, neg, msg)
	s.notifier.PaymentUpdate(ctx, neg, models.StageReceived, order.AmountPaise)
	return neg, nil
}

// ---- reads ----

func (s *NegotiationService) Get(ctx context.Context, negotiationID, userID uuid.UUID, isAdmin bool) (*models.Negotiation, error) {
	neg, err := s.negRepo.GetByID(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: negotiation not found", ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !isAdmin && neg.RoleOf(userID) == models.RoleNone {
		return nil, ErrForbidden
	}
	return neg, nil
}

func (s *NegotiationService) ListForUser(ctx context.Context, userID uuid.UUID, flowState string, limit, offset int) ([]models.Negotiation, error) {
	f := repositories.NegotiationFilter{UserID: &userID, Limit: limit, Offset: offset}
	if flowState != "" {
		f.FlowState = &flowState
	}
	return s.negRepo.List(ctx, f)
}

// ListByState is the admin view over every negotiation in a state.
func (s *NegotiationService) ListByState(ctx context.Context, flowState string, limit, offset int) ([]models.Negotiation, error) {
	f := repositories.NegotiationFilter{Limit: limit, Offset: offset}
	if flowState != "" {
		f.FlowState = &flowState
	}
	return s.negRepo.List(ctx, f)
}

func (s *NegotiationService) Messages(ctx context.Context, negotiationID, userID uuid.UUID, isAdmin bool, limit, offset int) ([]models.Message, error) {
	if _, err := s.Get(ctx, negotiationID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByNegotiation(ctx, negotiationID, limit, offset)
}

func (s *NegotiationService) Rounds(ctx context.Context, negotiationID, userID uuid.UUID, isAdmin bool) ([]models.NegotiationRound, error) {
	if _, err := s.Get(ctx, negotiationID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.negRepo.ListRounds(ctx, negotiationID)
}

func (s *NegotiationService) Ledger(ctx context.Context, negotiationID, userID uuid.UUID, isAdmin bool) ([]models.LedgerTransaction, error) {
	if _, err := s.Get(ctx, negotiationID, userID, isAdmin); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListByNegotiation(ctx, negotiationID)
}

// ---- internals ----

func (s *NegotiationService) authorize(neg *models.Negotiation, actorID uuid.UUID, isAdmin bool, action string) (string, error) {
	if action == models.ActionForceClose {
		if !isAdmin {
			return "", fmt.Errorf("%w: only an admin may force-close", ErrIllegalTransition)
		}
		if models.IsTerminalState(neg.FlowState) {
			return "", fmt.Errorf("%w: negotiation is already closed", ErrIllegalTransition)
		}
		return models.RoleAdmin, nil
	}

	required, ok := models.RuleFor(neg.FlowState, action)
	if !ok {
		return "", fmt.Errorf("%w: action %q is not available in state %q", ErrIllegalTransition, action, neg.FlowState)
	}
	if required == models.RoleAdmin {
		if !isAdmin {
			return "", fmt.Errorf("%w: action %q requires an admin", ErrIllegalTransition, action)
		}
		return models.RoleAdmin, nil
	}
	role := neg.RoleOf(actorID)
	if role != required {
		return "", fmt.Errorf("%w: action %q is for the %s", ErrIllegalTransition, action, required)
	}
	return role, nil
}

func (s *NegotiationService) loadAgreement(ctx context.Context, negotiationID uuid.UUID) (*models.Agreement, error) {
	agreement, err := s.agreementRepo.GetByNegotiation(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return agreement, nil
}

// preparedEffect carries everything a money effect needs, resolved and
// validated before the transaction opens. The gateway call happens here;
// a failure aborts the whole transition with no state change.
type preparedEffect struct {
	order       *models.PaymentOrder
	hold        *models.EscrowHold
	stage       string
	amountPaise int64
}

func (s *NegotiationService) prepareEffect(ctx context.Context, neg *models.Negotiation, agreement *models.Agreement, tc *transitionCtx, out *transitionOutcome) (*preparedEffect, error) {
	switch out.Effect {
	case effectNone, effectReleaseHold:
		if out.Effect == effectReleaseHold {
			hold, err := s.escrowRepo.GetHeldByNegotiation(ctx, neg.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			return &preparedEffect{hold: hold}, nil
		}
		return nil, nil

	case effectCreateOrder:
		amount, err := s.resolveAmount(ctx, neg, agreement, tc.Input.AmountPaise)
		if err != nil {
			return nil, err
		}
		receipt := payments.NewReceipt()
		gwOrder, err := s.gateway.CreateOrder(ctx, amount, s.cfg.Currency, receipt, map[string]string{
			"negotiation_id": neg.ID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		return &preparedEffect{
			order: &models.PaymentOrder{
				NegotiationID:  neg.ID,
				PayerID:        neg.ProviderID,
				PayeeID:        neg.RequesterID,
				AmountPaise:    amount,
				Currency:       s.cfg.Currency,
				Status:         models.PaymentOrderStatusCreated,
				Receipt:        receipt,
				GatewayOrderID: gwOrder.ID,
			},
			amountPaise: amount,
		}, nil

	case effectReceiveFunds:
		order, err := s.latestOrder(ctx, neg.ID)
		if err != nil {
			return nil, err
		}
		if order.Status == models.PaymentOrderStatusVerified {
			return nil, fmt.Errorf("%w: order already verified", ErrDuplicatePayment)
		}
		return &preparedEffect{order: order, stage: models.StageReceived, amountPaise: order.AmountPaise}, nil

	case effectReleaseAdvance:
		order, err := s.latestOrder(ctx, neg.ID)
		if err != nil {
			return nil, err
		}
		if n, err := s.ledgerRepo.CountByOrderStage(ctx, order.ID, models.StageAdvance); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		} else if n > 0 {
			return nil, fmt.Errorf("%w: advance already released", ErrDuplicatePayment)
		}
		hold, err := s.escrowRepo.GetHeldByNegotiation(ctx, neg.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		b := tc.Breakdown(order.AmountPaise)
		return &preparedEffect{order: order, hold: hold, stage: models.StageAdvance, amountPaise: b.AdvancePaise}, nil

	case effectReleaseFinal:
		order, err := s.latestOrder(ctx, neg.ID)
		if err != nil {
			return nil, err
		}
		if n, err := s.ledgerRepo.CountByOrderStage(ctx, order.ID, models.StageFinal); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		} else if n > 0 {
			return nil, fmt.Errorf("%w: final already released", ErrDuplicatePayment)
		}
		advancePaid, err := s.ledgerRepo.CountByOrderStage(ctx, order.ID, models.StageAdvance)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		b := tc.Breakdown(order.AmountPaise)
		amount := b.NetPaise
		if advancePaid > 0 {
			amount = b.FinalPaise
		}
		hold, err := s.escrowRepo.GetHeldByNegotiation(ctx, neg.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return &preparedEffect{order: order, hold: hold, stage: models.StageFinal, amountPaise: amount}, nil

	case effectRefund:
		order, err := s.latestOrder(ctx, neg.ID)
		if err != nil {
			return nil, err
		}
		// A full refund is off the table once any payout went out.
		for _, stage := range []string{models.StageAdvance, models.StageFinal} {
			if n, err := s.ledgerRepo.CountByOrderStage(ctx, order.ID, stage); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			} else if n > 0 {
				return nil, fmt.Errorf("%w: payouts already released for this order", ErrDuplicatePayment)
			}
		}
		hold, err := s.escrowRepo.GetUnrefundedByNegotiation(ctx, neg.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: no escrowed funds to refund", ErrValidation)
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return &preparedEffect{order: order, hold: hold, stage: models.StageRefund, amountPaise: hold.AmountPaise}, nil
	}
	return nil, nil
}

func (s *NegotiationService) runEffect(ctx context.Context, tx pgx.Tx, neg *models.Negotiation, out *transitionOutcome, fx *preparedEffect) error {
	if fx == nil {
		return nil
	}
	switch out.Effect {
	case effectCreateOrder:
		if err := s.paymentRepo.UpsertByGatewayOrderTx(ctx, tx, fx.order); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		// Debit the payer the moment the order exists; the matching
		// credit lands when the gateway confirms the payment.
		payer := fx.order.PayerID
		payee := fx.order.PayeeID
		entry := &models.LedgerTransaction{
			NegotiationID:  neg.ID,
			Direction:      models.LedgerDirectionOut,
			Type:           models.LedgerTypeDebit,
			AmountPaise:    fx.order.AmountPaise,
			PaymentStage:   models.StageReceived,
			SenderID:       &payer,
			ReceiverID:     &payee,
			PaymentOrderID: &fx.order.ID,
		}
		if err := s.ledgerRepo.InsertTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil
	case effectReceiveFunds:
		ok, err := s.paymentRepo.MarkVerifiedTx(ctx, tx, fx.order.ID, "manual_confirmation", "")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !ok {
			return fmt.Errorf("%w: order already verified", ErrDuplicatePayment)
		}
		_, err = s.escrow.FreezeTx(ctx, tx, neg, fx.order)
		return err
	case effectReleaseHold:
		return s.escrow.ReleaseHoldTx(ctx, tx, fx.hold, out.EffectReason)
	case effectReleaseAdvance:
		return s.escrow.ReleaseAdvanceTx(ctx, tx, neg, fx.hold, fx.order, fx.amountPaise, out.EffectReason)
	case effectReleaseFinal:
		return s.escrow.ReleaseFinalTx(ctx, tx, neg, fx.hold, fx.order, fx.amountPaise, out.EffectReason)
	case effectRefund:
		return s.escrow.RefundTx(ctx, tx, neg, fx.hold, fx.order, out.EffectReason)
	}
	return nil
}

// resolveAmount picks the charge for a payment initiation: explicit payload,
// then the agreement, then the newest history entry, then amounts quoted in
// recent protocol messages.
func (s *NegotiationService) resolveAmount(ctx context.Context, neg *models.Negotiation, agreement *models.Agreement, explicit int64) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if agreement != nil {
		if agreement.FinalAgreedAmountPaise != nil && *agreement.FinalAgreedAmountPaise > 0 {
			return *agreement.FinalAgreedAmountPaise, nil
		}
		if agreement.ProposedAmountPaise > 0 {
			return agreement.ProposedAmountPaise, nil
		}
	}
	if amount, ok, err := s.negRepo.LatestRoundAmount(ctx, neg.ID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	} else if ok && amount > 0 {
		return amount, nil
	}
	if amount, ok, err := s.messageRepo.FindRecentAmountPaise(ctx, neg.ID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	} else if ok && amount > 0 {
		return amount, nil
	}
	return 0, fmt.Errorf("%w: no agreed amount on record", ErrAmountResolution)
}

func (s *NegotiationService) latestOrder(ctx context.Context, negotiationID uuid.UUID) (*models.PaymentOrder, error) {
	order, err := s.paymentRepo.GetLatestByNegotiation(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no payment order exists", ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return order, nil
}

func (s *NegotiationService) buildMessage(neg *models.Negotiation, actorID uuid.UUID, out *transitionOutcome, fx *preparedEffect) *models.Message {
	spec := out.Message
	msgType := spec.Type
	if msgType == "" {
		msgType = models.MessageTypeAutomated
	}

	receiverRole := spec.ReceiverRole
	if receiverRole == "" {
		receiverRole = neg.AwaitingRole
	}
	var receiverID *uuid.UUID
	if id := neg.UserForRole(receiverRole); id != uuid.Nil {
		receiverID = &id
	} else if other := neg.CounterpartOf(actorID); other != actorID {
		receiverID = &other
	}

	actionData := spec.ActionData
	if actionData != nil && out.Effect == effectCreateOrder && fx != nil && fx.order != nil {
		if actionData.Payload == nil {
			actionData.Payload = map[string]any{}
		}
		actionData.Payload["gateway_order_id"] = fx.order.GatewayOrderID
		actionData.Payload["amount_paise"] = fx.order.AmountPaise
		actionData.Payload["currency"] = fx.order.Currency
		actionData.Payload["receipt"] = fx.order.Receipt
	}

	sender := actorID
	msg := &models.Message{
		NegotiationID:  neg.ID,
		SenderID:       &sender,
		ReceiverID:     receiverID,
		MessageType:    msgType,
		Body:           spec.Body,
		AttachmentURLs: spec.Attachments,
		ActionData:     actionData,
		ActionRequired: actionData != nil && actionData.VisibleTo == neg.AwaitingRole && !models.IsTerminalState(neg.FlowState),
	}
	return msg
}

func (s *NegotiationService) audit(ctx context.Context, actorID *uuid.UUID, actorType, action string, negotiationID uuid.UUID, meta map[string]any) {
	entry := models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "negotiation",
		EntityID:    &negotiationID,
		Meta:        meta,
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		s.log.Warn("audit log write failed", zap.Error(err))
	}
}
