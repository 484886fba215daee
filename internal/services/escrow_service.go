package services

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/repositories"
	"go.uber.org/zap"
)

// EscrowService owns the hold/release/refund bookkeeping. Every mutation
// rides the caller's transaction so money rows and flow state commit
// together. Ledger rows are append-only; the hold row is the only thing
// that flips status.
type EscrowService struct {
	escrowRepo escrowStore
	ledgerRepo ledgerStore
	log        *zap.Logger
}

func NewEscrowService(escrowRepo escrowStore, ledgerRepo ledgerStore, log *zap.Logger) *EscrowService {
	return &EscrowService{escrowRepo: escrowRepo, ledgerRepo: ledgerRepo, log: log}
}

// FreezeTx records a verified deposit: a credit to the payee at the
// received stage plus an open hold over the full amount.
func (s *EscrowService) FreezeTx(ctx context.Context, q repositories.Querier, neg *models.Negotiation, order *models.PaymentOrder) (*models.EscrowHold, error) {
	hold := &models.EscrowHold{
		NegotiationID:  neg.ID,
		PaymentOrderID: order.ID,
		AmountPaise:    order.AmountPaise,
		Status:         models.EscrowStatusHeld,
	}
	if err := s.escrowRepo.CreateTx(ctx, q, hold); err != nil {
		return nil, err
	}

	payer := order.PayerID
	payee := order.PayeeID
	entry := &models.LedgerTransaction{
		NegotiationID:  neg.ID,
		Direction:      models.LedgerDirectionIn,
		Type:           models.LedgerTypeCredit,
		AmountPaise:    order.AmountPaise,
		PaymentStage:   models.StageReceived,
		SenderID:       &payer,
		ReceiverID:     &payee,
		PaymentOrderID: &order.ID,
		EscrowHoldID:   &hold.ID,
	}
	if err := s.ledgerRepo.InsertTx(ctx, q, entry); err != nil {
		return nil, err
	}
	s.log.Info("escrow hold opened",
		zap.String("negotiation_id", neg.ID.String()),
		zap.Int64("amount_paise", order.AmountPaise))
	return hold, nil
}

// ReleaseHoldTx ends the freeze without moving money. Payouts are recorded
// separately by the advance/final release operations.
func (s *EscrowService) ReleaseHoldTx(ctx context.Context, q repositories.Querier, hold *models.EscrowHold, reason string) error {
	if err := s.escrowRepo.MarkReleasedTx(ctx, q, hold.ID, reason); err != nil {
		return err
	}
	hold.Status = models.EscrowStatusReleased
	s.log.Info("escrow hold released",
		zap.String("negotiation_id", hold.NegotiationID.String()),
		zap.String("reason", reason))
	return nil
}

// ReleaseAdvanceTx pays the advance split to the payee. The hold stays open
// for the remainder. Callers guard against double payouts by counting
// existing advance rows for the order before starting the transaction.
func (s *EscrowService) ReleaseAdvanceTx(ctx context.Context, q repositories.Querier, neg *models.Negotiation, hold *models.EscrowHold, order *models.PaymentOrder, amountPaise int64, note string) error {
	return s.payoutTx(ctx, q, neg, hold, order, amountPaise, models.StageAdvance, note)
}

// ReleaseFinalTx pays the remaining split and closes the hold if it is
// still open.
func (s *EscrowService) ReleaseFinalTx(ctx context.Context, q repositories.Querier, neg *models.Negotiation, hold *models.EscrowHold, order *models.PaymentOrder, amountPaise int64, note string) error {
	if hold != nil && hold.Status == models.EscrowStatusHeld {
		if err := s.ReleaseHoldTx(ctx, q, hold, note); err != nil {
			return err
		}
	}
	return s.payoutTx(ctx, q, neg, hold, order, amountPaise, models.StageFinal, note)
}

// RefundTx returns the full held amount to the payer and closes the hold.
func (s *EscrowService) RefundTx(ctx context.Context, q repositories.Querier, neg *models.Negotiation, hold *models.EscrowHold, order *models.PaymentOrder, reason string) error {
	if err := s.escrowRepo.MarkRefundedTx(ctx, q, hold.ID, reason); err != nil {
		return err
	}
	hold.Status = models.EscrowStatusRefunded

	payer := order.PayerID
	payee := order.PayeeID
	entry := &models.LedgerTransaction{
		NegotiationID:  neg.ID,
		Direction:      models.LedgerDirectionOut,
		Type:           models.LedgerTypeDebit,
		AmountPaise:    hold.AmountPaise,
		PaymentStage:   models.StageRefund,
		SenderID:       &payee,
		ReceiverID:     &payer,
		PaymentOrderID: &order.ID,
		EscrowHoldID:   &hold.ID,
		Note:           &reason,
	}
	if err := s.ledgerRepo.InsertTx(ctx, q, entry); err != nil {
		return err
	}
	s.log.Info("escrow refunded",
		zap.String("negotiation_id", neg.ID.String()),
		zap.Int64("amount_paise", hold.AmountPaise))
	return nil
}

func (s *EscrowService) payoutTx(ctx context.Context, q repositories.Querier, neg *models.Negotiation, hold *models.EscrowHold, order *models.PaymentOrder, amountPaise int64, stage, note string) error {
	payer := order.PayerID
	payee := order.PayeeID
	entry := &models.LedgerTransaction{
		NegotiationID:  neg.ID,
		Direction:      models.LedgerDirectionOut,
		Type:           models.LedgerTypeCredit,
		AmountPaise:    amountPaise,
		PaymentStage:   stage,
		SenderID:       &payer,
		ReceiverID:     &payee,
		PaymentOrderID: &order.ID,
	}
	if hold != nil {
		entry.EscrowHoldID = &hold.ID
	}
	if note != "" {
		entry.Note = &note
	}
	if err := s.ledgerRepo.InsertTx(ctx, q, entry); err != nil {
		return err
	}
	s.log.Info("escrow payout",
		zap.String("negotiation_id", neg.ID.String()),
		zap.String("stage", stage),
		zap.Int64("amount_paise", amountPaise))
	return nil
}
