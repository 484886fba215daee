package services

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// The services consume the repositories through these narrow interfaces.
// The concrete pgx-backed repos satisfy them; tests swap in in-memory ones.

type db interface {
	repositories.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type negotiationStore interface {
	Create(ctx context.Context, n *models.Negotiation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error)
	GetBySubject(ctx context.Context, requesterID, providerID uuid.UUID, listingID, openCallID *uuid.UUID) (*models.Negotiation, error)
	List(ctx context.Context, f repositories.NegotiationFilter) ([]models.Negotiation, error)
	UpdateStateTx(ctx context.Context, q repositories.Querier, n *models.Negotiation, expectedVersion int64) error
	AppendRoundTx(ctx context.Context, q repositories.Querier, rd *models.NegotiationRound) error
	CloseLatestRoundTx(ctx context.Context, q repositories.Querier, negotiationID uuid.UUID, outcome string) error
	ListRounds(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationRound, error)
	LatestRoundAmount(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error)
}

type agreementStore interface {
	CreateTx(ctx context.Context, q repositories.Querier, a *models.Agreement) error
	GetByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Agreement, error)
	UpdateTx(ctx context.Context, q repositories.Querier, a *models.Agreement) error
}

type messageStore interface {
	InsertTx(ctx context.Context, q repositories.Querier, m *models.Message) error
	ListByNegotiation(ctx context.Context, negotiationID uuid.UUID, limit, offset int) ([]models.Message, error)
	FindRecentAmountPaise(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error)
}

type paymentStore interface {
	UpsertByGatewayOrderTx(ctx context.Context, q repositories.Querier, o *models.PaymentOrder) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	GetLatestByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.PaymentOrder, error)
	MarkVerifiedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, gatewayPaymentID, signature string) (bool, error)
}

type escrowStore interface {
	CreateTx(ctx context.Context, q repositories.Querier, h *models.EscrowHold) error
	GetHeldByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error)
	GetUnrefundedByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error)
	HasHeld(ctx context.Context, negotiationID uuid.UUID) (bool, error)
	MarkReleasedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, reason string) error
	MarkRefundedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, reason string) error
}

type ledgerStore interface {
	InsertTx(ctx context.Context, q repositories.Querier, t *models.LedgerTransaction) error
	ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]models.LedgerTransaction, error)
	CountByOrderStage(ctx context.Context, paymentOrderID uuid.UUID, stage string) (int, error)
}

type auditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type commissionStore interface {
	Latest(ctx context.Context) (*models.CommissionSetting, error)
	Create(ctx context.Context, s *models.CommissionSetting) error
}

type userStore interface {
	DeviceToken(ctx context.Context, id uuid.UUID) (*string, error)
}
