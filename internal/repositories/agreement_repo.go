package repositories

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgreementRepo struct {
	pool *pgxpool.Pool
}

func NewAgreementRepo(pool *pgxpool.Pool) *AgreementRepo {
	return &AgreementRepo{pool: pool}
}

func (r *AgreementRepo) CreateTx(ctx context.Context, q Querier, a *models.Agreement) error {
	return q.QueryRow(ctx, `
		INSERT INTO agreements (negotiation_id, proposed_amount_paise, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, a.NegotiationID, a.ProposedAmountPaise, a.Status).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AgreementRepo) GetByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Agreement, error) {
	var a models.Agreement
	err := r.pool.QueryRow(ctx, `
		SELECT id, negotiation_id, proposed_amount_paise, final_agreed_amount_paise, status,
		       created_at, updated_at
		FROM agreements WHERE negotiation_id = $1
	`, negotiationID).Scan(&a.ID, &a.NegotiationID, &a.ProposedAmountPaise,
		&a.FinalAgreedAmountPaise, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateTx persists the mutable agreement fields. The COALESCE keeps
// final_agreed_amount_paise write-once even if a caller regresses it.
func (r *AgreementRepo) UpdateTx(ctx context.Context, q Querier, a *models.Agreement) error {
	return q.QueryRow(ctx, `
		UPDATE agreements
		SET proposed_amount_paise = $1,
		    final_agreed_amount_paise = COALESCE(final_agreed_amount_paise, $2),
		    status = $3,
		    updated_at = now()
		WHERE id = $4
		RETURNING final_agreed_amount_paise, updated_at
	`, a.ProposedAmountPaise, a.FinalAgreedAmountPaise, a.Status, a.ID,
	).Scan(&a.FinalAgreedAmountPaise, &a.UpdatedAt)
}
