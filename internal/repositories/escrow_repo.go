package repositories

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) CreateTx(ctx context.Context, q Querier, h *models.EscrowHold) error {
	return q.QueryRow(ctx, `
		INSERT INTO escrow_holds (negotiation_id, payment_order_id, amount_paise, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, h.NegotiationID, h.PaymentOrderID, h.AmountPaise, h.Status).Scan(&h.ID, &h.CreatedAt)
}

const escrowColumns = `
	id, negotiation_id, payment_order_id, amount_paise, status,
	release_reason, released_at, created_at
`

func scanEscrowHold(row pgx.Row, h *models.EscrowHold) error {
	return row.Scan(&h.ID, &h.NegotiationID, &h.PaymentOrderID, &h.AmountPaise, &h.Status,
		&h.ReleaseReason, &h.ReleasedAt, &h.CreatedAt)
}

// GetHeldByNegotiation returns the open hold, pgx.ErrNoRows when none.
func (r *EscrowRepo) GetHeldByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error) {
	var h models.EscrowHold
	err := scanEscrowHold(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrow_holds
		WHERE negotiation_id = $1 AND status = 'held'
		ORDER BY created_at DESC LIMIT 1
	`, negotiationID), &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetUnrefundedByNegotiation returns the latest hold that has not been
// refunded yet, held or released. Whether its money is spoken for is a
// ledger question, not a hold-status one.
func (r *EscrowRepo) GetUnrefundedByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error) {
	var h models.EscrowHold
	err := scanEscrowHold(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrow_holds
		WHERE negotiation_id = $1 AND status <> 'refunded'
		ORDER BY created_at DESC LIMIT 1
	`, negotiationID), &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *EscrowRepo) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]models.EscrowHold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrow_holds
		WHERE negotiation_id = $1 ORDER BY created_at DESC
	`, negotiationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EscrowHold
	for rows.Next() {
		var h models.EscrowHold
		if err := rows.Scan(&h.ID, &h.NegotiationID, &h.PaymentOrderID, &h.AmountPaise, &h.Status,
			&h.ReleaseReason, &h.ReleasedAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *EscrowRepo) HasHeld(ctx context.Context, negotiationID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM escrow_holds WHERE negotiation_id = $1 AND status = 'held')
	`, negotiationID).Scan(&exists)
	return exists, err
}

func (r *EscrowRepo) MarkReleasedTx(ctx context.Context, q Querier, id uuid.UUID, reason string) error {
	tag, err := q.Exec(ctx, `
		UPDATE escrow_holds SET status = 'released', release_reason = $1, released_at = now()
		WHERE id = $2 AND status = 'held'
	`, reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *EscrowRepo) MarkRefundedTx(ctx context.Context, q Querier, id uuid.UUID, reason string) error {
	tag, err := q.Exec(ctx, `
		UPDATE escrow_holds SET status = 'refunded', release_reason = $1, released_at = now()
		WHERE id = $2 AND status IN ('held', 'released')
	`, reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
