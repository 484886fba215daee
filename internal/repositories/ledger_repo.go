package repositories

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo is append-only: rows are inserted and summed, never updated.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) InsertTx(ctx context.Context, q Querier, t *models.LedgerTransaction) error {
	return q.QueryRow(ctx, `
		INSERT INTO ledger_transactions (negotiation_id, direction, type, amount_paise,
		                                 payment_stage, sender_id, receiver_id,
		                                 payment_order_id, escrow_hold_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, t.NegotiationID, t.Direction, t.Type, t.AmountPaise,
		t.PaymentStage, t.SenderID, t.ReceiverID,
		t.PaymentOrderID, t.EscrowHoldID, t.Note,
	).Scan(&t.ID, &t.CreatedAt)
}

func (r *LedgerRepo) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]models.LedgerTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, negotiation_id, direction, type, amount_paise, payment_stage,
		       sender_id, receiver_id, payment_order_id, escrow_hold_id, note, created_at
		FROM ledger_transactions WHERE negotiation_id = $1
		ORDER BY created_at ASC
	`, negotiationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerTransaction
	for rows.Next() {
		var t models.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.NegotiationID, &t.Direction, &t.Type, &t.AmountPaise,
			&t.PaymentStage, &t.SenderID, &t.ReceiverID, &t.PaymentOrderID, &t.EscrowHoldID,
			&t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// BalancePaise derives a party's balance from the ledger. Balances are never
// stored as a mutable column.
func (r *LedgerRepo) BalancePaise(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(
			CASE WHEN receiver_id = $1 AND type = 'credit' THEN amount_paise
			     WHEN sender_id = $1 AND type = 'debit' THEN -amount_paise
			     ELSE 0 END
		), 0)
		FROM ledger_transactions
		WHERE receiver_id = $1 OR sender_id = $1
	`, userID).Scan(&balance)
	return balance, err
}

// CountByOrderStage guards idempotency checks in tests and admin tooling.
func (r *LedgerRepo) CountByOrderStage(ctx context.Context, paymentOrderID uuid.UUID, stage string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ledger_transactions
		WHERE payment_order_id = $1 AND payment_stage = $2
	`, paymentOrderID, stage).Scan(&n)
	return n, err
}
