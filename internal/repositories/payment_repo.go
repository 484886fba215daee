package repositories

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// UpsertByGatewayOrderTx keys on the gateway order id so a retried
// initiation for the same order does not create a second row.
func (r *PaymentRepo) UpsertByGatewayOrderTx(ctx context.Context, q Querier, o *models.PaymentOrder) error {
	return q.QueryRow(ctx, `
		INSERT INTO payment_orders (negotiation_id, payer_id, payee_id, amount_paise, currency,
		                            status, receipt, gateway_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (gateway_order_id) DO UPDATE SET
			amount_paise = EXCLUDED.amount_paise,
			receipt = EXCLUDED.receipt,
			updated_at = now()
		RETURNING id, status, created_at, updated_at
	`, o.NegotiationID, o.PayerID, o.PayeeID, o.AmountPaise, o.Currency,
		o.Status, o.Receipt, o.GatewayOrderID,
	).Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
}

const paymentOrderColumns = `
	id, negotiation_id, payer_id, payee_id, amount_paise, currency,
	status, receipt, gateway_order_id, gateway_payment_id, gateway_signature,
	created_at, updated_at
`

func scanPaymentOrder(row pgx.Row, o *models.PaymentOrder) error {
	return row.Scan(&o.ID, &o.NegotiationID, &o.PayerID, &o.PayeeID, &o.AmountPaise, &o.Currency,
		&o.Status, &o.Receipt, &o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature,
		&o.CreatedAt, &o.UpdatedAt)
}

func (r *PaymentRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := scanPaymentOrder(r.pool.QueryRow(ctx,
		`SELECT `+paymentOrderColumns+` FROM payment_orders WHERE gateway_order_id = $1`,
		gatewayOrderID), &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PaymentRepo) GetLatestByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := scanPaymentOrder(r.pool.QueryRow(ctx, `
		SELECT `+paymentOrderColumns+` FROM payment_orders
		WHERE negotiation_id = $1 ORDER BY created_at DESC LIMIT 1
	`, negotiationID), &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkVerifiedTx flips created -> verified exactly once; a zero-row update
// means the order was already verified (duplicate confirmation).
func (r *PaymentRepo) MarkVerifiedTx(ctx context.Context, q Querier, id uuid.UUID, gatewayPaymentID, signature string) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE payment_orders
		SET status = 'verified', gateway_payment_id = $1, gateway_signature = $2, updated_at = now()
		WHERE id = $3 AND status = 'created'
	`, gatewayPaymentID, signature, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
