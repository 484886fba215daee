package repositories

import (
	"context"
	"fmt"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NegotiationRepo struct {
	pool *pgxpool.Pool
}

func NewNegotiationRepo(pool *pgxpool.Pool) *NegotiationRepo {
	return &NegotiationRepo{pool: pool}
}

func (r *NegotiationRepo) Create(ctx context.Context, n *models.Negotiation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO negotiations (requester_id, provider_id, listing_id, open_call_id,
		                          flow_state, awaiting_role, max_revisions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, negotiation_round, revision_count, state_version, created_at, updated_at
	`, n.RequesterID, n.ProviderID, n.ListingID, n.OpenCallID,
		n.FlowState, n.AwaitingRole, n.MaxRevisions,
	).Scan(&n.ID, &n.NegotiationRound, &n.RevisionCount, &n.StateVersion, &n.CreatedAt, &n.UpdatedAt)
}

const negotiationColumns = `
	id, requester_id, provider_id, listing_id, open_call_id,
	flow_state, awaiting_role, negotiation_round, revision_count, max_revisions,
	state_version, created_at, updated_at
`

func scanNegotiation(row pgx.Row, n *models.Negotiation) error {
	return row.Scan(&n.ID, &n.RequesterID, &n.ProviderID, &n.ListingID, &n.OpenCallID,
		&n.FlowState, &n.AwaitingRole, &n.NegotiationRound, &n.RevisionCount, &n.MaxRevisions,
		&n.StateVersion, &n.CreatedAt, &n.UpdatedAt)
}

func (r *NegotiationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	var n models.Negotiation
	err := scanNegotiation(r.pool.QueryRow(ctx,
		`SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1`, id), &n)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetBySubject finds an existing negotiation between the two parties for the
// same subject. One negotiation per (parties, subject) pair.
func (r *NegotiationRepo) GetBySubject(ctx context.Context, requesterID, providerID uuid.UUID, listingID, openCallID *uuid.UUID) (*models.Negotiation, error) {
	var n models.Negotiation
	err := scanNegotiation(r.pool.QueryRow(ctx, `
		SELECT `+negotiationColumns+`
		FROM negotiations
		WHERE requester_id = $1 AND provider_id = $2
		  AND listing_id IS NOT DISTINCT FROM $3
		  AND open_call_id IS NOT DISTINCT FROM $4
	`, requesterID, providerID, listingID, openCallID), &n)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

type NegotiationFilter struct {
	UserID    *uuid.UUID
	FlowState *string
	Limit     int
	Offset    int
}

func (r *NegotiationRepo) List(ctx context.Context, f NegotiationFilter) ([]models.Negotiation, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("(requester_id = $%d OR provider_id = $%d)", argIdx, argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.FlowState != nil {
		where = append(where, fmt.Sprintf("flow_state = $%d", argIdx))
		args = append(args, *f.FlowState)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Negotiation
	for rows.Next() {
		var n models.Negotiation
		if err := rows.Scan(&n.ID, &n.RequesterID, &n.ProviderID, &n.ListingID, &n.OpenCallID,
			&n.FlowState, &n.AwaitingRole, &n.NegotiationRound, &n.RevisionCount, &n.MaxRevisions,
			&n.StateVersion, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// UpdateStateTx advances the flow state with a compare-and-swap on the state
// version stamp. A zero-row update means a concurrent transition won.
func (r *NegotiationRepo) UpdateStateTx(ctx context.Context, q Querier, n *models.Negotiation, expectedVersion int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE negotiations
		SET flow_state = $1, awaiting_role = $2, negotiation_round = $3,
		    revision_count = $4, state_version = state_version + 1, updated_at = now()
		WHERE id = $5 AND state_version = $6
	`, n.FlowState, n.AwaitingRole, n.NegotiationRound, n.RevisionCount, n.ID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	n.StateVersion = expectedVersion + 1
	return nil
}

// ---- Negotiation history ----

func (r *NegotiationRepo) AppendRoundTx(ctx context.Context, q Querier, rd *models.NegotiationRound) error {
	return q.QueryRow(ctx, `
		INSERT INTO negotiation_rounds (negotiation_id, round, proposer_role, amount_paise, outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rd.NegotiationID, rd.Round, rd.ProposerRole, rd.AmountPaise, rd.Outcome).Scan(&rd.ID, &rd.CreatedAt)
}

// CloseLatestRoundTx stamps the outcome of the newest pending history entry.
func (r *NegotiationRepo) CloseLatestRoundTx(ctx context.Context, q Querier, negotiationID uuid.UUID, outcome string) error {
	_, err := q.Exec(ctx, `
		UPDATE negotiation_rounds SET outcome = $1
		WHERE id = (
			SELECT id FROM negotiation_rounds
			WHERE negotiation_id = $2 AND outcome = 'pending'
			ORDER BY round DESC LIMIT 1
		)
	`, outcome, negotiationID)
	return err
}

func (r *NegotiationRepo) ListRounds(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationRound, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, negotiation_id, round, proposer_role, amount_paise, outcome, created_at
		FROM negotiation_rounds WHERE negotiation_id = $1 ORDER BY round ASC
	`, negotiationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NegotiationRound
	for rows.Next() {
		var rd models.NegotiationRound
		if err := rows.Scan(&rd.ID, &rd.NegotiationID, &rd.Round, &rd.ProposerRole, &rd.AmountPaise, &rd.Outcome, &rd.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, nil
}

// LatestRoundAmount returns the newest proposed amount, if any history exists.
func (r *NegotiationRepo) LatestRoundAmount(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error) {
	var amount int64
	err := r.pool.QueryRow(ctx, `
		SELECT amount_paise FROM negotiation_rounds
		WHERE negotiation_id = $1 ORDER BY round DESC LIMIT 1
	`, negotiationID).Scan(&amount)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}
