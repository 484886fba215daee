package repositories

import (
	"context"

	"github.com/collab-platform/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CommissionRepo struct {
	pool *pgxpool.Pool
}

func NewCommissionRepo(pool *pgxpool.Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// Latest returns the newest active setting already in effect, pgx.ErrNoRows
// when none is configured.
func (r *CommissionRepo) Latest(ctx context.Context) (*models.CommissionSetting, error) {
	var s models.CommissionSetting
	err := r.pool.QueryRow(ctx, `
		SELECT id, commission_bps, effective_from, active, created_at
		FROM commission_settings
		WHERE active = true AND effective_from <= now()
		ORDER BY effective_from DESC LIMIT 1
	`).Scan(&s.ID, &s.CommissionBPS, &s.EffectiveFrom, &s.Active, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CommissionRepo) Create(ctx context.Context, s *models.CommissionSetting) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO commission_settings (commission_bps, effective_from, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, s.CommissionBPS, s.EffectiveFrom, s.Active).Scan(&s.ID, &s.CreatedAt)
}
