package repositories

import (
	"context"
	"time"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, device_token, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.DisplayName, &u.DeviceToken, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeviceToken returns the push token registered by the profile service,
// nil when the user has none.
func (r *UserRepo) DeviceToken(ctx context.Context, id uuid.UUID) (*string, error) {
	var token *string
	err := r.pool.QueryRow(ctx, `SELECT device_token FROM users WHERE id = $1`, id).Scan(&token)
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *UserRepo) UpdateDeviceToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET device_token = $1 WHERE id = $2`, token, id)
	return err
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
