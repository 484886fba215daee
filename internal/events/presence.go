package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Presence tracks which users have a chat open. A present user gets the
// message over the socket, so push delivery is skipped for them.
type Presence interface {
	Join(ctx context.Context, negotiationID, userID uuid.UUID) error
	Leave(ctx context.Context, negotiationID, userID uuid.UUID) error
	IsPresent(ctx context.Context, negotiationID, userID uuid.UUID) (bool, error)
}

const presenceTTL = 6 * time.Hour

type RedisPresence struct {
	client *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client}
}

func presenceKey(negotiationID uuid.UUID) string {
	return "presence:neg:" + negotiationID.String()
}

func (p *RedisPresence) Join(ctx context.Context, negotiationID, userID uuid.UUID) error {
	key := presenceKey(negotiationID)
	if err := p.client.SAdd(ctx, key, userID.String()).Err(); err != nil {
		return err
	}
	// Sets expire so a crashed socket cannot pin presence forever.
	return p.client.Expire(ctx, key, presenceTTL).Err()
}

func (p *RedisPresence) Leave(ctx context.Context, negotiationID, userID uuid.UUID) error {
	return p.client.SRem(ctx, presenceKey(negotiationID), userID.String()).Err()
}

func (p *RedisPresence) IsPresent(ctx context.Context, negotiationID, userID uuid.UUID) (bool, error) {
	return p.client.SIsMember(ctx, presenceKey(negotiationID), userID.String()).Result()
}

// NoopPresence reports everyone absent, so every notification goes to push.
type NoopPresence struct{}

func (NoopPresence) Join(context.Context, uuid.UUID, uuid.UUID) error  { return nil }
func (NoopPresence) Leave(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (NoopPresence) IsPresent(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
