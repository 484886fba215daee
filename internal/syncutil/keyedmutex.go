package syncutil

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
)

const keyedShards = 128

// KeyedMutex serializes work per key across a fixed shard pool. Locks are
// channel-backed so waiters can bail out when their context is cancelled.
// Two keys may share a shard; that only costs extra serialization, never
// correctness.
type KeyedMutex struct {
	shards [keyedShards]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{}
	}
	return m
}

// Lock acquires the shard for key. It returns the unlock function, which
// the caller must invoke exactly once, or the context error if cancelled
// while waiting.
func (m *KeyedMutex) Lock(ctx context.Context, key uuid.UUID) (func(), error) {
	shard := m.shards[shardFor(key)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardFor(key uuid.UUID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key[:])
	return h.Sum32() % keyedShards
}
