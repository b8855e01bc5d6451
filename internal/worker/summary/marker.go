package summary

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// markerTTL bounds how long sent-summary markers are kept. A week is far
// past any SQS redelivery window.
const markerTTL = 7 * 24 * time.Hour

// RedisMarker deduplicates summaries across worker restarts using SETNX.
type RedisMarker struct {
	client *redis.Client
	prefix string
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{client: client, prefix: "summary:sent:"}
}

func (m *RedisMarker) MarkOnce(ctx context.Context, recordID string) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+recordID, 1, markerTTL).Result()
}

func (m *RedisMarker) Unmark(ctx context.Context, recordID string) error {
	return m.client.Del(ctx, m.prefix+recordID).Err()
}

// InMemoryMarker deduplicates within one process, for tests and local runs.
type InMemoryMarker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewInMemoryMarker() *InMemoryMarker {
	return &InMemoryMarker{seen: make(map[string]struct{})}
}

func (m *InMemoryMarker) MarkOnce(ctx context.Context, recordID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[recordID]; ok {
		return false, nil
	}
	m.seen[recordID] = struct{}{}
	return true, nil
}

func (m *InMemoryMarker) Unmark(ctx context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, recordID)
	return nil
}
