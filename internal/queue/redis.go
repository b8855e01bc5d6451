package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attendance.tracker/internal/core/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeadMismatch means the queue head changed between Head and RemoveHead.
// Enqueue appends and drain is single-flight, so this indicates a second
// process mutating the same queue key.
var ErrHeadMismatch = errors.New("queue head does not match")

// Redis is a durable list-backed queue. Entries survive station restarts;
// RPUSH/LINDEX/LPOP keep strict FIFO order.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a queue on the given list key.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "attendance:offline"
	}
	return &Redis{client: client, key: key}
}

// NewRedisClient connects to redis with short timeouts suited to a local
// instance on the station host.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

func (q *Redis) Enqueue(ctx context.Context, rec model.AttendanceRecord) (Entry, error) {
	e := Entry{
		ID:         uuid.NewString(),
		Record:     rec,
		EnqueuedAt: time.Now(),
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling queue entry: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return Entry{}, fmt.Errorf("appending queue entry: %w", err)
	}
	return e, nil
}

func (q *Redis) Head(ctx context.Context) (*Entry, error) {
	payload, err := q.client.LIndex(ctx, q.key, 0).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading queue head: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("unmarshaling queue entry: %w", err)
	}
	return &e, nil
}

func (q *Redis) RemoveHead(ctx context.Context, id string) error {
	payload, err := q.client.LPop(ctx, q.key).Result()
	if err == redis.Nil {
		return ErrHeadMismatch
	}
	if err != nil {
		return fmt.Errorf("removing queue head: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(payload), &e); err == nil && e.ID != id {
		// Put the stranger back where it was and report the conflict.
		if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
			return fmt.Errorf("restoring mismatched head %s: %v: %w", e.ID, err, ErrHeadMismatch)
		}
		return ErrHeadMismatch
	}
	return nil
}

func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}
	return int(n), nil
}
