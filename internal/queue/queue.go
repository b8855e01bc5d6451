// Package queue holds attendance records that could not be persisted
// remotely until connectivity returns. Entries are strictly FIFO; a record's
// intended type is fixed at enqueue time and replayed verbatim.
package queue

import (
	"context"
	"sync"
	"time"

	"attendance.tracker/internal/core/model"
	"github.com/google/uuid"
)

// Entry is a queued attendance record plus its local-only identifier.
// An entry is removed only after the record's remote persistence has been
// confirmed.
type Entry struct {
	ID         string                 `json:"id"`
	Record     model.AttendanceRecord `json:"record"`
	EnqueuedAt time.Time              `json:"enqueuedAt"`
}

// Queue is the abstraction over different offline stores.
type Queue interface {
	// Enqueue appends the record and assigns it a local id. Existing
	// entries are never overwritten.
	Enqueue(ctx context.Context, rec model.AttendanceRecord) (Entry, error)

	// Head returns the oldest entry, or nil when the queue is empty.
	Head(ctx context.Context) (*Entry, error)

	// RemoveHead deletes the oldest entry after verifying it is the one
	// the caller just replayed.
	RemoveHead(ctx context.Context, id string) error

	// Len reports the number of pending entries.
	Len(ctx context.Context) (int, error)
}

// InMemory is a mutex-guarded slice-backed queue for tests and for stations
// that accept losing the backlog on restart.
type InMemory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemory creates an empty in-memory queue.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (q *InMemory) Enqueue(ctx context.Context, rec model.AttendanceRecord) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := Entry{
		ID:         uuid.NewString(),
		Record:     rec,
		EnqueuedAt: time.Now(),
	}
	q.entries = append(q.entries, e)
	return e, nil
}

func (q *InMemory) Head(ctx context.Context) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, nil
	}
	head := q.entries[0]
	return &head, nil
}

func (q *InMemory) RemoveHead(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 || q.entries[0].ID != id {
		return ErrHeadMismatch
	}
	q.entries = q.entries[1:]
	return nil
}

func (q *InMemory) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}
