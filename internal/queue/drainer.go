package queue

import (
	"context"
	"sync/atomic"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// Drainer replays queued records against the document backend once
// connectivity returns. Draining is strictly sequential and stops at the
// first failure so a persistent failure signal is never skipped past; the
// rest of the queue waits for the next trigger.
type Drainer struct {
	queue    Queue
	backend  backend.DocumentBackend
	draining atomic.Bool

	// OnReplayed, when set, runs after each successfully replayed record
	// (used to publish record-persisted events).
	OnReplayed func(ctx context.Context, rec model.AttendanceRecord)
}

// NewDrainer creates a drainer over the queue and backend.
func NewDrainer(q Queue, b backend.DocumentBackend) *Drainer {
	return &Drainer{queue: q, backend: b}
}

// Drain replays entries oldest first, one at a time, and returns how many
// were persisted. Only one drain runs at a time: a call that finds another
// drain in flight returns immediately with no effect. Entries are removed
// only after the backend confirmed persistence, and each keeps the type it
// was assembled with.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	if !d.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer d.draining.Store(false)

	drained := 0
	for {
		entry, err := d.queue.Head(ctx)
		if err != nil {
			return drained, err
		}
		if entry == nil {
			return drained, nil
		}

		stored, err := d.backend.Persist(ctx, entry.Record)
		if err != nil {
			// Stop here; retrying the rest out of order could
			// reorder a user's check-in/check-out history.
			return drained, err
		}

		if err := d.queue.RemoveHead(ctx, entry.ID); err != nil {
			return drained, err
		}
		drained++

		log.Info().
			Str("record_id", stored.ID).
			Str("user_id", stored.UserID).
			Str("type", string(stored.Type)).
			Msg("Replayed offline record")

		if d.OnReplayed != nil {
			d.OnReplayed(ctx, stored)
		}
	}
}

// Run drains on a timer until the context is canceled. The interval backs
// off exponentially while the backend keeps failing and resets after a
// clean drain, so an extended outage does not turn into a retry storm.
func (d *Drainer) Run(ctx context.Context, interval time.Duration) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 10 * interval
	b.Reset()

	wait := interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		n, err := d.Drain(ctx)
		if err != nil {
			log.Warn().Err(err).Int("drained", n).Msg("Drain stopped, will retry")
			wait = b.NextBackOff()
			continue
		}
		if n > 0 {
			log.Info().Int("drained", n).Msg("Offline queue drained")
		}
		b.Reset()
		wait = interval
	}
}
