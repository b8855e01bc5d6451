// Package summary turns check-out events into end-of-shift summary emails.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/notify"
	"attendance.tracker/internal/ports/backend"
	"attendance.tracker/internal/ports/messaging"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// Marker remembers which records were already summarized, so a redelivered
// event does not send a duplicate email.
type Marker interface {
	// MarkOnce records the id and reports whether this call was the
	// first to do so.
	MarkOnce(ctx context.Context, recordID string) (bool, error)

	// Unmark releases the id so a retried delivery can claim it again.
	Unmark(ctx context.Context, recordID string) error
}

// Processor handles record-persisted events from the events queue.
type Processor struct {
	emailService notify.EmailSender
	backend      backend.DocumentBackend
	marker       Marker
	loc          *time.Location
}

// NewProcessor sets up a processor for the events queue.
func NewProcessor(emailService notify.EmailSender, b backend.DocumentBackend, marker Marker, loc *time.Location) *Processor {
	if loc == nil {
		loc = time.Local
	}
	return &Processor{
		emailService: emailService,
		backend:      b,
		marker:       marker,
		loc:          loc,
	}
}

// Process handles one message. Check-in events and events without an email
// address are acknowledged without action; backend or send failures are
// retried with exponential backoff.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.RecordPersistedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal record event")
		return false, 0, err // Do not retry on malformed message
	}

	if event.Type != model.TypeCheckOut || event.UserEmail == "" {
		return false, 0, nil
	}

	first, err := p.marker.MarkOnce(ctx, event.RecordID)
	if err != nil {
		return true, 10, fmt.Errorf("checking summary marker: %w", err)
	}
	if !first {
		log.Ctx(ctx).Info().Str("record_id", event.RecordID).Msg("Summary already sent, skipping")
		return false, 0, nil
	}

	hours, err := p.hoursOnSite(ctx, event)
	if err != nil {
		p.release(ctx, event.RecordID)
		return true, 10, fmt.Errorf("computing hours for summary: %w", err)
	}

	if err := p.emailService.SendCheckOutSummary(ctx, event.UserEmail, hours); err != nil {
		p.release(ctx, event.RecordID)
		delay := calculateBackoff(retryCount(msg))
		return true, delay, err
	}

	return false, 0, nil
}

// release returns the marker so the retried delivery is not mistaken for a
// duplicate.
func (p *Processor) release(ctx context.Context, recordID string) {
	if err := p.marker.Unmark(ctx, recordID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("record_id", recordID).Msg("Could not release summary marker")
	}
}

// hoursOnSite sums the closed check-in/check-out pairs of the event's day
// up to the event itself.
func (p *Processor) hoursOnSite(ctx context.Context, event messaging.RecordPersistedEvent) (float64, error) {
	day := event.OccurredAt.In(p.loc)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, p.loc)

	records, err := p.backend.Query(ctx, event.UserID, dayStart)
	if err != nil {
		return 0, err
	}

	// Records arrive most recent first; walk oldest first and pair each
	// check-in with the following check-out.
	var total time.Duration
	var openCheckIn *time.Time
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.OccurredAt.After(event.OccurredAt) {
			break
		}
		switch rec.Type {
		case model.TypeCheckIn:
			t := rec.OccurredAt
			openCheckIn = &t
		case model.TypeCheckOut:
			if openCheckIn != nil {
				total += rec.OccurredAt.Sub(*openCheckIn)
				openCheckIn = nil
			}
		}
	}

	return total.Hours(), nil
}

func retryCount(msg types.Message) int {
	if v, ok := msg.Attributes["ApproximateReceiveCount"]; ok {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 1
}

// calculateBackoff grows the retry delay exponentially so a struggling
// email service is not hammered.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // cap at 1 hour
	}
	return backoff
}
