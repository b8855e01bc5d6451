package core

import (
	"context"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
	"github.com/rs/zerolog/log"
)

// StateMachine decides whether the next submission for a user should be a
// check-in or a check-out. The decision is purely advisory state derived
// from the most recent record of the day; it drives the UI and stamps the
// next submission, nothing else.
type StateMachine struct {
	backend backend.DocumentBackend
	loc     *time.Location
}

// NewStateMachine creates a state machine computing day boundaries in loc.
func NewStateMachine(b backend.DocumentBackend, loc *time.Location) *StateMachine {
	if loc == nil {
		loc = time.Local
	}
	return &StateMachine{backend: b, loc: loc}
}

// ResolveNextAction returns the expected next action for the user on the
// given day. No record today means check-in; after a check-in comes a
// check-out; after a check-out a new cycle may start the same day. There is
// no cap on cycles per day, alternation is the only rule.
//
// Resolution never fails: if the backend query errors, the result is
// check-in with a warning. Blocking attendance entirely is worse than a
// possible duplicate check-in.
func (m *StateMachine) ResolveNextAction(ctx context.Context, userID string, day time.Time) model.RecordType {
	records, err := m.backend.Query(ctx, userID, m.DayStart(day))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).
			Msg("Could not resolve today's records, defaulting to check-in")
		return model.TypeCheckIn
	}

	if len(records) == 0 {
		return model.TypeCheckIn
	}
	return records[0].Type.Next()
}

// DayStart returns local midnight for the given instant in the station's
// timezone.
func (m *StateMachine) DayStart(t time.Time) time.Time {
	t = t.In(m.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, m.loc)
}
