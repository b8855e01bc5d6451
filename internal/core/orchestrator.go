package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"attendance.tracker/internal/capture"
	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/identity"
	"attendance.tracker/internal/ports/backend"
	"attendance.tracker/internal/ports/messaging"
	"attendance.tracker/internal/queue"
	"github.com/rs/zerolog/log"
)

// SubmitOutcome says how a successful submission ended up stored.
type SubmitOutcome string

const (
	// OutcomePersisted means the record reached the backend directly.
	OutcomePersisted SubmitOutcome = "persisted"
	// OutcomeQueued means the backend was unreachable and the record is
	// waiting in the offline queue.
	OutcomeQueued SubmitOutcome = "queued"
)

// Result is what a completed submission hands back to the UI layer.
type Result struct {
	Record  model.AttendanceRecord `json:"record"`
	Outcome SubmitOutcome          `json:"outcome"`
}

// EvidenceCapturer runs one capture cycle.
type EvidenceCapturer interface {
	Capture(ctx context.Context) (capture.Evidence, error)
}

// Orchestrator is the only component that creates and dispatches
// attendance records. It sequences evidence capture, record assembly, the
// single persistence attempt, the offline-queue fallback and the state
// transition. Submissions are strictly sequential per station.
type Orchestrator struct {
	backend  backend.DocumentBackend
	queue    queue.Queue
	capturer EvidenceCapturer
	ident    identity.Provider
	producer messaging.Producer
	machine  *StateMachine

	deviceInfo map[string]string

	// submitMu serializes submissions; TryLock rejects a second
	// submission while one is in flight.
	submitMu sync.Mutex

	// stateMu guards the session state and the cached expectation.
	stateMu sync.Mutex
	state   model.SessionState
	exp     *expectation
}

// expectation caches the resolved next action so every submission does not
// re-query the backend. It is invalidated when the user or the day changes.
type expectation struct {
	userID string
	day    time.Time
	next   model.RecordType
}

// NewOrchestrator wires the submission workflow together. producer may be a
// NoopProducer when no events queue is configured.
func NewOrchestrator(
	b backend.DocumentBackend,
	q queue.Queue,
	c EvidenceCapturer,
	ident identity.Provider,
	p messaging.Producer,
	machine *StateMachine,
	deviceInfo map[string]string,
) *Orchestrator {
	if p == nil {
		p = messaging.NoopProducer{}
	}
	return &Orchestrator{
		backend:    b,
		queue:      q,
		capturer:   c,
		ident:      ident,
		producer:   p,
		machine:    machine,
		deviceInfo: deviceInfo,
		state:      model.StateIdle,
	}
}

// Start subscribes to identity changes once and keeps the expectation in
// sync with whoever is signed in. It returns when the context is canceled.
func (o *Orchestrator) Start(ctx context.Context) {
	changes := o.ident.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-changes:
			o.stateMu.Lock()
			o.exp = nil
			o.stateMu.Unlock()
			if u != nil {
				log.Info().Str("user_id", u.ID).Msg("Current user changed")
			} else {
				log.Info().Msg("User signed out")
			}
		}
	}
}

// ProcessSubmission runs one full check-in/check-out cycle for the current
// user: capture evidence, then submit. Only one cycle runs at a time; a
// concurrent call fails with ErrSubmissionInFlight (the UI disables the
// button, this guard is defensive).
func (o *Orchestrator) ProcessSubmission(ctx context.Context) (Result, error) {
	if !o.submitMu.TryLock() {
		return Result{}, model.ErrSubmissionInFlight
	}
	defer o.submitMu.Unlock()
	defer o.setState(model.StateIdle)

	user := o.ident.Current()
	if user == nil {
		return Result{}, fmt.Errorf("%w: no user signed in", model.ErrPermissionDenied)
	}

	o.setState(model.StateCapturing)
	ev, err := o.capturer.Capture(ctx)
	if err != nil {
		return Result{}, err
	}
	o.setState(model.StateCaptured)

	res, err := o.submit(ctx, *user, ev)
	if err != nil {
		return Result{}, err
	}
	o.setState(model.StateDone)
	return res, nil
}

func (o *Orchestrator) submit(ctx context.Context, user identity.User, ev capture.Evidence) (Result, error) {
	if len(ev.Photo) == 0 {
		return Result{}, model.ErrMissingEvidence
	}

	o.setState(model.StateSubmitting)

	now := time.Now()
	rec := model.AttendanceRecord{
		UserID:     user.ID,
		UserEmail:  user.Email,
		Type:       o.nextAction(ctx, user.ID, now),
		CreatedAt:  now,
		Location:   ev.Location,
		Photo:      ev.Photo,
		DeviceInfo: o.deviceInfo,
	}

	// Exactly one persistence attempt per user action; recovery from
	// transient failures belongs to the offline queue, not a retry loop.
	stored, err := o.backend.Persist(ctx, rec)
	switch {
	case err == nil:
		o.flip(user.ID, now, rec.Type)
		o.publish(ctx, stored, false)
		return Result{Record: stored, Outcome: OutcomePersisted}, nil

	case errors.Is(err, model.ErrConnectivity):
		entry, qErr := o.queue.Enqueue(ctx, rec)
		if qErr != nil {
			return Result{}, fmt.Errorf("offline queue unavailable: %w", qErr)
		}
		// Flip optimistically: the user must be able to keep
		// alternating actions while offline. Availability wins over
		// strict consistency here.
		o.flip(user.ID, now, rec.Type)
		log.Ctx(ctx).Info().
			Str("entry_id", entry.ID).
			Str("type", string(rec.Type)).
			Msg("Backend unreachable, record saved offline")
		return Result{Record: rec, Outcome: OutcomeQueued}, nil

	default:
		// Non-retryable (access denied and the like): surface it, keep
		// the expectation, queue nothing. Retrying a forbidden
		// operation is pointless.
		return Result{}, err
	}
}

// NextAction reports the currently expected action for the signed-in user,
// for the UI. Falls back to check-in when nobody is signed in.
func (o *Orchestrator) NextAction(ctx context.Context) model.RecordType {
	user := o.ident.Current()
	if user == nil {
		return model.TypeCheckIn
	}
	return o.nextAction(ctx, user.ID, time.Now())
}

// State returns the current session state for the UI to render.
func (o *Orchestrator) State() model.SessionState {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s model.SessionState) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// nextAction returns the cached expectation, resolving it through the state
// machine when the cache is empty, stale, or belongs to another user.
func (o *Orchestrator) nextAction(ctx context.Context, userID string, now time.Time) model.RecordType {
	day := o.machine.DayStart(now)

	o.stateMu.Lock()
	if o.exp != nil && o.exp.userID == userID && o.exp.day.Equal(day) {
		next := o.exp.next
		o.stateMu.Unlock()
		return next
	}
	o.stateMu.Unlock()

	next := o.machine.ResolveNextAction(ctx, userID, now)

	o.stateMu.Lock()
	o.exp = &expectation{userID: userID, day: day, next: next}
	o.stateMu.Unlock()
	return next
}

// flip advances the expectation after a submission of typ was accepted
// (persisted or queued).
func (o *Orchestrator) flip(userID string, now time.Time, typ model.RecordType) {
	o.stateMu.Lock()
	o.exp = &expectation{userID: userID, day: o.machine.DayStart(now), next: typ.Next()}
	o.stateMu.Unlock()
}

// publish emits a record-persisted event. Fire and forget: a lost event
// never fails a submission.
func (o *Orchestrator) publish(ctx context.Context, rec model.AttendanceRecord, replayed bool) {
	if err := o.producer.PublishRecordPersisted(ctx, messaging.EventFromRecord(rec, replayed)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("record_id", rec.ID).Msg("Could not publish record event")
	}
}
