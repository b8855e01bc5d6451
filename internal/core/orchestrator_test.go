package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"attendance.tracker/internal/capture"
	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/identity"
	"attendance.tracker/internal/ports/messaging"
	"attendance.tracker/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapturer struct {
	evidence capture.Evidence
	err      error

	// block, when set, makes Capture wait until released. Used to hold a
	// submission in flight.
	block    chan struct{}
	captured chan struct{}
}

func (f *fakeCapturer) Capture(ctx context.Context) (capture.Evidence, error) {
	if f.captured != nil {
		close(f.captured)
	}
	if f.block != nil {
		<-f.block
	}
	return f.evidence, f.err
}

type recordingProducer struct {
	mu     sync.Mutex
	events []messaging.RecordPersistedEvent
}

func (p *recordingProducer) PublishRecordPersisted(ctx context.Context, event messaging.RecordPersistedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingProducer) published() []messaging.RecordPersistedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messaging.RecordPersistedEvent(nil), p.events...)
}

func photoEvidence() capture.Evidence {
	return capture.Evidence{
		Photo:    []byte("jpeg-bytes"),
		Location: &model.Location{Latitude: -6.2, Longitude: 106.8, Label: "Jl. Sudirman"},
	}
}

func newTestOrchestrator(b *fakeBackend, q queue.Queue, cap EvidenceCapturer) (*Orchestrator, *recordingProducer) {
	if q == nil {
		q = queue.NewInMemory()
	}
	producer := &recordingProducer{}
	ident := identity.NewStaticProvider("emp-1", "emp-1@example.com")
	machine := NewStateMachine(b, time.UTC)
	o := NewOrchestrator(b, q, cap, ident, producer, machine, map[string]string{"agent": "test"})
	return o, producer
}

func TestProcessSubmissionPersistsAndFlips(t *testing.T) {
	b := &fakeBackend{}
	o, producer := newTestOrchestrator(b, nil, &fakeCapturer{evidence: photoEvidence()})
	ctx := context.Background()

	require.Equal(t, model.TypeCheckIn, o.NextAction(ctx))

	res, err := o.ProcessSubmission(ctx)

	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, res.Outcome)
	assert.Equal(t, model.TypeCheckIn, res.Record.Type)
	assert.NotEmpty(t, res.Record.ID)
	assert.Equal(t, 1, b.persistCalls)

	// Expectation advanced without another backend query.
	b.queryErr = fmt.Errorf("must not be queried")
	assert.Equal(t, model.TypeCheckOut, o.NextAction(ctx))

	events := producer.published()
	require.Len(t, events, 1)
	assert.Equal(t, res.Record.ID, events[0].RecordID)
	assert.False(t, events[0].Replayed)
}

func TestProcessSubmissionAlternatesAcrossCycles(t *testing.T) {
	b := &fakeBackend{}
	o, _ := newTestOrchestrator(b, nil, &fakeCapturer{evidence: photoEvidence()})
	ctx := context.Background()

	expected := []model.RecordType{
		model.TypeCheckIn,
		model.TypeCheckOut,
		model.TypeCheckIn,
		model.TypeCheckOut,
	}
	for i, want := range expected {
		res, err := o.ProcessSubmission(ctx)
		require.NoError(t, err, "cycle %d", i)
		assert.Equal(t, want, res.Record.Type, "cycle %d", i)
	}
}

func TestProcessSubmissionMissingPhoto(t *testing.T) {
	b := &fakeBackend{}
	o, _ := newTestOrchestrator(b, nil, &fakeCapturer{evidence: capture.Evidence{}})

	_, err := o.ProcessSubmission(context.Background())

	require.ErrorIs(t, err, model.ErrMissingEvidence)
	assert.Zero(t, b.persistCalls, "no persistence attempt without evidence")
	assert.Equal(t, model.StateIdle, o.State())
}

func TestProcessSubmissionCameraFailureSurfaces(t *testing.T) {
	b := &fakeBackend{}
	o, _ := newTestOrchestrator(b, nil, &fakeCapturer{err: model.ErrDeviceUnavailable})

	_, err := o.ProcessSubmission(context.Background())

	require.ErrorIs(t, err, model.ErrDeviceUnavailable)
	assert.Zero(t, b.persistCalls)
}

func TestProcessSubmissionQueuesOnConnectivityFailure(t *testing.T) {
	b := &fakeBackend{persistErr: model.ErrConnectivity}
	q := queue.NewInMemory()
	o, producer := newTestOrchestrator(b, q, &fakeCapturer{evidence: photoEvidence()})
	ctx := context.Background()

	res, err := o.ProcessSubmission(ctx)

	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, res.Outcome)
	assert.Equal(t, model.TypeCheckIn, res.Record.Type)
	assert.Equal(t, 1, b.persistCalls, "exactly one persistence attempt")

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one queued entry")

	head, err := q.Head(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, model.TypeCheckIn, head.Record.Type)

	// Optimistic flip: the user keeps alternating while offline.
	assert.Equal(t, model.TypeCheckOut, o.NextAction(ctx))

	// Nothing was persisted, so nothing was announced.
	assert.Empty(t, producer.published())
}

func TestOfflineSequenceKeepsAlternating(t *testing.T) {
	b := &fakeBackend{persistErr: model.ErrConnectivity}
	q := queue.NewInMemory()
	o, _ := newTestOrchestrator(b, q, &fakeCapturer{evidence: photoEvidence()})
	ctx := context.Background()

	first, err := o.ProcessSubmission(ctx)
	require.NoError(t, err)
	second, err := o.ProcessSubmission(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.TypeCheckIn, first.Record.Type)
	assert.Equal(t, model.TypeCheckOut, second.Record.Type)

	n, _ := q.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestProcessSubmissionPermissionDeniedDoesNotQueue(t *testing.T) {
	b := &fakeBackend{persistErr: model.ErrPermissionDenied}
	q := queue.NewInMemory()
	o, _ := newTestOrchestrator(b, q, &fakeCapturer{evidence: photoEvidence()})
	ctx := context.Background()

	_, err := o.ProcessSubmission(ctx)

	require.ErrorIs(t, err, model.ErrPermissionDenied)

	n, qErr := q.Len(ctx)
	require.NoError(t, qErr)
	assert.Zero(t, n, "denied submissions are never queued")

	// The expectation did not flip: retrying asks for the same action.
	assert.Equal(t, model.TypeCheckIn, o.NextAction(ctx))
}

func TestProcessSubmissionRejectsConcurrentCycle(t *testing.T) {
	cap := &fakeCapturer{
		evidence: photoEvidence(),
		block:    make(chan struct{}),
		captured: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(&fakeBackend{}, nil, cap)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.ProcessSubmission(ctx)
		done <- err
	}()

	<-cap.captured // first cycle is now in flight
	_, err := o.ProcessSubmission(ctx)
	assert.ErrorIs(t, err, model.ErrSubmissionInFlight)

	close(cap.block)
	require.NoError(t, <-done)
}

func TestSessionStateReturnsToIdleAfterEveryOutcome(t *testing.T) {
	ctx := context.Background()

	scenarios := []struct {
		name    string
		backend *fakeBackend
		cap     EvidenceCapturer
	}{
		{"persisted", &fakeBackend{}, &fakeCapturer{evidence: photoEvidence()}},
		{"queued offline", &fakeBackend{persistErr: model.ErrConnectivity}, &fakeCapturer{evidence: photoEvidence()}},
		{"permission denied", &fakeBackend{persistErr: model.ErrPermissionDenied}, &fakeCapturer{evidence: photoEvidence()}},
		{"missing evidence", &fakeBackend{}, &fakeCapturer{evidence: capture.Evidence{}}},
		{"camera failure", &fakeBackend{}, &fakeCapturer{err: model.ErrDeviceUnavailable}},
	}

	for _, tc := range scenarios {
		t.Run(tc.name, func(t *testing.T) {
			o, _ := newTestOrchestrator(tc.backend, nil, tc.cap)

			_, _ = o.ProcessSubmission(ctx)

			assert.Equal(t, model.StateIdle, o.State())
		})
	}
}

func TestNoUserSignedIn(t *testing.T) {
	b := &fakeBackend{}
	q := queue.NewInMemory()
	producer := &recordingProducer{}
	ident := identity.NewStaticProvider("", "")
	machine := NewStateMachine(b, time.UTC)
	o := NewOrchestrator(b, q, &fakeCapturer{evidence: photoEvidence()}, ident, producer, machine, nil)

	_, err := o.ProcessSubmission(context.Background())

	require.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Equal(t, model.TypeCheckIn, o.NextAction(context.Background()))
}

func TestUserChangeInvalidatesExpectation(t *testing.T) {
	b := &fakeBackend{}
	q := queue.NewInMemory()
	producer := &recordingProducer{}
	ident := identity.NewStaticProvider("emp-1", "emp-1@example.com")
	machine := NewStateMachine(b, time.UTC)
	o := NewOrchestrator(b, q, &fakeCapturer{evidence: photoEvidence()}, ident, producer, machine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Start(ctx)

	_, err := o.ProcessSubmission(ctx)
	require.NoError(t, err)
	require.Equal(t, model.TypeCheckOut, o.NextAction(ctx))

	ident.SetCurrent(&identity.User{ID: "emp-2", Email: "emp-2@example.com"})

	// The cached expectation belonged to emp-1 and must not leak to
	// emp-2, who has no records today.
	assert.Eventually(t, func() bool {
		return o.NextAction(ctx) == model.TypeCheckIn
	}, time.Second, 10*time.Millisecond)
}
