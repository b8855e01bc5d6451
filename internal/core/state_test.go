package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a hand-rolled DocumentBackend for core tests. Records are
// kept in insertion order; Query returns them most recent first, the way
// the real adapters do.
type fakeBackend struct {
	records []model.AttendanceRecord

	queryErr   error
	persistErr error
	pingErr    error

	persistCalls int
}

func (f *fakeBackend) Query(ctx context.Context, userID string, since time.Time) ([]model.AttendanceRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []model.AttendanceRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.UserID == userID && !r.OccurredAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) Persist(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	f.persistCalls++
	if f.persistErr != nil {
		return model.AttendanceRecord{}, f.persistErr
	}
	rec.ID = "rec-" + string(rune('a'+len(f.records)))
	rec.OccurredAt = time.Now()
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeBackend) Get(ctx context.Context, id string) (model.AttendanceRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.AttendanceRecord{}, model.ErrNotFound
}

func (f *fakeBackend) List(ctx context.Context, filter backend.Filter) ([]model.AttendanceRecord, error) {
	return f.records, nil
}

func (f *fakeBackend) Stats(ctx context.Context, filter backend.Filter) (backend.Stats, error) {
	return backend.Stats{Total: len(f.records)}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeBackend) Ping(ctx context.Context) error { return f.pingErr }

func record(userID string, typ model.RecordType, occurredAt time.Time) model.AttendanceRecord {
	return model.AttendanceRecord{
		UserID:     userID,
		Type:       typ,
		OccurredAt: occurredAt,
		Photo:      []byte("jpeg"),
	}
}

func TestResolveNextActionNoRecordsToday(t *testing.T) {
	machine := NewStateMachine(&fakeBackend{}, time.UTC)

	next := machine.ResolveNextAction(context.Background(), "emp-1", time.Now())

	assert.Equal(t, model.TypeCheckIn, next)
}

func TestResolveNextActionAfterCheckIn(t *testing.T) {
	b := &fakeBackend{records: []model.AttendanceRecord{
		record("emp-1", model.TypeCheckIn, time.Now()),
	}}
	machine := NewStateMachine(b, time.UTC)

	next := machine.ResolveNextAction(context.Background(), "emp-1", time.Now())

	assert.Equal(t, model.TypeCheckOut, next)
}

func TestResolveNextActionAfterCheckOutStartsNewCycle(t *testing.T) {
	now := time.Now()
	b := &fakeBackend{records: []model.AttendanceRecord{
		record("emp-1", model.TypeCheckIn, now.Add(-2*time.Hour)),
		record("emp-1", model.TypeCheckOut, now.Add(-time.Hour)),
	}}
	machine := NewStateMachine(b, time.UTC)

	next := machine.ResolveNextAction(context.Background(), "emp-1", now)

	assert.Equal(t, model.TypeCheckIn, next)
}

func TestResolveNextActionIgnoresOtherUsers(t *testing.T) {
	b := &fakeBackend{records: []model.AttendanceRecord{
		record("emp-2", model.TypeCheckIn, time.Now()),
	}}
	machine := NewStateMachine(b, time.UTC)

	next := machine.ResolveNextAction(context.Background(), "emp-1", time.Now())

	assert.Equal(t, model.TypeCheckIn, next)
}

func TestResolveNextActionFailsOpenOnQueryError(t *testing.T) {
	b := &fakeBackend{queryErr: errors.New("backend down")}
	machine := NewStateMachine(b, time.UTC)

	next := machine.ResolveNextAction(context.Background(), "emp-1", time.Now())

	assert.Equal(t, model.TypeCheckIn, next)
}

func TestResolveNextActionYesterdayDoesNotCount(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 0, 30, 0, 0, loc)
	// Checked in late last evening, never checked out. A new local day
	// still starts with a check-in.
	b := &fakeBackend{records: []model.AttendanceRecord{
		record("emp-1", model.TypeCheckIn, time.Date(2026, 3, 9, 23, 50, 0, 0, loc)),
	}}
	machine := NewStateMachine(b, loc)

	next := machine.ResolveNextAction(context.Background(), "emp-1", now)

	assert.Equal(t, model.TypeCheckIn, next)
}

func TestDayStartUsesConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	machine := NewStateMachine(&fakeBackend{}, loc)

	// 01:00 UTC on March 10 is already 08:00 March 10 in Jakarta.
	instant := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	start := machine.DayStart(instant)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), start)
}
