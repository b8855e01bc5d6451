package backend

import (
	"context"
	"time"

	"attendance.tracker/internal/core/model"
)

// Filter narrows admin queries to a time range and optionally one user.
// Limit caps the result set; zero means the adapter default.
type Filter struct {
	UserID string
	From   time.Time
	To     time.Time
	Limit  int
}

// Stats summarizes a filtered range for the admin dashboard.
type Stats struct {
	Total     int `json:"total"`
	CheckIns  int `json:"checkIns"`
	CheckOuts int `json:"checkOuts"`
}

// DocumentBackend is the contract with the remote attendance store. The
// core treats persistence as at-most-once per call and assumes no
// transactions. Adapters classify their failures as model.ErrConnectivity
// or model.ErrPermissionDenied so the orchestrator can pick the right
// recovery path.
type DocumentBackend interface {
	// Query returns the user's records with OccurredAt >= since,
	// most recent first.
	Query(ctx context.Context, userID string, since time.Time) ([]model.AttendanceRecord, error)

	// Persist stores the record and returns the stored copy with the
	// backend-assigned ID and OccurredAt filled in.
	Persist(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)

	// Get fetches one record, photo included.
	Get(ctx context.Context, id string) (model.AttendanceRecord, error)

	// List returns records matching the filter, most recent first,
	// without photo payloads.
	List(ctx context.Context, f Filter) ([]model.AttendanceRecord, error)

	// Stats aggregates counts over the filter.
	Stats(ctx context.Context, f Filter) (Stats, error)

	// Delete removes a record. Administrative use only.
	Delete(ctx context.Context, id string) error

	// Ping reports whether the backend is currently reachable.
	Ping(ctx context.Context) error
}
