// Package postgres implements the document backend on a self-hosted
// PostgreSQL database. occurred_at is assigned by the database clock at
// insert time; station clocks are never trusted for record ordering.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultListLimit = 1000

// Store is the PostgreSQL document backend.
type Store struct {
	DB *sql.DB
}

// NewStore creates a store over an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// EnsureSchema creates the records table when it does not exist yet. A
// station bootstrapping against a fresh local database needs no separate
// migration step.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id             UUID PRIMARY KEY,
			user_id        TEXT NOT NULL,
			user_email     TEXT,
			record_type    TEXT NOT NULL,
			occurred_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at     TIMESTAMPTZ NOT NULL,
			latitude       DOUBLE PRECISION,
			longitude      DOUBLE PRECISION,
			location_label TEXT,
			photo          BYTEA NOT NULL,
			device_info    JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_attendance_user_occurred
			ON attendance_records (user_id, occurred_at DESC)`)
	if err != nil {
		return classify(fmt.Errorf("ensuring schema: %w", err))
	}
	return nil
}

// Persist inserts the record and returns the stored copy with the id and
// the server-assigned occurred_at filled in.
func (s *Store) Persist(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.userId", rec.UserID))

	if !rec.HasPhoto() {
		return model.AttendanceRecord{}, model.ErrMissingEvidence
	}

	var lat, lon sql.NullFloat64
	var label sql.NullString
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: rec.Location.Longitude, Valid: true}
		label = sql.NullString{String: rec.Location.Label, Valid: rec.Location.Label != ""}
	}

	deviceInfo, err := json.Marshal(rec.DeviceInfo)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("marshaling device info: %w", err)
	}

	stored := rec
	stored.ID = uuid.NewString()

	query := `INSERT INTO attendance_records
	            (id, user_id, user_email, record_type, created_at, latitude, longitude, location_label, photo, device_info)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING occurred_at`

	err = s.DB.QueryRowContext(ctx, query,
		stored.ID, rec.UserID, rec.UserEmail, rec.Type, rec.CreatedAt,
		lat, lon, label, rec.Photo, deviceInfo,
	).Scan(&stored.OccurredAt)
	if err != nil {
		return model.AttendanceRecord{}, classify(err)
	}

	return stored, nil
}

// Query returns the user's records with occurred_at >= since, most recent
// first. Photos are not loaded; next-action resolution only needs types and
// timestamps.
func (s *Store) Query(ctx context.Context, userID string, since time.Time) ([]model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.userId", userID))

	query := `SELECT id, user_id, user_email, record_type, occurred_at, created_at, latitude, longitude, location_label
	          FROM attendance_records
	          WHERE user_id = $1 AND occurred_at >= $2
	          ORDER BY occurred_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Get fetches one record including its photo.
func (s *Store) Get(ctx context.Context, id string) (model.AttendanceRecord, error) {
	query := `SELECT id, user_id, user_email, record_type, occurred_at, created_at,
	                 latitude, longitude, location_label, photo, device_info
	          FROM attendance_records WHERE id = $1`

	var rec model.AttendanceRecord
	var lat, lon sql.NullFloat64
	var email, label sql.NullString
	var deviceInfo []byte

	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &email, &rec.Type, &rec.OccurredAt, &rec.CreatedAt,
		&lat, &lon, &label, &rec.Photo, &deviceInfo,
	)
	if err == sql.ErrNoRows {
		return model.AttendanceRecord{}, model.ErrNotFound
	}
	if err != nil {
		return model.AttendanceRecord{}, classify(err)
	}

	rec.UserEmail = email.String
	setLocation(&rec, lat, lon, label)
	if len(deviceInfo) > 0 {
		_ = json.Unmarshal(deviceInfo, &rec.DeviceInfo)
	}
	return rec, nil
}

// List returns records matching the filter, most recent first, capped at
// the filter limit (default 1000). Photos are omitted.
func (s *Store) List(ctx context.Context, f backend.Filter) ([]model.AttendanceRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, user_id, user_email, record_type, occurred_at, created_at, latitude, longitude, location_label
	          FROM attendance_records
	          WHERE occurred_at >= $1 AND occurred_at <= $2
	            AND ($3 = '' OR user_id = $3)
	          ORDER BY occurred_at DESC
	          LIMIT $4`

	rows, err := s.DB.QueryContext(ctx, query, f.From, f.To, f.UserID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Stats aggregates counts over the filter range.
func (s *Store) Stats(ctx context.Context, f backend.Filter) (backend.Stats, error) {
	query := `SELECT count(*),
	                 count(*) FILTER (WHERE record_type = $4),
	                 count(*) FILTER (WHERE record_type = $5)
	          FROM attendance_records
	          WHERE occurred_at >= $1 AND occurred_at <= $2
	            AND ($3 = '' OR user_id = $3)`

	var st backend.Stats
	err := s.DB.QueryRowContext(ctx, query, f.From, f.To, f.UserID,
		model.TypeCheckIn, model.TypeCheckOut,
	).Scan(&st.Total, &st.CheckIns, &st.CheckOuts)
	if err != nil {
		return backend.Stats{}, classify(err)
	}
	return st, nil
}

// Delete removes a record. Administrative use only; persisted records are
// otherwise immutable.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Ping reports database reachability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrConnectivity, err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		var lat, lon sql.NullFloat64
		var email, label sql.NullString

		if err := rows.Scan(&rec.ID, &rec.UserID, &email, &rec.Type, &rec.OccurredAt,
			&rec.CreatedAt, &lat, &lon, &label); err != nil {
			return nil, classify(err)
		}
		rec.UserEmail = email.String
		setLocation(&rec, lat, lon, label)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func setLocation(rec *model.AttendanceRecord, lat, lon sql.NullFloat64, label sql.NullString) {
	if !lat.Valid || !lon.Valid {
		return
	}
	rec.Location = &model.Location{
		Latitude:  lat.Float64,
		Longitude: lon.Float64,
		Label:     label.String,
	}
}

// classify folds driver errors into the shared failure taxonomy so the
// orchestrator can pick between the offline queue and a hard failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", model.ErrConnectivity, err)
	}
	return err
}
