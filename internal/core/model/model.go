package model

import (
	"fmt"
	"time"
)

// RecordType is the kind of attendance action a record represents.
type RecordType string

const (
	TypeCheckIn  RecordType = "CHECK_IN"
	TypeCheckOut RecordType = "CHECK_OUT"
)

// Next returns the action that must follow this one. Attendance for a user
// strictly alternates within a day, starting from a check-in.
func (t RecordType) Next() RecordType {
	if t == TypeCheckIn {
		return TypeCheckOut
	}
	return TypeCheckIn
}

// Valid reports whether t is one of the two known record types.
func (t RecordType) Valid() bool {
	return t == TypeCheckIn || t == TypeCheckOut
}

// SessionState describes where the station workflow currently is. The UI
// layer renders whatever the current state is; the orchestrator owns the
// transitions.
type SessionState string

const (
	StateIdle       SessionState = "IDLE"
	StateCapturing  SessionState = "CAPTURING"
	StateCaptured   SessionState = "CAPTURED"
	StateSubmitting SessionState = "SUBMITTING"
	StateDone       SessionState = "DONE"
)

// Location is an optional position reading attached to a record. Label is a
// human-readable address when reverse geocoding succeeded, otherwise a
// formatted coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// CoordinateLabel formats a position as the fallback label used when
// reverse geocoding is unavailable.
func (l Location) CoordinateLabel() string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}

// AttendanceRecord is the unit of truth. Once persisted it is immutable;
// the only later mutation is an administrative delete.
type AttendanceRecord struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"userId"`
	UserEmail string     `json:"userEmail,omitempty"`
	Type      RecordType `json:"type"`
	// OccurredAt is assigned by the backend at persistence time so that a
	// skewed station clock cannot shift the recorded order.
	OccurredAt time.Time `json:"occurredAt"`
	// CreatedAt is the station clock at assembly time, kept as a fallback
	// for records that sat in the offline queue.
	CreatedAt  time.Time         `json:"createdAt"`
	Location   *Location         `json:"location,omitempty"`
	Photo      []byte            `json:"photo,omitempty"`
	DeviceInfo map[string]string `json:"deviceInfo,omitempty"`
}

// HasPhoto reports whether the record carries photo evidence. A record
// without a photo must never be submitted.
func (r AttendanceRecord) HasPhoto() bool {
	return len(r.Photo) > 0
}
