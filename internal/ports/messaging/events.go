package messaging

import (
	"time"

	"attendance.tracker/internal/core/model"
)

// RecordPersistedEvent is the JSON payload published after an attendance
// record reached the document backend, either directly or through an
// offline-queue replay.
type RecordPersistedEvent struct {
	RecordID   string           `json:"recordId"`
	UserID     string           `json:"userId"`
	UserEmail  string           `json:"userEmail,omitempty"`
	Type       model.RecordType `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	Replayed   bool             `json:"replayed"`
}

// EventFromRecord builds the event for a freshly persisted record.
func EventFromRecord(rec model.AttendanceRecord, replayed bool) RecordPersistedEvent {
	return RecordPersistedEvent{
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		UserEmail:  rec.UserEmail,
		Type:       rec.Type,
		OccurredAt: rec.OccurredAt,
		Replayed:   replayed,
	}
}
