// Package report renders attendance record sets for download.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"attendance.tracker/internal/core/model"
)

var csvHeader = []string{"No", "Date", "Time", "User", "Type", "Location", "Latitude", "Longitude"}

// WriteCSV writes the records as a CSV report, mirroring the columns of the
// admin spreadsheet export. Timestamps are rendered in loc.
func WriteCSV(w io.Writer, records []model.AttendanceRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i, rec := range records {
		t := rec.OccurredAt.In(loc)

		user := rec.UserEmail
		if user == "" {
			user = rec.UserID
		}

		locationLabel, lat, lon := "Unknown", "-", "-"
		if rec.Location != nil {
			lat = fmt.Sprintf("%.6f", rec.Location.Latitude)
			lon = fmt.Sprintf("%.6f", rec.Location.Longitude)
			locationLabel = rec.Location.Label
			if locationLabel == "" {
				locationLabel = rec.Location.CoordinateLabel()
			}
		}

		row := []string{
			fmt.Sprintf("%d", i+1),
			t.Format("2006-01-02"),
			t.Format("15:04:05"),
			user,
			string(rec.Type),
			locationLabel,
			lat,
			lon,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
