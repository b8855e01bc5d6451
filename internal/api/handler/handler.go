package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
	"attendance.tracker/internal/report"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const maxListLimit = 1000

// AdminHandler serves the dashboard's read, export and delete operations.
// It is a pure read+delete client of the document backend; it never creates
// records.
type AdminHandler struct {
	Backend  backend.DocumentBackend
	Location *time.Location
}

// rangeFilter parses ?from=YYYY-MM-DD&to=YYYY-MM-DD&userId=, defaulting to
// today. The range covers from local midnight to the end of the "to" day.
func (h *AdminHandler) rangeFilter(r *http.Request) (backend.Filter, error) {
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}

	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	to := from

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return backend.Filter{}, fmt.Errorf("invalid from date %q", v)
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return backend.Filter{}, fmt.Errorf("invalid to date %q", v)
		}
		to = parsed
	}
	if from.After(to) {
		return backend.Filter{}, fmt.Errorf("from date is after to date")
	}

	limit := maxListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxListLimit {
			return backend.Filter{}, fmt.Errorf("invalid limit %q", v)
		}
		limit = parsed
	}

	return backend.Filter{
		UserID: r.URL.Query().Get("userId"),
		From:   from,
		To:     to.AddDate(0, 0, 1).Add(-time.Nanosecond),
		Limit:  limit,
	}, nil
}

// ListRecords returns the filtered records, most recent first, without
// photo payloads.
func (h *AdminHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := h.rangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.Backend.List(r.Context(), f)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Listing records failed")
		http.Error(w, "Error listing records", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// GetRecord returns one record with its photo, for the detail view.
func (h *AdminHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.Backend.Get(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("record_id", id).Msg("Fetching record failed")
		http.Error(w, "Error fetching record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Stats returns totals for the filtered range: overall, check-ins and
// check-outs.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	f, err := h.rangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.Backend.Stats(r.Context(), f)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Computing stats failed")
		http.Error(w, "Error computing stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV streams the filtered range as a CSV download.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := h.rangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.Backend.List(r.Context(), f)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Listing records for export failed")
		http.Error(w, "Error exporting records", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("attendance_%s", f.From.Format("2006-01-02"))
	if !f.To.Equal(f.From.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		filename += "_to_" + f.To.Format("2006-01-02")
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))

	if err := report.WriteCSV(w, records, h.Location); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Writing export failed")
	}
}

// DeleteRecord removes one record.
func (h *AdminHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.Backend.Delete(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("record_id", id).Msg("Deleting record failed")
		http.Error(w, "Error deleting record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
