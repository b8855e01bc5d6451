package api

import (
	"net/http"
	"time"

	"attendance.tracker/internal/api/handler"
	"attendance.tracker/internal/ports/backend"
	"github.com/gorilla/mux"
)

// NewRouter sets up the gorilla/mux router for the admin API.
func NewRouter(b backend.DocumentBackend, loc *time.Location) *mux.Router {

	adminHandler := handler.AdminHandler{
		Backend:  b,
		Location: loc,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance", adminHandler.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/attendance/stats", adminHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/attendance/export", adminHandler.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id}", adminHandler.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id}", adminHandler.DeleteRecord).Methods(http.MethodDelete)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
