// Package station exposes the employee-facing workflow over a small local
// HTTP surface. The kiosk front-end renders whatever state and next action
// this reports; all decisions live in the orchestrator.
package station

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"attendance.tracker/internal/core"
	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/identity"
	"attendance.tracker/internal/queue"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Workflow is the slice of the orchestrator the station surface needs.
type Workflow interface {
	ProcessSubmission(ctx context.Context) (core.Result, error)
	NextAction(ctx context.Context) model.RecordType
	State() model.SessionState
}

// Server handles the kiosk's submit and status requests.
type Server struct {
	Workflow Workflow
	Identity identity.Provider
	Queue    queue.Queue
}

// NewRouter sets up the station's local routes.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/submit", s.Submit).Methods(http.MethodPost)
	api.HandleFunc("/status", s.Status).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Station is operational."))
	}).Methods(http.MethodGet)

	return r
}

type submitResponse struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	NextAction model.RecordType `json:"nextAction,omitempty"`
	RecordID   string           `json:"recordId,omitempty"`
}

// Submit runs one check-in/check-out cycle and maps the outcome onto the
// status messages the kiosk shows.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.Workflow.ProcessSubmission(ctx)
	if err != nil {
		s.writeFailure(w, ctx, err)
		return
	}

	resp := submitResponse{
		NextAction: res.Record.Type.Next(),
		RecordID:   res.Record.ID,
	}
	switch res.Outcome {
	case core.OutcomeQueued:
		resp.Status = "offline"
		resp.Message = "Offline — attendance saved locally and will sync when the connection returns."
	default:
		resp.Status = "success"
		resp.Message = "Attendance recorded."
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeFailure(w http.ResponseWriter, ctx context.Context, err error) {
	var status int
	var resp submitResponse

	switch {
	case errors.Is(err, model.ErrMissingEvidence):
		status = http.StatusBadRequest
		resp = submitResponse{Status: "error", Message: "A photo is required to record attendance."}
	case errors.Is(err, model.ErrPermissionDenied):
		status = http.StatusForbidden
		resp = submitResponse{Status: "permission", Message: "Permission needed — check camera and account access."}
	case errors.Is(err, model.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
		resp = submitResponse{Status: "error", Message: "Camera unavailable — check the device and try again."}
	case errors.Is(err, model.ErrSubmissionInFlight):
		status = http.StatusConflict
		resp = submitResponse{Status: "busy", Message: "A submission is already in progress."}
	default:
		log.Ctx(ctx).Error().Err(err).Msg("Submission failed")
		status = http.StatusInternalServerError
		resp = submitResponse{Status: "error", Message: "Submission failed — try again."}
	}
	writeJSON(w, status, resp)
}

type statusResponse struct {
	State      model.SessionState `json:"state"`
	NextAction model.RecordType   `json:"nextAction"`
	UserID     string             `json:"userId,omitempty"`
	UserEmail  string             `json:"userEmail,omitempty"`
	QueueDepth int                `json:"queueDepth"`
}

// Status reports the session state, the expected next action and the
// offline backlog depth.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := statusResponse{
		State:      s.Workflow.State(),
		NextAction: s.Workflow.NextAction(ctx),
	}
	if u := s.Identity.Current(); u != nil {
		resp.UserID = u.ID
		resp.UserEmail = u.Email
	}
	if n, err := s.Queue.Len(ctx); err == nil {
		resp.QueueDepth = n
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
