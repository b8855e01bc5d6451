package model

import "errors"

// Failure taxonomy shared across the capture, submission and backend layers.
// Callers classify with errors.Is; adapters wrap their transport-specific
// errors around these sentinels.
var (
	// ErrPermissionDenied covers denied camera/location access as well as
	// backend authorization failures. Never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDeviceUnavailable means no camera source produced a frame. The
	// user may retry manually after fixing the device.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrConnectivity marks failures the offline queue recovers from:
	// the backend is unreachable or the request timed out.
	ErrConnectivity = errors.New("connectivity failure")

	// ErrMissingEvidence guards against a submission without a photo.
	// Unreachable through the normal workflow but checked defensively.
	ErrMissingEvidence = errors.New("missing photo evidence")

	// ErrNotFound is returned by backend lookups and deletes for unknown
	// record ids.
	ErrNotFound = errors.New("record not found")

	// ErrSubmissionInFlight rejects a submission started while another one
	// for the same station is still running.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)
