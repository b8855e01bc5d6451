// Package rest implements the document backend against a hosted document
// store reached over HTTP. The store's semantics (auth, real-time sync,
// durability) are its own business; this client only persists, queries and
// classifies failures.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/ports/backend"
)

// Client talks to the hosted records API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// Persist posts the record; the backend assigns the id and occurred-at
// timestamp and echoes the stored record back.
func (c *Client) Persist(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if !rec.HasPhoto() {
		return model.AttendanceRecord{}, model.ErrMissingEvidence
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("marshaling record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(payload))
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("creating persist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var stored model.AttendanceRecord
	if err := c.do(req, &stored); err != nil {
		return model.AttendanceRecord{}, err
	}
	return stored, nil
}

// Query returns the user's records since the given instant, most recent
// first.
func (c *Client) Query(ctx context.Context, userID string, since time.Time) ([]model.AttendanceRecord, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("since", since.Format(time.RFC3339Nano))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}

	var records []model.AttendanceRecord
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, id string) (model.AttendanceRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records/"+url.PathEscape(id), nil)
	if err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("creating get request: %w", err)
	}

	var rec model.AttendanceRecord
	if err := c.do(req, &rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// List returns records matching the filter.
func (c *Client) List(ctx context.Context, f backend.Filter) ([]model.AttendanceRecord, error) {
	q := url.Values{}
	q.Set("from", f.From.Format(time.RFC3339Nano))
	q.Set("to", f.To.Format(time.RFC3339Nano))
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating list request: %w", err)
	}

	var records []model.AttendanceRecord
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Stats aggregates counts over the filter range.
func (c *Client) Stats(ctx context.Context, f backend.Filter) (backend.Stats, error) {
	q := url.Values{}
	q.Set("from", f.From.Format(time.RFC3339Nano))
	q.Set("to", f.To.Format(time.RFC3339Nano))
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records/stats?"+q.Encode(), nil)
	if err != nil {
		return backend.Stats{}, fmt.Errorf("creating stats request: %w", err)
	}

	var st backend.Stats
	if err := c.do(req, &st); err != nil {
		return backend.Stats{}, err
	}
	return st, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/records/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	return c.do(req, nil)
}

// Ping probes the backend health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	return c.do(req, nil)
}

// do executes a request, classifies failures into the shared taxonomy and
// decodes a JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		// Transport errors and timeouts are what the offline queue
		// exists for.
		return fmt.Errorf("%w: %v", model.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding backend response: %w", err)
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: backend returned status %d", model.ErrPermissionDenied, status)
	case status == http.StatusNotFound:
		return model.ErrNotFound
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: backend returned status %d", model.ErrConnectivity, status)
	default:
		return errors.New("backend returned status " + strconv.Itoa(status))
	}
}
