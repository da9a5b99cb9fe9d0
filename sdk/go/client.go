// Package careboardsdk is a minimal Careboard HTTP API client. It implements
// the record update and patient search calls the edit form depends on.
package careboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"careboard/internal/domain"
	"careboard/internal/form"
)

// Client talks to a Careboard record service. Token is the bearer session
// credential supplied by the host; it may be empty against a dev-mode server.
// BasePath must match the server's configured base path ("/v0" by default).
type Client struct {
	BaseURL    string
	BasePath   string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type patientItems struct {
	Items []domain.Patient `json:"items"`
}

type taskItems struct {
	Items []domain.Task `json:"items"`
}

// UpdateTask persists the full editable field set of t and refreshes t with
// the confirmed record on success. t is untouched on failure.
func (c *Client) UpdateTask(ctx context.Context, t *domain.Task) error {
	body := map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"patient_id":  t.PatientID,
		"complete":    t.Complete,
	}
	if t.Expertise != nil {
		body["expertise"] = *t.Expertise
	}
	var updated domain.Task
	endpoint := fmt.Sprintf("tasks/%d", t.ID)
	if err := c.do(ctx, http.MethodPatch, endpoint, body, &updated); err != nil {
		return err
	}
	*t = updated
	return nil
}

// GetTask fetches a fresh task snapshot.
func (c *Client) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	var resp domain.Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

// ListTasks returns tasks, optionally filtered by patient.
func (c *Client) ListTasks(ctx context.Context, patientID int64, limit int) ([]domain.Task, error) {
	endpoint := "tasks"
	params := url.Values{}
	if patientID > 0 {
		params.Set("patient_id", fmt.Sprintf("%d", patientID))
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp taskItems
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CreateTask creates a task for a patient.
func (c *Client) CreateTask(ctx context.Context, title string, patientID int64) (domain.Task, error) {
	body := map[string]any{
		"title":      title,
		"patient_id": patientID,
	}
	var resp domain.Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// SearchPatients resolves a free-text query into a bounded option set.
func (c *Client) SearchPatients(ctx context.Context, query string, limit int) ([]domain.PatientOption, error) {
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "patients"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp patientItems
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	options := make([]domain.PatientOption, 0, len(resp.Items))
	for _, p := range resp.Items {
		options = append(options, domain.PatientOption{ID: p.ID, Label: p.Name})
	}
	return options, nil
}

// CreatePatient registers a patient.
func (c *Client) CreatePatient(ctx context.Context, name string) (domain.Patient, error) {
	var resp domain.Patient
	err := c.do(ctx, http.MethodPost, "patients", map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + c.path() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if session, ok := form.SessionFromContext(ctx); ok {
		req.Header.Set("X-Session-Id", session)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) path() string {
	p := c.BasePath
	if p == "" {
		p = "/v0"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
