package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"careboard/internal/config"
	"careboard/internal/db"
	"careboard/internal/engine"
	"careboard/internal/migrate"
)

func newTestServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	handler, err := New(Config{
		Engine:   engine.New(conn, config.Default()),
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: secret, DevActor: "tester", Logger: zerolog.Nop()},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t, "")

	var patient PatientResponse
	if status := doJSON(t, http.MethodPost, ts.URL+"/v0/patients", "", map[string]any{"name": "Ada Lovelace"}, &patient); status != http.StatusCreated {
		t.Fatalf("create patient: status %d", status)
	}

	var task TaskResponse
	create := map[string]any{"title": "Call patient", "patient_id": patient.ID}
	if status := doJSON(t, http.MethodPost, ts.URL+"/v0/tasks", "", create, &task); status != http.StatusCreated {
		t.Fatalf("create task: status %d", status)
	}
	if task.ID == 0 || task.Complete {
		t.Fatalf("unexpected created task: %+v", task)
	}

	var updated TaskResponse
	patch := map[string]any{
		"title":       "Call patient back",
		"description": "left voicemail",
		"expertise":   "cardiology",
		"patient_id":  patient.ID,
		"complete":    true,
	}
	if status := doJSON(t, http.MethodPatch, ts.URL+"/v0/tasks/"+itoa(task.ID), "", patch, &updated); status != http.StatusOK {
		t.Fatalf("update task: status %d", status)
	}
	if updated.Title != "Call patient back" || !updated.Complete || updated.Expertise == nil || *updated.Expertise != "cardiology" {
		t.Fatalf("unexpected updated task: %+v", updated)
	}

	var fetched TaskResponse
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/tasks/"+itoa(task.ID), "", nil, &fetched); status != http.StatusOK {
		t.Fatalf("get task: status %d", status)
	}
	if fetched.Title != updated.Title || fetched.Complete != updated.Complete || fetched.UpdatedAt != updated.UpdatedAt {
		t.Fatalf("fetched task diverges from update response:\n%+v\n%+v", fetched, updated)
	}
}

func TestUpdateTaskValidation(t *testing.T) {
	ts := newTestServer(t, "")

	var patient PatientResponse
	doJSON(t, http.MethodPost, ts.URL+"/v0/patients", "", map[string]any{"name": "Ada"}, &patient)
	var task TaskResponse
	doJSON(t, http.MethodPost, ts.URL+"/v0/tasks", "", map[string]any{"title": "t", "patient_id": patient.ID}, &task)

	patch := map[string]any{"title": "", "patient_id": patient.ID}
	if status := doJSON(t, http.MethodPatch, ts.URL+"/v0/tasks/"+itoa(task.ID), "", patch, nil); status != http.StatusBadRequest {
		t.Fatalf("empty title: expected 400, got %d", status)
	}

	patch = map[string]any{"title": "t", "patient_id": 999}
	if status := doJSON(t, http.MethodPatch, ts.URL+"/v0/tasks/"+itoa(task.ID), "", patch, nil); status != http.StatusNotFound {
		t.Fatalf("unknown patient: expected 404, got %d", status)
	}

	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/tasks/404", "", nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown task: expected 404, got %d", status)
	}
}

func TestPatientSearch(t *testing.T) {
	ts := newTestServer(t, "")
	for _, name := range []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"} {
		if status := doJSON(t, http.MethodPost, ts.URL+"/v0/patients", "", map[string]any{"name": name}, nil); status != http.StatusCreated {
			t.Fatalf("create %s: status %d", name, status)
		}
	}
	var list struct {
		Items []PatientResponse `json:"items"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/patients?search=Lovelace", "", nil, &list); status != http.StatusOK {
		t.Fatalf("search: status %d", status)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "Ada Lovelace" {
		t.Fatalf("unexpected search result: %+v", list.Items)
	}

	list.Items = nil
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/patients?search=a&limit=2", "", nil, &list); status != http.StatusOK {
		t.Fatalf("bounded search: status %d", status)
	}
	if len(list.Items) != 2 {
		t.Fatalf("limit not applied: %+v", list.Items)
	}
}

func TestAuditEventsExposed(t *testing.T) {
	ts := newTestServer(t, "")
	var patient PatientResponse
	doJSON(t, http.MethodPost, ts.URL+"/v0/patients", "", map[string]any{"name": "Ada"}, &patient)
	var task TaskResponse
	doJSON(t, http.MethodPost, ts.URL+"/v0/tasks", "", map[string]any{"title": "t", "patient_id": patient.ID}, &task)

	var list struct {
		Items []EventResponse `json:"items"`
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/events?entity_kind=task", "", nil, &list); status != http.StatusOK {
		t.Fatalf("list events: status %d", status)
	}
	if len(list.Items) != 1 || list.Items[0].Type != "task.created" || list.Items[0].ActorID != "tester" {
		t.Fatalf("unexpected events: %+v", list.Items)
	}
}

func TestJWTAuthEnforced(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, secret)

	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/health", "", nil, nil); status != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/tasks", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/tasks", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", status)
	}

	token, err := MintToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	var patient PatientResponse
	if status := doJSON(t, http.MethodPost, ts.URL+"/v0/patients", token, map[string]any{"name": "Ada"}, &patient); status != http.StatusCreated {
		t.Fatalf("minted token rejected: status %d", status)
	}

	var list struct {
		Items []EventResponse `json:"items"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/v0/tasks", token, map[string]any{"title": "t", "patient_id": patient.ID}, nil)
	doJSON(t, http.MethodGet, ts.URL+"/v0/events", token, nil, &list)
	if len(list.Items) == 0 || list.Items[0].ActorID != "alice" {
		t.Fatalf("actor should come from token subject: %+v", list.Items)
	}

	wrong, err := MintToken("other-secret", "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if status := doJSON(t, http.MethodGet, ts.URL+"/v0/tasks", wrong, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", status)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
