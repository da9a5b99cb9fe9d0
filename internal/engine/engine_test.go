package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"careboard/internal/config"
	"careboard/internal/db"
	"careboard/internal/migrate"
	"careboard/internal/repo"
)

func testEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestCreateAndUpdateTask(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	p, err := e.CreatePatient(ctx, "Ada Lovelace", "tester")
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	expertise := "cardiology"
	created, err := e.CreateTask(ctx, TaskCreateOptions{
		Title:     "Call patient",
		Expertise: &expertise,
		PatientID: p.ID,
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	updated, err := e.UpdateTask(ctx, TaskUpdateOptions{
		ID:          created.ID,
		Title:       "Call patient back",
		Description: "left voicemail",
		PatientID:   p.ID,
		Complete:    true,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "Call patient back" || !updated.Complete {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Expertise != nil {
		t.Fatal("omitting expertise should clear it; the update is all-or-nothing")
	}

	got, err := e.Repo.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != "Call patient back" || got.Description != "left voicemail" || !got.Complete {
		t.Fatalf("persisted record mismatch: %+v", got)
	}
}

func TestUpdateTaskRejectsUnknownPatient(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	p, err := e.CreatePatient(ctx, "Ada Lovelace", "tester")
	if err != nil {
		t.Fatal(err)
	}
	created, err := e.CreateTask(ctx, TaskCreateOptions{Title: "t", PatientID: p.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.UpdateTask(ctx, TaskUpdateOptions{ID: created.ID, Title: "t", PatientID: 999, ActorID: "tester"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing patient, got %v", err)
	}

	got, err := e.Repo.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientID != p.ID {
		t.Fatal("rejected update must not change the record")
	}
}

func TestUpdateTaskUnknownID(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	if _, err := e.CreatePatient(ctx, "Ada", "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := e.UpdateTask(ctx, TaskUpdateOptions{ID: 404, Title: "t", PatientID: 1, ActorID: "tester"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMutationsAppendAuditEvents(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	p, _ := e.CreatePatient(ctx, "Ada", "alice")
	created, err := e.CreateTask(ctx, TaskCreateOptions{Title: "t", PatientID: p.ID, ActorID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{ID: created.ID, Title: "t2", PatientID: p.ID, ActorID: "bob"}); err != nil {
		t.Fatal(err)
	}

	evts, err := e.Repo.LatestEvents(ctx, 10, "", "task", created.ID)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != "task.updated" || evts[0].ActorID != "bob" {
		t.Fatalf("unexpected newest event: %+v", evts[0])
	}
	if evts[1].Type != "task.created" || evts[1].ActorID != "alice" {
		t.Fatalf("unexpected oldest event: %+v", evts[1])
	}
}

func TestSearchPatientsReturnsOptions(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	for _, name := range []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"} {
		if _, err := e.CreatePatient(ctx, name, "tester"); err != nil {
			t.Fatal(err)
		}
	}
	options, err := e.SearchPatients(ctx, "a", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("expected 3 matches for %q, got %d", "a", len(options))
	}
	options, err = e.SearchPatients(ctx, "Lovelace", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(options) != 1 || options[0].Label != "Ada Lovelace" || options[0].ID == 0 {
		t.Fatalf("unexpected options: %+v", options)
	}
	options, err = e.SearchPatients(ctx, "zzz", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(options) != 0 {
		t.Fatalf("expected no matches, got %+v", options)
	}
}
