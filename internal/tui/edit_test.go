package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"careboard/internal/domain"
	"careboard/internal/form"
)

type stubService struct {
	release   chan struct{}
	updateErr error
	calls     int
}

func (s *stubService) UpdateTask(ctx context.Context, t *domain.Task) error {
	s.calls++
	if s.release != nil {
		<-s.release
	}
	return s.updateErr
}

func (s *stubService) SearchPatients(ctx context.Context, query string, limit int) ([]domain.PatientOption, error) {
	return nil, nil
}

func sampleOptions(svc TaskService) Options {
	return Options{
		Task:    domain.Task{ID: 7, Title: "Call patient", PatientID: 5},
		Service: svc,
	}
}

func pressEnter(m *Model) tea.Cmd {
	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// A draft blocked by field errors renders them inline; no status line fires.
func TestValidationFailureRendersInlineOnly(t *testing.T) {
	m := New(context.Background(), sampleOptions(&stubService{}))
	m.draft.SetField(form.FieldTitle, "")
	m.focused = fieldSubmit

	cmd := pressEnter(m)
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	m.Update(cmd())
	if m.status != statusNone || m.statusMsg != "" {
		t.Fatalf("validation failure must not set a status line: %v %q", m.status, m.statusMsg)
	}
	view := m.View()
	if !strings.Contains(view, "Title is required") {
		t.Fatalf("inline field error missing:\n%s", view)
	}
	if strings.Contains(view, "Error updating task") || strings.Contains(view, "Updating task...") {
		t.Fatalf("validation failure leaked into the status area:\n%s", view)
	}
	if m.submitting || m.draft.State() != form.StateEditing {
		t.Fatal("form should be back in editing for correction")
	}
}

// While a submission is outstanding, enter must not dispatch a second one and
// keystrokes must not reach the draft.
func TestKeysIgnoredWhileSubmitting(t *testing.T) {
	svc := &stubService{release: make(chan struct{})}
	m := New(context.Background(), sampleOptions(svc))
	m.focused = fieldSubmit

	first := pressEnter(m)
	if first == nil {
		t.Fatal("expected a submit command")
	}
	if m.status != statusPending {
		t.Fatal("expected pending status while submitting")
	}
	if second := pressEnter(m); second != nil {
		t.Fatal("second enter must not dispatch while a submission is outstanding")
	}
	m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.draft.Title() != "Call patient" {
		t.Fatal("keystrokes must not reach the draft while submitting")
	}

	done := make(chan tea.Msg, 1)
	go func() { done <- first() }()
	close(svc.release)
	m.Update(<-done)
	if svc.calls != 1 {
		t.Fatalf("expected exactly one remote call, got %d", svc.calls)
	}
	if m.submitting {
		t.Fatal("completion should clear the submitting guard")
	}
	if m.status != statusSuccess || !m.Updated() {
		t.Fatalf("expected success outcome, got %v updated=%v", m.status, m.Updated())
	}
	if m.task.Title != "Call patient" {
		t.Fatalf("confirmed record not applied to the model: %+v", m.task)
	}
}

// A remote failure keeps the session editable and reports through the status
// line, not by quitting.
func TestRemoteFailureStaysOpen(t *testing.T) {
	svc := &stubService{updateErr: context.DeadlineExceeded}
	m := New(context.Background(), sampleOptions(svc))
	m.focused = fieldSubmit

	cmd := pressEnter(m)
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	m.Update(cmd())
	if m.status != statusFailure || !strings.Contains(m.statusMsg, "Error updating task") {
		t.Fatalf("expected failure status, got %v %q", m.status, m.statusMsg)
	}
	if m.Updated() {
		t.Fatal("failed submission must not report an update")
	}
	if m.submitting {
		t.Fatal("failure should clear the submitting guard for retry")
	}
}
