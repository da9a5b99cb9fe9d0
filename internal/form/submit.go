package form

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"careboard/internal/domain"
)

// TaskUpdater persists a mutated task record remotely. The record passed in
// is the unit of update; on success the implementation may refresh it with
// server-assigned fields.
type TaskUpdater interface {
	UpdateTask(ctx context.Context, t *domain.Task) error
}

// Reporter surfaces the pending/success/error lifecycle of an operation to
// the user. Purely observational: the returned error is op's, untouched.
type Reporter interface {
	Await(op func() error, pending, success, failure string) error
}

// ErrSubmitInFlight rejects re-entrant submit attempts; the draft is not
// editable while a submission is outstanding.
var ErrSubmitInFlight = errors.New("submission already in flight")

// ErrValidation indicates field errors blocked the submission. The field
// errors themselves live on the draft.
var ErrValidation = errors.New("draft has validation errors")

// RemoteUpdateError wraps a failed remote update. The draft is preserved so
// the user can retry without re-entering data.
type RemoteUpdateError struct {
	Err error
}

func (e *RemoteUpdateError) Error() string { return fmt.Sprintf("remote update failed: %v", e.Err) }
func (e *RemoteUpdateError) Unwrap() error { return e.Err }

type sessionKey struct{}

// WithSession tags ctx with an edit session identifier so downstream calls
// (SDK requests, logs) can be correlated with the session that issued them.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the edit session identifier carried by ctx.
func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// Submitter runs the ordered validate → transform → persist → notify pipeline
// for one edit session. Each step gates the next; the record is only mutated
// once all local gates pass, and OnSuccess fires exactly once, only after the
// remote update is confirmed.
type Submitter struct {
	Service   TaskUpdater
	Reporter  Reporter
	OnSuccess func(ctx context.Context) error

	inFlight atomic.Bool
}

// Submit validates the draft, stages its values onto task, and invokes the
// remote update. On failure the draft returns to editing with its values
// intact. The staged in-memory mutation on task is deliberately not rolled
// back when the remote call fails; callers re-seed from a fresh snapshot
// before reopening an edit session.
func (s *Submitter) Submit(ctx context.Context, d *Draft, task *domain.Task) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer s.inFlight.Store(false)
	if !d.beginSubmit() {
		return ErrSubmitInFlight
	}
	ctx = WithSession(ctx, d.SessionID)

	if !d.Validate() {
		d.endSubmit(false)
		return ErrValidation
	}

	patientID, err := d.PatientID()
	if err != nil {
		d.endSubmit(false)
		return err
	}

	task.Title = d.Title()
	task.Description = d.Description()
	task.Expertise = d.ExpertiseValue()
	task.PatientID = patientID
	task.Complete = d.Complete()

	err = s.await(func() error {
		return s.Service.UpdateTask(ctx, task)
	}, "Updating task...", "Task updated successfully!", "Error updating task")
	if err != nil {
		d.endSubmit(false)
		return &RemoteUpdateError{Err: err}
	}

	d.endSubmit(true)
	if s.OnSuccess != nil {
		return s.OnSuccess(ctx)
	}
	return nil
}

func (s *Submitter) await(op func() error, pending, success, failure string) error {
	if s.Reporter == nil {
		return op()
	}
	return s.Reporter.Await(op, pending, success, failure)
}
