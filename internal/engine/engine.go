package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"careboard/internal/config"
	"careboard/internal/domain"
	"careboard/internal/events"
	"careboard/internal/repo"
)

// Engine mediates record mutations: every write validates against the store,
// persists, and appends an audit event in a single transaction.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	Expertise   *string
	PatientID   int64
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.PatientID <= 0 {
		return domain.Task{}, errors.New("patient is required")
	}
	if _, err := e.Repo.GetPatient(ctx, opts.PatientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, fmt.Errorf("patient %d: %w", opts.PatientID, repo.ErrNotFound)
		}
		return domain.Task{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		Title:       opts.Title,
		Description: opts.Description,
		Expertise:   opts.Expertise,
		PatientID:   opts.PatientID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.ID = id
	if err := e.Events.Append(ctx, tx, "task.created", "task", id, opts.ActorID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carry the full editable field set; the update is applied
// all-or-nothing.
type TaskUpdateOptions struct {
	ID          int64
	Title       string
	Description string
	Expertise   *string
	PatientID   int64
	Complete    bool
	ActorID     string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.PatientID <= 0 {
		return domain.Task{}, errors.New("patient is required")
	}
	current, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := e.Repo.GetPatient(ctx, opts.PatientID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, fmt.Errorf("patient %d: %w", opts.PatientID, repo.ErrNotFound)
		}
		return domain.Task{}, err
	}
	updated := current
	updated.Title = opts.Title
	updated.Description = opts.Description
	updated.Expertise = opts.Expertise
	updated.PatientID = opts.PatientID
	updated.Complete = opts.Complete
	updated.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, updated); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.updated", "task", updated.ID, opts.ActorID, events.EventPayload{
		"title":    updated.Title,
		"complete": updated.Complete,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

func (e Engine) CreatePatient(ctx context.Context, name, actorID string) (domain.Patient, error) {
	if name == "" {
		return domain.Patient{}, errors.New("name is required")
	}
	p := domain.Patient{
		Name:      name,
		Active:    true,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	id, err := e.Repo.InsertPatient(ctx, p)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	p.ID = id
	return p, nil
}

// SearchPatients resolves a free-text query into a bounded option set.
func (e Engine) SearchPatients(ctx context.Context, query string, limit int) ([]domain.PatientOption, error) {
	patients, err := e.Repo.SearchPatients(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	options := make([]domain.PatientOption, 0, len(patients))
	for _, p := range patients {
		options = append(options, domain.PatientOption{ID: p.ID, Label: p.Name})
	}
	return options, nil
}
