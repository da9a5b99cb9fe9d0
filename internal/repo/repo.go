package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"careboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,title,COALESCE(description,'') AS description,expertise,patient_id,complete,created_at,updated_at`

func scanTask(row *sql.Row) (domain.Task, error) {
	var t domain.Task
	var expertise sql.NullString
	err := row.Scan(&t.ID, &t.Title, &t.Description, &expertise, &t.PatientID, &t.Complete, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if expertise.Valid {
		t.Expertise = &expertise.String
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(title,description,expertise,patient_id,complete,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		t.Title, nullable(t.Description), nullableDeref(t.Expertise), t.PatientID, t.Complete, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	PatientID int64
	Complete  *bool
	Limit     int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		where []string
		args  []any
	)
	if f.PatientID != 0 {
		where = append(where, "patient_id=?")
		args = append(args, f.PatientID)
	}
	if f.Complete != nil {
		where = append(where, "complete=?")
		args = append(args, *f.Complete)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var expertise sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &expertise, &t.PatientID, &t.Complete, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if expertise.Valid {
			t.Expertise = &expertise.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,expertise=?,patient_id=?,complete=?,updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), nullableDeref(t.Expertise), t.PatientID, t.Complete, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertPatient(ctx context.Context, p domain.Patient) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO patients(name,active,created_at) VALUES (?,?,?)`,
		p.Name, p.Active, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPatient(ctx context.Context, id int64) (domain.Patient, error) {
	var p domain.Patient
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,active,created_at FROM patients WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// SearchPatients returns active patients whose name contains the query,
// ordered by name, bounded by limit. An empty query lists from the start.
func (r Repo) SearchPatients(ctx context.Context, query string, limit int) ([]domain.Patient, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,active,created_at FROM patients WHERE active=1 AND name LIKE ? ORDER BY name,id LIMIT ?`,
		pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Patient
	for rows.Next() {
		var p domain.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityKind string, entityID int64) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,0),actor_id,payload_json FROM events`
	var (
		where []string
		args  []any
	)
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		where = append(where, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != 0 {
		where = append(where, "entity_id=?")
		args = append(args, entityID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableDeref(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
