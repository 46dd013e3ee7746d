package store

import (
	"context"
	"database/sql"
	"fmt"
)

type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db.SQL()}
}

func (r *TaskRepo) Create(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = NewID()
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	if !ValidStatus(task.Status) {
		return fmt.Errorf("invalid task status %q", task.Status)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = nowUTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	var due any
	if task.DueDate != nil {
		due = formatTimestamp(*task.DueDate)
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, owner_id, title, description, status, due_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, task.ID, task.OwnerID, task.Title, task.Description, task.Status, due, formatTimestamp(task.CreatedAt), formatTimestamp(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get returns the task with the given id owned by ownerID, or nil when
// it does not exist.
func (r *TaskRepo) Get(ctx context.Context, ownerID, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, title, description, status, due_date, created_at, updated_at
FROM tasks
WHERE id = ? AND owner_id = ?
`, id, ownerID)

	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task %q: %w", id, err)
	}
	return task, nil
}

// ListByOwner returns all tasks for the owner, newest first.
func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]*Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_id, title, description, status, due_date, created_at, updated_at
FROM tasks
WHERE owner_id = ?
ORDER BY created_at DESC, id DESC
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the non-nil fields of patch to the task and returns
// the updated row. Returns nil when the task does not exist or is not
// owned by ownerID.
func (r *TaskRepo) Update(ctx context.Context, ownerID, id string, patch TaskPatch) (*Task, error) {
	task, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		if !ValidStatus(*patch.Status) {
			return nil, fmt.Errorf("invalid task status %q", *patch.Status)
		}
		task.Status = *patch.Status
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	task.UpdatedAt = nowUTC()

	var due any
	if task.DueDate != nil {
		due = formatTimestamp(*task.DueDate)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET title = ?, description = ?, status = ?, due_date = ?, updated_at = ?
WHERE id = ? AND owner_id = ?
`, task.Title, task.Description, task.Status, due, formatTimestamp(task.UpdatedAt), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read updated rows for task %q: %w", id, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return task, nil
}

// Delete removes the task and reports whether a row was deleted.
func (r *TaskRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted rows for task %q: %w", id, err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var dueRaw sql.NullString
	var createdAtRaw, updatedAtRaw string

	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Status, &dueRaw, &createdAtRaw, &updatedAtRaw); err != nil {
		return nil, err
	}

	if dueRaw.Valid {
		due, err := parseTimestamp(dueRaw.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = &due
	}

	var err error
	t.CreatedAt, err = parseTimestamp(createdAtRaw)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTimestamp(updatedAtRaw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
