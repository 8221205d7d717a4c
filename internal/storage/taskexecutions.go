package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// TaskExecution is the storage-layer row for a models.TaskExecution.
type TaskExecution struct {
	Namespace    string `db:"namespace"`
	Pipeline     string `db:"pipeline"`
	Run          int64  `db:"run"`
	ID           string `db:"id"`
	Task         string `db:"task"`
	Started      int64  `db:"started"`
	Ended        int64  `db:"ended"`
	ExitCode     int64  `db:"exit_code"`
	LogsExpired  bool   `db:"logs_expired"`
	LogsRemoved  bool   `db:"logs_removed"`
	State        string `db:"state"`
	Status       string `db:"status"`
	StatusReason string `db:"status_reason"`
	Variables    string `db:"variables"`
}

// UpdatableTaskExecutionFields is a field mask: only non-nil fields are written.
type UpdatableTaskExecutionFields struct {
	Started      *int64
	Ended        *int64
	ExitCode     *int64
	State        *string
	Status       *string
	StatusReason *string
	LogsExpired  *bool
	LogsRemoved  *bool
	Variables    *string
}

func (db *DB) ListTaskExecutions(conn Queryable, offset, limit int, namespace, pipeline string, run int64) (
	[]TaskExecution, error,
) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "run", "id", "task", "started", "ended",
		"exit_code", "state", "status", "status_reason", "logs_expired", "logs_removed", "variables").
		From("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run}).
		Limit(uint64(limit)).
		OrderBy("started ASC").
		Offset(uint64(offset)).MustSql()

	executions := []TaskExecution{}
	if err := conn.Select(&executions, query, args...); err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return executions, nil
}

func (db *DB) InsertTaskExecution(conn Queryable, te *TaskExecution) error {
	_, err := qb.Insert("task_executions").Columns("namespace", "pipeline", "run", "id", "task",
		"started", "ended", "exit_code", "logs_expired", "logs_removed", "state", "status",
		"status_reason", "variables").Values(
		te.Namespace, te.Pipeline, te.Run, te.ID, te.Task,
		te.Started, te.Ended, te.ExitCode, te.LogsExpired, te.LogsRemoved, te.State, te.Status,
		te.StatusReason, te.Variables,
	).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			// Not fatal here: a monitor recovering after a restart re-inserts the execution it
			// was already tracking.
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string) (TaskExecution, error) {
	query, args := qb.Select("namespace", "pipeline", "run", "id", "task", "started", "ended",
		"exit_code", "state", "status", "status_reason", "logs_expired", "logs_removed", "variables").
		From("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "id": id}).MustSql()

	te := TaskExecution{}
	err := conn.Get(&te, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskExecution{}, ErrEntityNotFound
		}

		return TaskExecution{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return te, nil
}

func (db *DB) UpdateTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string, fields UpdatableTaskExecutionFields) error {
	query := qb.Update("task_executions")

	if fields.Started != nil {
		query = query.Set("started", fields.Started)
	}

	if fields.Ended != nil {
		query = query.Set("ended", fields.Ended)
	}

	if fields.ExitCode != nil {
		query = query.Set("exit_code", fields.ExitCode)
	}

	if fields.State != nil {
		query = query.Set("state", fields.State)
	}

	if fields.Status != nil {
		query = query.Set("status", fields.Status)
	}

	if fields.StatusReason != nil {
		query = query.Set("status_reason", fields.StatusReason)
	}

	if fields.LogsExpired != nil {
		query = query.Set("logs_expired", fields.LogsExpired)
	}

	if fields.LogsRemoved != nil {
		query = query.Set("logs_removed", fields.LogsRemoved)
	}

	if fields.Variables != nil {
		query = query.Set("variables", fields.Variables)
	}

	_, err := query.Where(qb.Eq{
		"namespace": namespace, "pipeline": pipeline, "run": run, "id": id,
	}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) DeleteTaskExecution(conn Queryable, namespace, pipeline string, run int64, id string) error {
	_, err := qb.Delete("task_executions").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "run": run, "id": id}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
