package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// Run is the storage-layer row for a models.Run.
type Run struct {
	Namespace           string `db:"namespace"`
	Pipeline            string `db:"pipeline"`
	ID                  int64  `db:"id"`
	Started             int64  `db:"started"`
	Ended               int64  `db:"ended"`
	State               string `db:"state"`
	Status              string `db:"status"`
	StatusReason        string `db:"status_reason"`
	Initiator           string `db:"initiator"`
	Variables           string `db:"variables"`
	StoreObjectsExpired bool   `db:"store_objects_expired"`
}

// UpdatableRunFields is a field mask: only non-nil fields are written, so an update can never
// clobber a column it didn't mean to touch.
type UpdatableRunFields struct {
	Ended               *int64
	State               *string
	Status              *string
	StatusReason        *string
	Variables           *string
	StoreObjectsExpired *bool
}

// ListRuns returns up to limit runs for (namespace, pipeline), newest first. The expiry workers
// rely on this ordering: the last element of a `limit=N+1` call is the oldest run in the window.
func (db *DB) ListRuns(conn Queryable, offset, limit int, namespace, pipeline string) ([]Run, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("namespace", "pipeline", "id", "started", "ended", "state",
		"status", "status_reason", "initiator", "variables", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	runs := []Run{}
	if err := conn.Select(&runs, query, args...); err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return runs, nil
}

func (db *DB) InsertRun(conn Queryable, run *Run) error {
	_, err := qb.Insert("runs").Columns("namespace", "pipeline", "id", "started", "ended", "state",
		"status", "status_reason", "initiator", "variables", "store_objects_expired").Values(
		run.Namespace, run.Pipeline, run.ID, run.Started, run.Ended, run.State,
		run.Status, run.StatusReason, run.Initiator, run.Variables, run.StoreObjectsExpired,
	).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetRun(conn Queryable, namespace, pipeline string, id int64) (Run, error) {
	query, args := qb.Select("namespace", "pipeline", "id", "started", "ended", "state", "status",
		"status_reason", "initiator", "variables", "store_objects_expired").
		From("runs").
		Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).MustSql()

	run := Run{}
	err := conn.Get(&run, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrEntityNotFound
		}

		return Run{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return run, nil
}

func (db *DB) UpdateRun(conn Queryable, namespace, pipeline string, id int64, fields UpdatableRunFields) error {
	query := qb.Update("runs")

	if fields.Ended != nil {
		query = query.Set("ended", fields.Ended)
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

	if fields.Variables != nil {
		query = query.Set("variables", fields.Variables)
	}

	if fields.StoreObjectsExpired != nil {
		query = query.Set("store_objects_expired", fields.StoreObjectsExpired)
	}

	_, err := query.Where(qb.Eq{"namespace": namespace, "pipeline": pipeline, "id": id}).RunWith(conn).Exec()
	if err != nil {
		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
