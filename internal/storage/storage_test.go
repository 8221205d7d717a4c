package storage

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
)

func tempFile() string {
	f, err := os.CreateTemp("", "shepherd-test-")
	if err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
	if err := os.Remove(f.Name()); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestTransactionSuccess(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	run := Run{
		Namespace: "test_namespace",
		Pipeline:  "test_pipeline",
		ID:        1,
		Started:   100,
		State:     "RUNNING",
		Status:    "UNKNOWN",
		Variables: "[]",
	}

	newStatus := "SUCCESSFUL"

	err = InsideTx(db.DB, func(tx *sqlx.Tx) error {
		if err := db.InsertRun(tx, &run); err != nil {
			return err
		}

		return db.UpdateRun(tx, run.Namespace, run.Pipeline, run.ID, UpdatableRunFields{Status: &newStatus})
	})
	if err != nil {
		t.Fatal(err)
	}

	retrieved, err := db.GetRun(db.DB, run.Namespace, run.Pipeline, run.ID)
	if err != nil {
		t.Fatal(err)
	}

	if retrieved.Status != newStatus {
		t.Fatalf("transaction did not apply successfully; expected status %q; got %q", newStatus, retrieved.Status)
	}
}

func TestTransactionFailure(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	run := Run{
		Namespace: "test_namespace",
		Pipeline:  "test_pipeline",
		ID:        1,
		Started:   100,
		State:     "RUNNING",
		Status:    "UNKNOWN",
		Variables: "[]",
	}

	newStatus := "SUCCESSFUL"

	_ = InsideTx(db.DB, func(tx *sqlx.Tx) error {
		if err := db.InsertRun(tx, &run); err != nil {
			return err
		}

		if err := db.UpdateRun(tx, run.Namespace, run.Pipeline, run.ID, UpdatableRunFields{Status: &newStatus}); err != nil {
			return err
		}

		return fmt.Errorf("this is a simulated error that happens inside the transaction")
	})
	// Simulate the caller continuing here instead of checking the error so we can inspect db state.

	_, err = db.GetRun(db.DB, run.Namespace, run.Pipeline, run.ID)
	if err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return
		}
	}

	t.Fatalf("transaction did not rollback successfully")
}
