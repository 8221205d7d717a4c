package storage

import (
	"errors"
	"os"
	"testing"
)

func TestTaskExecutionCRUD(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	te := TaskExecution{
		Namespace: "default",
		Pipeline:  "build",
		Run:       1,
		ID:        "compile",
		Task:      `{"id":"compile","image":"golang:1.22"}`,
		Started:   1000,
		ExitCode:  1,
		State:     "RUNNING",
		Status:    "UNKNOWN",
		Variables: "[]",
	}

	if err := db.InsertTaskExecution(db.DB, &te); err != nil {
		t.Fatal(err)
	}

	if err := db.InsertTaskExecution(db.DB, &te); !errors.Is(err, ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists on duplicate insert, got %v", err)
	}

	got, err := db.GetTaskExecution(db.DB, te.Namespace, te.Pipeline, te.Run, te.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "RUNNING" {
		t.Fatalf("expected state RUNNING, got %q", got.State)
	}

	ended := int64(2000)
	exitCode := int64(0)
	status := "SUCCESSFUL"
	state := "COMPLETE"
	if err := db.UpdateTaskExecution(db.DB, te.Namespace, te.Pipeline, te.Run, te.ID, UpdatableTaskExecutionFields{
		Ended:    &ended,
		ExitCode: &exitCode,
		Status:   &status,
		State:    &state,
	}); err != nil {
		t.Fatal(err)
	}

	got, err = db.GetTaskExecution(db.DB, te.Namespace, te.Pipeline, te.Run, te.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ended != ended || got.ExitCode != exitCode || got.Status != status || got.State != state {
		t.Fatalf("update did not apply: %+v", got)
	}

	if err := db.DeleteTaskExecution(db.DB, te.Namespace, te.Pipeline, te.Run, te.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetTaskExecution(db.DB, te.Namespace, te.Pipeline, te.Run, te.ID); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound after delete, got %v", err)
	}
}

func TestListTaskExecutionsForRun(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	for i, id := range []string{"a", "b", "c"} {
		te := TaskExecution{
			Namespace: "default",
			Pipeline:  "build",
			Run:       1,
			ID:        id,
			Task:      "{}",
			Started:   int64(i) * 10,
			ExitCode:  1,
			State:     "COMPLETE",
			Status:    "SUCCESSFUL",
			Variables: "[]",
		}
		if err := db.InsertTaskExecution(db.DB, &te); err != nil {
			t.Fatal(err)
		}
	}

	executions, err := db.ListTaskExecutions(db.DB, 0, 0, "default", "build", 1)
	if err != nil {
		t.Fatal(err)
	}

	if len(executions) != 3 {
		t.Fatalf("expected 3 task executions, got %d", len(executions))
	}
}
