package storage

import (
	"errors"
	"os"
	"testing"
)

func TestRunCRUD(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	run := Run{
		Namespace: "default",
		Pipeline:  "build",
		ID:        1,
		Started:   1000,
		State:     "RUNNING",
		Status:    "UNKNOWN",
		Initiator: `{"type":"HUMAN","name":"testuser"}`,
		Variables: "[]",
	}

	if err := db.InsertRun(db.DB, &run); err != nil {
		t.Fatal(err)
	}

	if err := db.InsertRun(db.DB, &run); !errors.Is(err, ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists on duplicate insert, got %v", err)
	}

	got, err := db.GetRun(db.DB, run.Namespace, run.Pipeline, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "RUNNING" {
		t.Fatalf("expected state RUNNING, got %q", got.State)
	}

	ended := int64(2000)
	status := "SUCCESSFUL"
	state := "COMPLETE"
	if err := db.UpdateRun(db.DB, run.Namespace, run.Pipeline, run.ID, UpdatableRunFields{
		Ended:  &ended,
		Status: &status,
		State:  &state,
	}); err != nil {
		t.Fatal(err)
	}

	got, err = db.GetRun(db.DB, run.Namespace, run.Pipeline, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ended != ended || got.Status != status || got.State != state {
		t.Fatalf("update did not apply: %+v", got)
	}

	if _, err := db.GetRun(db.DB, run.Namespace, run.Pipeline, 9999); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	for i := int64(1); i <= 5; i++ {
		run := Run{
			Namespace: "default",
			Pipeline:  "build",
			ID:        i,
			Started:   i * 100,
			State:     "COMPLETE",
			Status:    "SUCCESSFUL",
			Variables: "[]",
		}
		if err := db.InsertRun(db.DB, &run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(db.DB, 0, 3, "default", "build")
	if err != nil {
		t.Fatal(err)
	}

	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}

	if runs[0].ID != 5 || runs[1].ID != 4 || runs[2].ID != 3 {
		t.Fatalf("expected newest-first ordering 5,4,3; got %d,%d,%d", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}
