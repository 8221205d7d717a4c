package bolt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/coldforge/shepherd/internal/objectStore"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "objects.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return store
}

func TestPutAndGetObject(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutObject("ns/pipe/1/greeting", []byte("hello"), false); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetObject("ns/pipe/1/greeting")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestPutObjectRejectsOverwriteWithoutForce(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutObject("key", []byte("a"), false); err != nil {
		t.Fatal(err)
	}

	if err := store.PutObject("key", []byte("b"), false); !errors.Is(err, objectStore.ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists, got %v", err)
	}

	if err := store.PutObject("key", []byte("b"), true); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetObject("key")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "b" {
		t.Fatalf("expected forced overwrite to apply, got %q", got)
	}
}

func TestGetObjectNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetObject("missing"); !errors.Is(err, objectStore.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestListObjectKeysByPrefix(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"ns/pipe/1/a", "ns/pipe/1/b", "ns/pipe/2/a"} {
		if err := store.PutObject(key, []byte("x"), false); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.ListObjectKeys("ns/pipe/1/")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 2 {
		t.Fatalf("expected 2 keys under prefix, got %d: %v", len(keys), keys)
	}
}

func TestDeleteObject(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutObject("key", []byte("x"), false); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteObject("key"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetObject("key"); !errors.Is(err, objectStore.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound after delete, got %v", err)
	}
}

func TestDeleteObjectNotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.DeleteObject("missing"); !errors.Is(err, objectStore.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}
