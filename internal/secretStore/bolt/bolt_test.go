package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/coldforge/shepherd/internal/secretStore"
)

func TestBolt(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "secrets.db"), "testencryptionkeytestencryptionk")
	if err != nil {
		t.Fatal(err)
	}

	err = store.PutSecret("testkey1", "mysupersecretkey", false)
	if err != nil {
		t.Fatal(err)
	}

	err = store.PutSecret("testkey2", "myothersupersecretkey", false)
	if err != nil {
		t.Fatal(err)
	}

	err = store.PutSecret("differentkey2", "mynextsupersecretkey", false)
	if err != nil {
		t.Fatal(err)
	}

	secret, err := store.GetSecret("testkey1")
	if err != nil {
		t.Fatal(err)
	}

	if secret != "mysupersecretkey" {
		t.Fatal("secret returned does not equal secret put in")
	}

	keys, err := store.ListSecretKeys("testkey")
	if err != nil {
		t.Fatal(err)
	}

	if len(keys) != 2 {
		t.Fatalf("expected two keys got %d", len(keys))
	}
}

func TestPutSecretRejectsOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "secrets.db"), "testencryptionkeytestencryptionk")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.PutSecret("key", "first", false); err != nil {
		t.Fatal(err)
	}

	if err := store.PutSecret("key", "second", false); !errors.Is(err, secretStore.ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists, got %v", err)
	}

	if err := store.PutSecret("key", "second", true); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSecret("key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Fatalf("expected forced overwrite to apply, got %q", got)
	}
}

func TestGetSecretNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "secrets.db"), "testencryptionkeytestencryptionk")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetSecret("missing"); !errors.Is(err, secretStore.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestDeleteSecret(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "secrets.db"), "testencryptionkeytestencryptionk")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.PutSecret("key", "value", false); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteSecret("key"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetSecret("key"); !errors.Is(err, secretStore.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound after delete, got %v", err)
	}
}
