package logs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coldforge/shepherd/internal/scheduler"
)

func TestCaptureWritesBothStreamsAndMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	items := make(chan scheduler.LogItem, 3)
	items <- scheduler.LogItem{Kind: scheduler.LogItemStdout, Data: []byte("hello ")}
	items <- scheduler.LogItem{Kind: scheduler.LogItemStderr, Data: []byte("world")}
	close(items)

	if err := Capture(path, items); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(string(content), "hello world") {
		t.Fatalf("expected combined stream content, got %q", content)
	}

	if !strings.HasSuffix(string(content), GoferEOF) {
		t.Fatalf("expected file to end with %q, got %q", GoferEOF, content)
	}
}

func TestCaptureAppendsMarkerEvenWithNoChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")

	items := make(chan scheduler.LogItem)
	close(items)

	if err := Capture(path, items); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(content) != GoferEOF {
		t.Fatalf("expected file to contain only the marker, got %q", content)
	}
}

func TestFilePathIsDeterministic(t *testing.T) {
	got := FilePath("/var/log/shepherd", "default", "build", 42, "compile")
	want := "/var/log/shepherd/default_build_42_compile.log"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
