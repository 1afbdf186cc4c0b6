package archive

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSave_UsesMessageIDAsFilename(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, testLogger())

	body := []byte(`{"entry": [{"changes": [{"value": {"messages": [{"id": "wamid.HBgL=="}]}}]}]}`)
	a.Save(body)

	day := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(dir, day, "wamid.HBgL==.json")
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected archived payload at %s: %v", path, err)
	}
	if string(saved) != string(body) {
		t.Error("archived payload must match the raw body")
	}
}

func TestSave_FallbackFilenameWithoutMessageID(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, testLogger())

	a.Save([]byte(`{"object": "whatsapp_business_account"}`))

	day := time.Now().UTC().Format("2006-01-02")
	entries, err := os.ReadDir(filepath.Join(dir, day))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 archived file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "unknown-") {
		t.Errorf("expected unknown- fallback name, got %s", entries[0].Name())
	}
}

func TestSave_SanitizesMessageID(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, testLogger())

	a.Save([]byte(`{"entry": [{"changes": [{"value": {"messages": [{"id": "../../evil"}]}}]}]}`))

	day := time.Now().UTC().Format("2006-01-02")
	entries, err := os.ReadDir(filepath.Join(dir, day))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 archived file, got %d", len(entries))
	}
	if strings.Contains(entries[0].Name(), "/") {
		t.Errorf("path separators must be sanitized, got %s", entries[0].Name())
	}
}

func TestSave_DisabledWhenDirEmpty(t *testing.T) {
	a := New("", testLogger())
	if a != nil {
		t.Fatal("empty dir must disable archival")
	}
	// Saving through a nil archiver is a safe no-op.
	a.Save([]byte(`{}`))
}

func TestSave_MalformedJSONStillArchived(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, testLogger())

	a.Save([]byte(`not json`))

	day := time.Now().UTC().Format("2006-01-02")
	entries, err := os.ReadDir(filepath.Join(dir, day))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("malformed payloads are archived too, got %d files", len(entries))
	}
}
