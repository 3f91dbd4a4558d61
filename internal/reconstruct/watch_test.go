package reconstruct

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTailerDrainsInitialContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")

	line := `{"type":"system","uuid":"sys-1","timestamp":"t0"}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	recon := New()
	tailer := NewTailer(path, recon)
	if err := tailer.drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if _, ok := recon.entriesByUUID["sys-1"]; !ok {
		t.Fatal("expected initial entry to be indexed after drain")
	}
}

func TestTailerPicksUpAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")

	if err := os.WriteFile(path, []byte(`{"type":"system","uuid":"sys-1","timestamp":"t0"}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	recon := New()
	tailer := NewTailer(path, recon)
	if err := tailer.drain(); err != nil {
		t.Fatalf("initial drain: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"type":"system","uuid":"sys-2","timestamp":"t1"}` + "\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	if err := tailer.drain(); err != nil {
		t.Fatalf("second drain: %v", err)
	}

	if _, ok := recon.entriesByUUID["sys-2"]; !ok {
		t.Fatal("expected appended entry to be indexed after second drain")
	}
	if len(recon.entriesByUUID) != 2 {
		t.Fatalf("entriesByUUID has %d entries, want 2", len(recon.entriesByUUID))
	}
}

func TestTailerResetsOffsetOnTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")

	initial := `{"type":"system","uuid":"sys-1","timestamp":"t0"}` + "\n" +
		`{"type":"system","uuid":"sys-2","timestamp":"t1"}` + "\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	recon := New()
	tailer := NewTailer(path, recon)
	if err := tailer.drain(); err != nil {
		t.Fatalf("initial drain: %v", err)
	}
	if tailer.offset == 0 {
		t.Fatal("expected non-zero offset after initial drain")
	}

	// Simulate log rotation: a fresh, shorter file replaces the old one.
	if err := os.WriteFile(path, []byte(`{"type":"system","uuid":"sys-new","timestamp":"t2"}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile (truncated): %v", err)
	}

	if err := tailer.drain(); err != nil {
		t.Fatalf("drain after truncation: %v", err)
	}

	if _, ok := recon.entriesByUUID["sys-new"]; !ok {
		t.Fatal("expected entry from truncated file to be indexed")
	}
}

func TestTailerRunStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	if err := os.WriteFile(path, []byte(``), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	recon := New()
	tailer := NewTailer(path, recon)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := tailer.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run() = %v, want context.DeadlineExceeded", err)
	}
}
