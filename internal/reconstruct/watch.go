package reconstruct

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Tailer live-tails a session-log file on disk, parsing each newly
// appended line and feeding it into a Reconstructor as it arrives, so a
// long-running session's timeline can be kept current without re-reading
// the whole file from the start.
type Tailer struct {
	path   string
	recon  *Reconstructor
	offset int64
}

// NewTailer returns a Tailer over path, feeding parsed entries into recon.
func NewTailer(path string, recon *Reconstructor) *Tailer {
	return &Tailer{path: path, recon: recon}
}

// Run blocks until ctx is cancelled, watching path for appends and
// replaying any new lines into the Reconstructor as they're written. It
// performs one initial read of whatever is already on disk before
// watching begins, so callers see a complete timeline immediately.
func (t *Tailer) Run(ctx context.Context) error {
	if err := t.drain(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("initial read of %s: %w", t.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != t.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.drain(); err != nil {
				slog.Warn("failed to tail session log", "path", t.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("session log watcher error", "path", t.path, "error", err)
		}
	}
}

// drain reads and parses every line appended since the last call,
// advancing the stored offset.
func (t *Tailer) drain() error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < t.offset {
		slog.Warn("session log truncated, resetting offset to 0",
			"path", t.path, "old_offset", t.offset, "new_size", info.Size())
		t.offset = 0
	}
	if info.Size() == t.offset {
		return nil
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var consumed int64
	for scanner.Scan() {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1
		if len(line) == 0 {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			slog.Warn("skipping malformed session-log line", "path", t.path, "error", err)
			continue
		}
		t.recon.ProcessEntry(entry)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	t.offset += consumed
	return nil
}
