package runner

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"claude-supervisor/internal/event"
)

// DefaultChannelBuffer is the default capacity of the event channel;
// a slow consumer applies backpressure to the subprocess's stdout pipe once
// it fills.
const DefaultChannelBuffer = 64

// IntoChannel reads newline-delimited JSON events from stdout and delivers
// them on the returned channel. A malformed line is logged and skipped; it
// never aborts the stream. The channel is closed on EOF or read error.
func IntoChannel(stdout io.Reader, bufferSize int) <-chan *event.Event {
	ch := make(chan *event.Event, bufferSize)

	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			ev, err := event.Parse([]byte(line))
			if err != nil {
				slog.Warn("skipping malformed event line", "error", err)
				continue
			}
			ch <- ev
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("event stream read error", "error", err)
		}
	}()

	return ch
}
