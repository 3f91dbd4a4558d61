// Command claude-supervisor-hook is the short-lived process the host
// coding-agent runtime invokes once per hook event. It reads a single JSON
// request on standard input, evaluates it against the supervisor's policy
// configuration, and writes a single JSON decision to standard output.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"claude-supervisor/internal/config"
	"claude-supervisor/internal/hook"
)

const (
	exitOK              = 0
	exitDeny            = 2
	exitStructuralError = 1
)

func main() {
	initLogging()
	os.Exit(run(os.Stdin, os.Stdout))
}

func run(stdin io.Reader, stdout io.Writer) int {
	data, err := io.ReadAll(stdin)
	if err != nil {
		slog.Error("failed to read hook input", "error", err)
		return exitStructuralError
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration, falling back to defaults", "error", err)
		cfg = config.Default()
	}

	h := hook.New(cfg.BuildEngine())

	result, err := h.HandleJSON(data)
	if err != nil {
		slog.Error("hook handling failed", "error", err)
		return exitStructuralError
	}

	fmt.Fprintln(stdout, result.Response)

	if result.ShouldDeny {
		return exitDeny
	}
	return exitOK
}
