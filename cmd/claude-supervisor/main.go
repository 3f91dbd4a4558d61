// Command claude-supervisor spawns and supervises one or more coding-agent
// subprocesses, evaluating every tool call they make against a policy
// engine and persisting an audit trail of the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"claude-supervisor/internal/advisor"
	"claude-supervisor/internal/audit"
	"claude-supervisor/internal/config"
	"claude-supervisor/internal/ipc"
	"claude-supervisor/internal/knowledge"
	"claude-supervisor/internal/multisession"
	"claude-supervisor/internal/policy"
	"claude-supervisor/internal/reconstruct"
	"claude-supervisor/internal/runner"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	args = initLogging(args)

	fs := flag.NewFlagSet("claude-supervisor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration YAML file (default: search order in docs)")
	defaultDB := "audit.db"
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		defaultDB = filepath.Join(dataDir, "claude-supervisor", "audit.db")
	} else if home, err := os.UserHomeDir(); err == nil {
		defaultDB = filepath.Join(home, ".local", "share", "claude-supervisor", "audit.db")
	}
	dbPath := fs.String("db", defaultDB, "path to the audit SQLite database")
	auditSocket := fs.String("audit-socket", "", "path to the audit real-time notification socket (disabled if empty)")
	ipcSocket := fs.String("ipc-socket", ipc.DefaultSocketPath, "path to the hook<->supervisor escalation socket")
	maxSessions := fs.Int("max-sessions", 1, "maximum number of agent sessions to run concurrently")
	tasksFlag := fs.String("tasks", "", "comma-separated list of tasks to run (each spawns one session)")
	taskFlag := fs.String("task", "", "single task to run; ignored if -tasks is set")
	binary := fs.String("agent-binary", runner.DefaultBinary, "agent executable to spawn for each session")
	sessionLog := fs.String("session-log", "", "path to a session-log file to tail live for stuck-pattern detection (disabled if empty)")
	projectDir := fs.String("project-dir", "", "project directory whose persisted memory facts feed advisor escalations (default: current directory)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tasks := collectTasks(*tasksFlag, *taskFlag)
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "claude-supervisor: no task specified; pass -task or -tasks")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	store, err := audit.NewStore(audit.StoreConfig{DSN: *dbPath, SocketPath: *auditSocket})
	if err != nil {
		slog.Error("failed to open audit store", "error", err)
		return 1
	}
	defer store.Close()

	advisorClient, err := loadAdvisor(cfg)
	if err != nil {
		slog.Warn("advisor unavailable, escalations will fail safe to deny", "error", err)
	}

	policyEngine := cfg.BuildEngine()

	ipcServer := ipc.NewServer(*ipcSocket, escalationHandler(policyEngine))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ipcServer.Start(ctx); err != nil {
		slog.Warn("failed to start ipc server, hooks will run policy-only", "error", err)
	} else {
		defer ipcServer.Stop()
	}

	if *sessionLog != "" {
		go tailSessionLog(ctx, *sessionLog)
	}

	spawner := func(task string) (*runner.Process, error) {
		return runner.Spawn(*binary, runner.Builder{Prompt: task})
	}

	sup := multisession.New(*maxSessions, policyEngine, spawner)
	if advisorClient != nil {
		sup.WithAdvisor(advisorClient)
	}
	sup.WithKnowledge(loadKnowledge(*projectDir, *sessionLog))

	results, err := sup.SpawnAndWaitAll(ctx, tasks)
	if err != nil {
		slog.Error("failed to spawn sessions", "error", err)
		return 1
	}

	exitCode := 0
	for _, result := range results {
		recordResult(ctx, store, result)
		if !result.Succeeded() {
			exitCode = 1
		}
	}

	stats := sup.Stats()
	slog.Info("run complete",
		"sessions_completed", stats.SessionsCompleted,
		"sessions_failed", stats.SessionsFailed,
		"total_tool_calls", stats.TotalToolCalls,
		"total_approvals", stats.TotalApprovals,
		"total_denials", stats.TotalDenials,
	)

	return exitCode
}

func collectTasks(tasksFlag, taskFlag string) []string {
	if tasksFlag != "" {
		var tasks []string
		for _, t := range strings.Split(tasksFlag, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tasks = append(tasks, t)
			}
		}
		return tasks
	}
	if taskFlag != "" {
		return []string{taskFlag}
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func loadAdvisor(cfg *config.Config) (advisor.Client, error) {
	return advisor.FromConfig(cfg.AI)
}

// escalationHandler lets hook processes that can't resolve a PreToolUse
// decision locally consult the same policy engine the running supervisor
// uses, over the IPC bridge.
func escalationHandler(pol *policy.Engine) ipc.Handler {
	return func(ctx context.Context, req ipc.EscalationRequest) ipc.EscalationResponse {
		decision := pol.Evaluate(req.ToolName, req.ToolInput)
		switch decision.Kind {
		case policy.Allow:
			return ipc.AllowResponse()
		default:
			return ipc.DenyResponse(decision.Reason)
		}
	}
}

// loadKnowledge builds the aggregator folded into every escalation prompt:
// persisted per-project memory facts, plus whatever question/answer history
// can be extracted from an already-written session log.
func loadKnowledge(projectDir, sessionLog string) *knowledge.Aggregator {
	agg := knowledge.NewAggregator()

	dir := projectDir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	if dir != "" {
		agg.AddSource(knowledge.LoadMemorySource(dir))
	}

	if sessionLog != "" {
		if entries, err := readSessionLog(sessionLog); err != nil {
			slog.Warn("failed to load session history for knowledge context", "path", sessionLog, "error", err)
		} else {
			agg.AddSource(knowledge.NewHistorySource(entries))
		}
	}

	return agg
}

func readSessionLog(path string) ([]reconstruct.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := reconstruct.ParseJSONLFile(f)
	if err != nil {
		return nil, err
	}

	entries := make([]reconstruct.Entry, 0, len(parsed))
	for _, e := range parsed {
		entries = append(entries, *e)
	}
	return entries, nil
}

// tailSessionLog live-tails a session-log file and watches the replayed
// tool-call timeline for stuck repetitive-action patterns, logging each one
// it finds. It runs until ctx is cancelled.
func tailSessionLog(ctx context.Context, path string) {
	recon := reconstruct.New()
	detector := reconstruct.NewPatternDetector()
	tailer := reconstruct.NewTailer(path, recon)

	go func() {
		if err := tailer.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("session log tailer stopped", "path", path, "error", err)
		}
	}()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pattern, stuck := recon.DetectStuckPattern(detector); stuck {
				slog.Warn("stuck pattern detected in session log", "path", path, "pattern", pattern.String())
			}
		}
	}
}

func recordResult(ctx context.Context, store *audit.Store, result multisession.SessionResult) {
	session := audit.NewSession(result.Task)
	session.ID = result.ID
	if err := store.StartSession(ctx, session); err != nil {
		slog.Warn("failed to record session start", "session_id", result.ID, "error", err)
	}

	outcome := "completed"
	switch {
	case result.Cancelled:
		outcome = "cancelled"
	case result.Err != nil:
		outcome = "error"
	case !result.Succeeded():
		outcome = "denied"
	}

	if err := store.EndSession(ctx, result.ID, outcome); err != nil {
		slog.Warn("failed to record session end", "session_id", result.ID, "error", err)
	}

	metrics := audit.NewMetrics(result.ID)
	metrics.APICalls = uint64(result.Stats.ToolCalls)
	if err := store.UpsertMetrics(ctx, metrics); err != nil {
		slog.Warn("failed to record session metrics", "session_id", result.ID, "error", err)
	}
}
