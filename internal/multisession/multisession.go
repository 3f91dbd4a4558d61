// Package multisession runs several supervised agent sessions in parallel,
// bounded by a configurable concurrency limit, sharing one policy engine
// and advisor client and aggregating their statistics.
package multisession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"claude-supervisor/internal/advisor"
	"claude-supervisor/internal/knowledge"
	"claude-supervisor/internal/policy"
	"claude-supervisor/internal/runner"
	"claude-supervisor/internal/state"
)

// ErrMaxSessionsReached means try_spawn_session found no free permit.
var ErrMaxSessionsReached = errors.New("maximum sessions reached")

// ErrSessionNotFound means no active session matches the given ID.
var ErrSessionNotFound = errors.New("session not found")

// Error wraps a multi-session operation failure with the session ID (if
// any) and the underlying sentinel.
type Error struct {
	Op        string
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("multisession: %s: %s: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("multisession: %s: %v", e.Op, e.Err)
}
func (e *Error) Unwrap() error { return e.Err }

// Spawner builds the subprocess-backed runner.Process for one session's
// task. Implementations typically wrap runner.Spawn with a runner.Builder
// derived from task.
type Spawner func(task string) (*runner.Process, error)

// SessionMeta describes one active session.
type SessionMeta struct {
	ID        string
	Task      string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// IsCancelled reports whether this session's cancellation has been
// requested. Since cancellation is asynchronous, a true result does not
// guarantee the session has yet observed it.
func (m *SessionMeta) IsCancelled() bool {
	return m.ctx.Err() != nil
}

// SessionResult is one session's terminal outcome.
type SessionResult struct {
	ID        string
	Task      string
	Result    runner.Result
	Cancelled bool
	Err       error
	Stats     state.Stats
}

// Succeeded reports whether the session completed without error or denial.
func (r SessionResult) Succeeded() bool {
	return r.Err == nil && !r.Cancelled && r.Result.Kind != state.ResultKilled
}

// AggregatedStats accumulates counters across every session that has
// completed so far.
type AggregatedStats struct {
	SessionsCompleted int
	SessionsFailed    int
	TotalToolCalls    int
	TotalApprovals    int
	TotalDenials      int
}

func (a *AggregatedStats) add(stats state.Stats, success bool) {
	if success {
		a.SessionsCompleted++
	} else {
		a.SessionsFailed++
	}
	a.TotalToolCalls += stats.ToolCalls
	a.TotalApprovals += stats.Approvals
	a.TotalDenials += stats.Denials
}

// Supervisor runs up to maxSessions sessions concurrently, each its own
// runner.Supervisor instance sharing the same policy engine and advisor.
type Supervisor struct {
	policy      *policy.Engine
	advisor     advisor.Client
	knowledge   *knowledge.Aggregator
	spawn       Spawner
	maxSessions int
	sem         *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*SessionMeta
	pending  int
	stats    AggregatedStats

	results chan SessionResult
}

// New returns a Supervisor bounded to maxSessions concurrent sessions,
// dispatching each session's process to spawn.
func New(maxSessions int, pol *policy.Engine, spawn Spawner) *Supervisor {
	return &Supervisor{
		policy:      pol,
		spawn:       spawn,
		maxSessions: maxSessions,
		sem:         semaphore.NewWeighted(int64(maxSessions)),
		sessions:    map[string]*SessionMeta{},
		results:     make(chan SessionResult, 256),
	}
}

// WithAdvisor attaches an advisor client shared by every spawned session.
func (s *Supervisor) WithAdvisor(c advisor.Client) *Supervisor {
	s.advisor = c
	return s
}

// WithKnowledge attaches a project knowledge aggregator shared by every
// spawned session's escalation prompts.
func (s *Supervisor) WithKnowledge(k *knowledge.Aggregator) *Supervisor {
	s.knowledge = k
	return s
}

// MaxSessions returns the configured concurrency limit.
func (s *Supervisor) MaxSessions() int { return s.maxSessions }

// ActiveCount returns the number of currently active sessions.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ActiveSessions returns metadata for all active sessions.
func (s *Supervisor) ActiveSessions() []*SessionMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*SessionMeta, 0, len(s.sessions))
	for _, m := range s.sessions {
		out = append(out, m)
	}
	return out
}

// GetSession returns metadata for a specific active session.
func (s *Supervisor) GetSession(id string) (*SessionMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	return m, ok
}

// Policy returns the shared policy engine.
func (s *Supervisor) Policy() *policy.Engine { return s.policy }

// Stats returns a snapshot of the aggregated statistics.
func (s *Supervisor) Stats() AggregatedStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// HasPending reports whether any session is active or has an unconsumed
// result waiting in the queue.
func (s *Supervisor) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// SpawnSession acquires a concurrency permit, blocking until one is free or
// ctx is cancelled, and schedules the session.
func (s *Supervisor) SpawnSession(ctx context.Context, task string) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", &Error{Op: "spawn_session", Err: fmt.Errorf("%w: limit %d", ErrMaxSessionsReached, s.maxSessions)}
	}
	return s.spawnInternal(task), nil
}

// TrySpawnSession schedules the session only if a permit is immediately
// available, returning ErrMaxSessionsReached otherwise.
func (s *Supervisor) TrySpawnSession(task string) (string, error) {
	if !s.sem.TryAcquire(1) {
		return "", &Error{Op: "try_spawn_session", Err: fmt.Errorf("%w: limit %d", ErrMaxSessionsReached, s.maxSessions)}
	}
	return s.spawnInternal(task), nil
}

func (s *Supervisor) spawnInternal(task string) string {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	meta := &SessionMeta{ID: id, Task: task, StartedAt: time.Now(), ctx: ctx, cancel: cancel}

	s.mu.Lock()
	s.sessions[id] = meta
	s.pending++
	s.mu.Unlock()

	go s.runSession(ctx, cancel, id, task)

	slog.Info("session spawned", "session_id", id, "task", task)
	return id
}

func (s *Supervisor) runSession(ctx context.Context, cancel context.CancelFunc, id, task string) {
	defer s.sem.Release(1)
	defer cancel()

	result := s.executeSession(ctx, id, task)

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.results <- result
}

func (s *Supervisor) executeSession(ctx context.Context, id, task string) SessionResult {
	type spawned struct {
		process *runner.Process
		err     error
	}
	spawnDone := make(chan spawned, 1)
	go func() {
		process, err := s.spawn(task)
		spawnDone <- spawned{process, err}
	}()

	var process *runner.Process
	select {
	case <-ctx.Done():
		return SessionResult{ID: id, Task: task, Cancelled: true}
	case sp := <-spawnDone:
		if sp.err != nil {
			return SessionResult{ID: id, Task: task, Err: fmt.Errorf("spawn session process: %w", sp.err)}
		}
		process = sp.process
	}

	sup, err := runner.FromProcess(process, s.policy)
	if err != nil {
		return SessionResult{ID: id, Task: task, Err: fmt.Errorf("attach supervisor: %w", err)}
	}
	if s.advisor != nil {
		sup.WithAdvisor(s.advisor)
	}
	if s.knowledge != nil {
		sup.WithKnowledge(s.knowledge)
	}

	done := make(chan struct {
		result runner.Result
		err    error
	}, 1)
	go func() {
		res, err := sup.Run(ctx)
		done <- struct {
			result runner.Result
			err    error
		}{res, err}
	}()

	select {
	case <-ctx.Done():
		return SessionResult{ID: id, Task: task, Cancelled: true, Stats: sup.Stats()}
	case outcome := <-done:
		return SessionResult{ID: id, Task: task, Result: outcome.result, Err: outcome.err, Stats: sup.Stats()}
	}
}

// StopSession cancels one active session.
func (s *Supervisor) StopSession(id string) error {
	s.mu.Lock()
	meta, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return &Error{Op: "stop_session", SessionID: id, Err: ErrSessionNotFound}
	}
	meta.cancel()
	slog.Info("session stop requested", "session_id", id)
	return nil
}

// StopAll cancels every active session.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	metas := make([]*SessionMeta, 0, len(s.sessions))
	for _, m := range s.sessions {
		metas = append(metas, m)
	}
	s.mu.Unlock()

	for _, m := range metas {
		m.cancel()
		slog.Info("session stop requested", "session_id", m.ID)
	}
}

// WaitNext blocks for the next session to complete, returning false if no
// session is pending.
func (s *Supervisor) WaitNext(ctx context.Context) (SessionResult, bool) {
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return SessionResult{}, false
	}
	s.mu.Unlock()

	select {
	case result := <-s.results:
		s.mu.Lock()
		s.pending--
		s.stats.add(result.Stats, result.Succeeded())
		s.mu.Unlock()

		slog.Info("session completed", "session_id", result.ID, "task", result.Task, "success", result.Succeeded())
		return result, true
	case <-ctx.Done():
		return SessionResult{}, false
	}
}

// WaitAll blocks until every pending session has completed, returning all
// results in completion order.
func (s *Supervisor) WaitAll(ctx context.Context) []SessionResult {
	var results []SessionResult
	for {
		result, ok := s.WaitNext(ctx)
		if !ok {
			return results
		}
		results = append(results, result)
	}
}

// SpawnAndWaitAll spawns every task and waits for all of them to complete.
func (s *Supervisor) SpawnAndWaitAll(ctx context.Context, tasks []string) ([]SessionResult, error) {
	for _, task := range tasks {
		if _, err := s.SpawnSession(ctx, task); err != nil {
			return nil, err
		}
	}
	return s.WaitAll(ctx), nil
}
