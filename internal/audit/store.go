package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists sessions, events, and metrics to an embedded SQLite
// database and notifies any connected listeners of new events in real
// time. Writers are serialized through writeMu: SQLite allows only one
// writer at a time, and the supervisor's tool-call evaluation and the
// multi-session orchestrator's concurrent goroutines both write.
type Store struct {
	db         *sql.DB
	socketPath string
	listeners  map[int64]net.Conn
	nextID     int64
	mu         sync.RWMutex
	writeMu    sync.Mutex
}

// StoreConfig configures the audit store.
type StoreConfig struct {
	// DSN is the SQLite data source, typically a file path or ":memory:".
	DSN string

	// SocketPath is the path to a Unix socket for real-time event
	// notifications. Disabled when empty.
	SocketPath string
}

// NewStore opens (and if necessary creates) the audit database at cfg.DSN
// and applies the schema.
func NewStore(cfg StoreConfig) (*Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "audit.db"
	}

	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create audit directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, socketPath: cfg.SocketPath}

	if cfg.SocketPath != "" {
		if err := s.startSocketListener(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start socket listener: %w", err)
		}
	}

	return s, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(
		"INSERT INTO schema_version (version) SELECT ? WHERE NOT EXISTS (SELECT 1 FROM schema_version WHERE version = ?)",
		SchemaVersion, SchemaVersion,
	)
	return err
}

// DB returns the underlying connection for callers that need direct
// access (the package's tests use it to inspect the schema).
func (s *Store) DB() *sql.DB { return s.db }

// StartSession records a new session row.
func (s *Store) StartSession(ctx context.Context, sess Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, started_at, task) VALUES (?, ?, ?)",
		sess.ID, sess.StartedAt.Format(time.RFC3339Nano), sess.Task,
	)
	return err
}

// EndSession marks a session as finished with the given result summary.
func (s *Store) EndSession(ctx context.Context, sessionID, result string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ?, result = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), result, sessionID,
	)
	return err
}

// RecordEvent persists an event row and notifies any connected listeners.
func (s *Store) RecordEvent(ctx context.Context, ev Event) error {
	s.writeMu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, timestamp, event_type, tool_name, tool_input, decision, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.SessionID, ev.Timestamp.Format(time.RFC3339Nano), string(ev.EventType),
		ev.ToolName, ev.ToolInput, string(ev.Decision), ev.Reason,
	)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if payload, marshalErr := json.Marshal(ev); marshalErr == nil {
		s.notifyListeners(payload)
	}
	return nil
}

// UpsertMetrics writes the current snapshot of a session's resource usage,
// overwriting any prior row for the same session.
func (s *Store) UpsertMetrics(ctx context.Context, m Metrics) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (session_id, input_tokens, output_tokens, api_calls, cache_hits, estimated_cost_cents, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			api_calls = excluded.api_calls,
			cache_hits = excluded.cache_hits,
			estimated_cost_cents = excluded.estimated_cost_cents,
			updated_at = excluded.updated_at
	`,
		m.SessionID, m.InputTokens, m.OutputTokens, m.APICalls, m.CacheHits, m.EstimatedCostCents,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// QueryOptions filters an event query.
type QueryOptions struct {
	SessionID string
	EventType EventType
	Decision  Decision
	Since     time.Time
	Limit     int
}

// QueryEvents returns events matching opts, most recent first.
func (s *Store) QueryEvents(ctx context.Context, opts QueryOptions) ([]Event, error) {
	query := `SELECT id, session_id, timestamp, event_type, tool_name, tool_input, decision, reason FROM events WHERE 1=1`
	var args []any

	if opts.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, opts.SessionID)
	}
	if opts.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(opts.EventType))
	}
	if opts.Decision != "" {
		query += " AND decision = ?"
		args = append(args, string(opts.Decision))
	}
	if !opts.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, opts.Since.Format(time.RFC3339Nano))
	}
	query += " ORDER BY timestamp DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts string
		var toolName, toolInput, decision, reason sql.NullString
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ts, &ev.EventType, &toolName, &toolInput, &decision, &reason); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		ev.ToolName = toolName.String
		ev.ToolInput = toolInput.String
		ev.Decision = Decision(decision.String)
		ev.Reason = reason.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes all listener connections and the database handle, and
// removes the notification socket if one was created.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, conn := range s.listeners {
		conn.Close()
	}
	s.listeners = nil
	s.mu.Unlock()

	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}

	return s.db.Close()
}

// startSocketListener starts a Unix socket that streams newly recorded
// events to any connected client, one JSON object per line. Each accepted
// connection is registered under its own ID so a slow or closed client can
// be dropped independently of the others.
func (s *Store) startSocketListener() error {
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}

	s.listeners = map[int64]net.Conn{}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.registerListener(conn)
		}
	}()

	return nil
}

func (s *Store) registerListener(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = conn
}

// notifyListeners writes eventJSON, newline-terminated, to every connected
// listener. Writes happen in a goroutine so RecordEvent returns promptly;
// a listener that can't accept the write within its deadline is dropped.
func (s *Store) notifyListeners(eventJSON []byte) {
	s.mu.RLock()
	snapshot := make(map[int64]net.Conn, len(s.listeners))
	for id, conn := range s.listeners {
		snapshot[id] = conn
	}
	s.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	payload := append(append([]byte(nil), eventJSON...), '\n')

	go func() {
		unreachable := s.broadcast(snapshot, payload)
		if len(unreachable) == 0 {
			return
		}
		s.mu.Lock()
		for _, id := range unreachable {
			delete(s.listeners, id)
		}
		s.mu.Unlock()
	}()
}

// broadcast writes payload to every listener in snapshot, closing and
// returning the IDs of any that fail to accept it within the deadline.
func (s *Store) broadcast(snapshot map[int64]net.Conn, payload []byte) []int64 {
	var unreachable []int64
	for id, conn := range snapshot {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(payload); err != nil {
			conn.Close()
			unreachable = append(unreachable, id)
		}
	}
	return unreachable
}
