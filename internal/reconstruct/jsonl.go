// Package reconstruct rebuilds a session's tool-call timeline from its
// persisted newline-delimited JSON session log, and detects repetitive
// patterns in that timeline that indicate a stuck agent.
package reconstruct

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// EntryType discriminates one line of a session log.
type EntryType string

const (
	EntryUser                EntryType = "user"
	EntryAssistant            EntryType = "assistant"
	EntryProgress             EntryType = "progress"
	EntrySystem                EntryType = "system"
	EntryFileHistorySnapshot   EntryType = "file-history-snapshot"
	EntrySummary               EntryType = "summary"
	EntryQueueOperation        EntryType = "queue-operation"
	EntryUnknown               EntryType = ""
)

// ContentBlock is one block of an assistant message's content array.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
}

// MessageContent is either a bare string or a content-block array,
// depending on the message's role and client version.
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// AsText flattens the content to its text representation: the string
// directly if present, or the concatenation of the blocks' Text fields.
// Thinking blocks are not included.
func (c MessageContent) AsText() string {
	if c.Text != "" {
		return c.Text
	}
	var sb strings.Builder
	for _, b := range c.Blocks {
		if b.Text != "" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("message content is neither a string nor a block array: %w", err)
	}
	c.Blocks = blocks
	return nil
}

// AssistantMessage is the message payload of an assistant entry.
type AssistantMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
	Model   string         `json:"model,omitempty"`
}

// UserMessage is the message payload of a user entry.
type UserMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// UserEntry is a user-authored (or tool-result) line in the session log.
type UserEntry struct {
	UUID            string          `json:"uuid"`
	ParentUUID       string          `json:"parentUuid"`
	SessionID        string          `json:"sessionId"`
	Timestamp        string          `json:"timestamp"`
	Message          UserMessage     `json:"message"`
	UserType         string          `json:"userType,omitempty"`
	Cwd              string          `json:"cwd,omitempty"`
	Version          string          `json:"version,omitempty"`
	SourceToolUseID  string          `json:"sourceToolUseId,omitempty"`
	ToolUseResult    json.RawMessage `json:"toolUseResult,omitempty"`
}

// AssistantEntry is an agent-authored line in the session log.
type AssistantEntry struct {
	UUID       string           `json:"uuid"`
	ParentUUID string           `json:"parentUuid"`
	SessionID  string           `json:"sessionId"`
	Timestamp  string           `json:"timestamp"`
	Message    AssistantMessage `json:"message"`
	Cwd        string           `json:"cwd,omitempty"`
	Version    string           `json:"version,omitempty"`
}

// ProgressEntry marks an intermediate progress update.
type ProgressEntry struct {
	UUID      string `json:"uuid"`
	Timestamp string `json:"timestamp"`
}

// SystemEntry marks a system-originated line.
type SystemEntry struct {
	UUID      string `json:"uuid"`
	Timestamp string `json:"timestamp"`
	Subtype   string `json:"subtype,omitempty"`
}

// FileSnapshotEntry records a point-in-time snapshot of file state.
type FileSnapshotEntry struct {
	MessageID string `json:"messageId"`
	Timestamp string `json:"timestamp"`
}

// SummaryEntry is a generated conversation summary.
type SummaryEntry struct {
	LeafUUID string `json:"leafUuid"`
	Summary  string `json:"summary"`
}

// QueueOperationEntry records a queue management action; it carries no
// identifying UUID field the reconstructor indexes by.
type QueueOperationEntry struct {
	Operation string `json:"operation,omitempty"`
}

// Entry is one parsed line of a session log, discriminated by Type. Exactly
// one of the typed fields is populated per entry type; Unknown entries
// leave them all nil, preserving the raw line for forward compatibility.
type Entry struct {
	Type         EntryType
	User         *UserEntry
	Assistant    *AssistantEntry
	Progress     *ProgressEntry
	System       *SystemEntry
	FileSnapshot *FileSnapshotEntry
	Summary      *SummaryEntry
	Queue        *QueueOperationEntry
	Raw          json.RawMessage
}

// UUID returns the entry's identifying UUID, if its type carries one.
func (e *Entry) UUID() (string, bool) {
	switch {
	case e.User != nil:
		return e.User.UUID, true
	case e.Assistant != nil:
		return e.Assistant.UUID, true
	case e.Progress != nil:
		return e.Progress.UUID, true
	case e.System != nil:
		return e.System.UUID, true
	case e.Summary != nil:
		return e.Summary.LeafUUID, true
	case e.FileSnapshot != nil:
		return e.FileSnapshot.MessageID, true
	default:
		return "", false
	}
}

type entryEnvelope struct {
	Type EntryType `json:"type"`
}

// ParseEntry decodes one session-log line into a typed Entry.
func ParseEntry(line []byte) (*Entry, error) {
	var env entryEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}

	e := &Entry{Type: env.Type, Raw: append([]byte(nil), line...)}

	switch env.Type {
	case EntryUser:
		var u UserEntry
		if err := json.Unmarshal(line, &u); err != nil {
			return nil, err
		}
		e.User = &u
	case EntryAssistant:
		var a AssistantEntry
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, err
		}
		e.Assistant = &a
	case EntryProgress:
		var p ProgressEntry
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, err
		}
		e.Progress = &p
	case EntrySystem:
		var s SystemEntry
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, err
		}
		e.System = &s
	case EntryFileHistorySnapshot:
		var f FileSnapshotEntry
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, err
		}
		e.FileSnapshot = &f
	case EntrySummary:
		var s SummaryEntry
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, err
		}
		e.Summary = &s
	case EntryQueueOperation:
		var q QueueOperationEntry
		if err := json.Unmarshal(line, &q); err != nil {
			return nil, err
		}
		e.Queue = &q
	default:
		// Unrecognized entry types are kept as raw, type-tagged data.
	}

	return e, nil
}

// ParseJSONLContent parses each non-blank line of content into an Entry.
// A malformed line is logged and skipped; it never aborts the parse.
func ParseJSONLContent(content string) []*Entry {
	var entries []*Entry
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := ParseEntry([]byte(line))
		if err != nil {
			slog.Warn("skipping malformed session log line", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// ParseJSONLFile reads and parses an entire session log from r.
func ParseJSONLFile(r io.Reader) ([]*Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	return ParseJSONLContent(string(data)), nil
}
