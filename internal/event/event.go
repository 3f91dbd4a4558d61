// Package event defines the agent's newline-delimited JSON wire events and
// the tool-call bookkeeping built on top of them.
package event

import "encoding/json"

// Type discriminates an Event's payload. Unknown values are preserved rather
// than rejected so a newer agent build never breaks an older supervisor.
type Type string

const (
	TypeSystem            Type = "system"
	TypeAssistant         Type = "assistant"
	TypeToolUse           Type = "tool_use"
	TypeToolResult        Type = "tool_result"
	TypeContentBlockStart Type = "content_block_start"
	TypeContentBlockDelta Type = "content_block_delta"
	TypeContentBlockStop  Type = "content_block_stop"
	TypeMessageStart      Type = "message_start"
	TypeMessageStop       Type = "message_stop"
	TypeResult            Type = "result"
	TypeUnknown           Type = ""
)

// System carries session identity, announced once at stream start.
type System struct {
	Subtype   string   `json:"subtype,omitempty"`
	SessionID string   `json:"session_id"`
	Cwd       string   `json:"cwd,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	Model     string   `json:"model,omitempty"`
}

// ToolUse is the agent's declared intent to invoke a named tool. The field
// is named id, not tool_use_id, matching the wire shape the agent emits at
// the top level of the event stream.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult reports the outcome of a prior ToolUse, linked by ToolUseID.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Result is the terminal event of a session.
type Result struct {
	SessionID    string   `json:"session_id"`
	Result       string   `json:"result,omitempty"`
	IsError      bool     `json:"is_error,omitempty"`
	CostUSD      *float64 `json:"cost_usd,omitempty"`
	DurationMs   *int64   `json:"duration_ms,omitempty"`
	DurationAPIMs *int64  `json:"duration_api_ms,omitempty"`
	NumTurns     *int     `json:"num_turns,omitempty"`
}

// Event is one line of the agent's event stream. Only the fields relevant to
// Type are populated; all others are left at their zero value. Content
// blocks, message framing, and assistant bodies are carried as opaque JSON
// since the supervisor never needs to interpret their contents directly.
type Event struct {
	Type       Type            `json:"type"`
	System     *System         `json:"-"`
	ToolUse    *ToolUse        `json:"-"`
	ToolResult *ToolResult     `json:"-"`
	Result     *Result         `json:"-"`
	Assistant  json.RawMessage `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// IsTerminal reports whether this event ends the session.
func (e *Event) IsTerminal() bool {
	return e.Type == TypeResult
}

// ToolName returns the invoked tool's name, if this is a ToolUse event.
func (e *Event) ToolName() (string, bool) {
	if e.ToolUse == nil {
		return "", false
	}
	return e.ToolUse.Name, true
}

// SessionID returns the session identifier carried by System or Result
// events, if present.
func (e *Event) SessionID() (string, bool) {
	switch {
	case e.System != nil:
		return e.System.SessionID, true
	case e.Result != nil:
		return e.Result.SessionID, true
	default:
		return "", false
	}
}

// envelope mirrors the wire shape so unmarshalling can dispatch on Type
// before committing to a concrete payload struct.
type envelope struct {
	Type Type `json:"type"`
}

// Parse decodes a single line of the agent's event stream. An unrecognised
// Type is returned as an Event whose Type keeps the wire value and whose Raw
// holds the original bytes; it is never an error on its own, matching the stream
// contract that a single line's shape never aborts the whole stream (that
// guarantee is enforced by the caller, which only treats malformed JSON,
// not an unknown type, as skippable).
func Parse(line []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, err
	}

	ev := &Event{Type: env.Type, Raw: append([]byte(nil), line...)}

	switch env.Type {
	case TypeSystem:
		var sys System
		if err := json.Unmarshal(line, &sys); err != nil {
			return nil, err
		}
		ev.System = &sys
	case TypeToolUse:
		var tu ToolUse
		if err := json.Unmarshal(line, &tu); err != nil {
			return nil, err
		}
		ev.ToolUse = &tu
	case TypeToolResult:
		var tr ToolResult
		if err := json.Unmarshal(line, &tr); err != nil {
			return nil, err
		}
		ev.ToolResult = &tr
	case TypeResult:
		var res Result
		if err := json.Unmarshal(line, &res); err != nil {
			return nil, err
		}
		ev.Result = &res
	case TypeAssistant:
		var body struct {
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(line, &body); err != nil {
			return nil, err
		}
		ev.Assistant = body.Message
	default:
		// Content-block framing and unrecognised types carry no fields the
		// supervisor acts on; the raw line is preserved for anyone who does.
	}

	return ev, nil
}
