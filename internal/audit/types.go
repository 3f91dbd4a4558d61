// Package audit persists a record of supervised sessions,
// their tool-use decisions, and resource usage to an embedded SQL database,
// and notifies any connected listeners in real time.
package audit

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event row.
type EventType string

const (
	EventSessionStart  EventType = "session_start"
	EventSessionEnd    EventType = "session_end"
	EventToolUse       EventType = "tool_use"
	EventPolicyDecision EventType = "policy_decision"
	EventAIEscalation  EventType = "ai_escalation"
	EventError         EventType = "error"
)

// Decision mirrors a policy or advisor verdict for storage.
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionDeny     Decision = "deny"
	DecisionEscalate Decision = "escalate"
)

// Event is one row of the audit log.
type Event struct {
	ID        string
	SessionID string
	Timestamp time.Time
	EventType EventType
	ToolName  string
	ToolInput string // JSON text, empty if not applicable
	Decision  Decision
	Reason    string
}

// EventBuilder assembles an Event with optional fields, mirroring the
// supervisor's own fluent construction style.
type EventBuilder struct {
	event Event
}

// NewEventBuilder starts a builder for an event in sessionID of the given
// type, stamped with the current time.
func NewEventBuilder(sessionID string, eventType EventType) *EventBuilder {
	return &EventBuilder{event: Event{
		ID:        "evt_" + uuid.New().String(),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		EventType: eventType,
	}}
}

func (b *EventBuilder) Timestamp(t time.Time) *EventBuilder { b.event.Timestamp = t; return b }
func (b *EventBuilder) ToolName(name string) *EventBuilder  { b.event.ToolName = name; return b }
func (b *EventBuilder) ToolInput(input string) *EventBuilder {
	b.event.ToolInput = input
	return b
}
func (b *EventBuilder) Decision(d Decision) *EventBuilder { b.event.Decision = d; return b }
func (b *EventBuilder) Reason(reason string) *EventBuilder {
	b.event.Reason = reason
	return b
}

// Build returns the assembled event.
func (b *EventBuilder) Build() Event { return b.event }

// Session is one supervised run.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Task      string
	Result    string
}

// NewSession starts a session for task, generating a fresh ID.
func NewSession(task string) Session {
	return Session{ID: uuid.New().String(), StartedAt: time.Now().UTC(), Task: task}
}

// Metrics tracks a session's token usage and estimated cost.
type Metrics struct {
	SessionID           string
	InputTokens         uint64
	OutputTokens        uint64
	APICalls            uint64
	CacheHits           uint64
	EstimatedCostCents  uint64
}

// NewMetrics returns zeroed metrics for sessionID.
func NewMetrics(sessionID string) Metrics {
	return Metrics{SessionID: sessionID}
}

// AddTokens accumulates input/output token counts, saturating at the
// largest uint64 instead of wrapping.
func (m *Metrics) AddTokens(input, output uint64) {
	if m.InputTokens > math.MaxUint64-input {
		m.InputTokens = math.MaxUint64
	} else {
		m.InputTokens += input
	}
	if m.OutputTokens > math.MaxUint64-output {
		m.OutputTokens = math.MaxUint64
	} else {
		m.OutputTokens += output
	}
}

// RecordAPICall increments the API call counter.
func (m *Metrics) RecordAPICall() { m.APICalls++ }

// RecordCacheHit increments the cache-hit counter.
func (m *Metrics) RecordCacheHit() { m.CacheHits++ }

// CalculateCost estimates cost in USD cents from token usage, using
// approximate pricing of $3/1M input tokens and $15/1M output tokens,
// rounded up to the nearest cent.
func (m *Metrics) CalculateCost() {
	inputCost := float64(m.InputTokens) * 0.3 / 1000.0
	outputCost := float64(m.OutputTokens) * 1.5 / 1000.0
	total := inputCost + outputCost
	m.EstimatedCostCents = uint64(math.Ceil(total))
}
