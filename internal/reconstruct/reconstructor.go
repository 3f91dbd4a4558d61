package reconstruct

import "encoding/json"

// ToolCallRecord pairs a tool invocation with its eventual result.
type ToolCallRecord struct {
	ToolUseID string
	ToolName  string
	Input     json.RawMessage
	Result    json.RawMessage
	IsError   bool
	Timestamp string
}

// Reconstructor rebuilds a session's tool-call timeline by replaying its
// session-log entries in order, correlating assistant tool-use requests
// with the user-role tool-result entries that answer them.
type Reconstructor struct {
	entriesByUUID map[string]*Entry
	toolCalls     []ToolCallRecord
	pendingTools  map[string]ToolCallRecord
}

// New returns an empty Reconstructor.
func New() *Reconstructor {
	return &Reconstructor{
		entriesByUUID: map[string]*Entry{},
		pendingTools:  map[string]ToolCallRecord{},
	}
}

// ProcessEntry updates internal state from one session-log entry.
func (r *Reconstructor) ProcessEntry(e *Entry) {
	if uuid, ok := e.UUID(); ok {
		r.entriesByUUID[uuid] = e
	}

	switch {
	case e.Assistant != nil:
		r.processAssistant(e.Assistant)
	case e.User != nil:
		r.processUser(e.User)
	}
}

// ProcessEntries replays entries in order.
func (r *Reconstructor) ProcessEntries(entries []*Entry) {
	for _, e := range entries {
		r.ProcessEntry(e)
	}
}

// ToolCalls returns all completed tool calls, in the order their results
// arrived.
func (r *Reconstructor) ToolCalls() []ToolCallRecord { return r.toolCalls }

// PendingToolCalls returns tool calls awaiting a result.
func (r *Reconstructor) PendingToolCalls() []ToolCallRecord {
	pending := make([]ToolCallRecord, 0, len(r.pendingTools))
	for _, rec := range r.pendingTools {
		pending = append(pending, rec)
	}
	return pending
}

// GetEntry looks up a processed entry by its UUID.
func (r *Reconstructor) GetEntry(uuid string) (*Entry, bool) {
	e, ok := r.entriesByUUID[uuid]
	return e, ok
}

// EntryCount returns the number of distinct entries processed.
func (r *Reconstructor) EntryCount() int { return len(r.entriesByUUID) }

// RecentToolCalls returns the last n completed tool calls, in original order.
func (r *Reconstructor) RecentToolCalls(n int) []ToolCallRecord {
	start := len(r.toolCalls) - n
	if start < 0 {
		start = 0
	}
	return r.toolCalls[start:]
}

// Clear resets all accumulated state.
func (r *Reconstructor) Clear() {
	r.entriesByUUID = map[string]*Entry{}
	r.toolCalls = nil
	r.pendingTools = map[string]ToolCallRecord{}
}

// DetectStuckPattern runs detector over the completed tool-call timeline.
func (r *Reconstructor) DetectStuckPattern(detector *PatternDetector) (StuckPattern, bool) {
	return detector.Detect(r.toolCalls)
}

func (r *Reconstructor) processAssistant(a *AssistantEntry) {
	for _, block := range a.Message.Content {
		if block.Type != "tool_use" {
			continue
		}
		r.pendingTools[block.ID] = ToolCallRecord{
			ToolUseID: block.ID,
			ToolName:  block.Name,
			Input:     block.Input,
			Timestamp: a.Timestamp,
		}
	}
}

func (r *Reconstructor) processUser(u *UserEntry) {
	if u.SourceToolUseID == "" {
		return
	}
	record, ok := r.pendingTools[u.SourceToolUseID]
	if !ok {
		return
	}
	delete(r.pendingTools, u.SourceToolUseID)

	record.Result = u.ToolUseResult
	record.IsError = resultIsError(u.ToolUseResult)
	r.toolCalls = append(r.toolCalls, record)
}

func resultIsError(result json.RawMessage) bool {
	if len(result) == 0 {
		return false
	}
	var parsed struct {
		IsError bool `json:"is_error"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return false
	}
	return parsed.IsError
}
