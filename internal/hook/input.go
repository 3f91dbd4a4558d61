// Package hook implements the short-lived hook helper's side of the
// protocol: a single JSON object read from stdin drives one policy
// decision, written back to stdout as JSON with an exit code encoding the
// verdict (0 allow/ask, 2 deny).
package hook

import "encoding/json"

// Input is one hook event as delivered on stdin.
type Input struct {
	HookEventName   string          `json:"hook_event_name"`
	SessionID       string          `json:"session_id"`
	Cwd             string          `json:"cwd,omitempty"`
	TranscriptPath  string          `json:"transcript_path,omitempty"`
	PermissionMode  string          `json:"permission_mode,omitempty"`
	ToolName        string          `json:"tool_name,omitempty"`
	ToolUseID       string          `json:"tool_use_id,omitempty"`
	ToolInput       json.RawMessage `json:"tool_input,omitempty"`
	ToolResult      json.RawMessage `json:"tool_result,omitempty"`
	StopHookActive  *bool           `json:"stop_hook_active,omitempty"`
}

// IsPreToolUse reports whether this is a PreToolUse event.
func (i *Input) IsPreToolUse() bool { return i.HookEventName == "PreToolUse" }

// IsStop reports whether this is a Stop event.
func (i *Input) IsStop() bool { return i.HookEventName == "Stop" }

// ParseInput decodes one hook input from raw JSON.
func ParseInput(data []byte) (*Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}
