package hook

import "encoding/json"

// PermissionDecision is the verdict a PreToolUse response carries.
type PermissionDecision string

const (
	PermissionAllow PermissionDecision = "allow"
	PermissionDeny  PermissionDecision = "deny"
	PermissionAsk   PermissionDecision = "ask"
)

// PreToolUseResponse is the JSON payload a hook writes to stdout for a
// PreToolUse event.
type PreToolUseResponse struct {
	PermissionDecision PermissionDecision `json:"permissionDecision"`
	Reason              string            `json:"reason,omitempty"`
	UpdatedInput        json.RawMessage   `json:"updatedInput,omitempty"`
}

// AllowPreToolUse permits the tool call unchanged.
func AllowPreToolUse() PreToolUseResponse {
	return PreToolUseResponse{PermissionDecision: PermissionAllow}
}

// DenyPreToolUse blocks the tool call with an explanatory reason.
func DenyPreToolUse(reason string) PreToolUseResponse {
	return PreToolUseResponse{PermissionDecision: PermissionDeny, Reason: reason}
}

// AskPreToolUse defers the tool call to the interactive permission prompt,
// carrying the escalation reason for display.
func AskPreToolUse(reason string) PreToolUseResponse {
	return PreToolUseResponse{PermissionDecision: PermissionAsk, Reason: reason}
}
