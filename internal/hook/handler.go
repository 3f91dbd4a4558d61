package hook

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"claude-supervisor/internal/policy"
)

// Error distinguishes structural hook-input problems from a successful
// (possibly denying) decision.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("hook: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ErrUnknownEvent and ErrMissingToolName are returned (wrapped in *Error)
// for structurally invalid input.
var (
	ErrUnknownEvent    = fmt.Errorf("unknown hook event")
	ErrMissingToolName = fmt.Errorf("missing required field: tool_name")
)

// Result is the outcome of handling one hook input: the JSON line to write
// to stdout and whether the host runtime should treat this as a denial
// (exit code 2) rather than a pass-through (exit code 0).
type Result struct {
	Response   string
	ShouldDeny bool
}

// Handler evaluates hook events against a policy engine, the short-lived
// process analogue of runner.Supervisor's in-process event loop.
type Handler struct {
	policy     *policy.Engine
	completion *CompletionDetector
	iterations *IterationTracker
}

// New returns a Handler backed by the given policy engine, using the
// default completion-phrase lists and a fresh iteration tracker.
func New(p *policy.Engine) *Handler {
	return &Handler{policy: p, completion: DefaultCompletionDetector(), iterations: NewIterationTracker()}
}

// WithCompletionDetector overrides the default completion-phrase detector.
func (h *Handler) WithCompletionDetector(d *CompletionDetector) *Handler {
	h.completion = d
	return h
}

// Policy returns the handler's policy engine.
func (h *Handler) Policy() *policy.Engine { return h.policy }

// Iterations returns the handler's per-session iteration tracker.
func (h *Handler) Iterations() *IterationTracker { return h.iterations }

// HandleJSON decodes raw hook input and dispatches it.
func (h *Handler) HandleJSON(data []byte) (Result, error) {
	in, err := ParseInput(data)
	if err != nil {
		return Result{}, &Error{Op: "parse input", Err: err}
	}
	return h.Handle(in)
}

// Handle dispatches a parsed hook input to its event-specific handler.
func (h *Handler) Handle(in *Input) (Result, error) {
	switch in.HookEventName {
	case "PreToolUse":
		return h.handlePreToolUse(in)
	case "Stop":
		return h.handleStop(in)
	default:
		return Result{}, &Error{Op: "handle", Err: fmt.Errorf("%w: %s", ErrUnknownEvent, in.HookEventName)}
	}
}

func (h *Handler) handlePreToolUse(in *Input) (Result, error) {
	if in.ToolName == "" {
		return Result{}, &Error{Op: "handle pre_tool_use", Err: ErrMissingToolName}
	}

	toolInput := in.ToolInput
	if len(toolInput) == 0 {
		toolInput = json.RawMessage("{}")
	}

	decision := h.policy.Evaluate(in.ToolName, toolInput)

	var response PreToolUseResponse
	var shouldDeny bool

	switch decision.Kind {
	case policy.Allow:
		slog.Debug("tool call approved", "tool", in.ToolName)
		response = AllowPreToolUse()
	case policy.Deny:
		slog.Warn("tool call denied", "tool", in.ToolName, "reason", decision.Reason)
		response = DenyPreToolUse(decision.Reason)
		shouldDeny = true
	case policy.Escalate:
		slog.Info("tool call escalated", "tool", in.ToolName, "reason", decision.Reason)
		response = AskPreToolUse(decision.Reason)
	default:
		response = AllowPreToolUse()
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return Result{}, &Error{Op: "encode response", Err: err}
	}
	return Result{Response: string(payload), ShouldDeny: shouldDeny}, nil
}

func (h *Handler) handleStop(in *Input) (Result, error) {
	h.iterations.Increment(in.SessionID)

	response := AllowStop()
	slog.Debug("stop event allowed", "session_id", in.SessionID, "iteration", h.iterations.Get(in.SessionID))

	payload, err := json.Marshal(response)
	if err != nil {
		return Result{}, &Error{Op: "encode response", Err: err}
	}
	return Result{Response: string(payload), ShouldDeny: false}, nil
}
