package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Engine evaluates tool invocations against a configured level, explicit
// allow/deny sets, and a blocklist of dangerous shell commands and sensitive
// file paths.
type Engine struct {
	level          Level
	allowedTools   map[string]struct{}
	deniedTools    map[string]struct{}
	escalatedTools map[string]struct{}
	sensitive      []string
	pathExceptions []string
	blocklist      *Blocklist
}

// New creates an engine at the given level with the default blocklist and
// the default sensitive-path list.
func New(level Level) *Engine {
	return &Engine{
		level:          level,
		allowedTools:   map[string]struct{}{},
		deniedTools:    map[string]struct{}{},
		escalatedTools: map[string]struct{}{},
		sensitive:      append([]string(nil), DefaultSensitivePaths...),
		blocklist:      NewDefaultBlocklist(),
	}
}

// WithBlocklist creates an engine at the given level using a caller-supplied
// blocklist instead of the default one.
func WithBlocklist(level Level, bl *Blocklist) *Engine {
	e := New(level)
	e.blocklist = bl
	return e
}

// Level returns the engine's configured strictness.
func (e *Engine) Level() Level { return e.level }

// Blocklist returns the engine's blocklist.
func (e *Engine) Blocklist() *Blocklist { return e.blocklist }

// AllowTool adds tool to the explicit allow set.
func (e *Engine) AllowTool(tool string) { e.allowedTools[tool] = struct{}{} }

// DenyTool adds tool to the explicit deny set.
func (e *Engine) DenyTool(tool string) { e.deniedTools[tool] = struct{}{} }

// EscalateTool adds tool to the explicit escalate set: calls to it always
// require supervisor approval, regardless of the configured level.
func (e *Engine) EscalateTool(tool string) { e.escalatedTools[tool] = struct{}{} }

// SetSensitivePaths overrides the default sensitive-path substrings.
func (e *Engine) SetSensitivePaths(paths []string) { e.sensitive = paths }

// AllowPathException exempts paths matching substr from the sensitive-path
// deny in evaluateFileWrite.
func (e *Engine) AllowPathException(substr string) {
	e.pathExceptions = append(e.pathExceptions, substr)
}

// Evaluate decides the outcome for a tool invocation. toolInput is the raw
// JSON object the agent passed to the tool.
func (e *Engine) Evaluate(toolName string, toolInput json.RawMessage) Decision {
	if _, denied := e.deniedTools[toolName]; denied {
		d := NewDeny(fmt.Sprintf("tool %q is explicitly denied", toolName))
		e.logDecision(toolName, d)
		return d
	}

	var toolDecision *Decision
	switch toolName {
	case "Bash", "bash":
		toolDecision = e.evaluateBash(toolInput)
	case "Write", "Edit", "write", "edit":
		toolDecision = e.evaluateFileWrite(toolInput)
	}
	if toolDecision != nil {
		e.logDecision(toolName, *toolDecision)
		return *toolDecision
	}

	if _, escalated := e.escalatedTools[toolName]; escalated {
		d := NewEscalate(fmt.Sprintf("tool %q is configured to always require supervisor approval", toolName))
		e.logDecision(toolName, d)
		return d
	}

	if _, allowed := e.allowedTools[toolName]; allowed {
		d := NewAllow()
		e.logDecision(toolName, d)
		return d
	}

	var d Decision
	switch e.level {
	case LevelModerate:
		d = NewEscalate(fmt.Sprintf("tool %q requires supervisor approval", toolName))
	case LevelStrict:
		d = NewEscalate(fmt.Sprintf("strict mode: tool %q requires supervisor approval", toolName))
	default:
		d = NewAllow()
	}
	e.logDecision(toolName, d)
	return d
}

func (e *Engine) evaluateBash(toolInput json.RawMessage) *Decision {
	var body struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(toolInput, &body); err != nil || body.Command == "" {
		return nil
	}

	rule := e.blocklist.Check(body.Command)
	if rule == nil {
		return nil
	}
	reason := fmt.Sprintf("Blocked %s command: %s (pattern: %s)",
		categoryName(rule.Category), rule.Description, body.Command)
	d := NewDeny(reason)
	return &d
}

func (e *Engine) evaluateFileWrite(toolInput json.RawMessage) *Decision {
	var body struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
	}
	if err := json.Unmarshal(toolInput, &body); err != nil {
		return nil
	}
	path := body.FilePath
	if path == "" {
		path = body.Path
	}
	if path == "" {
		return nil
	}

	for _, s := range e.sensitive {
		if !strings.Contains(path, s) {
			continue
		}
		if e.hasPathException(path) {
			continue
		}
		d := NewDeny(fmt.Sprintf("Writing to sensitive path is blocked: %s", path))
		return &d
	}
	return nil
}

func (e *Engine) hasPathException(path string) bool {
	for _, ex := range e.pathExceptions {
		if strings.Contains(path, ex) {
			return true
		}
	}
	return false
}

// logDecision logs the outcome at a level keyed by its severity: deny at
// warn, escalate at info, allow at debug.
func (e *Engine) logDecision(toolName string, d Decision) {
	attrs := []any{"tool", toolName, "decision", d.Kind.String()}
	if d.Reason != "" {
		attrs = append(attrs, "reason", d.Reason)
	}
	switch d.Kind {
	case Deny:
		slog.Warn("policy decision", attrs...)
	case Escalate:
		slog.Info("policy decision", attrs...)
	default:
		slog.Debug("policy decision", attrs...)
	}
}
