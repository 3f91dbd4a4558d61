package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"claude-supervisor/internal/advisor"
	"claude-supervisor/internal/event"
	"claude-supervisor/internal/knowledge"
	"claude-supervisor/internal/policy"
	"claude-supervisor/internal/state"
)

// Result is the outcome of running a supervised session to completion.
type Result struct {
	Kind      state.ResultKind
	Reason    string
	SessionID string
	CostUSD   *float64
}

// Supervisor connects a policy engine, an agent event stream, and an
// optional attached process and advisor client, and drives the supervision
// loop.
type Supervisor struct {
	process   *Process
	policy    *policy.Engine
	events    <-chan *event.Event
	machine   *state.Machine
	advisor   advisor.Client
	knowledge *knowledge.Aggregator

	sessionID string
}

// New creates a supervisor that only consumes events; the caller owns
// process lifecycle separately.
func New(p *policy.Engine, events <-chan *event.Event) *Supervisor {
	return &Supervisor{policy: p, events: events, machine: state.NewMachine()}
}

// WithAdvisor attaches an advisor client used to resolve escalations.
func (s *Supervisor) WithAdvisor(c advisor.Client) *Supervisor {
	s.advisor = c
	return s
}

// WithKnowledge attaches a project knowledge aggregator whose context is
// folded into every escalation prompt sent to the advisor.
func (s *Supervisor) WithKnowledge(k *knowledge.Aggregator) *Supervisor {
	s.knowledge = k
	return s
}

// WithProcess attaches the subprocess this supervisor should terminate on a
// deny decision.
func (s *Supervisor) WithProcess(p *Process) *Supervisor {
	s.process = p
	return s
}

// FromProcess builds a supervisor wired directly to a spawned process: it
// takes the process's stdout, starts the stream parser, and returns a fully
// configured supervisor.
func FromProcess(p *Process, pol *policy.Engine) (*Supervisor, error) {
	stdout := p.TakeStdout()
	if stdout == nil {
		return nil, fmt.Errorf("process stdout not available")
	}
	events := IntoChannel(stdout, DefaultChannelBuffer)
	return New(pol, events).WithProcess(p), nil
}

// State returns the current session state.
func (s *Supervisor) State() state.SessionState { return s.machine.State() }

// Stats returns the accumulated session stats.
func (s *Supervisor) Stats() state.Stats { return s.machine.Stats() }

// SessionID returns the session id learned from the event stream, if any.
func (s *Supervisor) SessionID() string { return s.sessionID }

// eventAction is the internal verdict from processing one event.
type eventAction struct {
	kind     actionKind
	result   Result
	toolUse  *event.ToolUse
	reason   string
}

type actionKind int

const (
	actionContinue actionKind = iota
	actionComplete
	actionKill
	actionEscalate
)

// Run drives the supervision loop to completion, terminating the attached
// process (if any) on a deny decision.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	s.machine.Transition(state.Running)

	for {
		ev, ok := <-s.events
		if !ok {
			s.machine.Transition(state.Completed)
			return Result{Kind: state.ResultProcessExited}, nil
		}

		action := s.handleEvent(ev)
		switch action.kind {
		case actionContinue:
			continue
		case actionComplete:
			s.machine.Transition(state.Completed)
			return action.result, nil
		case actionKill:
			s.machine.Transition(state.Failed)
			if s.process != nil {
				if err := s.process.GracefulTerminate(DefaultTerminateTimeout); err != nil {
					return Result{}, fmt.Errorf("terminate process: %w", err)
				}
			}
			return action.result, nil
		case actionEscalate:
			verdict, denyReason := s.resolveEscalation(ctx, action.toolUse, action.reason)
			if verdict {
				s.machine.RecordApproval()
				s.machine.Transition(state.Running)
				continue
			}
			s.machine.RecordDenial()
			s.machine.Transition(state.Failed)
			if s.process != nil {
				if err := s.process.GracefulTerminate(DefaultTerminateTimeout); err != nil {
					return Result{}, fmt.Errorf("terminate process: %w", err)
				}
			}
			return Result{Kind: state.ResultKilled, Reason: denyReason}, nil
		}
	}
}

func (s *Supervisor) handleEvent(ev *event.Event) eventAction {
	if id, ok := ev.SessionID(); ok {
		s.sessionID = id
	}

	switch ev.Type {
	case event.TypeSystem:
		slog.Info("session initialized", "session_id", ev.System.SessionID, "model", ev.System.Model, "tools", ev.System.Tools)
		return eventAction{kind: actionContinue}
	case event.TypeToolUse:
		s.machine.RecordToolCall()
		return s.evaluateToolUse(ev.ToolUse)
	case event.TypeResult:
		slog.Info("session completed", "session_id", ev.Result.SessionID, "is_error", ev.Result.IsError)
		return eventAction{kind: actionComplete, result: Result{
			Kind:      state.ResultProcessExited,
			SessionID: ev.Result.SessionID,
			CostUSD:   ev.Result.CostUSD,
		}}
	case event.TypeMessageStop:
		return eventAction{kind: actionComplete, result: Result{Kind: state.ResultProcessExited, SessionID: s.sessionID}}
	default:
		return eventAction{kind: actionContinue}
	}
}

func (s *Supervisor) evaluateToolUse(tu *event.ToolUse) eventAction {
	decision := s.policy.Evaluate(tu.Name, tu.Input)

	switch decision.Kind {
	case policy.Allow:
		s.machine.RecordApproval()
		slog.Debug("tool call allowed", "tool", tu.Name)
		return eventAction{kind: actionContinue}
	case policy.Deny:
		s.machine.RecordDenial()
		slog.Warn("tool call denied", "tool", tu.Name, "reason", decision.Reason)
		return eventAction{kind: actionKill, result: Result{Kind: state.ResultKilled, Reason: decision.Reason}}
	case policy.Escalate:
		s.machine.Transition(state.WaitingForSupervisor)
		if s.advisor == nil {
			s.machine.RecordDenial()
			reason := fmt.Sprintf("escalation denied (no advisor configured): %s", decision.Reason)
			slog.Warn("tool call escalated but no advisor available", "tool", tu.Name, "reason", decision.Reason)
			return eventAction{kind: actionKill, result: Result{Kind: state.ResultKilled, Reason: reason}}
		}
		slog.Info("tool call escalated to advisor", "tool", tu.Name, "id", tu.ID, "reason", decision.Reason)
		return eventAction{kind: actionEscalate, toolUse: tu, reason: decision.Reason}
	default:
		return eventAction{kind: actionContinue}
	}
}

// resolveEscalation consults the advisor and returns whether to allow the
// call and, if not, the deny reason.
func (s *Supervisor) resolveEscalation(ctx context.Context, tu *event.ToolUse, reason string) (bool, string) {
	escContext := fmt.Sprintf("Escalation reason: %s\nSession: %s", reason, orUnknown(s.sessionID))
	escContext += s.knowledgeContext(reason)

	verdict, err := s.advisor.AskSupervisor(ctx, tu.Name, tu.Input, escContext)
	if err != nil {
		slog.Error("advisor error, denying for safety", "tool", tu.Name, "error", err)
		return false, fmt.Sprintf("advisor error: %v", err)
	}

	switch verdict.Kind {
	case advisor.DecisionAllow:
		slog.Info("advisor allowed tool call", "tool", tu.Name, "reason", verdict.Reason)
		return true, ""
	case advisor.DecisionGuide:
		slog.Info("advisor provided guidance, allowing", "tool", tu.Name, "reason", verdict.Reason, "guidance", verdict.Guidance)
		return true, ""
	default:
		slog.Warn("advisor denied tool call", "tool", tu.Name, "reason", verdict.Reason)
		return false, verdict.Reason
	}
}

// knowledgeContext folds project knowledge relevant to reason into an
// escalation prompt suffix, preferring targeted facts over the full
// aggregated context when any source can answer the reason directly.
func (s *Supervisor) knowledgeContext(reason string) string {
	if s.knowledge == nil || !s.knowledge.HasKnowledge() {
		return ""
	}

	if facts := s.knowledge.Query(reason); len(facts) > 0 {
		var b strings.Builder
		b.WriteString("\n\nRelevant project knowledge:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- (%s) %s\n", f.Source, f.Content)
		}
		return b.String()
	}

	return "\n\nProject knowledge:\n\n" + s.knowledge.BuildContext()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
