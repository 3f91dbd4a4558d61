// Package advisor escalates uncertain tool-use decisions to an external AI
// model and translates its answer into an allow/deny/guide verdict.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ConnectTimeout and RequestTimeout bound the HTTP round trip to the
// advisor provider.
const (
	ConnectTimeout = 10 * time.Second
	RequestTimeout = 30 * time.Second
	MaxRetries     = 3
)

// DecisionKind discriminates an advisor verdict.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionDeny
	DecisionGuide
)

// Decision is the advisor's answer for one escalated tool call.
type Decision struct {
	Kind     DecisionKind
	Reason   string
	Guidance string // populated for DecisionGuide
}

// decisionWire is the JSON shape the advisor model is instructed to emit.
type decisionWire struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Guidance string `json:"guidance,omitempty"`
}

// Client asks an advisor for a verdict on an escalated tool call.
type Client interface {
	AskSupervisor(ctx context.Context, toolName string, toolInput json.RawMessage, escalationContext string) (Decision, error)
}

// Provider generates free-text model output for a system/user prompt pair.
type Provider interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Error classifies advisor client failures.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("advisor: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

var ErrMissingAPIKey = errors.New("advisor API key not configured")

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	return &http.Client{Timeout: RequestTimeout, Transport: transport}
}

func shouldRetry(statusCode int, attempt int) bool {
	if attempt >= MaxRetries {
		return false
	}
	return statusCode >= 500 && statusCode < 600
}

func backoffFor(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// aiClient wires a Provider to the escalation prompt format and decodes its
// response into a Decision.
type aiClient struct {
	provider Provider
}

// NewClient wraps provider in a Client that formats escalation prompts and
// parses the advisor's JSON verdict.
func NewClient(provider Provider) Client {
	return &aiClient{provider: provider}
}

func (c *aiClient) AskSupervisor(ctx context.Context, toolName string, toolInput json.RawMessage, escalationContext string) (Decision, error) {
	pretty := toolInput
	var indented interface{}
	if err := json.Unmarshal(toolInput, &indented); err == nil {
		if b, err := json.MarshalIndent(indented, "", "  "); err == nil {
			pretty = b
		}
	}

	userMessage := fmt.Sprintf("Context: %s\n\nTool: %s\nInput: %s", escalationContext, toolName, string(pretty))

	text, err := c.provider.Generate(ctx, SupervisorSystemPrompt, userMessage)
	if err != nil {
		return Decision{}, &Error{Op: "generate", Err: err}
	}

	return extractDecision(text)
}

// extractJSON locates the first balanced brace-delimited object in text and
// unmarshals it into v. Advisor models occasionally wrap their JSON answer
// in prose despite instructions not to; this tolerates that.
func extractJSON(text string, v interface{}) error {
	start := -1
	for i, r := range text {
		if r == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return fmt.Errorf("no JSON object found in response: %s", text)
	}

	depth := 0
	end := -1
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end > 0 {
			break
		}
	}
	if end < 0 {
		return fmt.Errorf("unbalanced JSON object in response: %s", text)
	}

	return json.Unmarshal([]byte(text[start:end]), v)
}

func extractDecision(text string) (Decision, error) {
	var wire decisionWire
	if err := extractJSON(text, &wire); err != nil {
		return Decision{}, &Error{Op: "parse", Err: err}
	}

	switch wire.Decision {
	case "ALLOW":
		return Decision{Kind: DecisionAllow, Reason: wire.Reason}, nil
	case "DENY":
		return Decision{Kind: DecisionDeny, Reason: wire.Reason}, nil
	case "GUIDE":
		return Decision{Kind: DecisionGuide, Reason: wire.Reason, Guidance: wire.Guidance}, nil
	default:
		return Decision{}, &Error{Op: "parse", Err: fmt.Errorf("unrecognized decision value: %q", wire.Decision)}
	}
}
