package advisor

import (
	"context"
	"encoding/json"
	"testing"
)

type stubProvider struct {
	response string
	err      error
}

func (s *stubProvider) Generate(ctx context.Context, system, user string) (string, error) {
	return s.response, s.err
}

func TestAskSupervisorAllow(t *testing.T) {
	client := NewClient(&stubProvider{response: `{"decision": "ALLOW", "reason": "safe"}`})

	d, err := client.AskSupervisor(context.Background(), "Read", json.RawMessage(`{"file_path":"a.go"}`), "ctx")
	if err != nil {
		t.Fatalf("AskSupervisor: %v", err)
	}
	if d.Kind != DecisionAllow || d.Reason != "safe" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestAskSupervisorDeny(t *testing.T) {
	client := NewClient(&stubProvider{response: `{"decision": "DENY", "reason": "risky"}`})

	d, err := client.AskSupervisor(context.Background(), "Bash", json.RawMessage(`{"command":"rm -rf /"}`), "ctx")
	if err != nil {
		t.Fatalf("AskSupervisor: %v", err)
	}
	if d.Kind != DecisionDeny || d.Reason != "risky" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestAskSupervisorGuide(t *testing.T) {
	client := NewClient(&stubProvider{response: `{"decision": "GUIDE", "reason": "needs care", "guidance": "use --force-with-lease"}`})

	d, err := client.AskSupervisor(context.Background(), "Bash", json.RawMessage(`{"command":"git push --force"}`), "ctx")
	if err != nil {
		t.Fatalf("AskSupervisor: %v", err)
	}
	if d.Kind != DecisionGuide || d.Guidance != "use --force-with-lease" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestExtractJSONWithSurroundingProse(t *testing.T) {
	text := "Sure, here is my answer:\n```json\n{\"decision\": \"ALLOW\", \"reason\": \"fine\"}\n```\nLet me know if you need more."

	d, err := extractDecision(text)
	if err != nil {
		t.Fatalf("extractDecision: %v", err)
	}
	if d.Kind != DecisionAllow {
		t.Fatalf("Kind = %v, want DecisionAllow", d.Kind)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, err := extractDecision("no json here"); err == nil {
		t.Fatal("expected error for missing JSON object")
	}
}

func TestExtractJSONUnknownDecision(t *testing.T) {
	if _, err := extractDecision(`{"decision": "MAYBE", "reason": "?"}`); err == nil {
		t.Fatal("expected error for unrecognized decision value")
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		status  int
		attempt int
		want    bool
	}{
		{500, 0, true},
		{502, 1, true},
		{503, 2, true},
		{500, MaxRetries, false},
		{400, 0, false},
		{404, 0, false},
		{200, 0, false},
	}
	for _, c := range cases {
		if got := shouldRetry(c.status, c.attempt); got != c.want {
			t.Errorf("shouldRetry(%d, %d) = %v, want %v", c.status, c.attempt, got, c.want)
		}
	}
}

func TestBackoffFor(t *testing.T) {
	if backoffFor(0).Seconds() != 1 {
		t.Fatalf("backoffFor(0) = %v, want 1s", backoffFor(0))
	}
	if backoffFor(1).Seconds() != 2 {
		t.Fatalf("backoffFor(1) = %v, want 2s", backoffFor(1))
	}
	if backoffFor(2).Seconds() != 4 {
		t.Fatalf("backoffFor(2) = %v, want 4s", backoffFor(2))
	}
}
