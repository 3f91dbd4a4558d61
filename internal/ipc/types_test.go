package ipc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEscalationRequestSerializationRoundtrip(t *testing.T) {
	req := EscalationRequest{
		SessionID: "session-123",
		ToolName:  "Bash",
		ToolInput: json.RawMessage(`{"command":"ls -la"}`),
		Reason:    "Potentially dangerous command",
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded EscalationRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.SessionID != req.SessionID || decoded.ToolName != req.ToolName || decoded.Reason != req.Reason {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
}

func TestEscalationResponseAllowSerialization(t *testing.T) {
	data, err := json.Marshal(AllowResponse())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"decision":"allow"}` {
		t.Fatalf("got %s, want {\"decision\":\"allow\"}", data)
	}
}

func TestEscalationResponseDenySerialization(t *testing.T) {
	data, err := json.Marshal(DenyResponse("Command not allowed"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"decision":"deny"`) || !strings.Contains(string(data), `"reason":"Command not allowed"`) {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestEscalationResponseModifySerialization(t *testing.T) {
	data, err := json.Marshal(ModifyResponse(json.RawMessage(`{"command":"ls"}`)))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"decision":"modify"`) || !strings.Contains(string(data), `"updated_input"`) {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestEscalationRequestJSONLineFormat(t *testing.T) {
	req := EscalationRequest{
		SessionID: "abc",
		ToolName:  "Read",
		ToolInput: json.RawMessage(`{"path":"/etc/passwd"}`),
		Reason:    "Sensitive file access",
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "\n") {
		t.Fatal("expected single-line JSON with no embedded newlines")
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Milliseconds: 4000}
	if err.Error() != "ipc timeout after 4000ms" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestStopEscalationRequestSerializationRoundtrip(t *testing.T) {
	req := StopEscalationRequest{
		SessionID:      "session-123",
		FinalMessage:   "I've completed the task",
		TranscriptPath: "/home/user/.claude/projects/abc/conversation.jsonl",
		Task:           "Fix the auth bug",
		Iteration:      3,
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded StopEscalationRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != req {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
}

func TestStopEscalationResponseAllowSerialization(t *testing.T) {
	data, err := json.Marshal(StopEscalationResponse{Decision: StopDecisionAllow})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"decision":"allow"}` {
		t.Fatalf("got %s", data)
	}
}

func TestStopEscalationResponseContinueSerialization(t *testing.T) {
	data, err := json.Marshal(StopEscalationResponse{Decision: StopDecisionContinue, Reason: "Task incomplete, need to run tests"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"decision":"continue"`) || !strings.Contains(string(data), "Task incomplete") {
		t.Fatalf("unexpected json: %s", data)
	}
}
