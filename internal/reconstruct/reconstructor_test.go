package reconstruct

import "testing"

func assistantWithToolUse(uuid, toolID, toolName string) string {
	return `{"type":"assistant","uuid":"` + uuid + `","parentUuid":"parent-1","sessionId":"sess-1","timestamp":"2026-01-29T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"` + toolID + `","name":"` + toolName + `","input":{"path":"/tmp/test.txt"}}]},"cwd":"/tmp","version":"2.1.25"}`
}

func userWithToolResult(uuid, toolID, result string) string {
	return `{"type":"user","uuid":"` + uuid + `","parentUuid":"parent-1","sessionId":"sess-1","timestamp":"2026-01-29T10:00:01Z","message":{"role":"user","content":"Tool result"},"userType":"tool_result","cwd":"/tmp","version":"2.1.25","sourceToolUseId":"` + toolID + `","toolUseResult":` + result + `}`
}

func simpleUser(uuid string) string {
	return `{"type":"user","uuid":"` + uuid + `","parentUuid":null,"sessionId":"sess-1","timestamp":"2026-01-29T10:00:00Z","message":{"role":"user","content":"Hello"},"userType":"external","cwd":"/tmp","version":"2.1.25"}`
}

func mustParse(t *testing.T, line string) *Entry {
	t.Helper()
	e, err := ParseEntry([]byte(line))
	if err != nil {
		t.Fatalf("ParseEntry: %v", err)
	}
	return e
}

func TestNewReconstructorIsEmpty(t *testing.T) {
	r := New()
	if r.EntryCount() != 0 || len(r.ToolCalls()) != 0 || len(r.PendingToolCalls()) != 0 {
		t.Fatalf("expected empty reconstructor, got entries=%d tool_calls=%d pending=%d",
			r.EntryCount(), len(r.ToolCalls()), len(r.PendingToolCalls()))
	}
}

func TestProcessUserEntry(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, simpleUser("uuid-1")))

	if r.EntryCount() != 1 {
		t.Fatalf("EntryCount() = %d, want 1", r.EntryCount())
	}
	if _, ok := r.GetEntry("uuid-1"); !ok {
		t.Fatal("expected entry uuid-1 to be stored")
	}
}

func TestProcessAssistantWithToolUse(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-1", "tool-1", "Read")))

	if len(r.PendingToolCalls()) != 1 {
		t.Fatalf("len(PendingToolCalls()) = %d, want 1", len(r.PendingToolCalls()))
	}
	if len(r.ToolCalls()) != 0 {
		t.Fatalf("ToolCalls() should be empty, got %d", len(r.ToolCalls()))
	}
	pending := r.PendingToolCalls()[0]
	if pending.ToolUseID != "tool-1" || pending.ToolName != "Read" {
		t.Fatalf("unexpected pending record: %+v", pending)
	}
}

func TestToolCallMatchedWithResult(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-1", "tool-1", "Read")))
	if len(r.PendingToolCalls()) != 1 {
		t.Fatalf("expected 1 pending call")
	}

	r.ProcessEntry(mustParse(t, userWithToolResult("uuid-2", "tool-1", `{"content":"file contents"}`)))

	if len(r.PendingToolCalls()) != 0 {
		t.Fatalf("expected no pending calls, got %d", len(r.PendingToolCalls()))
	}
	if len(r.ToolCalls()) != 1 {
		t.Fatalf("expected 1 completed call, got %d", len(r.ToolCalls()))
	}
	completed := r.ToolCalls()[0]
	if completed.ToolUseID != "tool-1" || completed.ToolName != "Read" || completed.IsError {
		t.Fatalf("unexpected completed record: %+v", completed)
	}
}

func TestToolCallWithErrorResult(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-1", "tool-1", "Bash")))
	r.ProcessEntry(mustParse(t, userWithToolResult("uuid-2", "tool-1", `{"is_error":true,"error":"command failed"}`)))

	if len(r.ToolCalls()) != 1 {
		t.Fatalf("expected 1 completed call")
	}
	if !r.ToolCalls()[0].IsError {
		t.Fatal("expected IsError to be true")
	}
}

func TestProcessEntriesBatch(t *testing.T) {
	r := New()
	entries := []*Entry{
		mustParse(t, simpleUser("uuid-1")),
		mustParse(t, assistantWithToolUse("uuid-2", "tool-1", "Edit")),
		mustParse(t, userWithToolResult("uuid-3", "tool-1", `{"success":true}`)),
	}
	r.ProcessEntries(entries)

	if r.EntryCount() != 3 {
		t.Fatalf("EntryCount() = %d, want 3", r.EntryCount())
	}
	if len(r.ToolCalls()) != 1 {
		t.Fatalf("len(ToolCalls()) = %d, want 1", len(r.ToolCalls()))
	}
	if len(r.PendingToolCalls()) != 0 {
		t.Fatalf("expected no pending calls")
	}
}

func TestMultiplePendingTools(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-1", "tool-1", "Read")))
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-2", "tool-2", "Glob")))

	if len(r.PendingToolCalls()) != 2 {
		t.Fatalf("len(PendingToolCalls()) = %d, want 2", len(r.PendingToolCalls()))
	}

	r.ProcessEntry(mustParse(t, userWithToolResult("uuid-3", "tool-1", `{"data":"test"}`)))

	if len(r.PendingToolCalls()) != 1 {
		t.Fatalf("len(PendingToolCalls()) = %d, want 1", len(r.PendingToolCalls()))
	}
	if len(r.ToolCalls()) != 1 {
		t.Fatalf("len(ToolCalls()) = %d, want 1", len(r.ToolCalls()))
	}
}

func TestReconstructorClear(t *testing.T) {
	r := New()
	r.ProcessEntry(mustParse(t, assistantWithToolUse("uuid-1", "tool-1", "Read")))
	r.Clear()

	if r.EntryCount() != 0 || len(r.PendingToolCalls()) != 0 {
		t.Fatal("expected Clear() to reset all state")
	}
}
