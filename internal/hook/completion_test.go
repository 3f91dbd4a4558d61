package hook

import (
	"strings"
	"testing"
)

func TestCompletionDetectorDefault(t *testing.T) {
	d := DefaultCompletionDetector()
	if len(d.completePhrases) == 0 || len(d.incompletePhrases) == 0 {
		t.Fatal("expected non-empty default phrase lists")
	}
}

func TestIsCompleteWithCompletePhrase(t *testing.T) {
	d := DefaultCompletionDetector()
	cases := []string{
		"The task is complete and all tests pass.",
		"I have successfully completed the implementation.",
		"All done! The feature is working.",
	}
	for _, c := range cases {
		if !d.IsComplete(c) {
			t.Fatalf("expected complete for %q", c)
		}
	}
}

func TestIsCompleteWithIncompletePhrase(t *testing.T) {
	d := DefaultCompletionDetector()
	cases := []string{
		"Now I'll implement the next feature.",
		"Let me also add some tests.",
		"Moving on to the next step.",
	}
	for _, c := range cases {
		if d.IsComplete(c) {
			t.Fatalf("expected incomplete for %q", c)
		}
	}
}

func TestIncompleteTakesPriority(t *testing.T) {
	d := DefaultCompletionDetector()
	text := "The task is complete, but now I'll add more tests."
	if d.IsComplete(text) {
		t.Fatal("expected incomplete phrase to take priority")
	}
}

func TestIsCompleteCaseInsensitive(t *testing.T) {
	d := DefaultCompletionDetector()
	if !d.IsComplete("TASK IS COMPLETE") {
		t.Fatal("expected case-insensitive match")
	}
	if !d.IsComplete("Successfully Completed") {
		t.Fatal("expected case-insensitive match")
	}
}

func TestIsCompleteNoMatch(t *testing.T) {
	d := DefaultCompletionDetector()
	if d.IsComplete("Here is some random text.") {
		t.Fatal("expected no match")
	}
}

func TestCustomPhrases(t *testing.T) {
	d := NewCompletionDetector([]string{"finished"}, []string{"pending"})
	if !d.IsComplete("The work is finished.") {
		t.Fatal("expected custom complete phrase to match")
	}
	if d.IsComplete("Some tasks are pending.") {
		t.Fatal("expected custom incomplete phrase to match")
	}
}

func TestCompletionStatusEquality(t *testing.T) {
	if (CompletionStatus{Kind: CompletionComplete}) != (CompletionStatus{Kind: CompletionComplete}) {
		t.Fatal("expected equal statuses to compare equal")
	}
	if (CompletionStatus{Kind: CompletionIncomplete, Reason: "reason"}) != (CompletionStatus{Kind: CompletionIncomplete, Reason: "reason"}) {
		t.Fatal("expected equal incomplete statuses to compare equal")
	}
	if (CompletionStatus{Kind: CompletionComplete}) == (CompletionStatus{Kind: CompletionUnknown}) {
		t.Fatal("expected different kinds to compare unequal")
	}
}

func TestAnalyzeReturnsComplete(t *testing.T) {
	d := DefaultCompletionDetector()
	status := d.Analyze("The task is complete.")
	if status.Kind != CompletionComplete {
		t.Fatalf("Kind = %v, want CompletionComplete", status.Kind)
	}
}

func TestAnalyzeReturnsIncomplete(t *testing.T) {
	d := DefaultCompletionDetector()
	status := d.Analyze("Now I'll implement the next feature.")
	if status.Kind != CompletionIncomplete {
		t.Fatalf("Kind = %v, want CompletionIncomplete", status.Kind)
	}
	if !strings.Contains(status.Reason, "now i'll") {
		t.Fatalf("Reason = %q, want to contain %q", status.Reason, "now i'll")
	}
}

func TestAnalyzeReturnsUnknown(t *testing.T) {
	d := DefaultCompletionDetector()
	status := d.Analyze("Here is some random text.")
	if status.Kind != CompletionUnknown {
		t.Fatalf("Kind = %v, want CompletionUnknown", status.Kind)
	}
}

func TestAnalyzeIncompletePriority(t *testing.T) {
	d := DefaultCompletionDetector()
	status := d.Analyze("The task is complete, but now I'll add more tests.")
	if status.Kind != CompletionIncomplete {
		t.Fatalf("Kind = %v, want CompletionIncomplete", status.Kind)
	}
}
