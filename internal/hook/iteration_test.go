package hook

import "testing"

func TestIterationTrackerNew(t *testing.T) {
	tr := NewIterationTracker()
	if tr.Get("session1") != 0 {
		t.Fatalf("Get() = %d, want 0", tr.Get("session1"))
	}
}

func TestIterationTrackerIncrement(t *testing.T) {
	tr := NewIterationTracker()
	if got := tr.Increment("session1"); got != 1 {
		t.Fatalf("Increment() = %d, want 1", got)
	}
	if got := tr.Increment("session1"); got != 2 {
		t.Fatalf("Increment() = %d, want 2", got)
	}
	if got := tr.Increment("session1"); got != 3 {
		t.Fatalf("Increment() = %d, want 3", got)
	}
	if tr.Get("session1") != 3 {
		t.Fatalf("Get() = %d, want 3", tr.Get("session1"))
	}
}

func TestIterationTrackerMultipleSessions(t *testing.T) {
	tr := NewIterationTracker()
	if got := tr.Increment("session1"); got != 1 {
		t.Fatalf("Increment(session1) = %d, want 1", got)
	}
	if got := tr.Increment("session2"); got != 1 {
		t.Fatalf("Increment(session2) = %d, want 1", got)
	}
	if got := tr.Increment("session1"); got != 2 {
		t.Fatalf("Increment(session1) = %d, want 2", got)
	}
	if tr.Get("session1") != 2 {
		t.Fatalf("Get(session1) = %d, want 2", tr.Get("session1"))
	}
	if tr.Get("session2") != 1 {
		t.Fatalf("Get(session2) = %d, want 1", tr.Get("session2"))
	}
}

func TestIterationTrackerReset(t *testing.T) {
	tr := NewIterationTracker()
	tr.Increment("session1")
	tr.Increment("session1")
	if tr.Get("session1") != 2 {
		t.Fatalf("Get() = %d, want 2", tr.Get("session1"))
	}
	tr.Reset("session1")
	if tr.Get("session1") != 0 {
		t.Fatalf("Get() = %d, want 0", tr.Get("session1"))
	}
}
