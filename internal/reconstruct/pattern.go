package reconstruct

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StuckPatternKind discriminates the kinds of repetitive behavior the
// detector recognizes.
type StuckPatternKind int

const (
	PatternRepeatingAction StuckPatternKind = iota
	PatternRepeatingError
	PatternAlternatingActions
)

// StuckPattern is a detected sign that an agent is stuck in a loop.
type StuckPattern struct {
	Kind   StuckPatternKind
	ToolA  string // RepeatingAction/RepeatingError: the repeated tool; AlternatingActions: the first tool
	ToolB  string // AlternatingActions only: the second tool
	Count  int    // RepeatingAction/RepeatingError: repetition count; AlternatingActions: cycle count
}

// String renders a human-readable summary, e.g. for log messages.
func (p StuckPattern) String() string {
	switch p.Kind {
	case PatternRepeatingAction:
		return fmt.Sprintf("repeating %s %d times", p.ToolA, p.Count)
	case PatternRepeatingError:
		return fmt.Sprintf("repeating %s errors %d times", p.ToolA, p.Count)
	case PatternAlternatingActions:
		return fmt.Sprintf("alternating %s/%s %d cycles", p.ToolA, p.ToolB, p.Count)
	default:
		return "unknown pattern"
	}
}

// PatternThresholds tunes when the detector reports a pattern.
type PatternThresholds struct {
	RepeatingAction    int
	RepeatingError     int
	AlternatingCycles  int
	WindowSize         int
}

// DefaultPatternThresholds matches the thresholds tool-use history has been
// tuned against: 4 identical repeats, 3 consecutive errors, 3 A-B cycles,
// over the most recent 20 calls.
func DefaultPatternThresholds() PatternThresholds {
	return PatternThresholds{
		RepeatingAction:   4,
		RepeatingError:    3,
		AlternatingCycles: 3,
		WindowSize:        20,
	}
}

// PatternDetector scans a tool-call timeline for stuck patterns.
type PatternDetector struct {
	thresholds PatternThresholds
}

// NewPatternDetector returns a detector using DefaultPatternThresholds.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{thresholds: DefaultPatternThresholds()}
}

// NewPatternDetectorWithThresholds returns a detector using custom thresholds.
func NewPatternDetectorWithThresholds(t PatternThresholds) *PatternDetector {
	return &PatternDetector{thresholds: t}
}

// Thresholds returns the detector's configured thresholds.
func (d *PatternDetector) Thresholds() PatternThresholds { return d.thresholds }

// Detect checks calls for a stuck pattern in priority order: repeating
// errors, then repeating actions, then alternating actions. It returns the
// first pattern found within the most recent WindowSize calls.
func (d *PatternDetector) Detect(calls []ToolCallRecord) (StuckPattern, bool) {
	if len(calls) == 0 {
		return StuckPattern{}, false
	}

	windowStart := len(calls) - d.thresholds.WindowSize
	if windowStart < 0 {
		windowStart = 0
	}
	window := calls[windowStart:]

	if p, ok := d.detectRepeatingErrors(window); ok {
		return p, true
	}
	if p, ok := d.detectRepeatingActions(window); ok {
		return p, true
	}
	if p, ok := d.detectAlternatingActions(window); ok {
		return p, true
	}
	return StuckPattern{}, false
}

func (d *PatternDetector) detectRepeatingErrors(calls []ToolCallRecord) (StuckPattern, bool) {
	if len(calls) < d.thresholds.RepeatingError {
		return StuckPattern{}, false
	}

	count := 0
	currentTool := ""
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if !call.IsError {
			break
		}
		if currentTool == "" {
			currentTool = call.ToolName
			count = 1
			continue
		}
		if currentTool == call.ToolName {
			count++
		} else {
			currentTool = call.ToolName
			count = 1
		}
	}

	if count >= d.thresholds.RepeatingError {
		return StuckPattern{Kind: PatternRepeatingError, ToolA: currentTool, Count: count}, true
	}
	return StuckPattern{}, false
}

func (d *PatternDetector) detectRepeatingActions(calls []ToolCallRecord) (StuckPattern, bool) {
	if len(calls) < d.thresholds.RepeatingAction {
		return StuckPattern{}, false
	}

	count := 1
	currentTool := ""
	var currentInput json.RawMessage
	haveCurrent := false

	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if haveCurrent {
			if currentTool == call.ToolName && inputsSimilar(currentInput, call.Input) {
				count++
				continue
			}
			if count >= d.thresholds.RepeatingAction {
				return StuckPattern{Kind: PatternRepeatingAction, ToolA: currentTool, Count: count}, true
			}
			currentTool = call.ToolName
			currentInput = call.Input
			count = 1
			continue
		}
		currentTool = call.ToolName
		currentInput = call.Input
		haveCurrent = true
	}

	if count >= d.thresholds.RepeatingAction {
		return StuckPattern{Kind: PatternRepeatingAction, ToolA: currentTool, Count: count}, true
	}
	return StuckPattern{}, false
}

func (d *PatternDetector) detectAlternatingActions(calls []ToolCallRecord) (StuckPattern, bool) {
	minCalls := d.thresholds.AlternatingCycles * 2
	if len(calls) < minCalls {
		return StuckPattern{}, false
	}

	recentStart := len(calls) - (minCalls + 2)
	if recentStart < 0 {
		recentStart = 0
	}
	recent := calls[recentStart:]
	if len(recent) < 4 {
		return StuckPattern{}, false
	}

	toolA := recent[len(recent)-1].ToolName
	toolB := recent[len(recent)-2].ToolName
	if toolA == toolB {
		return StuckPattern{}, false
	}

	cycles := 0
	expectingA := true
	for i := len(recent) - 1; i >= 0; i-- {
		expected := toolB
		if expectingA {
			expected = toolA
		}
		if recent[i].ToolName != expected {
			break
		}
		if expectingA {
			cycles++
		}
		expectingA = !expectingA
	}

	if cycles >= d.thresholds.AlternatingCycles {
		return StuckPattern{Kind: PatternAlternatingActions, ToolA: toolA, ToolB: toolB, Count: cycles}, true
	}
	return StuckPattern{}, false
}

// inputsSimilar reports whether two tool inputs should be considered the
// same action. Uses byte-exact JSON comparison after removing incidental
// whitespace differences; future versions may use fuzzy matching.
func inputsSimilar(a, b json.RawMessage) bool {
	na, err1 := normalizeJSON(a)
	nb, err2 := normalizeJSON(b)
	if err1 != nil || err2 != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(na, nb)
}

func normalizeJSON(raw json.RawMessage) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
