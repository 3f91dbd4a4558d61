package hook

import "strings"

// CompletionStatusKind discriminates CompletionDetector's verdict.
type CompletionStatusKind int

const (
	CompletionComplete CompletionStatusKind = iota
	CompletionIncomplete
	CompletionUnknown
)

// CompletionStatus is the result of analyzing a final message for signs of
// task completion.
type CompletionStatus struct {
	Kind   CompletionStatusKind
	Reason string // populated only for CompletionIncomplete
}

// CompletionDetector recognizes completion and continuation phrases in an
// agent's final message. Handler carries one, but its Stop handling always
// allows and does not consult it.
type CompletionDetector struct {
	completePhrases   []string
	incompletePhrases []string
}

// NewCompletionDetector returns a detector using custom phrase lists.
func NewCompletionDetector(completePhrases, incompletePhrases []string) *CompletionDetector {
	return &CompletionDetector{completePhrases: completePhrases, incompletePhrases: incompletePhrases}
}

// DefaultCompletionDetector returns a detector seeded with the phrase lists
// tool-use history has shown to reliably mark completion and continuation.
func DefaultCompletionDetector() *CompletionDetector {
	return NewCompletionDetector(
		[]string{
			"task is complete",
			"successfully completed",
			"all done",
			"finished successfully",
			"completed all tasks",
			"implementation is complete",
			"changes have been made",
		},
		[]string{
			"now i'll",
			"next step",
			"let me also",
			"i'll now",
			"next, i",
			"moving on to",
			"i need to",
			"let me continue",
		},
	)
}

// IsComplete reports whether text analyzes as CompletionComplete.
func (d *CompletionDetector) IsComplete(text string) bool {
	return d.Analyze(text).Kind == CompletionComplete
}

// Analyze checks incomplete phrases first (they take priority over
// completion phrases appearing in the same text), then completion phrases,
// defaulting to CompletionUnknown when neither matches.
func (d *CompletionDetector) Analyze(text string) CompletionStatus {
	lower := strings.ToLower(text)

	for _, phrase := range d.incompletePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return CompletionStatus{Kind: CompletionIncomplete, Reason: "found incomplete phrase: " + phrase}
		}
	}
	for _, phrase := range d.completePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return CompletionStatus{Kind: CompletionComplete}
		}
	}
	return CompletionStatus{Kind: CompletionUnknown}
}
