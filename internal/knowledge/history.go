package knowledge

import (
	"sort"
	"strings"

	"claude-supervisor/internal/reconstruct"
)

// maxHistorySummary bounds how many recent Q&A pairs a context summary
// includes, so the advisor prompt doesn't grow unbounded over a long
// project history.
const maxHistorySummary = 10

// QAPair is a question-answer exchange extracted from a session log.
type QAPair struct {
	Question  string
	Answer    string
	Timestamp string
}

// HistorySource is a knowledge source backed by past session Q&A,
// letting the advisor stay consistent with decisions already made in
// this project.
type HistorySource struct {
	pairs []QAPair
}

// NewHistorySource builds a history source from session log entries
// already parsed by the reconstruct package.
func NewHistorySource(entries []reconstruct.Entry) *HistorySource {
	return &HistorySource{pairs: ExtractQAPairs(entries)}
}

// Name implements Source.
func (h *HistorySource) Name() string { return "Session History" }

// Query implements Source, scoring each pair by the number of query
// words it matches in its question text and returning the best match.
func (h *HistorySource) Query(question string) (Fact, bool) {
	match := h.bestMatch(question)
	if match == nil {
		return Fact{}, false
	}
	return Fact{
		Source:    "Session History",
		Content:   "Q: " + match.Question + "\nA: " + match.Answer,
		Relevance: 0.7,
	}, true
}

func (h *HistorySource) bestMatch(question string) *QAPair {
	words := strings.Fields(strings.ToLower(question))

	type scored struct {
		score int
		pair  *QAPair
	}
	var candidates []scored
	for i := range h.pairs {
		pair := &h.pairs[i]
		qLower := strings.ToLower(pair.Question)
		score := 0
		for _, w := range words {
			if strings.Contains(qLower, w) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score, pair})
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].pair
}

// ContextSummary implements Source, returning the most recent pairs.
func (h *HistorySource) ContextSummary() (string, bool) {
	if len(h.pairs) == 0 {
		return "", false
	}
	recent := h.pairs
	if len(recent) > maxHistorySummary {
		recent = recent[len(recent)-maxHistorySummary:]
	}
	parts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		p := recent[i]
		parts = append(parts, "Q: "+p.Question+"\nA: "+p.Answer)
	}
	return strings.Join(parts, "\n\n---\n\n"), true
}

// ExtractQAPairs matches each assistant entry to its parent user entry,
// skipping tool-result entries, to recover the conversation's
// question-answer structure.
func ExtractQAPairs(entries []reconstruct.Entry) []QAPair {
	userByUUID := map[string]*reconstruct.UserEntry{}
	var assistants []*reconstruct.AssistantEntry

	for i := range entries {
		e := &entries[i]
		switch {
		case e.User != nil:
			if e.User.SourceToolUseID == "" {
				userByUUID[e.User.UUID] = e.User
			}
		case e.Assistant != nil:
			assistants = append(assistants, e.Assistant)
		}
	}

	var pairs []QAPair
	for _, a := range assistants {
		if a.ParentUUID == "" {
			continue
		}
		user, ok := userByUUID[a.ParentUUID]
		if !ok {
			continue
		}
		question := strings.TrimSpace(user.Message.Content.AsText())
		answer := strings.TrimSpace(assistantText(a))
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, QAPair{Question: question, Answer: answer, Timestamp: a.Timestamp})
	}
	return pairs
}

func assistantText(a *reconstruct.AssistantEntry) string {
	var parts []string
	for _, b := range a.Message.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
