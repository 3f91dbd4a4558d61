package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxMemoryContextFacts bounds how many learned facts a context summary
// includes.
const maxMemoryContextFacts = 20

// MemoryFact is a single learned question-answer pair, persisted so the
// advisor doesn't have to re-research the same question across runs.
type MemoryFact struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	LearnedAt string `json:"learned_at"`
}

type memoryFile struct {
	Facts []MemoryFact `json:"facts"`
}

// MemorySource is a knowledge source backed by a per-project JSON file
// of previously-learned facts.
type MemorySource struct {
	facts    []MemoryFact
	filePath string
}

// NewMemorySource returns an empty, unbacked memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// MemoryPathForProject returns the conventional memory file location for
// a project directory, mirroring the session-log directory naming
// scheme: the project path with '/' replaced by '-'.
func MemoryPathForProject(projectDir string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	encoded := strings.ReplaceAll(projectDir, "/", "-")
	return filepath.Join(home, ".claude", "projects", encoded, "memory.json"), nil
}

// LoadMemorySource loads facts from the project's memory file. A missing
// or corrupt file yields an empty, still-savable source rather than an
// error, matching the fail-open convention used elsewhere for optional
// context sources.
func LoadMemorySource(projectDir string) *MemorySource {
	path, err := MemoryPathForProject(projectDir)
	if err != nil {
		return &MemorySource{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read memory file", "path", path, "error", err)
		}
		return &MemorySource{filePath: path}
	}

	var mf memoryFile
	if err := json.Unmarshal(data, &mf); err != nil {
		slog.Warn("corrupt memory file, starting fresh", "path", path, "error", err)
		return &MemorySource{filePath: path}
	}

	slog.Debug("loaded memory facts", "count", len(mf.Facts))
	return &MemorySource{facts: mf.Facts, filePath: path}
}

// AddFact records a new fact, updating the existing entry in place if
// its normalized question already exists.
func (m *MemorySource) AddFact(question, answer string) {
	learnedAt := time.Now().UTC().Format(time.RFC3339)
	normalized := strings.ToLower(strings.TrimSpace(question))

	for i := range m.facts {
		if strings.ToLower(strings.TrimSpace(m.facts[i].Question)) == normalized {
			m.facts[i].Answer = answer
			m.facts[i].LearnedAt = learnedAt
			return
		}
	}
	m.facts = append(m.facts, MemoryFact{Question: question, Answer: answer, LearnedAt: learnedAt})
}

// Save writes memory to disk atomically via a temp file plus rename. It
// is a no-op if the source has no backing file path.
func (m *MemorySource) Save() error {
	if m.filePath == "" {
		slog.Warn("cannot save memory: no file path set")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return fmt.Errorf("create memory directory: %w", err)
	}

	data, err := json.MarshalIndent(memoryFile{Facts: m.facts}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory file: %w", err)
	}

	tempPath := m.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp memory file: %w", err)
	}
	if err := os.Rename(tempPath, m.filePath); err != nil {
		return fmt.Errorf("rename memory file: %w", err)
	}

	slog.Info("saved memory file", "path", m.filePath, "count", len(m.facts))
	return nil
}

// Len returns the number of facts in memory.
func (m *MemorySource) Len() int { return len(m.facts) }

// IsEmpty reports whether memory has no facts.
func (m *MemorySource) IsEmpty() bool { return len(m.facts) == 0 }

func (m *MemorySource) findMatches(query string) []*MemoryFact {
	words := strings.Fields(strings.ToLower(query))

	type scored struct {
		score int
		fact  *MemoryFact
	}
	var candidates []scored
	for i := range m.facts {
		fact := &m.facts[i]
		qLower := strings.ToLower(fact.Question)
		aLower := strings.ToLower(fact.Answer)
		score := 0
		for _, w := range words {
			if strings.Contains(qLower, w) {
				score += 2
			}
			if strings.Contains(aLower, w) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score, fact})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]*MemoryFact, len(candidates))
	for i, c := range candidates {
		out[i] = c.fact
	}
	return out
}

// Name implements Source.
func (m *MemorySource) Name() string { return "Memory" }

// Query implements Source.
func (m *MemorySource) Query(question string) (Fact, bool) {
	matches := m.findMatches(question)
	if len(matches) == 0 {
		return Fact{}, false
	}
	best := matches[0]
	return Fact{
		Source:    "Memory",
		Content:   "Q: " + best.Question + "\nA: " + best.Answer,
		Relevance: 0.9,
	}, true
}

// ContextSummary implements Source, returning the most recently learned
// facts.
func (m *MemorySource) ContextSummary() (string, bool) {
	if len(m.facts) == 0 {
		return "", false
	}
	recent := m.facts
	if len(recent) > maxMemoryContextFacts {
		recent = recent[len(recent)-maxMemoryContextFacts:]
	}
	parts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		f := recent[i]
		parts = append(parts, "Q: "+f.Question+"\nA: "+f.Answer)
	}
	return strings.Join(parts, "\n\n---\n\n"), true
}
