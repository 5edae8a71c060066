package interview

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/venturekit/interviewd/internal/storage"
)

// Topic is a mandatory subject the interview must touch before the question
// budget runs out. Coverage is judged by case-insensitive keyword presence
// anywhere in the transcript; Fallback is the question injected verbatim when
// the topic is still missing at the final question slot.
type Topic struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Fallback string   `json:"fallback_question"`
}

// DefaultTopics returns the built-in mandatory topic set.
func DefaultTopics() []Topic {
	return []Topic{
		{
			Name:     "distribution",
			Keywords: []string{"distribution", "network", "channel", "go-to-market", "gtm"},
			Fallback: "How do you plan to reach your customers — what distribution channels or networks will you rely on?",
		},
	}
}

// LoadTopics reads a JSON topic list from path. Each entry must carry a name,
// at least one keyword, and a fallback question.
func LoadTopics(path string) ([]Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topics file: %w", err)
	}

	var topics []Topic
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("parsing topics file: %w", err)
	}
	for i, t := range topics {
		if t.Name == "" || len(t.Keywords) == 0 || t.Fallback == "" {
			return nil, fmt.Errorf("topics file entry %d: name, keywords and fallback_question are required", i)
		}
	}
	return topics, nil
}

// CoverageGuard checks transcripts against the mandatory topic set.
type CoverageGuard struct {
	topics []Topic
}

// NewCoverageGuard builds a guard over the given topics, falling back to
// DefaultTopics when none are given.
func NewCoverageGuard(topics []Topic) *CoverageGuard {
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	return &CoverageGuard{topics: topics}
}

// Missing returns the first mandatory topic with no keyword present in the
// transcript, or nil when every topic is covered. Matching is
// case-insensitive and spans both interviewer and interviewee turns.
func (g *CoverageGuard) Missing(transcript []storage.Turn) *Topic {
	var b strings.Builder
	for _, turn := range transcript {
		b.WriteString(strings.ToLower(turn.Content))
		b.WriteByte('\n')
	}
	text := b.String()

	for i := range g.topics {
		if !topicCovered(text, g.topics[i]) {
			return &g.topics[i]
		}
	}
	return nil
}

func topicCovered(lowered string, t Topic) bool {
	for _, kw := range t.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
