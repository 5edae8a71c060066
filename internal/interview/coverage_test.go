package interview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/venturekit/interviewd/internal/storage"
)

func turns(contents ...string) []storage.Turn {
	out := make([]storage.Turn, len(contents))
	for i, c := range contents {
		role := storage.RoleInterviewer
		if i%2 == 1 {
			role = storage.RoleInterviewee
		}
		out[i] = storage.Turn{Role: role, Content: c}
	}
	return out
}

func TestCoverageGuardMissing(t *testing.T) {
	guard := NewCoverageGuard(nil)

	if topic := guard.Missing(turns("What problem do you solve?", "Slow invoicing.")); topic == nil {
		t.Fatal("Missing = nil, want distribution topic")
	} else if topic.Name != "distribution" {
		t.Errorf("Missing.Name = %q", topic.Name)
	}

	covered := turns("How will you reach customers?", "Mostly through our Distribution partners.")
	if topic := guard.Missing(covered); topic != nil {
		t.Errorf("Missing = %q, want nil (keyword match is case-insensitive)", topic.Name)
	}
}

func TestCoverageGuardMatchesAnyKeyword(t *testing.T) {
	guard := NewCoverageGuard(nil)
	transcript := turns("Tell me about growth.", "We grow through my professional network.")
	if topic := guard.Missing(transcript); topic != nil {
		t.Errorf("Missing = %q, want nil", topic.Name)
	}
}

func TestCoverageGuardMultipleTopicsInOrder(t *testing.T) {
	guard := NewCoverageGuard([]Topic{
		{Name: "pricing", Keywords: []string{"pricing", "price"}, Fallback: "How will you price it?"},
		{Name: "team", Keywords: []string{"team", "founder"}, Fallback: "Who is on the team?"},
	})

	if topic := guard.Missing(turns("Hi.")); topic == nil || topic.Name != "pricing" {
		t.Fatalf("Missing = %+v, want first uncovered topic", topic)
	}
	if topic := guard.Missing(turns("What's your pricing?")); topic == nil || topic.Name != "team" {
		t.Fatalf("Missing = %+v, want team", topic)
	}
}

func TestLoadTopics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.json")
	data := `[{"name":"pricing","keywords":["price"],"fallback_question":"How will you price it?"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	topics, err := LoadTopics(path)
	if err != nil {
		t.Fatalf("LoadTopics: %v", err)
	}
	if len(topics) != 1 || topics[0].Name != "pricing" {
		t.Errorf("topics = %+v", topics)
	}
}

func TestLoadTopicsRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.json")
	if err := os.WriteFile(path, []byte(`[{"name":"pricing"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTopics(path); err == nil {
		t.Error("LoadTopics accepted an entry without keywords or fallback")
	}
}
