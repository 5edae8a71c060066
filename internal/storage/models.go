package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an optimistic update loses the race:
// the session row was modified since it was read. Callers re-read and retry.
var ErrVersionConflict = errors.New("session version conflict")

// Turn roles. The interviewer role is the engine asking questions; the
// interviewee role is the founder answering them.
const (
	RoleSystem      = "system"
	RoleInterviewer = "interviewer"
	RoleInterviewee = "interviewee"
)

// Session statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Turn is one atomic contribution to a session transcript.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one bounded interview conversation belonging to one owner.
// The transcript is append-only; insertion order is the conversation order.
// Mode is fixed at creation and stored explicitly, never re-derived from
// transcript content. Version backs optimistic concurrency on updates.
type Session struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Transcript []Turn `json:"transcript"`
	// Summary holds the validated summary document as JSON, empty until
	// the summary operation succeeds.
	Summary   string    `json:"summary,omitempty"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastRole returns the role of the most recent turn, or "" for an empty
// transcript.
func (s Session) LastRole() string {
	if len(s.Transcript) == 0 {
		return ""
	}
	return s.Transcript[len(s.Transcript)-1].Role
}

// CountRole returns the number of turns authored by the given role.
func (s Session) CountRole(role string) int {
	n := 0
	for _, t := range s.Transcript {
		if t.Role == role {
			n++
		}
	}
	return n
}

// Intake holds the free-text fields collected by the earlier onboarding
// step, keyed by field name. It drives mode selection at session creation.
type Intake struct {
	OwnerID             string            `json:"owner_id"`
	Fields              map[string]string `json:"fields"`
	OnboardingCompleted bool              `json:"onboarding_completed"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
