package interview

import (
	"github.com/venturekit/interviewd/internal/intake"
	"github.com/venturekit/interviewd/internal/storage"
)

// Mode is the fixed strategy chosen once per session: question budget plus
// opening-question policy. It is persisted on the session record at creation
// and never re-derived from transcript content.
type Mode string

const (
	// ModeGuided is used when the owner completed onboarding with at least
	// one meaningful intake field; the interviewer builds on those answers.
	ModeGuided Mode = "guided"
	// ModeColdStart is used when nothing is known about the owner.
	ModeColdStart Mode = "cold_start"
)

// Default question budgets per mode.
const (
	DefaultGuidedQuestions    = 7
	DefaultColdStartQuestions = 8
)

// Budgets holds the per-mode question ceilings. Zero values fall back to the
// defaults.
type Budgets struct {
	Guided    int
	ColdStart int
}

// For returns the question budget for the given mode.
func (b Budgets) For(m Mode) int {
	switch m {
	case ModeGuided:
		if b.Guided > 0 {
			return b.Guided
		}
		return DefaultGuidedQuestions
	default:
		if b.ColdStart > 0 {
			return b.ColdStart
		}
		return DefaultColdStartQuestions
	}
}

// SelectMode picks the session strategy from the owner's prior intake.
// Guided requires both the explicit onboarding-completed marker and at least
// one non-empty signal field; anything less is a cold start. Pure function;
// called exactly once per session, at creation.
func SelectMode(in *storage.Intake) Mode {
	if in != nil && in.OnboardingCompleted && intake.HasSignal(in) {
		return ModeGuided
	}
	return ModeColdStart
}
