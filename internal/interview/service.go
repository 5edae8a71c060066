package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/venturekit/interviewd/internal/intake"
	"github.com/venturekit/interviewd/internal/metrics"
	"github.com/venturekit/interviewd/internal/narrative"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
	"github.com/venturekit/interviewd/internal/summary"
)

// MinFinalizeQuestions is the smallest number of interviewer turns that
// yields a usable conversation; below it summarization is refused.
const MinFinalizeQuestions = 3

// defaultQuestion replaces blank narrative-backend output so the conversation
// always moves forward.
const defaultQuestion = "What else should we know about your venture that we haven't covered yet?"

// Narrator produces interview questions and summaries from transcripts. The
// production implementation is narrative.Client; tests substitute doubles.
type Narrator interface {
	NextQuestion(ctx context.Context, transcript []storage.Turn, instructions string) (string, error)
	Summarize(ctx context.Context, transcript []storage.Turn) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service drives interview sessions: it resolves or creates the session,
// enforces the per-session call ceiling and question budget, guards mandatory
// topic coverage, and persists every transcript change before returning.
type Service struct {
	store    *storage.Store
	limiter  ratelimit.Limiter
	narrator Narrator
	guard    *CoverageGuard
	budgets  Budgets
	clock    Clock
	logger   *slog.Logger
}

// Options tunes optional Service behavior. Zero values select the defaults.
type Options struct {
	Topics  []Topic
	Budgets Budgets
	Clock   Clock
	Logger  *slog.Logger
}

// NewService wires a Service over the given store, limiter and narrator.
func NewService(store *storage.Store, limiter ratelimit.Limiter, narrator Narrator, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		limiter:  limiter,
		narrator: narrator,
		guard:    NewCoverageGuard(opts.Topics),
		budgets:  opts.Budgets,
		clock:    clock,
		logger:   logger,
	}
}

// NextTurnRequest carries one turn request. SessionID is optional: when
// empty, the owner's active session is resumed, or a fresh one created.
type NextTurnRequest struct {
	OwnerID   string
	SessionID string
	Answer    string
}

// NextTurnResult is the engine's answer to a turn request. Question is empty
// exactly when ForceComplete is set.
type NextTurnResult struct {
	SessionID        string
	Mode             Mode
	Question         string
	Transcript       []storage.Turn
	CanFinalize      bool
	ForceComplete    bool
	ApproachingLimit bool
}

// NextTurn advances the interview by one turn: it records the caller's
// answer, then either produces the next question, injects a coverage
// fallback, or signals forced completion once the budget is spent. A repeated
// call with no new answer returns the pending question unchanged.
func (s *Service) NextTurn(ctx context.Context, req NextTurnRequest) (NextTurnResult, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return NextTurnResult{}, ErrOwnerUnresolved
	}

	sess, err := s.resolveSession(req)
	if err != nil {
		return NextTurnResult{}, err
	}
	if sess.Status == storage.StatusCompleted {
		return NextTurnResult{}, ErrSessionCompleted
	}

	if err := s.limiter.Take(ctx, sess.ID); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			metrics.Default().RateLimited.Inc()
		}
		return NextTurnResult{}, err
	}

	now := s.clock.Now().UTC()
	answered := false
	if strings.TrimSpace(req.Answer) != "" && sess.LastRole() != storage.RoleInterviewee {
		sess.Transcript = append(sess.Transcript, storage.Turn{
			Role:      storage.RoleInterviewee,
			Content:   req.Answer,
			Timestamp: now,
		})
		answered = true
	}

	// A question is still pending and no new answer arrived: hand the same
	// question back without touching the transcript.
	if !answered && sess.LastRole() == storage.RoleInterviewer {
		pending := sess.Transcript[len(sess.Transcript)-1].Content
		return s.result(sess, pending, false), nil
	}

	maxQ := s.budgets.For(Mode(sess.Mode))
	if sess.CountRole(storage.RoleInterviewee) >= maxQ || sess.CountRole(storage.RoleInterviewer) >= maxQ {
		// Budget spent. Persist the final answer if one just arrived, but
		// append no further question.
		if answered {
			sess.UpdatedAt = now
			if err := s.store.UpdateSession(sess); err != nil {
				return NextTurnResult{}, fmt.Errorf("persisting final answer: %w", err)
			}
		}
		metrics.Default().ForcedCompletions.Inc()
		s.logger.Info("interview budget exhausted", "session_id", sess.ID, "mode", sess.Mode)
		return s.result(sess, "", true), nil
	}

	question, injected := s.fallbackQuestion(sess, maxQ)
	if question == "" {
		question, err = s.generateQuestion(ctx, sess)
		if err != nil {
			return NextTurnResult{}, err
		}
	}

	sess.Transcript = append(sess.Transcript, storage.Turn{
		Role:      storage.RoleInterviewer,
		Content:   question,
		Timestamp: s.clock.Now().UTC(),
	})
	sess.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.UpdateSession(sess); err != nil {
		return NextTurnResult{}, fmt.Errorf("persisting turn: %w", err)
	}

	metrics.Default().QuestionsAsked.Inc()
	if injected {
		metrics.Default().FallbacksInjected.Inc()
		s.logger.Info("coverage fallback injected", "session_id", sess.ID)
	}
	return s.result(sess, question, false), nil
}

// Summarize validates the session's depth, asks the narrative backend for a
// structured summary, and persists it only if it parses cleanly. On success
// the session is marked completed; a completed session may be summarized
// again, overwriting the stored document.
func (s *Service) Summarize(ctx context.Context, ownerID, sessionID string) (*summary.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerUnresolved
	}

	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		// Do not reveal that another owner's session exists.
		return nil, storage.ErrNotFound
	}
	if sess.CountRole(storage.RoleInterviewer) < MinFinalizeQuestions {
		return nil, ErrInsufficientDepth
	}

	if err := s.limiter.Take(ctx, sess.ID); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			metrics.Default().RateLimited.Inc()
		}
		return nil, err
	}

	raw, err := s.narrator.Summarize(ctx, sess.Transcript)
	if err != nil {
		metrics.Default().BackendFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	doc, err := summary.Parse(raw)
	if err != nil {
		metrics.Default().SummariesRejected.Inc()
		s.logger.Warn("summary rejected", "session_id", sess.ID, "error", err)
		return nil, err
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	sess.Summary = string(encoded)
	sess.Status = storage.StatusCompleted
	sess.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.UpdateSession(sess); err != nil {
		return nil, fmt.Errorf("persisting summary: %w", err)
	}

	metrics.Default().SummariesOK.Inc()
	s.logger.Info("summary persisted", "session_id", sess.ID)
	return doc, nil
}

// GetSession returns the owner's session, refusing to reveal sessions that
// belong to someone else.
func (s *Service) GetSession(ownerID, sessionID string) (storage.Session, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return storage.Session{}, err
	}
	if sess.OwnerID != ownerID {
		return storage.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

// resolveSession loads the requested session, resumes the owner's active one,
// or creates a fresh session with the mode fixed from current intake state.
func (s *Service) resolveSession(req NextTurnRequest) (storage.Session, error) {
	if req.SessionID != "" {
		sess, err := s.store.GetSession(req.SessionID)
		if err != nil {
			return storage.Session{}, err
		}
		if sess.OwnerID != req.OwnerID {
			return storage.Session{}, storage.ErrNotFound
		}
		return sess, nil
	}

	sess, err := s.store.FindActiveSession(req.OwnerID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, err
	}

	var in *storage.Intake
	if got, err := s.store.GetIntake(req.OwnerID); err == nil {
		in = &got
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, fmt.Errorf("loading intake: %w", err)
	}
	mode := SelectMode(in)

	now := s.clock.Now().UTC()
	sess = storage.Session{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Mode:      string(mode),
		Status:    storage.StatusInProgress,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(sess); err != nil {
		return storage.Session{}, fmt.Errorf("creating session: %w", err)
	}

	metrics.Default().SessionsStarted.WithLabelValues(string(mode)).Inc()
	s.logger.Info("session created", "session_id", sess.ID, "owner_id", req.OwnerID, "mode", mode)
	return sess, nil
}

// fallbackQuestion returns the verbatim fallback for the first uncovered
// mandatory topic, but only at the final question slot. Earlier slots leave
// coverage to the narrative backend.
func (s *Service) fallbackQuestion(sess storage.Session, maxQ int) (string, bool) {
	if sess.CountRole(storage.RoleInterviewee) != maxQ-1 {
		return "", false
	}
	topic := s.guard.Missing(sess.Transcript)
	if topic == nil {
		return "", false
	}
	return topic.Fallback, true
}

func (s *Service) generateQuestion(ctx context.Context, sess storage.Session) (string, error) {
	instructions, err := s.instructions(sess)
	if err != nil {
		return "", err
	}

	question, err := s.narrator.NextQuestion(ctx, sess.Transcript, instructions)
	if err != nil {
		metrics.Default().BackendFailures.Inc()
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if strings.TrimSpace(question) == "" {
		metrics.Default().DefaultsSubbed.Inc()
		return defaultQuestion, nil
	}
	return question, nil
}

func (s *Service) instructions(sess storage.Session) (string, error) {
	if Mode(sess.Mode) != ModeGuided {
		return narrative.ColdStartInstructions(), nil
	}
	in, err := s.store.GetIntake(sess.OwnerID)
	if errors.Is(err, storage.ErrNotFound) {
		return narrative.GuidedInstructions(""), nil
	}
	if err != nil {
		return "", fmt.Errorf("loading intake: %w", err)
	}
	return narrative.GuidedInstructions(intake.Summary(&in)), nil
}

func (s *Service) result(sess storage.Session, question string, force bool) NextTurnResult {
	asked := sess.CountRole(storage.RoleInterviewer)
	maxQ := s.budgets.For(Mode(sess.Mode))
	return NextTurnResult{
		SessionID:        sess.ID,
		Mode:             Mode(sess.Mode),
		Question:         question,
		Transcript:       sess.Transcript,
		CanFinalize:      asked >= MinFinalizeQuestions,
		ForceComplete:    force,
		ApproachingLimit: asked >= maxQ-1,
	}
}
