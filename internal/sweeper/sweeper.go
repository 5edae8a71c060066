// Package sweeper finalizes interview sessions that were abandoned
// mid-conversation: sessions still in progress but idle past a threshold get
// summarized in the background so their transcripts are not lost.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/venturekit/interviewd/internal/interview"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
	"github.com/venturekit/interviewd/internal/summary"
)

// maxFinalizeAttempts bounds how many sweeps retry a failing session. A
// session that keeps failing, or that has no call budget left, is abandoned
// and left for manual follow-up instead of being retried forever.
const maxFinalizeAttempts = 3

// Lister yields in-progress sessions idle since before the cutoff.
type Lister interface {
	ListStaleSessions(cutoff time.Time, limit int) ([]storage.Session, error)
}

// Finalizer turns a finished-enough transcript into a persisted summary.
type Finalizer interface {
	Summarize(ctx context.Context, ownerID, sessionID string) (*summary.Document, error)
}

// Options tunes the sweep cadence. Zero values select the defaults.
type Options struct {
	Interval  time.Duration // time between sweeps
	IdleAfter time.Duration // idle threshold before a session is stale
	BatchSize int           // stale sessions fetched per sweep
	Workers   int           // concurrent finalizations per sweep
	Logger    *slog.Logger
}

// Sweeper periodically finalizes stale sessions.
type Sweeper struct {
	lister    Lister
	finalizer Finalizer
	interval  time.Duration
	idleAfter time.Duration
	batch     int
	workers   int
	logger    *slog.Logger

	mu       sync.Mutex
	failures map[string]int
}

// New builds a Sweeper. Defaults: sweep every 10 minutes, sessions stale
// after 1 hour idle, 20 per batch, 4 workers.
func New(lister Lister, finalizer Finalizer, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sweeper{
		lister:    lister,
		finalizer: finalizer,
		interval:  opts.Interval,
		idleAfter: opts.IdleAfter,
		batch:     opts.BatchSize,
		workers:   opts.Workers,
		logger:    opts.Logger,
		failures:  make(map[string]int),
	}
}

// Run sweeps on a ticker until ctx is canceled. It always returns nil after
// cancellation; sweep failures are logged, not fatal.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: list stale sessions and finalize the ones deep enough
// to summarize. Shallow sessions are left alone; they stay listed until
// resumed or deleted, and summarizing them would be refused anyway.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idleAfter)
	sessions, err := s.lister.ListStaleSessions(cutoff, s.batch)
	if err != nil {
		s.logger.Error("listing stale sessions", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, sess := range sessions {
		if sess.CountRole(storage.RoleInterviewer) < interview.MinFinalizeQuestions {
			s.logger.Debug("skipping shallow stale session", "session_id", sess.ID)
			continue
		}
		if s.abandoned(sess.ID) {
			s.logger.Debug("skipping abandoned stale session", "session_id", sess.ID)
			continue
		}
		g.Go(func() error {
			_, err := s.finalizer.Summarize(ctx, sess.OwnerID, sess.ID)
			switch {
			case err == nil:
				s.clearFailures(sess.ID)
				s.logger.Info("stale session finalized", "session_id", sess.ID)
			case errors.Is(err, context.Canceled):
			case errors.Is(err, ratelimit.ErrLimitExceeded):
				// No budget left to ever summarize it; retrying only burns log lines.
				s.abandon(sess.ID)
				s.logger.Warn("stale session out of call budget, giving up", "session_id", sess.ID)
			default:
				if s.recordFailure(sess.ID) {
					s.logger.Warn("giving up on stale session after repeated failures", "session_id", sess.ID, "error", err)
				} else {
					s.logger.Warn("finalizing stale session", "session_id", sess.ID, "error", err)
				}
			}
			return nil
		})
	}
	g.Wait()
}

func (s *Sweeper) abandoned(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[id] >= maxFinalizeAttempts
}

func (s *Sweeper) abandon(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = maxFinalizeAttempts
}

// recordFailure counts one failed attempt and reports whether the session
// has now reached the attempt limit.
func (s *Sweeper) recordFailure(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id]++
	return s.failures[id] >= maxFinalizeAttempts
}

func (s *Sweeper) clearFailures(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, id)
}
