package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/logger"
)

type SweepOptions struct {
	Interval        time.Duration
	RecentWindow    time.Duration
	ProcessingGrace time.Duration
	MaxAttempts     int
	Concurrency     int
	RetryDelay      time.Duration
}

type SweepSummary struct {
	SessionsCleaned int64         `json:"sessions_cleaned"`
	RecordingsFixed int           `json:"recordings_fixed"`
	StillFailing    int           `json:"still_failing"`
	Results         []RetryResult `json:"results,omitempty"`
	Skipped         bool          `json:"skipped,omitempty"`
}

// SweeperUsecase periodically expires stale sessions and retries recent
// recordings that never completed.
type SweeperUsecase struct {
	sessions   *SessionUsecase
	reconciler *ReconcileUsecase
	opts       SweepOptions
	log        *logger.Logger
	now        func() time.Time
	running    atomic.Bool
}

func NewSweeperUsecase(sessions *SessionUsecase, reconciler *ReconcileUsecase, opts SweepOptions, log *logger.Logger) *SweeperUsecase {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = time.Hour
	}
	return &SweeperUsecase{
		sessions:   sessions,
		reconciler: reconciler,
		opts:       opts,
		log:        log.With("usecase", "Sweeper"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately and then every Interval until ctx is done.
func (s *SweeperUsecase) Run(ctx context.Context) {
	s.log.Info("sweeper started", "interval", s.opts.Interval)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce never fails: problems are logged and counted in the summary. A
// sweep requested while another one runs is skipped.
func (s *SweeperUsecase) SweepOnce(ctx context.Context) SweepSummary {
	var summary SweepSummary
	if !s.running.CompareAndSwap(false, true) {
		summary.Skipped = true
		return summary
	}
	defer s.running.Store(false)

	cleaned, err := s.sessions.SweepStale(ctx)
	if err != nil {
		s.log.Error("session sweep failed", "error", err)
	}
	summary.SessionsCleaned = cleaned

	report, err := s.reconciler.RetryFailed(ctx, RetryOptions{
		MaxAttempts:     s.opts.MaxAttempts,
		CreatedSince:    s.now().Add(-s.opts.RecentWindow),
		ProcessingGrace: s.opts.ProcessingGrace,
		Concurrency:     s.opts.Concurrency,
		RetryDelay:      s.opts.RetryDelay,
	})
	if err != nil {
		s.log.Error("recording sweep failed", "error", err)
		return summary
	}
	summary.RecordingsFixed = report.Recovered
	summary.StillFailing = report.Attempted - report.Recovered
	summary.Results = report.Results

	if summary.SessionsCleaned > 0 || report.Attempted > 0 {
		s.log.Info("sweep finished",
			"sessions_cleaned", summary.SessionsCleaned,
			"recordings_fixed", summary.RecordingsFixed,
			"still_failing", summary.StillFailing,
		)
	}
	return summary
}
