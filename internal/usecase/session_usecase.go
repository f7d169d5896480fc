package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/lock"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/google/uuid"
)

type SessionOptions struct {
	StaleAfter        time.Duration
	MaxActiveSessions int
}

type SessionUsecase struct {
	store  *repository.Store
	locker lock.Locker
	opts   SessionOptions
	log    *logger.Logger
	now    func() time.Time
}

const sessionCapLockKey = "sessions:cap"

func NewSessionUsecase(store *repository.Store, locker lock.Locker, opts SessionOptions, log *logger.Logger) *SessionUsecase {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	if opts.MaxActiveSessions <= 0 {
		opts.MaxActiveSessions = 5
	}
	return &SessionUsecase{
		store:  store,
		locker: locker,
		opts:   opts,
		log:    log.With("usecase", "SessionManager"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SweepStale closes ready sessions that never progressed within StaleAfter.
func (uc *SessionUsecase) SweepStale(ctx context.Context) (int64, error) {
	now := uc.now()
	n, err := uc.store.Sessions.ExpireStale(ctx, now.Add(-uc.opts.StaleAfter), now)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	if n > 0 {
		uc.log.Info("stale sessions expired", "count", n)
	}
	return n, nil
}

// CanStartSession is advisory; StartSession re-checks everything under lock.
func (uc *SessionUsecase) CanStartSession(ctx context.Context, candidateID uuid.UUID) (bool, error) {
	if _, err := uc.SweepStale(ctx); err != nil {
		return false, err
	}
	active, err := uc.store.Sessions.FindActiveByCandidate(ctx, candidateID)
	if err != nil {
		return false, err
	}
	if active != nil {
		return false, nil
	}
	// Count and insert must not interleave with starts for other candidates.
	unlockCap, err := uc.locker.Lock(ctx, sessionCapLockKey)
	if err != nil {
		return nil, fmt.Errorf("lock session cap: %w", err)
	}
	defer unlockCap()

	count, err := uc.store.Sessions.CountActive(ctx)
	if err != nil {
		return false, err
	}
	return count < int64(uc.opts.MaxActiveSessions), nil
}

func (uc *SessionUsecase) StartSession(ctx context.Context, candidateID uuid.UUID, questionsPlanned int) (*model.InterviewSession, error) {
	if candidateID == uuid.Nil {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("candidate id is required"))
	}
	if questionsPlanned < 0 {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("questions planned must not be negative"))
	}

	unlock, err := uc.locker.Lock(ctx, "candidate:"+candidateID.String())
	if err != nil {
		return nil, fmt.Errorf("lock candidate %s: %w", candidateID, err)
	}
	defer unlock()

	if _, err := uc.SweepStale(ctx); err != nil {
		return nil, err
	}

	active, err := uc.store.Sessions.FindActiveByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperror.Wrap(apperror.ErrAlreadyActive, fmt.Errorf("session %s is %s", active.ID, active.Status))
	}

	count, err := uc.store.Sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	if count >= int64(uc.opts.MaxActiveSessions) {
		return nil, apperror.Wrap(apperror.ErrSystemBusy, fmt.Errorf("%d active sessions", count))
	}

	now := uc.now()
	session := &model.InterviewSession{
		CandidateID:       candidateID,
		ActiveCandidateID: &candidateID,
		Status:            model.SessionReady,
		StartedAt:         now,
		QuestionsPlanned:  questionsPlanned,
	}
	if err := uc.store.Sessions.Create(ctx, session); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, apperror.Wrap(apperror.ErrAlreadyActive, err)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	uc.log.Info("session started", "session_id", session.ID, "candidate_id", candidateID)
	return session, nil
}

// BeginSession records that the candidate actually connected.
func (uc *SessionUsecase) BeginSession(ctx context.Context, sessionID uuid.UUID, externalSessionID string) (*model.InterviewSession, error) {
	moved, err := uc.store.Sessions.MarkInProgress(ctx, sessionID, externalSessionID, uc.now())
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	session, err := uc.store.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !moved && session.Status != model.SessionInProgress {
		return nil, apperror.Wrap(apperror.ErrInvalidState, fmt.Errorf("session %s is %s", sessionID, session.Status))
	}
	return session, nil
}

// StatusForReason maps a completion reason onto the terminal session status.
func StatusForReason(reason string) model.SessionStatus {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "error", "failed", "connection_error":
		return model.SessionFailed
	case "partial", "disconnected", "user_left":
		return model.SessionPartial
	default:
		return model.SessionCompleted
	}
}

type CompleteSessionInput struct {
	Reason          string
	DurationSeconds int
	QuestionsAsked  int
}

// CompleteSession is idempotent: completing a terminal session is acknowledged
// without touching the row.
func (uc *SessionUsecase) CompleteSession(ctx context.Context, sessionID uuid.UUID, in CompleteSessionInput) (*model.InterviewSession, error) {
	if in.DurationSeconds < 0 {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("duration must not be negative"))
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "completed"
	}
	updated, err := uc.store.Sessions.Complete(ctx, sessionID, repository.SessionCompletion{
		Status:          StatusForReason(reason),
		Reason:          reason,
		DurationSeconds: in.DurationSeconds,
		QuestionsAsked:  in.QuestionsAsked,
		EndedAt:         uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	session, err := uc.store.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if updated {
		uc.log.Info("session completed", "session_id", sessionID, "status", session.Status, "reason", reason)
	} else {
		uc.log.Debug("session already terminal", "session_id", sessionID, "status", session.Status)
	}
	return session, nil
}
