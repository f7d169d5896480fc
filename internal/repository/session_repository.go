package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.InterviewSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.InterviewSession, error) {
	var s model.InterviewSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "session %s", id)
	}
	return &s, nil
}

// FindActiveByCandidate returns nil, nil when the candidate has no active session.
func (r *SessionRepository) FindActiveByCandidate(ctx context.Context, candidateID uuid.UUID) (*model.InterviewSession, error) {
	var s model.InterviewSession
	err := r.db.WithContext(ctx).
		Where("candidate_id = ? AND status IN ?", candidateID, []model.SessionStatus{model.SessionReady, model.SessionInProgress}).
		Order("started_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.InterviewSession{}).
		Where("status IN ?", []model.SessionStatus{model.SessionReady, model.SessionInProgress}).
		Count(&n).Error
	return n, err
}

// MarkInProgress moves a ready session to in_progress. It reports false when
// the session was not in ready.
func (r *SessionRepository) MarkInProgress(ctx context.Context, id uuid.UUID, externalSessionID string, now time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     model.SessionInProgress,
		"updated_at": now,
	}
	if externalSessionID != "" {
		updates["external_session_id"] = externalSessionID
	}
	res := r.db.WithContext(ctx).
		Model(&model.InterviewSession{}).
		Where("id = ? AND status = ?", id, model.SessionReady).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

type SessionCompletion struct {
	Status          model.SessionStatus
	Reason          string
	DurationSeconds int
	QuestionsAsked  int
	EndedAt         time.Time
}

// Complete finalizes an active session. The status guard in the WHERE clause
// makes it a no-op (false) for sessions that are already terminal.
func (r *SessionRepository) Complete(ctx context.Context, id uuid.UUID, c SessionCompletion) (bool, error) {
	updates := map[string]interface{}{
		"status":              c.Status,
		"completion_reason":   c.Reason,
		"duration_seconds":    c.DurationSeconds,
		"ended_at":            c.EndedAt,
		"active_candidate_id": nil,
		"updated_at":          c.EndedAt,
	}
	if c.QuestionsAsked > 0 {
		updates["questions_asked"] = c.QuestionsAsked
	}
	res := r.db.WithContext(ctx).
		Model(&model.InterviewSession{}).
		Where("id = ? AND status IN ?", id, []model.SessionStatus{model.SessionReady, model.SessionInProgress}).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ExpireStale closes every ready session started before cutoff in one
// conditional UPDATE, so concurrent sweeps never count the same row twice.
func (r *SessionRepository) ExpireStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InterviewSession{}).
		Where("status = ? AND started_at < ?", model.SessionReady, cutoff).
		Updates(map[string]interface{}{
			"status":              model.SessionCompleted,
			"completion_reason":   "timeout",
			"ended_at":            now,
			"active_candidate_id": nil,
			"updated_at":          now,
		})
	return res.RowsAffected, res.Error
}
