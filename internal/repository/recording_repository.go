package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordingRepository struct {
	db *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{db}
}

// CreateIfAbsent inserts rec unless a row with the same conversation_id exists.
// It reports whether this call created the row; callers re-read either way.
func (r *RecordingRepository) CreateIfAbsent(ctx context.Context, rec *model.InterviewRecording) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByConversationID returns nil, nil when no recording exists.
func (r *RecordingRepository) FindByConversationID(ctx context.Context, conversationID string) (*model.InterviewRecording, error) {
	return r.findByConversationID(r.db.WithContext(ctx), conversationID)
}

// FindByConversationIDForUpdate is FindByConversationID with a row lock; call it
// inside a transaction.
func (r *RecordingRepository) FindByConversationIDForUpdate(ctx context.Context, conversationID string) (*model.InterviewRecording, error) {
	return r.findByConversationID(forUpdate(r.db.WithContext(ctx)), conversationID)
}

func (r *RecordingRepository) findByConversationID(db *gorm.DB, conversationID string) (*model.InterviewRecording, error) {
	var rec model.InterviewRecording
	err := db.Where("conversation_id = ?", conversationID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecordingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.InterviewRecording, error) {
	var rec model.InterviewRecording
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "recording %s", id)
	}
	return &rec, nil
}

func (r *RecordingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InterviewRecording, error) {
	var rec model.InterviewRecording
	if err := forUpdate(r.db.WithContext(ctx)).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "recording %s", id)
	}
	return &rec, nil
}

func (r *RecordingRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Model(&model.InterviewRecording{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RetryFilter narrows the retry candidates. Zero values disable a bound.
type RetryFilter struct {
	CreatedSince     time.Time
	ProcessingBefore time.Time
	Limit            int
}

// ListRetryable returns failed/pending recordings, plus processing ones whose
// last update is older than ProcessingBefore, excluding synthetic conversations.
func (r *RecordingRepository) ListRetryable(ctx context.Context, f RetryFilter) ([]model.InterviewRecording, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id NOT LIKE ? ESCAPE '\\'", `manual\_%`)
	if f.ProcessingBefore.IsZero() {
		q = q.Where("status IN ?", []model.RecordingStatus{model.RecordingFailed, model.RecordingPending, model.RecordingProcessing})
	} else {
		q = q.Where("(status IN ? OR (status = ? AND updated_at < ?))",
			[]model.RecordingStatus{model.RecordingFailed, model.RecordingPending},
			model.RecordingProcessing, f.ProcessingBefore)
	}
	if !f.CreatedSince.IsZero() {
		q = q.Where("created_at >= ?", f.CreatedSince)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []model.InterviewRecording
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *RecordingRepository) List(ctx context.Context, status model.RecordingStatus, page, pageSize int) ([]model.InterviewRecording, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.InterviewRecording{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []model.InterviewRecording
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&out).Error
	return out, total, err
}

type StatusCount struct {
	Status model.RecordingStatus `json:"status"`
	Count  int64                 `json:"count"`
}

func (r *RecordingRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var out []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.InterviewRecording{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}
