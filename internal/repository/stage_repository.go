package repository

import (
	"context"
	"errors"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageRepository struct {
	db *gorm.DB
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{db}
}

func (r *StageRepository) Create(ctx context.Context, stage *model.InterviewStage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *StageRepository) Update(ctx context.Context, stage *model.InterviewStage) error {
	return r.db.WithContext(ctx).Save(stage).Error
}

func (r *StageRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.InterviewStage, error) {
	var s model.InterviewStage
	if err := forUpdate(r.db.WithContext(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "stage %s", id)
	}
	return &s, nil
}

// FindByRecordingAndType returns nil, nil when the pair is free.
func (r *StageRepository) FindByRecordingAndType(ctx context.Context, recordingID uuid.UUID, stageType model.StageType) (*model.InterviewStage, error) {
	var s model.InterviewStage
	err := r.db.WithContext(ctx).
		Where("recording_id = ? AND stage_type = ?", recordingID, stageType).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StageRepository) ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]model.InterviewStage, error) {
	var out []model.InterviewStage
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("stage_order ASC").
		Find(&out).Error
	return out, err
}

func (r *StageRepository) NextOrder(ctx context.Context, recordingID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.InterviewStage{}).
		Where("recording_id = ?", recordingID).
		Select("COALESCE(MAX(stage_order), 0)").
		Scan(&max).Error
	return max + 1, err
}

func (r *StageRepository) SetOrder(ctx context.Context, id uuid.UUID, order int) error {
	return r.db.WithContext(ctx).
		Model(&model.InterviewStage{}).
		Where("id = ?", id).
		Update("stage_order", order).Error
}

func (r *StageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.InterviewStage{}).Error
}

func (r *StageRepository) DeleteByRecording(ctx context.Context, recordingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("recording_id = ?", recordingID).Delete(&model.InterviewStage{})
	return res.RowsAffected, res.Error
}
