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

type PipelineRepository struct {
	db *gorm.DB
}

func NewPipelineRepository(db *gorm.DB) *PipelineRepository {
	return &PipelineRepository{db}
}

// FindByRecordingID returns nil, nil when the recording has no pipeline yet.
func (r *PipelineRepository) FindByRecordingID(ctx context.Context, recordingID uuid.UUID) (*model.CandidatePipeline, error) {
	var p model.CandidatePipeline
	err := r.db.WithContext(ctx).Where("recording_id = ?", recordingID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateForUpdate returns the locked pipeline row of the recording,
// inserting an initial_complete row first when none exists.
func (r *PipelineRepository) GetOrCreateForUpdate(ctx context.Context, recordingID uuid.UUID, now time.Time) (*model.CandidatePipeline, error) {
	fresh := &model.CandidatePipeline{
		RecordingID:    recordingID,
		PipelineStatus: model.PipelineInitialComplete,
		LastActivityAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recording_id"}},
			DoNothing: true,
		}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}
	var p model.CandidatePipeline
	if err := forUpdate(r.db.WithContext(ctx)).Where("recording_id = ?", recordingID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PipelineRepository) Save(ctx context.Context, p *model.CandidatePipeline) error {
	return r.db.WithContext(ctx).Save(p).Error
}
