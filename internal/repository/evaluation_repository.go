package repository

import (
	"context"
	"errors"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{db}
}

// Upsert keeps one evaluation per recording; re-evaluating overwrites the scores.
func (r *EvaluationRepository) Upsert(ctx context.Context, e *model.InterviewEvaluation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "recording_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score",
				"technical_score",
				"communication_score",
				"problem_solving_score",
				"recommendation",
				"summary",
				"model",
				"raw_response",
				"updated_at",
			}),
		}).
		Create(e).Error
}

// FindByRecordingID returns nil, nil when the recording has not been scored.
func (r *EvaluationRepository) FindByRecordingID(ctx context.Context, recordingID uuid.UUID) (*model.InterviewEvaluation, error) {
	var e model.InterviewEvaluation
	err := r.db.WithContext(ctx).Where("recording_id = ?", recordingID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InitialScore is the evaluation's overall score, or 0 when unscored.
func (r *EvaluationRepository) InitialScore(ctx context.Context, recordingID uuid.UUID) (float64, error) {
	e, err := r.FindByRecordingID(ctx, recordingID)
	if err != nil || e == nil {
		return 0, err
	}
	return e.OverallScore, nil
}
