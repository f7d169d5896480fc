package repository

import (
	"context"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Replace deletes every message of the recording and inserts msgs. Run it
// inside a transaction so readers never see a half-written transcript.
func (r *MessageRepository) Replace(ctx context.Context, recordingID uuid.UUID, msgs []model.InterviewMessage) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("recording_id = ?", recordingID).Delete(&model.InterviewMessage{}).Error; err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return db.CreateInBatches(&msgs, 200).Error
}

func (r *MessageRepository) ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]model.InterviewMessage, error) {
	var out []model.InterviewMessage
	err := r.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("sequence_number ASC").
		Find(&out).Error
	return out, err
}

func (r *MessageRepository) CountByRecording(ctx context.Context, recordingID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.InterviewMessage{}).
		Where("recording_id = ?", recordingID).
		Count(&n).Error
	return n, err
}
