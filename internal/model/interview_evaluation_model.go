package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterviewEvaluation is the scorer's verdict on the initial AI interview.
type InterviewEvaluation struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecordingID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"recording_id"`
	OverallScore        float64        `json:"overall_score"`
	TechnicalScore      float64        `json:"technical_score"`
	CommunicationScore  float64        `json:"communication_score"`
	ProblemSolvingScore float64        `json:"problem_solving_score"`
	Recommendation      string         `gorm:"type:varchar(50)" json:"recommendation"`
	Summary             string         `gorm:"type:text" json:"summary"`
	Model               string         `gorm:"type:varchar(100)" json:"model"`
	RawResponse         datatypes.JSON `json:"raw_response"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (e *InterviewEvaluation) TableName() string {
	return "interview_evaluations"
}

func (e *InterviewEvaluation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AllModels is the migration set used by the server, the recovery CLI and tests.
func AllModels() []interface{} {
	return []interface{}{
		&InterviewSession{},
		&InterviewRecording{},
		&InterviewMessage{},
		&InterviewStage{},
		&CandidatePipeline{},
		&InterviewEvaluation{},
	}
}
