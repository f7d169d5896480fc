package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionReady      SessionStatus = "ready"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionPartial    SessionStatus = "partial"
	SessionFailed     SessionStatus = "failed"
)

func (s SessionStatus) IsActive() bool {
	return s == SessionReady || s == SessionInProgress
}

func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionPartial, SessionFailed:
		return true
	default:
		return false
	}
}

// InterviewSession is a live interview attempt before any provider data exists.
// ActiveCandidateID mirrors CandidateID while the session is ready/in_progress and
// is NULL afterwards; its unique index is what keeps one active session per candidate.
type InterviewSession struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CandidateID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"candidate_id"`
	ActiveCandidateID *uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"-"`
	Status            SessionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CompletionReason  string        `gorm:"type:text" json:"completion_reason"`
	StartedAt         time.Time     `gorm:"not null;index" json:"started_at"`
	EndedAt           *time.Time    `json:"ended_at"`
	DurationSeconds   int           `json:"duration_seconds"`
	QuestionsAsked    int           `json:"questions_asked"`
	QuestionsPlanned  int           `json:"questions_planned"`
	ExternalSessionID string        `gorm:"type:varchar(255);index" json:"external_session_id"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (s *InterviewSession) TableName() string {
	return "interview_sessions"
}

func (s *InterviewSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
