package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SpeakerRole string

const (
	RoleCandidate   SpeakerRole = "candidate"
	RoleInterviewer SpeakerRole = "interviewer"
	RoleSystem      SpeakerRole = "system"
)

// RoleFromProvider maps the provider's "user"/"agent" vocabulary onto ours.
func RoleFromProvider(role string) SpeakerRole {
	switch role {
	case "user", "candidate":
		return RoleCandidate
	case "agent", "assistant", "interviewer":
		return RoleInterviewer
	default:
		return RoleSystem
	}
}

type InterviewMessage struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecordingID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_message_recording_seq,priority:1" json:"recording_id"`
	SequenceNumber    int            `gorm:"not null;uniqueIndex:idx_message_recording_seq,priority:2" json:"sequence_number"`
	Role              SpeakerRole    `gorm:"type:varchar(20);not null" json:"role"`
	Content           string         `gorm:"type:text;not null" json:"content"`
	Timestamp         *time.Time     `json:"timestamp"`
	TimeInCallSeconds *float64       `json:"time_in_call_seconds"`
	DurationMs        *int64         `json:"duration_ms"`
	RawPayload        datatypes.JSON `json:"raw_payload"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (m *InterviewMessage) TableName() string {
	return "interview_messages"
}

func (m *InterviewMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
