package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RecordingStatus string

const (
	RecordingPending    RecordingStatus = "pending"
	RecordingProcessing RecordingStatus = "processing"
	RecordingCompleted  RecordingStatus = "completed"
	RecordingFailed     RecordingStatus = "failed"
)

// Retryable reports whether the sweeper may pick the recording up again.
func (s RecordingStatus) Retryable() bool {
	return s == RecordingFailed || s == RecordingProcessing || s == RecordingPending
}

// SyntheticConversationPrefix marks recordings created without provider data
// (offline or manually entered interviews). They are never sent to the provider.
const SyntheticConversationPrefix = "manual_"

func IsSyntheticConversation(conversationID string) bool {
	return strings.HasPrefix(conversationID, SyntheticConversationPrefix)
}

type InterviewRecording struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CandidateID      *uuid.UUID      `gorm:"type:uuid;index" json:"candidate_id"`
	ConversationID   string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"conversation_id"`
	Status           RecordingStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt        *time.Time      `json:"started_at"`
	EndedAt          *time.Time      `json:"ended_at"`
	DurationSeconds  int             `json:"duration_seconds"`
	RawPayload       datatypes.JSON  `json:"raw_payload"`
	AudioPath        string          `gorm:"type:text" json:"audio_path"`
	AudioSizeBytes   int64           `json:"audio_size_bytes"`
	TranscriptPath   string          `gorm:"type:text" json:"transcript_path"`
	MessageCount     int             `json:"message_count"`
	Attempts         int             `json:"attempts"`
	LastError        string          `gorm:"type:text" json:"last_error"`
	LastReconciledAt *time.Time      `json:"last_reconciled_at"`

	EmailSent   bool       `json:"email_sent"`
	EmailType   string     `gorm:"type:varchar(50)" json:"email_type"`
	EmailRound  int        `json:"email_round"` // onboarding emails sent, kept across resets
	EmailSentAt *time.Time `json:"email_sent_at"`

	InterviewType   string     `gorm:"type:varchar(20)" json:"interview_type"`
	InterviewDate   *time.Time `json:"interview_date"`
	Location        string     `gorm:"type:text" json:"location"`
	MeetingLink     string     `gorm:"type:text" json:"meeting_link"`
	MeetingID       string     `gorm:"type:varchar(100)" json:"meeting_id"`
	MeetingPassword string     `gorm:"type:varchar(100)" json:"meeting_password"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *InterviewRecording) TableName() string {
	return "interview_recordings"
}

func (r *InterviewRecording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RecordingPayload is the envelope stored in RawPayload. Conversation holds the
// provider body untouched; the other fields are the diagnostic trail left by
// reconciliation.
type RecordingPayload struct {
	Conversation          json.RawMessage `json:"conversation,omitempty"`
	LastError             *PayloadError   `json:"last_error,omitempty"`
	AudioError            string          `json:"audio_error,omitempty"`
	EmptyTranscript       bool            `json:"empty_transcript,omitempty"`
	EmptyTranscriptReason string          `json:"empty_transcript_reason,omitempty"`
	DroppedMessages       int             `json:"dropped_messages,omitempty"`
	Manual                *ManualNote     `json:"manual,omitempty"`
}

type PayloadError struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Attempt    int       `json:"attempt"`
	At         time.Time `json:"at"`
}

type ManualNote struct {
	CreatedBy string `json:"created_by,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Payload decodes RawPayload. A missing or malformed blob yields an empty envelope.
func (r *InterviewRecording) Payload() RecordingPayload {
	var p RecordingPayload
	if len(r.RawPayload) == 0 {
		return p
	}
	_ = json.Unmarshal(r.RawPayload, &p)
	return p
}

func EncodePayload(p RecordingPayload) datatypes.JSON {
	b, err := json.Marshal(p)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
