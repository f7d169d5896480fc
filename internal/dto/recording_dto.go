package dto

import "github.com/google/uuid"

type ReconcileRequest struct {
	ConversationID string     `json:"conversation_id"`
	CandidateID    *uuid.UUID `json:"candidate_id"`
	Force          bool       `json:"force"`
}

type RetryFailedRequest struct {
	MaxAttempts        int `json:"max_attempts"`
	CreatedWithinHours int `json:"created_within_hours"`
	Concurrency        int `json:"concurrency"`
	Limit              int `json:"limit"`
}

type ManualRecordingRequest struct {
	CandidateID *uuid.UUID `json:"candidate_id"`
	CreatedBy   string     `json:"created_by"`
	Notes       string     `json:"notes"`
}
