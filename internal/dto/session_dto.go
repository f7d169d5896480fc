package dto

import "github.com/google/uuid"

type StartSessionRequest struct {
	CandidateID      uuid.UUID `json:"candidate_id"`
	QuestionsPlanned int       `json:"questions_planned"`
}

type BeginSessionRequest struct {
	ExternalSessionID string `json:"external_session_id"`
}

type CompleteSessionRequest struct {
	Reason          string     `json:"reason"`
	DurationSeconds int        `json:"duration_seconds"`
	QuestionsAsked  int        `json:"questions_asked"`
	ConversationID  string     `json:"conversation_id"`
	CandidateID     *uuid.UUID `json:"candidate_id"`
}

type CanStartSessionResponse struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	CanStart    bool      `json:"can_start"`
}
