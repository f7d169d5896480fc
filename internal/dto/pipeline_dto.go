package dto

import "time"

type StageRequest struct {
	StageType           string     `json:"stage_type"`
	InterviewerName     string     `json:"interviewer_name"`
	InterviewerEmail    string     `json:"interviewer_email"`
	InterviewDate       *time.Time `json:"interview_date"`
	DurationMinutes     int        `json:"duration_minutes"`
	TechnicalScore      float64    `json:"technical_score"`
	CommunicationScore  float64    `json:"communication_score"`
	ProblemSolvingScore float64    `json:"problem_solving_score"`
	CulturalFitScore    float64    `json:"cultural_fit_score"`
	LeadershipScore     float64    `json:"leadership_score"`
	Strengths           string     `json:"strengths"`
	Weaknesses          string     `json:"weaknesses"`
	Notes               string     `json:"notes"`
	Recommendation      string     `json:"recommendation"`
}

type PipelineStatusRequest struct {
	Status string `json:"status"`
}

type ScheduleRequest struct {
	InterviewType   string    `json:"interview_type"`
	InterviewDate   time.Time `json:"interview_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	MeetingLink     string    `json:"meeting_link"`
	MeetingID       string    `json:"meeting_id"`
	MeetingPassword string    `json:"meeting_password"`
}
