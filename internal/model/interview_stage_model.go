package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageType string

const (
	StageTechnical   StageType = "technical"
	StageBehavioral  StageType = "behavioral"
	StageFinal       StageType = "final"
	StagePanel       StageType = "panel"
	StageCulturalFit StageType = "cultural_fit"
)

func (t StageType) IsValid() bool {
	switch t {
	case StageTechnical, StageBehavioral, StageFinal, StagePanel, StageCulturalFit:
		return true
	default:
		return false
	}
}

type Recommendation string

const (
	RecommendReject  Recommendation = "reject"
	RecommendOnHold  Recommendation = "on_hold"
	RecommendProceed Recommendation = "proceed"
	RecommendHire    Recommendation = "hire"
)

func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendReject, RecommendOnHold, RecommendProceed, RecommendHire:
		return true
	default:
		return false
	}
}

// StageScores holds the 0-10 sub-scores. Zero means "not rated".
type StageScores struct {
	Technical      float64 `json:"technical_score"`
	Communication  float64 `json:"communication_score"`
	ProblemSolving float64 `json:"problem_solving_score"`
	CulturalFit    float64 `json:"cultural_fit_score"`
	Leadership     float64 `json:"leadership_score"`
}

// InterviewStage is a human-conducted round appended after the AI interview.
type InterviewStage struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecordingID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_stage_recording_type,priority:1" json:"recording_id"`
	StageType           StageType      `gorm:"type:varchar(30);not null;uniqueIndex:idx_stage_recording_type,priority:2" json:"stage_type"`
	StageOrder          int            `gorm:"not null" json:"stage_order"`
	InterviewerName     string         `gorm:"type:varchar(255)" json:"interviewer_name"`
	InterviewerEmail    string         `gorm:"type:varchar(255)" json:"interviewer_email"`
	InterviewDate       *time.Time     `json:"interview_date"`
	DurationMinutes     int            `json:"duration_minutes"`
	TechnicalScore      float64        `json:"technical_score"`
	CommunicationScore  float64        `json:"communication_score"`
	ProblemSolvingScore float64        `json:"problem_solving_score"`
	CulturalFitScore    float64        `json:"cultural_fit_score"`
	LeadershipScore     float64        `json:"leadership_score"`
	OverallScore        float64        `json:"overall_score"`
	Strengths           string         `gorm:"type:text" json:"strengths"`
	Weaknesses          string         `gorm:"type:text" json:"weaknesses"`
	Notes               string         `gorm:"type:text" json:"notes"`
	Recommendation      Recommendation `gorm:"type:varchar(20)" json:"recommendation"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (s *InterviewStage) TableName() string {
	return "interview_stages"
}

func (s *InterviewStage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// applicableScores lists which sub-scores each stage type rates.
var applicableScores = map[StageType][]string{
	StageTechnical:   {"technical", "problem_solving", "communication"},
	StageBehavioral:  {"communication", "cultural_fit", "leadership"},
	StageCulturalFit: {"cultural_fit", "communication"},
	StageFinal:       {"technical", "communication", "problem_solving", "cultural_fit", "leadership"},
	StagePanel:       {"technical", "communication", "problem_solving", "cultural_fit", "leadership"},
}

func (sc StageScores) byName() map[string]float64 {
	return map[string]float64{
		"technical":       sc.Technical,
		"communication":   sc.Communication,
		"problem_solving": sc.ProblemSolving,
		"cultural_fit":    sc.CulturalFit,
		"leadership":      sc.Leadership,
	}
}

// Inapplicable lists the rated sub-scores the stage type does not cover,
// in a stable order.
func (t StageType) Inapplicable(scores StageScores) []string {
	covered := make(map[string]bool, 5)
	for _, name := range applicableScores[t] {
		covered[name] = true
	}
	var out []string
	values := scores.byName()
	for _, name := range []string{"technical", "communication", "problem_solving", "cultural_fit", "leadership"} {
		if values[name] != 0 && !covered[name] {
			out = append(out, name)
		}
	}
	return out
}

// SetScores stores the sub-scores applicable to the stage type, zeroing the rest,
// and recomputes OverallScore. Callers reject inapplicable ratings first.
func (s *InterviewStage) SetScores(scores StageScores) {
	values := scores.byName()
	kept := make(map[string]float64, len(values))
	for _, name := range applicableScores[s.StageType] {
		kept[name] = values[name]
	}
	s.TechnicalScore = kept["technical"]
	s.CommunicationScore = kept["communication"]
	s.ProblemSolvingScore = kept["problem_solving"]
	s.CulturalFitScore = kept["cultural_fit"]
	s.LeadershipScore = kept["leadership"]
	s.OverallScore = MeanOfRated(
		s.TechnicalScore,
		s.CommunicationScore,
		s.ProblemSolvingScore,
		s.CulturalFitScore,
		s.LeadershipScore,
	)
}

// Validate checks every sub-score is within 0..10.
func (sc StageScores) Validate() bool {
	for _, v := range []float64{sc.Technical, sc.Communication, sc.ProblemSolving, sc.CulturalFit, sc.Leadership} {
		if v < 0 || v > 10 {
			return false
		}
	}
	return true
}

// MeanOfRated averages the non-zero values, returning 0 when none are rated.
func MeanOfRated(values ...float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
