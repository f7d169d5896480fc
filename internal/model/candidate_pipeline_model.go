package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PipelineStatus string

const (
	PipelineInitialComplete    PipelineStatus = "initial_complete"
	PipelineInPipeline         PipelineStatus = "in_pipeline"
	PipelineReadyForOnboarding PipelineStatus = "ready_for_onboarding"
	PipelineOnboarded          PipelineStatus = "onboarded"
	PipelineRejected           PipelineStatus = "rejected"
	PipelineWithdrawn          PipelineStatus = "withdrawn"
)

// IsFinal reports statuses that eligibility recomputation never moves.
func (s PipelineStatus) IsFinal() bool {
	return s == PipelineOnboarded || s == PipelineRejected || s == PipelineWithdrawn
}

const (
	MinStagesForOnboarding  = 2
	MinAverageForOnboarding = 6.0
)

type CandidatePipeline struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecordingID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"recording_id"`
	PipelineStatus          PipelineStatus `gorm:"type:varchar(30);not null;index" json:"pipeline_status"`
	MeetsOnboardingCriteria bool           `json:"meets_onboarding_criteria"`
	ScoredStages            int            `json:"scored_stages"`
	AverageScore            float64        `json:"average_score"`
	OnboardingEmailSent     bool           `json:"onboarding_email_sent"`
	OnboardingEmailSentAt   *time.Time     `json:"onboarding_email_sent_at"`
	LastActivityAt          time.Time      `json:"last_activity_at"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

func (p *CandidatePipeline) TableName() string {
	return "candidate_pipelines"
}

func (p *CandidatePipeline) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Eligibility struct {
	ScoredStages int
	AverageScore float64
	Meets        bool
}

// ComputeEligibility counts only evaluations that produced a non-zero score:
// the initial AI interview (if scored) plus every scored additional stage.
func ComputeEligibility(initialScore float64, stageScores []float64) Eligibility {
	scores := make([]float64, 0, len(stageScores)+1)
	if initialScore > 0 {
		scores = append(scores, initialScore)
	}
	for _, s := range stageScores {
		if s > 0 {
			scores = append(scores, s)
		}
	}
	e := Eligibility{ScoredStages: len(scores), AverageScore: MeanOfRated(scores...)}
	e.Meets = e.ScoredStages >= MinStagesForOnboarding && e.AverageScore >= MinAverageForOnboarding
	return e
}

// Apply stores e on the pipeline and moves the status along the
// in_pipeline <-> ready_for_onboarding edge. Final statuses are left alone.
func (p *CandidatePipeline) Apply(e Eligibility) {
	p.ScoredStages = e.ScoredStages
	p.AverageScore = e.AverageScore
	p.MeetsOnboardingCriteria = e.Meets
	if p.PipelineStatus.IsFinal() {
		return
	}
	switch {
	case p.PipelineStatus == PipelineInPipeline && e.Meets:
		p.PipelineStatus = PipelineReadyForOnboarding
	case p.PipelineStatus == PipelineReadyForOnboarding && !e.Meets:
		p.PipelineStatus = PipelineInPipeline
	}
}
