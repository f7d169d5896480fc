package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/google/uuid"
)

type StageInput struct {
	StageType        model.StageType
	InterviewerName  string
	InterviewerEmail string
	InterviewDate    *time.Time
	DurationMinutes  int
	Scores           model.StageScores
	Strengths        string
	Weaknesses       string
	Notes            string
	Recommendation   model.Recommendation
}

func (in StageInput) validate() error {
	if !in.StageType.IsValid() {
		return apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("unknown stage type %q", in.StageType))
	}
	if !in.Scores.Validate() {
		return apperror.Wrap(apperror.ErrInvalidInput, errors.New("scores must be between 0 and 10"))
	}
	if extra := in.StageType.Inapplicable(in.Scores); len(extra) > 0 {
		return apperror.Wrap(apperror.ErrInvalidInput,
			fmt.Errorf("%s stage does not rate %s", in.StageType, strings.Join(extra, ", ")))
	}
	if in.Recommendation != "" && !in.Recommendation.IsValid() {
		return apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("unknown recommendation %q", in.Recommendation))
	}
	if in.DurationMinutes < 0 {
		return apperror.Wrap(apperror.ErrInvalidInput, errors.New("duration must not be negative"))
	}
	return nil
}

func (in StageInput) applyTo(stage *model.InterviewStage) {
	stage.InterviewerName = strings.TrimSpace(in.InterviewerName)
	stage.InterviewerEmail = strings.TrimSpace(in.InterviewerEmail)
	stage.InterviewDate = in.InterviewDate
	stage.DurationMinutes = in.DurationMinutes
	stage.Strengths = in.Strengths
	stage.Weaknesses = in.Weaknesses
	stage.Notes = in.Notes
	stage.Recommendation = in.Recommendation
	stage.SetScores(in.Scores)
}

type PipelineState struct {
	Pipeline     *model.CandidatePipeline `json:"pipeline"`
	Stages       []model.InterviewStage   `json:"stages"`
	InitialScore float64                  `json:"initial_score"`
	Eligibility  model.Eligibility        `json:"eligibility"`
}

type PipelineUsecase struct {
	store    *repository.Store
	notifier service.NotifierServiceInterface
	meetings service.MeetingServiceInterface
	log      *logger.Logger
	now      func() time.Time

	notifyTimeout time.Duration
}

func NewPipelineUsecase(
	store *repository.Store,
	notifier service.NotifierServiceInterface,
	meetings service.MeetingServiceInterface,
	log *logger.Logger,
) *PipelineUsecase {
	return &PipelineUsecase{
		store:         store,
		notifier:      notifier,
		meetings:      meetings,
		log:           log.With("usecase", "PipelineTracker"),
		now:           func() time.Time { return time.Now().UTC() },
		notifyTimeout: 30 * time.Second,
	}
}

// recomputePipeline recalculates eligibility from the stored scores and moves
// the pipeline status accordingly. It must run inside a transaction that
// already holds the recording row lock.
func recomputePipeline(ctx context.Context, tx *repository.Store, recordingID uuid.UUID, now time.Time) (*model.CandidatePipeline, error) {
	p, err := tx.Pipelines.GetOrCreateForUpdate(ctx, recordingID, now)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	stages, err := tx.Stages.ListByRecording(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	initial, err := tx.Evaluations.InitialScore(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("load initial score: %w", err)
	}
	if p.PipelineStatus == model.PipelineInitialComplete && len(stages) > 0 {
		p.PipelineStatus = model.PipelineInPipeline
	}
	p.Apply(model.ComputeEligibility(initial, stageScores(stages)))
	p.LastActivityAt = now
	if err := tx.Pipelines.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save pipeline: %w", err)
	}
	return p, nil
}

func stageScores(stages []model.InterviewStage) []float64 {
	out := make([]float64, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.OverallScore)
	}
	return out
}

func (uc *PipelineUsecase) AddStage(ctx context.Context, recordingID uuid.UUID, in StageInput) (*model.InterviewStage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var stage *model.InterviewStage
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Recordings.FindByIDForUpdate(ctx, recordingID); err != nil {
			return err
		}
		existing, err := tx.Stages.FindByRecordingAndType(ctx, recordingID, in.StageType)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.Wrap(apperror.ErrDuplicateStage, fmt.Errorf("%s stage already exists", in.StageType))
		}
		order, err := tx.Stages.NextOrder(ctx, recordingID)
		if err != nil {
			return err
		}
		stage = &model.InterviewStage{RecordingID: recordingID, StageType: in.StageType, StageOrder: order}
		in.applyTo(stage)
		if err := tx.Stages.Create(ctx, stage); err != nil {
			if repository.IsDuplicateKey(err) {
				return apperror.Wrap(apperror.ErrDuplicateStage, err)
			}
			return fmt.Errorf("create stage: %w", err)
		}
		_, err = recomputePipeline(ctx, tx, recordingID, uc.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("stage added", "recording_id", recordingID, "stage_type", stage.StageType, "overall_score", stage.OverallScore)
	return stage, nil
}

// EditStage rewrites everything but the stage type, which identifies the stage.
func (uc *PipelineUsecase) EditStage(ctx context.Context, stageID uuid.UUID, in StageInput) (*model.InterviewStage, error) {
	var stage *model.InterviewStage
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		stage, err = tx.Stages.FindByIDForUpdate(ctx, stageID)
		if err != nil {
			return err
		}
		if in.StageType == "" {
			in.StageType = stage.StageType
		}
		if in.StageType != stage.StageType {
			return apperror.Wrap(apperror.ErrInvalidInput, errors.New("stage type cannot be changed"))
		}
		if err := in.validate(); err != nil {
			return err
		}
		if _, err := tx.Recordings.FindByIDForUpdate(ctx, stage.RecordingID); err != nil {
			return err
		}
		in.applyTo(stage)
		if err := tx.Stages.Update(ctx, stage); err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		_, err = recomputePipeline(ctx, tx, stage.RecordingID, uc.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// RemoveStage deletes the stage and closes the gap in stage_order.
func (uc *PipelineUsecase) RemoveStage(ctx context.Context, stageID uuid.UUID) (*model.CandidatePipeline, error) {
	var pipeline *model.CandidatePipeline
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.FindByIDForUpdate(ctx, stageID)
		if err != nil {
			return err
		}
		if _, err := tx.Recordings.FindByIDForUpdate(ctx, stage.RecordingID); err != nil {
			return err
		}
		if err := tx.Stages.Delete(ctx, stageID); err != nil {
			return fmt.Errorf("delete stage: %w", err)
		}
		rest, err := tx.Stages.ListByRecording(ctx, stage.RecordingID)
		if err != nil {
			return err
		}
		for i, s := range rest {
			if s.StageOrder != i+1 {
				if err := tx.Stages.SetOrder(ctx, s.ID, i+1); err != nil {
					return err
				}
			}
		}
		pipeline, err = recomputePipeline(ctx, tx, stage.RecordingID, uc.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

// ResetCandidate drops every additional stage and returns the pipeline to
// initial_complete, clearing any onboarding bookkeeping.
func (uc *PipelineUsecase) ResetCandidate(ctx context.Context, recordingID uuid.UUID) (*model.CandidatePipeline, error) {
	var pipeline *model.CandidatePipeline
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		rec, err := tx.Recordings.FindByIDForUpdate(ctx, recordingID)
		if err != nil {
			return err
		}
		if _, err := tx.Stages.DeleteByRecording(ctx, recordingID); err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		now := uc.now()
		pipeline, err = tx.Pipelines.GetOrCreateForUpdate(ctx, recordingID, now)
		if err != nil {
			return err
		}
		initial, err := tx.Evaluations.InitialScore(ctx, recordingID)
		if err != nil {
			return err
		}
		pipeline.PipelineStatus = model.PipelineInitialComplete
		pipeline.OnboardingEmailSent = false
		pipeline.OnboardingEmailSentAt = nil
		pipeline.Apply(model.ComputeEligibility(initial, nil))
		pipeline.LastActivityAt = now
		if err := tx.Pipelines.Save(ctx, pipeline); err != nil {
			return err
		}
		if rec.EmailType == service.NotificationOnboarding {
			return tx.Recordings.UpdateFields(ctx, recordingID, map[string]interface{}{
				"email_sent":    false,
				"email_type":    "",
				"email_sent_at": nil,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("candidate reset", "recording_id", recordingID)
	return pipeline, nil
}

// Onboard marks an eligible candidate onboarded and sends the onboarding
// notification after commit. Notification failures are only logged.
func (uc *PipelineUsecase) Onboard(ctx context.Context, recordingID uuid.UUID) (*model.CandidatePipeline, error) {
	var (
		pipeline *model.CandidatePipeline
		rec      *model.InterviewRecording
	)
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		rec, err = tx.Recordings.FindByIDForUpdate(ctx, recordingID)
		if err != nil {
			return err
		}
		existing, err := tx.Pipelines.FindByRecordingID(ctx, recordingID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.Wrap(apperror.ErrNotEligible, errors.New("no pipeline recorded for this recording"))
		}
		switch existing.PipelineStatus {
		case model.PipelineOnboarded:
			return apperror.ErrAlreadyOnboarded
		case model.PipelineRejected, model.PipelineWithdrawn:
			return apperror.Wrap(apperror.ErrInvalidState, fmt.Errorf("pipeline is %s", existing.PipelineStatus))
		}

		now := uc.now()
		pipeline, err = recomputePipeline(ctx, tx, recordingID, now)
		if err != nil {
			return err
		}
		if !pipeline.MeetsOnboardingCriteria {
			return apperror.Wrap(apperror.ErrNotEligible, fmt.Errorf("%d scored stages averaging %.2f", pipeline.ScoredStages, pipeline.AverageScore))
		}
		pipeline.PipelineStatus = model.PipelineOnboarded
		pipeline.OnboardingEmailSent = true
		pipeline.OnboardingEmailSentAt = &now
		if err := tx.Pipelines.Save(ctx, pipeline); err != nil {
			return err
		}
		return tx.Recordings.UpdateFields(ctx, recordingID, map[string]interface{}{
			"email_sent":    true,
			"email_type":    service.NotificationOnboarding,
			"email_round":   rec.EmailRound + 1,
			"email_sent_at": now,
		})
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("candidate onboarded", "recording_id", recordingID, "average_score", pipeline.AverageScore, "email_round", rec.EmailRound+1)
	uc.notify(service.Notification{
		CandidateID: rec.CandidateID,
		RecordingID: recordingID,
		Type:        service.NotificationOnboarding,
		OccurredAt:  *pipeline.OnboardingEmailSentAt,
	})
	return pipeline, nil
}

func (uc *PipelineUsecase) notify(n service.Notification) {
	if uc.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uc.notifyTimeout)
		defer cancel()
		if err := uc.notifier.Send(ctx, n); err != nil {
			uc.log.Error("notification failed", "type", n.Type, "recording_id", n.RecordingID, "error", err)
		}
	}()
}

// SetPipelineStatus records an operator's terminal decision.
func (uc *PipelineUsecase) SetPipelineStatus(ctx context.Context, recordingID uuid.UUID, status model.PipelineStatus) (*model.CandidatePipeline, error) {
	if status != model.PipelineRejected && status != model.PipelineWithdrawn {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("status must be rejected or withdrawn, got %q", status))
	}
	var pipeline *model.CandidatePipeline
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Recordings.FindByIDForUpdate(ctx, recordingID); err != nil {
			return err
		}
		now := uc.now()
		var err error
		pipeline, err = tx.Pipelines.GetOrCreateForUpdate(ctx, recordingID, now)
		if err != nil {
			return err
		}
		if pipeline.PipelineStatus == model.PipelineOnboarded {
			return apperror.Wrap(apperror.ErrInvalidState, errors.New("candidate already onboarded"))
		}
		pipeline.PipelineStatus = status
		pipeline.LastActivityAt = now
		return tx.Pipelines.Save(ctx, pipeline)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("pipeline status set", "recording_id", recordingID, "status", status)
	return pipeline, nil
}

func (uc *PipelineUsecase) GetPipelineState(ctx context.Context, recordingID uuid.UUID) (*PipelineState, error) {
	if _, err := uc.store.Recordings.FindByID(ctx, recordingID); err != nil {
		return nil, err
	}
	p, err := uc.store.Pipelines.FindByRecordingID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	stages, err := uc.store.Stages.ListByRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	initial, err := uc.store.Evaluations.InitialScore(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return &PipelineState{
		Pipeline:     p,
		Stages:       stages,
		InitialScore: initial,
		Eligibility:  model.ComputeEligibility(initial, stageScores(stages)),
	}, nil
}

const (
	InterviewOnline = "online"
	InterviewOnsite = "onsite"
)

type ScheduleInput struct {
	InterviewType   string
	InterviewDate   time.Time
	DurationMinutes int
	Location        string
	MeetingLink     string
	MeetingID       string
	MeetingPassword string
}

// ScheduleInterview stores the next interview slot on the recording. Online
// interviews without a link get a meeting created through the meeting service.
func (uc *PipelineUsecase) ScheduleInterview(ctx context.Context, recordingID uuid.UUID, in ScheduleInput) (*model.InterviewRecording, error) {
	in.InterviewType = strings.ToLower(strings.TrimSpace(in.InterviewType))
	if in.InterviewDate.IsZero() {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, errors.New("interview date is required"))
	}
	switch in.InterviewType {
	case InterviewOnsite:
		if strings.TrimSpace(in.Location) == "" {
			return nil, apperror.Wrap(apperror.ErrInvalidInput, errors.New("location is required for onsite interviews"))
		}
		in.MeetingLink, in.MeetingID, in.MeetingPassword = "", "", ""
	case InterviewOnline:
		in.Location = ""
	default:
		return nil, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("interview type must be online or onsite, got %q", in.InterviewType))
	}

	rec, err := uc.store.Recordings.FindByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if in.InterviewType == InterviewOnline && in.MeetingLink == "" {
		if uc.meetings == nil {
			return nil, apperror.Wrap(apperror.ErrInvalidInput, errors.New("meeting link is required"))
		}
		meeting, err := uc.meetings.CreateMeeting(ctx, service.MeetingRequest{
			Topic:           fmt.Sprintf("Interview %s", rec.ConversationID),
			StartTime:       in.InterviewDate,
			DurationMinutes: in.DurationMinutes,
		})
		if err != nil {
			return nil, apperror.Wrap(apperror.ErrProviderUnavailable, fmt.Errorf("create meeting: %w", err))
		}
		in.MeetingLink, in.MeetingID, in.MeetingPassword = meeting.JoinURL, meeting.ID, meeting.Password
	}

	date := in.InterviewDate.UTC()
	if err := uc.store.Recordings.UpdateFields(ctx, recordingID, map[string]interface{}{
		"interview_type":   in.InterviewType,
		"interview_date":   date,
		"location":         in.Location,
		"meeting_link":     in.MeetingLink,
		"meeting_id":       in.MeetingID,
		"meeting_password": in.MeetingPassword,
	}); err != nil {
		return nil, fmt.Errorf("store schedule: %w", err)
	}
	uc.log.Info("interview scheduled", "recording_id", recordingID, "type", in.InterviewType, "date", date)
	return uc.store.Recordings.FindByID(ctx, recordingID)
}
