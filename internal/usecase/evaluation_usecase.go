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
	"gorm.io/datatypes"
)

type EvaluationUsecase struct {
	store  *repository.Store
	scorer service.ScorerServiceInterface
	log    *logger.Logger
	now    func() time.Time
}

func NewEvaluationUsecase(store *repository.Store, scorer service.ScorerServiceInterface, log *logger.Logger) *EvaluationUsecase {
	return &EvaluationUsecase{
		store:  store,
		scorer: scorer,
		log:    log.With("usecase", "Evaluation"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateRecording scores the stored transcript of a completed recording and
// feeds the result into the pipeline as the initial interview score.
func (uc *EvaluationUsecase) EvaluateRecording(ctx context.Context, recordingID uuid.UUID) (*model.InterviewEvaluation, error) {
	if uc.scorer == nil {
		return nil, apperror.Wrap(apperror.ErrProviderUnavailable, errors.New("no scorer configured"))
	}
	rec, err := uc.store.Recordings.FindByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.RecordingCompleted {
		return nil, apperror.Wrap(apperror.ErrInvalidState, fmt.Errorf("recording is %s", rec.Status))
	}
	msgs, err := uc.store.Messages.ListByRecording(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, apperror.Wrap(apperror.ErrInvalidState, errors.New("recording has no transcript to evaluate"))
	}

	start := time.Now()
	score, err := uc.scorer.ScoreInterview(ctx, transcriptText(msgs))
	if err != nil {
		uc.log.Warn("scoring failed", "recording_id", recordingID, "error", err)
		return nil, apperror.Wrap(apperror.ErrProviderUnavailable, err)
	}

	eval := &model.InterviewEvaluation{
		RecordingID:         recordingID,
		OverallScore:        score.OverallScore,
		TechnicalScore:      score.TechnicalScore,
		CommunicationScore:  score.CommunicationScore,
		ProblemSolvingScore: score.ProblemSolvingScore,
		Recommendation:      score.Recommendation,
		Summary:             score.Summary,
		Model:               score.Model,
		RawResponse:         datatypes.JSON(score.Raw),
	}
	err = uc.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Recordings.FindByIDForUpdate(ctx, recordingID); err != nil {
			return err
		}
		if err := tx.Evaluations.Upsert(ctx, eval); err != nil {
			return fmt.Errorf("store evaluation: %w", err)
		}
		_, err := recomputePipeline(ctx, tx, recordingID, uc.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("recording evaluated", "recording_id", recordingID, "overall_score", score.OverallScore, "duration", time.Since(start))
	return uc.store.Evaluations.FindByRecordingID(ctx, recordingID)
}

func transcriptText(msgs []model.InterviewMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
