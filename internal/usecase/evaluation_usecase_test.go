package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconciledRecording(t *testing.T, env *testEnv, convID string) *model.InterviewRecording {
	t.Helper()
	env.provider.SetConversation(testutil.Conversation(convID,
		testutil.Turn("agent", "Describe a hard bug you fixed."),
		testutil.Turn("user", "A race in our cache invalidation."),
	))
	env.provider.SetAudio(convID, []byte("a"))
	rec, err := env.reconciler.Reconcile(context.Background(), convID, nil)
	require.NoError(t, err)
	return rec
}

func TestEvaluateRecording(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := reconciledRecording(t, env, "eval")

	eval, err := env.evaluations.EvaluateRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 8, eval.OverallScore, 0.001)
	assert.Equal(t, "proceed", eval.Recommendation)
	assert.Contains(t, env.scorer.Last, "candidate: A race in our cache invalidation.")
	assert.Contains(t, env.scorer.Last, "interviewer: Describe a hard bug you fixed.")

	state, err := env.pipeline.GetPipelineState(ctx, rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 8, state.InitialScore, 0.001)
	require.NotNil(t, state.Pipeline)
	assert.Equal(t, model.PipelineInitialComplete, state.Pipeline.PipelineStatus)
	assert.Equal(t, 1, state.Pipeline.ScoredStages)

	_, err = env.pipeline.AddStage(ctx, rec.ID, behavioralStage(5))
	require.NoError(t, err)
	state, err = env.pipeline.GetPipelineState(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelineReadyForOnboarding, state.Pipeline.PipelineStatus)

	env.scorer.Score.OverallScore = 3
	again, err := env.evaluations.EvaluateRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, eval.ID, again.ID)
	assert.InDelta(t, 3, again.OverallScore, 0.001)

	state, err = env.pipeline.GetPipelineState(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelineInPipeline, state.Pipeline.PipelineStatus)
}

func TestEvaluateRecording_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	failed := testutil.CreateRecording(t, env.db, "failed", model.RecordingFailed)
	_, err := env.evaluations.EvaluateRecording(ctx, failed.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	empty := testutil.CreateRecording(t, env.db, "empty", model.RecordingCompleted)
	_, err = env.evaluations.EvaluateRecording(ctx, empty.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	rec := reconciledRecording(t, env, "scorer-down")
	env.scorer.Err = errors.New("quota exceeded")
	_, err = env.evaluations.EvaluateRecording(ctx, rec.ID)
	assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
	got, err := env.store.Evaluations.FindByRecordingID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	env.evaluations.scorer = nil
	_, err = env.evaluations.EvaluateRecording(ctx, rec.ID)
	assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
}
