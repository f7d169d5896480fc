package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/fadilmartias/interview-pipeline/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesOf(t *testing.T, env *testEnv, recordingID uuid.UUID) []model.InterviewMessage {
	t.Helper()
	msgs, err := env.store.Messages.ListByRecording(context.Background(), recordingID)
	require.NoError(t, err)
	return msgs
}

func TestReconcile_FreshConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	candidate := uuid.New()
	env.provider.SetConversation(testutil.Conversation("abc123",
		testutil.Turn("agent", ""),
		testutil.Turn("user", "Hello"),
		testutil.Turn("agent", "Hi there"),
	))
	env.provider.SetAudio("abc123", []byte("mp3-bytes"))

	rec, err := env.reconciler.Reconcile(ctx, "abc123", &candidate)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingCompleted, rec.Status)
	assert.Equal(t, 2, rec.MessageCount)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.LastError)
	require.NotNil(t, rec.CandidateID)
	assert.Equal(t, candidate, *rec.CandidateID)
	assert.Equal(t, 900, rec.DurationSeconds)
	assert.Equal(t, "mem://abc123.mp3", rec.AudioPath)
	assert.EqualValues(t, len("mp3-bytes"), rec.AudioSizeBytes)
	assert.Equal(t, "mem://abc123.txt", rec.TranscriptPath)

	msgs := messagesOf(t, env, rec.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].SequenceNumber)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, model.RoleCandidate, msgs[0].Role)
	assert.Equal(t, 2, msgs[1].SequenceNumber)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, model.RoleInterviewer, msgs[1].Role)

	payload := rec.Payload()
	assert.Equal(t, 1, payload.DroppedMessages)
	assert.Nil(t, payload.LastError)
	assert.Empty(t, payload.AudioError)
	assert.JSONEq(t, `{"conversation_id":"abc123","status":"done"}`, string(payload.Conversation))

	audio, ok := env.artifacts.Get("abc123.mp3")
	require.True(t, ok)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestReconcile_CompletedIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.SetConversation(testutil.Conversation("abc123", testutil.Turn("user", "Hello")))
	env.provider.SetAudio("abc123", []byte("a"))

	first, err := env.reconciler.Reconcile(ctx, "abc123", nil)
	require.NoError(t, err)
	second, err := env.reconciler.Reconcile(ctx, "abc123", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Attempts)
	assert.Equal(t, 1, env.provider.MetadataCalls("abc123"))
}

func TestRefresh_ReplacesTranscript(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.SetConversation(testutil.Conversation("abc123",
		testutil.Turn("agent", ""),
		testutil.Turn("user", "Hello"),
		testutil.Turn("agent", "Hi there"),
	))
	env.provider.SetAudio("abc123", []byte("a"))

	first, err := env.reconciler.Reconcile(ctx, "abc123", nil)
	require.NoError(t, err)

	env.provider.SetConversation(testutil.Conversation("abc123",
		testutil.Turn("agent", ""),
		testutil.Turn("user", "Hello"),
		testutil.Turn("agent", "Hi there"),
		testutil.Turn("user", "Tell me more"),
	))
	again, err := env.reconciler.Refresh(ctx, "abc123", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, model.RecordingCompleted, again.Status)
	assert.Equal(t, 3, again.MessageCount)
	assert.Equal(t, 2, again.Attempts)

	msgs := messagesOf(t, env, again.ID)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.SequenceNumber)
	}
	assert.Equal(t, "Tell me more", msgs[2].Content)

	var rows int64
	require.NoError(t, env.db.Model(&model.InterviewRecording{}).Where("conversation_id = ?", "abc123").Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestRefresh_ProviderFailureKeepsCompleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provider.SetConversation(testutil.Conversation("abc123", testutil.Turn("user", "Hello")))
	env.provider.SetAudio("abc123", []byte("a"))
	_, err := env.reconciler.Reconcile(ctx, "abc123", nil)
	require.NoError(t, err)

	env.provider.SetMetadataError("abc123", &service.ProviderError{Op: "metadata", StatusCode: 503, Err: errors.New("unavailable")})
	rec, err := env.reconciler.Refresh(ctx, "abc123", nil)
	require.ErrorIs(t, err, apperror.ErrProviderUnavailable)
	require.NotNil(t, rec)
	assert.Equal(t, model.RecordingCompleted, rec.Status)
	assert.Len(t, messagesOf(t, env, rec.ID), 1)
	require.NotNil(t, rec.Payload().LastError)
	assert.Equal(t, 503, rec.Payload().LastError.StatusCode)
}

func TestReconcile_MetadataTimeoutThenRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	timeout := &service.ProviderError{Op: "metadata", ConversationID: "xyz", Err: context.DeadlineExceeded}
	env.provider.SetMetadataError("xyz", timeout)

	rec, err := env.reconciler.Reconcile(ctx, "xyz", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, rec)
	assert.Equal(t, model.RecordingFailed, rec.Status)
	assert.Equal(t, 0, rec.MessageCount)
	assert.NotEmpty(t, rec.LastError)
	assert.Empty(t, messagesOf(t, env, rec.ID))

	payload := rec.Payload()
	require.NotNil(t, payload.LastError)
	assert.Equal(t, "metadata", payload.LastError.Stage)
	assert.Equal(t, 1, payload.LastError.Attempt)

	env.provider.SetConversation(testutil.Conversation("xyz",
		testutil.Turn("agent", "Welcome"),
		testutil.Turn("user", "Thanks"),
	))
	env.provider.SetAudio("xyz", []byte("a"))

	recovered, err := env.reconciler.Reconcile(ctx, "xyz", nil)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, recovered.ID)
	assert.Equal(t, model.RecordingCompleted, recovered.Status)
	assert.Equal(t, 2, recovered.Attempts)
	assert.Empty(t, recovered.LastError)
	assert.Nil(t, recovered.Payload().LastError)
	assert.Len(t, messagesOf(t, env, recovered.ID), 2)
}

func TestReconcile_AudioFailureStillCompletes(t *testing.T) {
	env := newTestEnv(t)
	env.provider.SetConversation(testutil.Conversation("noaudio", testutil.Turn("user", "Hello")))
	env.provider.SetAudioError(&service.ProviderError{Op: "audio", StatusCode: 500, Err: errors.New("boom")})

	rec, err := env.reconciler.Reconcile(context.Background(), "noaudio", nil)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingCompleted, rec.Status)
	assert.Empty(t, rec.AudioPath)
	assert.Contains(t, rec.Payload().AudioError, "boom")
	assert.Equal(t, 1, rec.MessageCount)
}

func TestReconcile_EmptyTranscript(t *testing.T) {
	tests := []struct {
		name   string
		turns  []service.TranscriptTurn
		reason string
	}{
		{"no turns", nil, "provider returned no transcript turns"},
		{"only empty and tool turns", []service.TranscriptTurn{
			testutil.NullTurn("agent"),
			testutil.Turn("user", "   "),
			testutil.ToolTurn("agent", "lookup_candidate"),
		}, "all 3 transcript turns were empty or tool calls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.SetConversation(testutil.Conversation("empty", tt.turns...))
			env.provider.SetAudio("empty", []byte("a"))

			rec, err := env.reconciler.Reconcile(context.Background(), "empty", nil)
			require.NoError(t, err)
			assert.Equal(t, model.RecordingCompleted, rec.Status)
			assert.Equal(t, 0, rec.MessageCount)
			assert.Empty(t, rec.TranscriptPath)
			payload := rec.Payload()
			assert.True(t, payload.EmptyTranscript)
			assert.Equal(t, tt.reason, payload.EmptyTranscriptReason)
		})
	}
}

func TestReconcile_ProviderStillProcessing(t *testing.T) {
	env := newTestEnv(t)
	meta := testutil.Conversation("live", testutil.Turn("user", "Hello"))
	meta.Status = "in-progress"
	env.provider.SetConversation(meta)

	rec, err := env.reconciler.Reconcile(context.Background(), "live", nil)
	require.NoError(t, err)
	assert.Equal(t, model.RecordingProcessing, rec.Status)
	assert.Empty(t, messagesOf(t, env, rec.ID))
	assert.NotEmpty(t, rec.Payload().Conversation)
}

func TestReconcile_ConcurrentCallsShareOneRow(t *testing.T) {
	env := newTestEnv(t)
	env.provider.SetConversation(testutil.Conversation("race",
		testutil.Turn("agent", "Question one"),
		testutil.Turn("user", "Answer one"),
	))
	env.provider.SetAudio("race", []byte("a"))
	env.provider.SetDelay(20 * time.Millisecond)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := env.reconciler.Reconcile(context.Background(), "race", nil)
			assert.NoError(t, err)
			if assert.NotNil(t, rec) {
				assert.Equal(t, model.RecordingCompleted, rec.Status)
			}
		}()
	}
	wg.Wait()

	var rows int64
	require.NoError(t, env.db.Model(&model.InterviewRecording{}).Where("conversation_id = ?", "race").Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	rec, err := env.store.Recordings.FindByConversationID(context.Background(), "race")
	require.NoError(t, err)
	msgs := messagesOf(t, env, rec.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].SequenceNumber)
	assert.Equal(t, 2, msgs[1].SequenceNumber)
	assert.Equal(t, 1, env.provider.MetadataCalls("race"))
}

func TestReconcile_SyntheticConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.reconciler.Reconcile(ctx, "manual_missing", nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	manual, err := env.reconciler.CreateManualRecording(ctx, ManualRecordingInput{CreatedBy: "recruiter@example.com", Notes: "onsite"})
	require.NoError(t, err)
	assert.True(t, model.IsSyntheticConversation(manual.ConversationID))
	assert.Equal(t, model.RecordingCompleted, manual.Status)
	assert.Equal(t, "onsite", manual.Payload().Manual.Notes)

	got, err := env.reconciler.Refresh(ctx, manual.ConversationID, nil)
	require.NoError(t, err)
	assert.Equal(t, manual.ID, got.ID)
	assert.Zero(t, env.provider.MetadataCalls(manual.ConversationID))
}

func TestReconcile_RequiresConversationID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reconciler.Reconcile(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestRetryFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.CreateRecording(t, env.db, "failed-1", model.RecordingFailed)
	testutil.CreateRecording(t, env.db, "failed-2", model.RecordingFailed)
	testutil.CreateRecording(t, env.db, "manual_offline", model.RecordingFailed)
	testutil.CreateRecording(t, env.db, "done", model.RecordingCompleted)

	env.provider.SetConversation(testutil.Conversation("failed-1", testutil.Turn("user", "Hello")))
	env.provider.SetAudio("failed-1", []byte("a"))
	env.provider.SetMetadataError("failed-2", &service.ProviderError{Op: "metadata", StatusCode: 502, Err: errors.New("bad gateway")})

	report, err := env.reconciler.RetryFailed(ctx, RetryOptions{MaxAttempts: 2, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Recovered)

	byID := map[string]RetryResult{}
	for _, r := range report.Results {
		byID[r.ConversationID] = r
	}
	require.Contains(t, byID, "failed-1")
	require.Contains(t, byID, "failed-2")
	assert.NotContains(t, byID, "manual_offline")
	assert.Equal(t, RetryRecovered, byID["failed-1"].Outcome)
	assert.Equal(t, 1, byID["failed-1"].Attempts)
	assert.Equal(t, RetryStillFailing, byID["failed-2"].Outcome)
	assert.Equal(t, 2, byID["failed-2"].Attempts)
	assert.Contains(t, byID["failed-2"].Reason, "bad gateway")

	assert.Equal(t, 2, env.provider.MetadataCalls("failed-2"))
	assert.Zero(t, env.provider.MetadataCalls("manual_offline"))
	assert.Zero(t, env.provider.MetadataCalls("done"))

	rec, err := env.store.Recordings.FindByConversationID(ctx, "failed-2")
	require.NoError(t, err)
	assert.Equal(t, model.RecordingFailed, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
}

func TestRetryFailed_ProcessingGrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.CreateRecording(t, env.db, "fresh-processing", model.RecordingProcessing)

	report, err := env.reconciler.RetryFailed(ctx, RetryOptions{ProcessingGrace: 2 * time.Minute})
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)

	env.reconciler.now = func() time.Time { return time.Now().UTC().Add(5 * time.Minute) }
	env.provider.SetConversation(testutil.Conversation("fresh-processing", testutil.Turn("user", "Hi")))
	env.provider.SetAudio("fresh-processing", []byte("a"))
	report, err = env.reconciler.RetryFailed(ctx, RetryOptions{ProcessingGrace: 2 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Recovered)
}

func TestListRecordings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	testutil.CreateRecording(t, env.db, "a", model.RecordingFailed)
	testutil.CreateRecording(t, env.db, "b", model.RecordingCompleted)
	testutil.CreateRecording(t, env.db, "c", model.RecordingFailed)

	items, total, err := env.reconciler.ListRecordings(ctx, model.RecordingFailed, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	_, _, err = env.reconciler.ListRecordings(ctx, "bogus", 1, 10)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = env.reconciler.GetRecording(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
