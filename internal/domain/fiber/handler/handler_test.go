package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/lock"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/fadilmartias/interview-pipeline/internal/testutil"
	"github.com/fadilmartias/interview-pipeline/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success    bool            `json:"success"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Details    json.RawMessage `json:"details"`
	Pagination json.RawMessage `json:"pagination"`
}

type testServer struct {
	app      *fiber.App
	store    *repository.Store
	provider *testutil.FakeProvider
	scorer   *testutil.FakeScorer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	locker := lock.NewKeyedMutex()
	log := logger.Nop()
	provider := testutil.NewFakeProvider()
	scorer := &testutil.FakeScorer{Score: &service.InterviewScore{OverallScore: 7, Model: "fake", Raw: `{"overall_score":7}`}}

	sessions := usecase.NewSessionUsecase(store, locker, usecase.SessionOptions{MaxActiveSessions: 5}, log)
	reconciler := usecase.NewReconcileUsecase(store, provider, testutil.NewMemoryArtifactStore(), locker, log)
	pipeline := usecase.NewPipelineUsecase(store, testutil.NewFakeNotifier(), nil, log)
	evaluations := usecase.NewEvaluationUsecase(store, scorer, log)
	sweeper := usecase.NewSweeperUsecase(sessions, reconciler, usecase.SweepOptions{MaxAttempts: 1}, log)

	app := fiber.New()
	NewInterviewHandler(sessions, reconciler, evaluations, usecase.RetryOptions{MaxAttempts: 1, Concurrency: 2}, log).RegisterRoutes(app)
	NewPipelineHandler(pipeline).RegisterRoutes(app)
	NewMaintenanceHandler(sweeper, reconciler).RegisterRoutes(app)

	return &testServer{app: app, store: store, provider: provider, scorer: scorer}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)
	candidate := uuid.New()

	status, env := s.do(t, http.MethodPost, "/sessions", map[string]interface{}{"candidate_id": candidate, "questions_planned": 6})
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)
	session := decode[model.InterviewSession](t, env.Data)
	assert.Equal(t, model.SessionReady, session.Status)

	status, env = s.do(t, http.MethodPost, "/sessions", map[string]interface{}{"candidate_id": candidate})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)
	assert.Equal(t, "already_active", env.Code)

	status, env = s.do(t, http.MethodGet, "/sessions/can-start/"+candidate.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"candidate_id":"`+candidate.String()+`","can_start":false}`, string(env.Data))

	status, _ = s.do(t, http.MethodPost, "/sessions/"+session.ID.String()+"/begin", map[string]string{"external_session_id": "ext-9"})
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodPost, "/sessions/"+session.ID.String()+"/complete", map[string]interface{}{"reason": "user_left", "duration_seconds": 200})
	require.Equal(t, http.StatusOK, status)
	done := decode[struct {
		Session     model.InterviewSession `json:"session"`
		Reconciling bool                   `json:"reconciling"`
	}](t, env.Data)
	assert.Equal(t, model.SessionPartial, done.Session.Status)
	assert.False(t, done.Reconciling)

	status, env = s.do(t, http.MethodPost, "/sessions/"+uuid.NewString()+"/complete", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Code)

	status, env = s.do(t, http.MethodGet, "/sessions/can-start/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", env.Code)
}

func TestCompleteSessionStartsReconcile(t *testing.T) {
	s := newTestServer(t)
	candidate := uuid.New()
	s.provider.SetConversation(testutil.Conversation("conv-async", testutil.Turn("user", "Hello")))
	s.provider.SetAudio("conv-async", []byte("a"))

	_, env := s.do(t, http.MethodPost, "/sessions", map[string]interface{}{"candidate_id": candidate})
	session := decode[model.InterviewSession](t, env.Data)

	status, env := s.do(t, http.MethodPost, "/sessions/"+session.ID.String()+"/complete", map[string]interface{}{
		"reason":          "completed",
		"conversation_id": "conv-async",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"reconciling":true`)

	assert.Eventually(t, func() bool {
		rec, err := s.store.Recordings.FindByConversationID(context.Background(), "conv-async")
		return err == nil && rec != nil && rec.Status == model.RecordingCompleted
	}, 3*time.Second, 20*time.Millisecond)

	rec, err := s.store.Recordings.FindByConversationID(context.Background(), "conv-async")
	require.NoError(t, err)
	require.NotNil(t, rec.CandidateID)
	assert.Equal(t, candidate, *rec.CandidateID)
}

func TestReconcileRoute(t *testing.T) {
	s := newTestServer(t)
	s.provider.SetConversation(testutil.Conversation("abc123",
		testutil.Turn("agent", ""),
		testutil.Turn("user", "Hello"),
		testutil.Turn("agent", "Hi there"),
	))
	s.provider.SetAudio("abc123", []byte("a"))

	status, env := s.do(t, http.MethodPost, "/recordings/reconcile", map[string]string{"conversation_id": "abc123"})
	require.Equal(t, http.StatusOK, status)
	rec := decode[model.InterviewRecording](t, env.Data)
	assert.Equal(t, model.RecordingCompleted, rec.Status)
	assert.Equal(t, 2, rec.MessageCount)

	status, env = s.do(t, http.MethodGet, "/recordings/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	detail := decode[usecase.RecordingDetail](t, env.Data)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, 1, detail.Messages[0].SequenceNumber)

	s.provider.SetMetadataError("down", &service.ProviderError{Op: "metadata", StatusCode: 503, Err: errors.New("unavailable")})
	status, env = s.do(t, http.MethodPost, "/recordings/reconcile", map[string]string{"conversation_id": "down"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "provider_unavailable", env.Code)
	failed := decode[model.InterviewRecording](t, env.Details)
	assert.Equal(t, model.RecordingFailed, failed.Status)

	status, env = s.do(t, http.MethodPost, "/recordings/reconcile", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", env.Code)
}

func TestRetryAndListRoutes(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateRecording(t, s.store.DB(), "r1", model.RecordingFailed)
	testutil.CreateRecording(t, s.store.DB(), "manual_1", model.RecordingFailed)
	s.provider.SetConversation(testutil.Conversation("r1", testutil.Turn("user", "Hi")))
	s.provider.SetAudio("r1", []byte("a"))

	status, env := s.do(t, http.MethodPost, "/recordings/retry-failed", nil)
	require.Equal(t, http.StatusOK, status)
	report := decode[usecase.RetryReport](t, env.Data)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Recovered)

	status, env = s.do(t, http.MethodGet, "/recordings?status=failed", nil)
	require.Equal(t, http.StatusOK, status)
	recs := decode[[]model.InterviewRecording](t, env.Data)
	require.Len(t, recs, 1)
	assert.Equal(t, "manual_1", recs[0].ConversationID)
	assert.NotEmpty(t, env.Pagination)

	status, env = s.do(t, http.MethodGet, "/recordings?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(t, http.MethodGet, "/maintenance/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"completed"`)
}

func TestManualRecordingAndEvaluateRoutes(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/recordings/manual", map[string]string{"created_by": "ops", "notes": "phone screen"})
	require.Equal(t, http.StatusCreated, status)
	manual := decode[model.InterviewRecording](t, env.Data)
	assert.True(t, model.IsSyntheticConversation(manual.ConversationID))

	status, env = s.do(t, http.MethodPost, "/recordings/"+manual.ID.String()+"/evaluate", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", env.Code)

	s.provider.SetConversation(testutil.Conversation("to-score", testutil.Turn("user", "My answer")))
	s.provider.SetAudio("to-score", []byte("a"))
	_, env = s.do(t, http.MethodPost, "/recordings/reconcile", map[string]string{"conversation_id": "to-score"})
	rec := decode[model.InterviewRecording](t, env.Data)

	status, env = s.do(t, http.MethodPost, "/recordings/"+rec.ID.String()+"/evaluate", nil)
	require.Equal(t, http.StatusOK, status)
	eval := decode[model.InterviewEvaluation](t, env.Data)
	assert.InDelta(t, 7, eval.OverallScore, 0.001)
	assert.Equal(t, 1, s.scorer.Calls)
}

func TestPipelineRoutes(t *testing.T) {
	s := newTestServer(t)
	rec := testutil.CreateRecording(t, s.store.DB(), "pipe", model.RecordingCompleted)
	base := "/recordings/" + rec.ID.String()

	status, env := s.do(t, http.MethodPost, base+"/onboard", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "not_eligible", env.Code)

	status, env = s.do(t, http.MethodPost, base+"/stages", map[string]interface{}{"stage_type": "technical", "technical_score": 8})
	require.Equal(t, http.StatusCreated, status)
	tech := decode[model.InterviewStage](t, env.Data)

	status, env = s.do(t, http.MethodPost, base+"/stages", map[string]interface{}{"stage_type": "technical", "technical_score": 3})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_stage", env.Code)

	status, _ = s.do(t, http.MethodPost, base+"/stages", map[string]interface{}{"stage_type": "behavioral", "communication_score": 5})
	require.Equal(t, http.StatusCreated, status)

	status, env = s.do(t, http.MethodGet, base+"/pipeline", nil)
	require.Equal(t, http.StatusOK, status)
	state := decode[usecase.PipelineState](t, env.Data)
	assert.Equal(t, model.PipelineReadyForOnboarding, state.Pipeline.PipelineStatus)
	assert.Len(t, state.Stages, 2)

	status, env = s.do(t, http.MethodPut, "/stages/"+tech.ID.String(), map[string]interface{}{"technical_score": 4})
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodPost, base+"/onboard", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = s.do(t, http.MethodPut, "/stages/"+tech.ID.String(), map[string]interface{}{"technical_score": 9})
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodPost, base+"/onboard", nil)
	require.Equal(t, http.StatusOK, status)
	onboarded := decode[model.CandidatePipeline](t, env.Data)
	assert.Equal(t, model.PipelineOnboarded, onboarded.PipelineStatus)

	status, env = s.do(t, http.MethodPost, base+"/onboard", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_onboarded", env.Code)

	status, env = s.do(t, http.MethodPost, base+"/status", map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", env.Code)

	status, env = s.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, status)
	reset := decode[model.CandidatePipeline](t, env.Data)
	assert.Equal(t, model.PipelineInitialComplete, reset.PipelineStatus)

	status, env = s.do(t, http.MethodDelete, "/stages/"+tech.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(t, http.MethodPost, base+"/schedule", map[string]interface{}{
		"interview_type": "onsite",
		"interview_date": "2026-11-02T14:00:00Z",
		"location":       "HQ",
	})
	require.Equal(t, http.StatusOK, status)
	scheduled := decode[model.InterviewRecording](t, env.Data)
	assert.Equal(t, "HQ", scheduled.Location)

	status, env = s.do(t, http.MethodPost, base+"/schedule", map[string]interface{}{
		"interview_type": "online",
		"interview_date": "2026-11-02T14:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSweepRoute(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodPost, "/maintenance/sweep", nil)
	require.Equal(t, http.StatusOK, status)
	summary := decode[usecase.SweepSummary](t, env.Data)
	assert.False(t, summary.Skipped)
	assert.Zero(t, summary.RecordingsFixed)
}
