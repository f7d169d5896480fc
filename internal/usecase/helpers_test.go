package usecase

import (
	"testing"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/lock"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/fadilmartias/interview-pipeline/internal/testutil"
	"gorm.io/gorm"
)

type testEnv struct {
	db          *gorm.DB
	store       *repository.Store
	locker      *lock.KeyedMutex
	provider    *testutil.FakeProvider
	artifacts   *testutil.MemoryArtifactStore
	notifier    *testutil.FakeNotifier
	scorer      *testutil.FakeScorer
	meetings    *testutil.FakeMeetings
	sessions    *SessionUsecase
	reconciler  *ReconcileUsecase
	pipeline    *PipelineUsecase
	evaluations *EvaluationUsecase
	sweeper     *SweeperUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	locker := lock.NewKeyedMutex()
	log := logger.Nop()

	env := &testEnv{
		db:        db,
		store:     store,
		locker:    locker,
		provider:  testutil.NewFakeProvider(),
		artifacts: testutil.NewMemoryArtifactStore(),
		notifier:  testutil.NewFakeNotifier(),
		scorer: &testutil.FakeScorer{Score: &service.InterviewScore{
			OverallScore:   8,
			TechnicalScore: 8,
			Recommendation: "proceed",
			Summary:        "Clear answers.",
			Model:          "fake",
			Raw:            `{"overall_score":8}`,
		}},
		meetings: &testutil.FakeMeetings{Meeting: &service.Meeting{ID: "42", JoinURL: "https://meet.example/42", Password: "pw"}},
	}
	env.sessions = NewSessionUsecase(store, locker, SessionOptions{StaleAfter: 30 * time.Minute, MaxActiveSessions: 5}, log)
	env.reconciler = NewReconcileUsecase(store, env.provider, env.artifacts, locker, log)
	env.pipeline = NewPipelineUsecase(store, env.notifier, env.meetings, log)
	env.evaluations = NewEvaluationUsecase(store, env.scorer, log)
	env.sweeper = NewSweeperUsecase(env.sessions, env.reconciler, SweepOptions{
		Interval:     time.Minute,
		RecentWindow: time.Hour,
		MaxAttempts:  1,
		Concurrency:  2,
	}, log)
	return env
}
