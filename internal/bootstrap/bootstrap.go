package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/lock"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/fadilmartias/interview-pipeline/internal/usecase"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDB opens Postgres, sizes the pool for the environment and migrates
// the schema.
func ConnectDB(log *logger.Logger) (*gorm.DB, error) {
	dbConfig := config.LoadDBConfig()
	appConfig := config.LoadAppConfig()

	logLevel := gormlogger.Warn
	if appConfig.IsProduction() {
		logLevel = gormlogger.Error
	}
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if !appConfig.IsProduction() {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info("database ready", "host", dbConfig.Host, "name", dbConfig.Name)
	return db, nil
}

// NewLocker returns a Redis-backed lock when REDIS_ADDR is set so several
// replicas share per-key serialization; otherwise an in-process one.
func NewLocker(ctx context.Context, log *logger.Logger) (lock.Locker, func(), error) {
	cfg := config.LoadRedisConfig()
	if cfg.Addr == "" {
		log.Info("using in-process locks")
		return lock.NewKeyedMutex(), func() {}, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	log.Info("using redis locks", "addr", cfg.Addr)
	return lock.NewRedisLocker(rdb, config.LoadAppConfig().Name+":lock:", cfg.LockTTL), func() { _ = rdb.Close() }, nil
}

func newScorer(ctx context.Context, log *logger.Logger) service.ScorerServiceInterface {
	if cfg := config.LoadGeminiConfig(); cfg.APIKey != "" {
		gemini, err := service.NewGeminiService(ctx, cfg, log)
		if err == nil {
			return gemini
		}
		log.Warn("gemini scorer unavailable", "error", err)
	}
	if cfg := config.LoadOpenRouterConfig(); cfg.APIKey != "" {
		return service.NewOpenRouterService(cfg)
	}
	log.Warn("no scorer configured, evaluation endpoint disabled")
	return nil
}

type Components struct {
	Store       *repository.Store
	Sessions    *usecase.SessionUsecase
	Reconciler  *usecase.ReconcileUsecase
	Pipeline    *usecase.PipelineUsecase
	Evaluations *usecase.EvaluationUsecase
	Sweeper     *usecase.SweeperUsecase
	Retry       usecase.RetryOptions
}

// Build wires services and usecases over db.
func Build(ctx context.Context, db *gorm.DB, locker lock.Locker, log *logger.Logger) (*Components, error) {
	providerConfig := config.LoadProviderConfig()
	sweeperConfig := config.LoadSweeperConfig()

	artifacts, err := service.NewLocalArtifactStore(providerConfig.AudioDir)
	if err != nil {
		return nil, err
	}

	var notifier service.NotifierServiceInterface = service.NewLogNotifier(log)
	if cfg := config.LoadNotifierConfig(); cfg.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg)
	}
	var meetings service.MeetingServiceInterface
	if cfg := config.LoadMeetingConfig(); cfg.Token != "" {
		meetings = service.NewMeetingService(cfg)
	}

	store := repository.NewStore(db)
	sessions := usecase.NewSessionUsecase(store, locker, usecase.SessionOptions{
		StaleAfter:        sweeperConfig.StaleSessionAfter,
		MaxActiveSessions: sweeperConfig.MaxActiveSessions,
	}, log)
	reconciler := usecase.NewReconcileUsecase(store, service.NewConversationService(providerConfig), artifacts, locker, log)
	sweeper := usecase.NewSweeperUsecase(sessions, reconciler, usecase.SweepOptions{
		Interval:        sweeperConfig.Interval,
		RecentWindow:    sweeperConfig.RecentWindow,
		ProcessingGrace: sweeperConfig.ProcessingGrace,
		MaxAttempts:     sweeperConfig.MaxAttempts,
		Concurrency:     sweeperConfig.Concurrency,
		RetryDelay:      sweeperConfig.RetryDelay,
	}, log)

	return &Components{
		Store:       store,
		Sessions:    sessions,
		Reconciler:  reconciler,
		Pipeline:    usecase.NewPipelineUsecase(store, notifier, meetings, log),
		Evaluations: usecase.NewEvaluationUsecase(store, newScorer(ctx, log), log),
		Sweeper:     sweeper,
		Retry: usecase.RetryOptions{
			MaxAttempts:     sweeperConfig.MaxAttempts,
			ProcessingGrace: sweeperConfig.ProcessingGrace,
			Concurrency:     sweeperConfig.Concurrency,
			RetryDelay:      sweeperConfig.RetryDelay,
		},
	}, nil
}
