// Package testutil holds the sqlite-backed database and the service fakes
// shared by repository, usecase and handler tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a private in-memory database migrated with the production
// models. A single connection keeps sqlite from reporting locked tables when
// tests run goroutines against it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// CreateRecording inserts a recording in the given status.
func CreateRecording(t testing.TB, db *gorm.DB, conversationID string, status model.RecordingStatus) *model.InterviewRecording {
	t.Helper()
	rec := &model.InterviewRecording{ConversationID: conversationID, Status: status}
	require.NoError(t, db.Create(rec).Error)
	return rec
}
