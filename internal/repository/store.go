package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories over one *gorm.DB so a usecase can run a
// multi-table mutation inside a single transaction.
type Store struct {
	db          *gorm.DB
	Sessions    *SessionRepository
	Recordings  *RecordingRepository
	Messages    *MessageRepository
	Stages      *StageRepository
	Pipelines   *PipelineRepository
	Evaluations *EvaluationRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Sessions:    NewSessionRepository(db),
		Recordings:  NewRecordingRepository(db),
		Messages:    NewMessageRepository(db),
		Stages:      NewStageRepository(db),
		Pipelines:   NewPipelineRepository(db),
		Evaluations: NewEvaluationRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a transaction. Returning an error
// from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound turns gorm.ErrRecordNotFound into the typed not-found error.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Wrap(apperror.ErrNotFound, fmt.Errorf(format, args...))
	}
	return err
}

// IsDuplicateKey reports a unique-constraint violation (requires TranslateError).
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
