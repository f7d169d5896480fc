package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/lock"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/repository"
	"github.com/fadilmartias/interview-pipeline/internal/service"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ReconcileUsecase struct {
	store     *repository.Store
	provider  service.ConversationServiceInterface
	artifacts service.ArtifactStore
	locker    lock.Locker
	log       *logger.Logger
	now       func() time.Time
}

func NewReconcileUsecase(
	store *repository.Store,
	provider service.ConversationServiceInterface,
	artifacts service.ArtifactStore,
	locker lock.Locker,
	log *logger.Logger,
) *ReconcileUsecase {
	return &ReconcileUsecase{
		store:     store,
		provider:  provider,
		artifacts: artifacts,
		locker:    locker,
		log:       log.With("usecase", "Reconciler"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile fetches provider data for conversationID and brings the recording
// to completed. Completed recordings are returned without calling the provider.
// A metadata failure leaves the row failed and returns it together with an
// ErrProviderUnavailable error. Audio problems never fail the recording.
func (uc *ReconcileUsecase) Reconcile(ctx context.Context, conversationID string, candidateID *uuid.UUID) (*model.InterviewRecording, error) {
	return uc.reconcile(ctx, conversationID, candidateID, false)
}

// Refresh is Reconcile without the completed short-circuit: the transcript is
// fetched again and replaces the stored one.
func (uc *ReconcileUsecase) Refresh(ctx context.Context, conversationID string, candidateID *uuid.UUID) (*model.InterviewRecording, error) {
	return uc.reconcile(ctx, conversationID, candidateID, true)
}

func (uc *ReconcileUsecase) reconcile(ctx context.Context, conversationID string, candidateID *uuid.UUID, force bool) (*model.InterviewRecording, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, apperror.Wrap(apperror.ErrInvalidInput, errors.New("conversation id is required"))
	}

	unlock, err := uc.locker.Lock(ctx, "conversation:"+conversationID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	rec, err := uc.store.Recordings.FindByConversationID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}
	if rec != nil && rec.Status == model.RecordingCompleted && !force {
		return rec, nil
	}
	if model.IsSyntheticConversation(conversationID) {
		if rec != nil {
			return rec, nil
		}
		return nil, apperror.Wrap(apperror.ErrNotFound, fmt.Errorf("synthetic conversation %s", conversationID))
	}

	refreshing := rec != nil && rec.Status == model.RecordingCompleted
	rec, err = uc.begin(ctx, rec, conversationID, candidateID, refreshing)
	if err != nil {
		return nil, err
	}
	log := uc.log.With("conversation_id", conversationID, "recording_id", rec.ID, "attempt", rec.Attempts)

	meta, err := uc.provider.GetConversationMetadata(ctx, conversationID)
	if err != nil {
		log.Warn("metadata fetch failed", "error", err)
		status := model.RecordingFailed
		if refreshing {
			status = model.RecordingCompleted
		}
		failed, markErr := uc.markFailed(ctx, rec, status, "metadata", err)
		if markErr != nil {
			return nil, fmt.Errorf("mark recording failed: %w (provider: %v)", markErr, err)
		}
		return failed, apperror.Wrap(apperror.ErrProviderUnavailable, err)
	}

	if meta.InProgress() {
		payload := rec.Payload()
		payload.Conversation = meta.Raw
		if err := uc.store.Recordings.UpdateFields(ctx, rec.ID, map[string]interface{}{
			"raw_payload": model.EncodePayload(payload),
			"updated_at":  uc.now(),
		}); err != nil {
			return nil, fmt.Errorf("store in-progress payload: %w", err)
		}
		log.Info("provider still processing conversation", "provider_status", meta.Status)
		return uc.store.Recordings.FindByID(ctx, rec.ID)
	}

	payload, err := uc.persistTranscript(ctx, rec.ID, meta)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	audio, err := uc.provider.GetConversationAudio(ctx, conversationID)
	if err == nil {
		var path string
		path, err = uc.artifacts.Save(ctx, conversationID+".mp3", audio)
		if err == nil {
			updates["audio_path"] = path
			updates["audio_size_bytes"] = int64(len(audio))
		}
	}
	if err != nil {
		log.Warn("audio unavailable, completing without it", "error", err)
		payload.AudioError = err.Error()
	}

	if text := renderTranscript(meta); text != "" {
		if path, err := uc.artifacts.Save(ctx, conversationID+".txt", []byte(text)); err != nil {
			log.Warn("transcript artifact not written", "error", err)
		} else {
			updates["transcript_path"] = path
		}
	}

	now := uc.now()
	updates["status"] = model.RecordingCompleted
	updates["raw_payload"] = model.EncodePayload(payload)
	updates["last_error"] = ""
	updates["last_reconciled_at"] = now
	updates["updated_at"] = now
	if err := uc.store.Recordings.UpdateFields(ctx, rec.ID, updates); err != nil {
		return nil, fmt.Errorf("finalize recording: %w", err)
	}
	done, err := uc.store.Recordings.FindByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	log.Info("recording reconciled", "messages", done.MessageCount, "audio", payload.AudioError == "")
	return done, nil
}

// begin makes sure a processing row exists for the attempt and bumps its
// attempt counter. A refreshed recording keeps its completed status.
func (uc *ReconcileUsecase) begin(ctx context.Context, rec *model.InterviewRecording, conversationID string, candidateID *uuid.UUID, refreshing bool) (*model.InterviewRecording, error) {
	if rec == nil {
		fresh := &model.InterviewRecording{
			ConversationID: conversationID,
			CandidateID:    candidateID,
			Status:         model.RecordingProcessing,
			RawPayload:     model.EncodePayload(model.RecordingPayload{}),
		}
		if _, err := uc.store.Recordings.CreateIfAbsent(ctx, fresh); err != nil {
			return nil, fmt.Errorf("insert recording: %w", err)
		}
		var err error
		rec, err = uc.store.Recordings.FindByConversationID(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("re-read recording: %w", err)
		}
		if rec == nil {
			return nil, fmt.Errorf("recording %s vanished after insert", conversationID)
		}
	}

	updates := map[string]interface{}{
		"attempts": rec.Attempts + 1,
	}
	if !refreshing {
		updates["status"] = model.RecordingProcessing
	}
	if rec.CandidateID == nil && candidateID != nil {
		updates["candidate_id"] = *candidateID
		rec.CandidateID = candidateID
	}
	if err := uc.store.Recordings.UpdateFields(ctx, rec.ID, updates); err != nil {
		return nil, fmt.Errorf("mark recording processing: %w", err)
	}
	if !refreshing {
		rec.Status = model.RecordingProcessing
	}
	rec.Attempts++
	return rec, nil
}

// markFailed records the failure in the row and its payload. status is failed
// except when a completed recording was being refreshed.
func (uc *ReconcileUsecase) markFailed(ctx context.Context, rec *model.InterviewRecording, status model.RecordingStatus, stage string, cause error) (*model.InterviewRecording, error) {
	now := uc.now()
	payload := rec.Payload()
	perr := &model.PayloadError{
		Stage:   stage,
		Message: cause.Error(),
		Attempt: rec.Attempts,
		At:      now,
	}
	var providerErr *service.ProviderError
	if errors.As(cause, &providerErr) {
		perr.StatusCode = providerErr.StatusCode
	}
	payload.LastError = perr
	if err := uc.store.Recordings.UpdateFields(ctx, rec.ID, map[string]interface{}{
		"status":             status,
		"last_error":         cause.Error(),
		"raw_payload":        model.EncodePayload(payload),
		"last_reconciled_at": now,
		"updated_at":         now,
	}); err != nil {
		return nil, err
	}
	return uc.store.Recordings.FindByID(ctx, rec.ID)
}

// persistTranscript swaps the stored messages for the provider transcript in
// one transaction, holding the recording row lock.
func (uc *ReconcileUsecase) persistTranscript(ctx context.Context, recordingID uuid.UUID, meta *service.ConversationMetadata) (model.RecordingPayload, error) {
	var payload model.RecordingPayload
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		rec, err := tx.Recordings.FindByIDForUpdate(ctx, recordingID)
		if err != nil {
			return err
		}
		msgs, dropped := buildMessages(recordingID, meta)
		if err := tx.Messages.Replace(ctx, recordingID, msgs); err != nil {
			return fmt.Errorf("replace messages: %w", err)
		}

		payload = rec.Payload()
		payload.Conversation = meta.Raw
		payload.LastError = nil
		payload.AudioError = ""
		payload.DroppedMessages = dropped
		payload.EmptyTranscript = len(msgs) == 0
		payload.EmptyTranscriptReason = ""
		if payload.EmptyTranscript {
			payload.EmptyTranscriptReason = emptyTranscriptReason(meta, dropped)
		}

		return tx.Recordings.UpdateFields(ctx, recordingID, map[string]interface{}{
			"started_at":       meta.StartedAt,
			"ended_at":         meta.EndedAt,
			"duration_seconds": meta.DurationSeconds,
			"message_count":    len(msgs),
			"raw_payload":      model.EncodePayload(payload),
			"updated_at":       uc.now(),
		})
	})
	if err != nil {
		return payload, fmt.Errorf("persist transcript: %w", err)
	}
	return payload, nil
}

// buildMessages keeps turns with text that are not tool calls and numbers
// them 1..N in provider order. It also reports how many turns were dropped.
func buildMessages(recordingID uuid.UUID, meta *service.ConversationMetadata) ([]model.InterviewMessage, int) {
	msgs := make([]model.InterviewMessage, 0, len(meta.Transcript))
	dropped := 0
	for _, turn := range meta.Transcript {
		if turn.IsToolCall || turn.Message == nil || strings.TrimSpace(*turn.Message) == "" {
			dropped++
			continue
		}
		msg := model.InterviewMessage{
			RecordingID:       recordingID,
			SequenceNumber:    len(msgs) + 1,
			Role:              model.RoleFromProvider(turn.Role),
			Content:           strings.TrimSpace(*turn.Message),
			TimeInCallSeconds: turn.TimeInCallSeconds,
			DurationMs:        turn.DurationMs,
		}
		if len(turn.Raw) > 0 {
			msg.RawPayload = []byte(turn.Raw)
		}
		if meta.StartedAt != nil && turn.TimeInCallSeconds != nil {
			ts := meta.StartedAt.Add(time.Duration(*turn.TimeInCallSeconds * float64(time.Second)))
			msg.Timestamp = &ts
		}
		msgs = append(msgs, msg)
	}
	return msgs, dropped
}

func emptyTranscriptReason(meta *service.ConversationMetadata, dropped int) string {
	if len(meta.Transcript) == 0 {
		return "provider returned no transcript turns"
	}
	return fmt.Sprintf("all %d transcript turns were empty or tool calls", dropped)
}

func renderTranscript(meta *service.ConversationMetadata) string {
	var b strings.Builder
	for _, turn := range meta.Transcript {
		if turn.IsToolCall || turn.Message == nil || strings.TrimSpace(*turn.Message) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", model.RoleFromProvider(turn.Role), strings.TrimSpace(*turn.Message))
	}
	return b.String()
}

type RetryOutcome string

const (
	RetryRecovered    RetryOutcome = "recovered"
	RetryStillFailing RetryOutcome = "still_failing"
)

type RetryOptions struct {
	MaxAttempts     int
	CreatedSince    time.Time
	ProcessingGrace time.Duration
	Concurrency     int
	RetryDelay      time.Duration
	Limit           int
}

type RetryResult struct {
	ConversationID string       `json:"conversation_id"`
	RecordingID    uuid.UUID    `json:"recording_id"`
	Outcome        RetryOutcome `json:"outcome"`
	Reason         string       `json:"reason,omitempty"`
	Attempts       int          `json:"attempts"`
}

type RetryReport struct {
	Attempted int           `json:"attempted"`
	Recovered int           `json:"recovered"`
	Results   []RetryResult `json:"results"`
}

// RetryFailed re-runs reconciliation for every retryable recording. Individual
// failures end up in the report; only listing errors are returned.
func (uc *ReconcileUsecase) RetryFailed(ctx context.Context, opts RetryOptions) (*RetryReport, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	filter := repository.RetryFilter{CreatedSince: opts.CreatedSince, Limit: opts.Limit}
	if opts.ProcessingGrace > 0 {
		filter.ProcessingBefore = uc.now().Add(-opts.ProcessingGrace)
	}
	candidates, err := uc.store.Recordings.ListRetryable(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list retryable recordings: %w", err)
	}

	report := &RetryReport{Results: make([]RetryResult, 0, len(candidates))}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, rec := range candidates {
		rec := rec
		g.Go(func() error {
			result := uc.retryOne(gctx, rec, opts)
			mu.Lock()
			report.Results = append(report.Results, result)
			report.Attempted++
			if result.Outcome == RetryRecovered {
				report.Recovered++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if report.Attempted > 0 {
		uc.log.Info("retry pass finished", "attempted", report.Attempted, "recovered", report.Recovered)
	}
	return report, nil
}

func (uc *ReconcileUsecase) retryOne(ctx context.Context, rec model.InterviewRecording, opts RetryOptions) RetryResult {
	result := RetryResult{ConversationID: rec.ConversationID, RecordingID: rec.ID, Outcome: RetryStillFailing}
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if attempt > 1 && opts.RetryDelay > 0 {
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				result.Reason = ctx.Err().Error()
				return result
			}
		}
		result.Attempts = attempt
		got, err := uc.Reconcile(ctx, rec.ConversationID, nil)
		switch {
		case err != nil:
			result.Reason = err.Error()
		case got != nil && got.Status == model.RecordingCompleted:
			result.Outcome = RetryRecovered
			result.Reason = ""
			return result
		default:
			result.Reason = "provider still processing conversation"
		}
	}
	return result
}

type RecordingDetail struct {
	Recording *model.InterviewRecording `json:"recording"`
	Messages  []model.InterviewMessage  `json:"messages"`
}

func (uc *ReconcileUsecase) GetRecording(ctx context.Context, id uuid.UUID) (*RecordingDetail, error) {
	rec, err := uc.store.Recordings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.store.Messages.ListByRecording(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &RecordingDetail{Recording: rec, Messages: msgs}, nil
}

func (uc *ReconcileUsecase) ListRecordings(ctx context.Context, status model.RecordingStatus, page, pageSize int) ([]model.InterviewRecording, int64, error) {
	switch status {
	case "", model.RecordingPending, model.RecordingProcessing, model.RecordingCompleted, model.RecordingFailed:
	default:
		return nil, 0, apperror.Wrap(apperror.ErrInvalidInput, fmt.Errorf("unknown status %q", status))
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.store.Recordings.List(ctx, status, page, pageSize)
}

func (uc *ReconcileUsecase) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	return uc.store.Recordings.CountByStatus(ctx)
}

type ManualRecordingInput struct {
	CandidateID *uuid.UUID
	CreatedBy   string
	Notes       string
}

// CreateManualRecording registers an interview held outside the provider. The
// recording is born completed under a synthetic conversation id.
func (uc *ReconcileUsecase) CreateManualRecording(ctx context.Context, in ManualRecordingInput) (*model.InterviewRecording, error) {
	now := uc.now()
	rec := &model.InterviewRecording{
		CandidateID:    in.CandidateID,
		ConversationID: model.SyntheticConversationPrefix + uuid.NewString(),
		Status:         model.RecordingCompleted,
		StartedAt:      &now,
		RawPayload: model.EncodePayload(model.RecordingPayload{
			EmptyTranscript:       true,
			EmptyTranscriptReason: "interview held offline, no provider data",
			Manual:                &model.ManualNote{CreatedBy: in.CreatedBy, Notes: in.Notes},
		}),
		LastReconciledAt: &now,
	}
	if _, err := uc.store.Recordings.CreateIfAbsent(ctx, rec); err != nil {
		return nil, fmt.Errorf("create manual recording: %w", err)
	}
	return uc.store.Recordings.FindByConversationID(ctx, rec.ConversationID)
}
