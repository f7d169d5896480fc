package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/apperror"
	"github.com/fadilmartias/interview-pipeline/internal/dto"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/middleware"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/response"
	"github.com/fadilmartias/interview-pipeline/internal/usecase"
	"github.com/fadilmartias/interview-pipeline/internal/util"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InterviewHandler struct {
	sessions     *usecase.SessionUsecase
	reconciler   *usecase.ReconcileUsecase
	evaluations  *usecase.EvaluationUsecase
	retryOptions usecase.RetryOptions
	log          *logger.Logger

	reconcileTimeout time.Duration
}

func NewInterviewHandler(
	sessions *usecase.SessionUsecase,
	reconciler *usecase.ReconcileUsecase,
	evaluations *usecase.EvaluationUsecase,
	retryOptions usecase.RetryOptions,
	log *logger.Logger,
) *InterviewHandler {
	return &InterviewHandler{
		sessions:         sessions,
		reconciler:       reconciler,
		evaluations:      evaluations,
		retryOptions:     retryOptions,
		log:              log.With("handler", "InterviewHandler"),
		reconcileTimeout: 5 * time.Minute,
	}
}

func (h *InterviewHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/sessions", middleware.RateLimiter(10, time.Minute), h.StartSession)
	app.Get("/sessions/can-start/:candidate_id", h.CanStartSession)
	app.Post("/sessions/:id/begin", h.BeginSession)
	app.Post("/sessions/:id/complete", h.CompleteSession)

	app.Post("/recordings/reconcile", h.Reconcile)
	app.Post("/recordings/retry-failed", h.RetryFailed)
	app.Post("/recordings/manual", h.CreateManualRecording)
	app.Get("/recordings", h.ListRecordings)
	app.Get("/recordings/:id", h.GetRecording)
	app.Post("/recordings/:id/evaluate", middleware.RateLimiter(5, time.Minute), h.EvaluateRecording)
}

func (h *InterviewHandler) StartSession(c *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	session, err := h.sessions.StartSession(c.UserContext(), req.CandidateID, req.QuestionsPlanned)
	if err != nil {
		return util.AppErrorResponse(c, "failed to start session", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Session started",
		Data:    session,
	})
}

func (h *InterviewHandler) CanStartSession(c *fiber.Ctx) error {
	candidateID, err := uuidParam(c, "candidate_id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid candidate id", err)
	}
	ok, err := h.sessions.CanStartSession(c.UserContext(), candidateID)
	if err != nil {
		return util.AppErrorResponse(c, "failed to check session availability", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success check session availability",
		Data:    dto.CanStartSessionResponse{CandidateID: candidateID, CanStart: ok},
	})
}

func (h *InterviewHandler) BeginSession(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid session id", err)
	}
	var req dto.BeginSessionRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	session, err := h.sessions.BeginSession(c.UserContext(), id, req.ExternalSessionID)
	if err != nil {
		return util.AppErrorResponse(c, "failed to begin session", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Session in progress",
		Data:    session,
	})
}

// CompleteSession acknowledges the end of a session. When the client already
// knows the provider conversation id, reconciliation is kicked off in the
// background so the caller never waits on the provider.
func (h *InterviewHandler) CompleteSession(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid session id", err)
	}
	var req dto.CompleteSessionRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	session, err := h.sessions.CompleteSession(c.UserContext(), id, usecase.CompleteSessionInput{
		Reason:          req.Reason,
		DurationSeconds: req.DurationSeconds,
		QuestionsAsked:  req.QuestionsAsked,
	})
	if err != nil {
		return util.AppErrorResponse(c, "failed to complete session", err)
	}

	reconciling := false
	if conversationID := strings.TrimSpace(req.ConversationID); conversationID != "" {
		candidateID := req.CandidateID
		if candidateID == nil {
			candidateID = &session.CandidateID
		}
		h.reconcileAsync(conversationID, candidateID)
		reconciling = true
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Session completed",
		Data:    fiber.Map{"session": session, "reconciling": reconciling},
	})
}

func (h *InterviewHandler) reconcileAsync(conversationID string, candidateID *uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.reconcileTimeout)
		defer cancel()
		if _, err := h.reconciler.Reconcile(ctx, conversationID, candidateID); err != nil {
			h.log.Warn("background reconcile failed, sweeper will retry", "conversation_id", conversationID, "error", err)
		}
	}()
}

func (h *InterviewHandler) Reconcile(c *fiber.Ctx) error {
	var req dto.ReconcileRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	reconcile := h.reconciler.Reconcile
	if req.Force {
		reconcile = h.reconciler.Refresh
	}
	rec, err := reconcile(c.UserContext(), req.ConversationID, req.CandidateID)
	if err != nil {
		if rec != nil && errors.Is(err, apperror.ErrProviderUnavailable) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:      apperror.StatusOf(err),
				ErrorCode: apperror.CodeOf(err),
				Message:   "provider unavailable, recording marked failed",
				Details:   rec,
			}, err)
		}
		return util.AppErrorResponse(c, "failed to reconcile recording", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Recording reconciled",
		Data:    rec,
	})
}

func (h *InterviewHandler) RetryFailed(c *fiber.Ctx) error {
	var req dto.RetryFailedRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	opts := h.retryOptions
	if req.MaxAttempts > 0 {
		opts.MaxAttempts = req.MaxAttempts
	}
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	if req.CreatedWithinHours > 0 {
		opts.CreatedSince = time.Now().UTC().Add(-time.Duration(req.CreatedWithinHours) * time.Hour)
	}
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	report, err := h.reconciler.RetryFailed(c.UserContext(), opts)
	if err != nil {
		return util.AppErrorResponse(c, "failed to retry recordings", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Retry finished",
		Data:    report,
	})
}

func (h *InterviewHandler) CreateManualRecording(c *fiber.Ctx) error {
	var req dto.ManualRecordingRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	rec, err := h.reconciler.CreateManualRecording(c.UserContext(), usecase.ManualRecordingInput{
		CandidateID: req.CandidateID,
		CreatedBy:   req.CreatedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		return util.AppErrorResponse(c, "failed to create recording", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Manual recording created",
		Data:    rec,
	})
}

func (h *InterviewHandler) GetRecording(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	detail, err := h.reconciler.GetRecording(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to get recording", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get recording",
		Data:    detail,
	})
}

func (h *InterviewHandler) ListRecordings(c *fiber.Ctx) error {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	recs, total, err := h.reconciler.ListRecordings(c.UserContext(), model.RecordingStatus(c.Query("status")), page, pageSize)
	if err != nil {
		return util.AppErrorResponse(c, "failed to list recordings", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message:    "Success list recordings",
		Data:       recs,
		Pagination: response.NewPagination(page, pageSize, total, len(recs)),
	})
}

func (h *InterviewHandler) EvaluateRecording(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	eval, err := h.evaluations.EvaluateRecording(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to evaluate recording", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Recording evaluated",
		Data:    eval,
	})
}
