package handler

import (
	"github.com/fadilmartias/interview-pipeline/internal/dto"
	"github.com/fadilmartias/interview-pipeline/internal/model"
	"github.com/fadilmartias/interview-pipeline/internal/usecase"
	"github.com/fadilmartias/interview-pipeline/internal/util"
	"github.com/gofiber/fiber/v2"
)

type PipelineHandler struct {
	uc *usecase.PipelineUsecase
}

func NewPipelineHandler(uc *usecase.PipelineUsecase) *PipelineHandler {
	return &PipelineHandler{uc: uc}
}

func (h *PipelineHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/recordings/:id/stages", h.AddStage)
	app.Put("/stages/:id", h.EditStage)
	app.Delete("/stages/:id", h.RemoveStage)
	app.Get("/recordings/:id/pipeline", h.GetPipelineState)
	app.Post("/recordings/:id/onboard", h.Onboard)
	app.Post("/recordings/:id/reset", h.ResetCandidate)
	app.Post("/recordings/:id/status", h.SetPipelineStatus)
	app.Post("/recordings/:id/schedule", h.ScheduleInterview)
}

func stageInput(req dto.StageRequest) usecase.StageInput {
	return usecase.StageInput{
		StageType:        model.StageType(req.StageType),
		InterviewerName:  req.InterviewerName,
		InterviewerEmail: req.InterviewerEmail,
		InterviewDate:    req.InterviewDate,
		DurationMinutes:  req.DurationMinutes,
		Scores: model.StageScores{
			Technical:      req.TechnicalScore,
			Communication:  req.CommunicationScore,
			ProblemSolving: req.ProblemSolvingScore,
			CulturalFit:    req.CulturalFitScore,
			Leadership:     req.LeadershipScore,
		},
		Strengths:      req.Strengths,
		Weaknesses:     req.Weaknesses,
		Notes:          req.Notes,
		Recommendation: model.Recommendation(req.Recommendation),
	}
}

func (h *PipelineHandler) AddStage(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	var req dto.StageRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	stage, err := h.uc.AddStage(c.UserContext(), id, stageInput(req))
	if err != nil {
		return util.AppErrorResponse(c, "failed to add stage", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Stage added",
		Data:    stage,
	})
}

func (h *PipelineHandler) EditStage(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid stage id", err)
	}
	var req dto.StageRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	stage, err := h.uc.EditStage(c.UserContext(), id, stageInput(req))
	if err != nil {
		return util.AppErrorResponse(c, "failed to edit stage", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Stage updated",
		Data:    stage,
	})
}

func (h *PipelineHandler) RemoveStage(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid stage id", err)
	}
	pipeline, err := h.uc.RemoveStage(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to remove stage", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Stage removed",
		Data:    pipeline,
	})
}

func (h *PipelineHandler) GetPipelineState(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	state, err := h.uc.GetPipelineState(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to get pipeline", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get pipeline",
		Data:    state,
	})
}

func (h *PipelineHandler) Onboard(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	pipeline, err := h.uc.Onboard(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to onboard candidate", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Candidate onboarded",
		Data:    pipeline,
	})
}

func (h *PipelineHandler) ResetCandidate(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	pipeline, err := h.uc.ResetCandidate(c.UserContext(), id)
	if err != nil {
		return util.AppErrorResponse(c, "failed to reset candidate", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Candidate reset",
		Data:    pipeline,
	})
}

func (h *PipelineHandler) SetPipelineStatus(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	var req dto.PipelineStatusRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	pipeline, err := h.uc.SetPipelineStatus(c.UserContext(), id, model.PipelineStatus(req.Status))
	if err != nil {
		return util.AppErrorResponse(c, "failed to set pipeline status", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Pipeline status updated",
		Data:    pipeline,
	})
}

func (h *PipelineHandler) ScheduleInterview(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return util.AppErrorResponse(c, "invalid recording id", err)
	}
	var req dto.ScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return util.AppErrorResponse(c, "invalid request", err)
	}
	rec, err := h.uc.ScheduleInterview(c.UserContext(), id, usecase.ScheduleInput{
		InterviewType:   req.InterviewType,
		InterviewDate:   req.InterviewDate,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		MeetingID:       req.MeetingID,
		MeetingPassword: req.MeetingPassword,
	})
	if err != nil {
		return util.AppErrorResponse(c, "failed to schedule interview", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Interview scheduled",
		Data:    rec,
	})
}
