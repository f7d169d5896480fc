package handler

import (
	"github.com/fadilmartias/interview-pipeline/internal/usecase"
	"github.com/fadilmartias/interview-pipeline/internal/util"
	"github.com/gofiber/fiber/v2"
)

type MaintenanceHandler struct {
	sweeper    *usecase.SweeperUsecase
	reconciler *usecase.ReconcileUsecase
}

func NewMaintenanceHandler(sweeper *usecase.SweeperUsecase, reconciler *usecase.ReconcileUsecase) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper, reconciler: reconciler}
}

func (h *MaintenanceHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/maintenance/sweep", h.Sweep)
	app.Get("/maintenance/status", h.Status)
}

func (h *MaintenanceHandler) Sweep(c *fiber.Ctx) error {
	summary := h.sweeper.SweepOnce(c.UserContext())
	message := "Sweep finished"
	if summary.Skipped {
		message = "Sweep already running"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: message,
		Data:    summary,
	})
}

func (h *MaintenanceHandler) Status(c *fiber.Ctx) error {
	counts, err := h.reconciler.StatusCounts(c.UserContext())
	if err != nil {
		return util.AppErrorResponse(c, "failed to load status", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get recording status",
		Data:    counts,
	})
}
