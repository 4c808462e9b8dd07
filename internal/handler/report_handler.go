package handler

import (
	"sigef-backend/internal/middleware"
	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

// GET /api/v1/reports
func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	report, err := h.service.GetReport(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// GET /api/v1/reports/analysis-input
func (h *ReportHandler) GetAnalysisInput(c *fiber.Ctx) error {
	input, err := h.service.GetAnalysisInput(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(input)
}

// POST /api/v1/reports/snapshots
func (h *ReportHandler) SaveSnapshot(c *fiber.Ctx) error {
	snap, err := h.service.SaveSnapshot(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Snapshot saved", "data": snap})
}

// GET /api/v1/reports/snapshots?limit=20
func (h *ReportHandler) GetSnapshots(c *fiber.Ctx) error {
	snaps, err := h.service.ListSnapshots(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(snaps)
}
