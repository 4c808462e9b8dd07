package handler

import (
	"bytes"
	"encoding/json"

	"sigef-backend/internal/middleware"
	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type BackupHandler struct {
	service service.BackupService
}

func NewBackupHandler(s service.BackupService) *BackupHandler {
	return &BackupHandler{service: s}
}

// GET /api/v1/backup
func (h *BackupHandler) Export(c *fiber.Ctx) error {
	doc, err := h.service.Export(c.UserContext())
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sigef-backup.json"`)
	return c.JSON(doc)
}

// POST /api/v1/backup?replace=true
// Without replace, records are merged by ID into the current data.
func (h *BackupHandler) Import(c *fiber.Ctx) error {
	var doc service.BackupDocument
	// The body is decoded whatever its Content-Type, so files uploaded as raw bytes work too.
	if err := json.Unmarshal(c.Body(), &doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid backup JSON: " + err.Error(), "code": "bad_request"})
	}

	result, err := h.service.Import(c.UserContext(), &doc, c.QueryBool("replace"), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Backup imported", "data": result})
}

// GET /api/v1/backup/xlsx
func (h *BackupHandler) ExportXLSX(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.ExportXLSX(c.UserContext(), &buf); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sigef-report.xlsx"`)
	return c.Send(buf.Bytes())
}
