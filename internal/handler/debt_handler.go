package handler

import (
	"sigef-backend/internal/middleware"
	"sigef-backend/internal/model"
	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type DebtHandler struct {
	service service.DebtService
}

func NewDebtHandler(s service.DebtService) *DebtHandler {
	return &DebtHandler{service: s}
}

// PaymentRequest is the body of POST /api/v1/debts/:id/payments
type PaymentRequest struct {
	Value decimal.Decimal `json:"value"`
}

func (h *DebtHandler) CreateDebt(c *fiber.Ctx) error {
	var req service.CreateDebtRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	debt, err := h.service.CreateDebt(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Debt created", "data": debt})
}

func (h *DebtHandler) UpdateDebt(c *fiber.Ctx) error {
	var req service.UpdateDebtRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	debt, err := h.service.UpdateDebt(c.UserContext(), c.Params("id"), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Debt updated", "data": debt})
}

func (h *DebtHandler) RegisterPayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	debt, err := h.service.RegisterPayment(c.UserContext(), c.Params("id"), req.Value, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Payment registered", "data": debt})
}

func (h *DebtHandler) MarkPaid(c *fiber.Ctx) error {
	debt, err := h.service.MarkPaid(c.UserContext(), c.Params("id"), middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Debt settled", "data": debt})
}

func (h *DebtHandler) DeleteDebt(c *fiber.Ctx) error {
	if err := h.service.DeleteDebt(c.UserContext(), c.Params("id"), middleware.ActorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Debt deleted"})
}

func (h *DebtHandler) GetDebt(c *fiber.Ctx) error {
	debt, err := h.service.GetDebt(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(debt)
}

// GetDebts lists debts.
// Query params: type (receivable|payable), status (pending|partially_paid|paid), overdue (true)
func (h *DebtHandler) GetDebts(c *fiber.Ctx) error {
	filter := service.DebtListFilter{
		Type:    model.DebtType(c.Query("type")),
		Status:  model.DebtStatus(c.Query("status")),
		Overdue: c.QueryBool("overdue"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return model.ErrInvalidDebtType
	}

	debts, err := h.service.ListDebts(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(debts)
}
