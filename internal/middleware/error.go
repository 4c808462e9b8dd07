package middleware

import (
	"context"
	"errors"

	"sigef-backend/internal/cache"
	"sigef-backend/internal/model"
	"sigef-backend/internal/service"
	"sigef-backend/pkg/jwt"
	"sigef-backend/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds maps domain errors onto HTTP. The first match wins.
var errorKinds = []errorKind{
	{model.ErrProductNotFound, fiber.StatusNotFound, "product_not_found"},
	{model.ErrSaleNotFound, fiber.StatusNotFound, "sale_not_found"},
	{model.ErrDebtNotFound, fiber.StatusNotFound, "debt_not_found"},
	{service.ErrUserNotFound, fiber.StatusNotFound, "user_not_found"},

	{model.ErrInsufficientStock, fiber.StatusConflict, "insufficient_stock"},
	{model.ErrPaymentExceedsDebt, fiber.StatusConflict, "payment_exceeds_debt"},
	{cache.ErrBusy, fiber.StatusConflict, "busy"},

	{model.ErrInvalidLossReason, fiber.StatusUnprocessableEntity, "invalid_loss_reason"},
	{model.ErrInvalidQuantity, fiber.StatusUnprocessableEntity, "invalid_quantity"},
	{model.ErrNonPositiveQty, fiber.StatusUnprocessableEntity, "invalid_quantity"},
	{model.ErrInvalidAmount, fiber.StatusUnprocessableEntity, "invalid_amount"},
	{model.ErrInvalidDebtType, fiber.StatusUnprocessableEntity, "invalid_debt_type"},
	{service.ErrValidation, fiber.StatusUnprocessableEntity, "validation_failed"},
	{service.ErrInvalidBackup, fiber.StatusUnprocessableEntity, "invalid_backup"},
	{service.ErrUnsupportedVersion, fiber.StatusUnprocessableEntity, "unsupported_backup_version"},

	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid_credentials"},
	{service.ErrUserInactive, fiber.StatusUnauthorized, "user_inactive"},
	{service.ErrSessionReplaced, fiber.StatusUnauthorized, "session_replaced"},
	{jwt.ErrInvalidToken, fiber.StatusUnauthorized, "unauthorized"},
	{jwt.ErrMissingToken, fiber.StatusUnauthorized, "unauthorized"},

	{context.DeadlineExceeded, fiber.StatusGatewayTimeout, "timeout"},
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return fiber.StatusInternalServerError, "internal"
}

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": "http_error"})
		}

		status, code := StatusFor(err)
		if status == fiber.StatusInternalServerError {
			logger.LogError(log, "http", "ErrorHandler", c.Method()+" "+c.Path(), nil, err)
			return c.Status(status).JSON(fiber.Map{"error": "internal server error", "code": code})
		}

		body := fiber.Map{"error": err.Error(), "code": code}
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			body["field"] = ve.Field
			body["tag"] = ve.Tag
		}
		return c.Status(status).JSON(body)
	}
}
