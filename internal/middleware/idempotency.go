package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"sigef-backend/internal/model"
	"sigef-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Idempotency processes Idempotency-Key for mutating HTTP methods. The first completed
// response for a key is stored and replayed for every retry with the same request.
func Idempotency(repo repository.IdempotencyRepository, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		userID, _ := c.Locals(localUserID).(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
		}

		path := c.OriginalURL() // includes query string

		// Build deterministic request hash: method|path|body|user
		h := sha256.New()
		h.Write([]byte(method))
		h.Write([]byte{'\n'})
		h.Write([]byte(path))
		h.Write([]byte{'\n'})
		h.Write(c.Body())
		h.Write([]byte{'\n'})
		h.Write([]byte(userID))
		reqHash := hex.EncodeToString(h.Sum(nil))

		// Keys are scoped per user
		scopedKey := userID + ":" + key

		existing, created, err := repo.Reserve(c.UserContext(), &model.IdempotencyKey{
			Key:         scopedKey,
			RequestHash: reqHash,
			Method:      method,
			Path:        path,
			UserID:      userID,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
		}
		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if existing.ResponseStatus != 0 {
			// Completed before: replay without running the handler
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}
		if !created {
			return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
		}

		if err := c.Next(); err != nil {
			// Failed requests do not keep the key, so the client may retry it.
			if rerr := repo.Release(c.UserContext(), scopedKey); rerr != nil {
				log.WithError(rerr).Warn("idempotency: failed to release key")
			}
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			if rerr := repo.Release(c.UserContext(), scopedKey); rerr != nil {
				log.WithError(rerr).Warn("idempotency: failed to release key")
			}
			return nil
		}

		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		if err := repo.Complete(c.UserContext(), scopedKey, status, blob); err != nil {
			// best-effort: don't break the successful response
			log.WithError(err).Warn("idempotency: failed to store response")
		}
		return nil
	}
}
