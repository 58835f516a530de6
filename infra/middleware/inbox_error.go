// Package middleware holds the Fiber middleware chain of the API server.
package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"support_inbox/pkg/apperr"
	"support_inbox/pkg/logger"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// ErrorHandler renders every error returned by a handler as the standard
// envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		var (
			appErr   *apperr.AppError
			fiberErr *fiber.Error
		)
		switch {
		case errors.As(err, &appErr):
			log := logger.WithField("request_id", requestID).
				WithField("error_code", appErr.Code).
				WithError(appErr.Err)
			if appErr.Status >= 500 {
				log.Error("internal error: %s", appErr.Message)
			} else {
				log.Warn("client error: %s", appErr.Message)
			}
			return response.Error(c, appErr.Status, response.ErrorInfo{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			})

		case errors.As(err, &fiberErr):
			return response.Error(c, fiberErr.Code, response.ErrorInfo{
				Code:    mapHTTPStatusToCode(fiberErr.Code),
				Message: fiberErr.Message,
			})

		default:
			logger.WithField("request_id", requestID).
				WithError(err).
				Error("unexpected error on %s %s", c.Method(), c.Path())
			return response.Error(c, fiber.StatusInternalServerError, response.ErrorInfo{
				Code:    apperr.CodeInternalError,
				Message: "An unexpected error occurred",
			})
		}
	}
}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("request_id", requestID)
		c.Set(requestIDHeader, requestID)
		return c.Next()
	}
}

// RequestLogger logs one line per request. Errors are passed to the error
// handler first so the logged status is the one the client sees.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		requestID, _ := c.Locals("request_id").(string)
		status := c.Response().StatusCode()
		log := logger.WithFields(map[string]any{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"ip":         c.IP(),
		}).WithDuration(time.Since(start))

		if email, ok := c.Locals(SessionEmailKey).(string); ok && email != "" {
			log = log.WithField("session_email", email)
		}

		switch {
		case status >= 500:
			log.Error("request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}
		return nil
	}
}

// Recover turns a handler panic into a 500 response.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")

				err = apperr.Internal("")
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadRequest
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return apperr.CodeConflict
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusBadGateway, fiber.StatusServiceUnavailable, fiber.StatusGatewayTimeout:
		return apperr.CodeUnavailable
	case fiber.StatusInternalServerError:
		return apperr.CodeInternalError
	default:
		return "UNKNOWN_ERROR"
	}
}
