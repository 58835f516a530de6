// Package http exposes the inbox over a Fiber JSON API.
package http

import (
	"context"
	"errors"
	"strconv"

	"support_inbox/core/port/out"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const providerName = "Gmail"

func parseID(c *fiber.Ctx, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(param, "must be a positive integer")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, v interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return nil
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

// requireSessionInGmailMode applies auth only while the inbox holds the
// signed-in account's mail. Sample data stays public.
func requireSessionInGmailMode(svc *inbox.Service, auth fiber.Handler) fiber.Handler {
	if auth == nil {
		return passThrough
	}
	return func(c *fiber.Ctx) error {
		if svc.Mode() != inbox.ModeGmail {
			return c.Next()
		}
		return auth(c)
	}
}

// toAppError translates store and provider errors into API errors. Errors
// that already are AppErrors pass through unchanged.
func toAppError(err error) error {
	if err == nil || apperr.IsAppError(err) {
		return err
	}

	switch {
	case errors.Is(err, inbox.ErrEmailNotFound):
		return apperr.NotFound("email").WithError(err)
	case errors.Is(err, inbox.ErrCustomerNotFound):
		return apperr.NotFound("customer").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("mail provider request").WithError(err)
	}

	var perr *out.ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case out.ProviderErrQuotaExceeded:
			return apperr.QuotaExceeded(providerName, err)
		case out.ProviderErrUnavailable:
			return apperr.Unavailable(providerName, err)
		case out.ProviderErrTokenExpired, out.ProviderErrAuth:
			return apperr.InvalidToken("Gmail session expired, please sign in again").WithError(err)
		case out.ProviderErrNotFound:
			return apperr.NotFound("message").WithError(err)
		case out.ProviderErrInvalidInput:
			return apperr.BadRequest(perr.Message).WithError(err)
		default:
			return apperr.ExternalError(providerName, err)
		}
	}
	return err
}
