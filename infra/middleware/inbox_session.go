package middleware

import (
	"strings"

	"support_inbox/core/service/auth"
	"support_inbox/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// SessionEmailKey is the Locals key holding the signed-in address.
const SessionEmailKey = "session_email"

// SessionVerifier validates session tokens issued at sign-in.
type SessionVerifier interface {
	VerifySession(token string) (*auth.SessionClaims, error)
}

// SessionAuth requires a session token, either as a bearer token or as the
// token query parameter (EventSource cannot set headers).
func SessionAuth(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return apperr.Unauthorized("missing session token")
		}

		claims, err := verifier.VerifySession(token)
		if err != nil {
			return err
		}
		c.Locals(SessionEmailKey, claims.Email)
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
