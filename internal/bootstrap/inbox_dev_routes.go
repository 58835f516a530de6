package bootstrap

import (
	"support_inbox/core/domain"
	"support_inbox/core/service/classification"
	"support_inbox/core/service/reply"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/logger"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RegisterDevRoutes registers development-only routes without authentication.
// Never enable outside development.
func RegisterDevRoutes(router fiber.Router, deps *Dependencies) {
	dev := router.Group("/dev")

	// Reset the inbox to the configured dataset
	dev.Post("/sample/reload", func(c *fiber.Ctx) error {
		data := loadSample(deps.Config)
		deps.Inbox.LoadSample(data)
		logger.Info("[Dev] sample reloaded: %d emails", len(data.Emails))

		deps.Hub.Broadcast(c.UserContext(), &domain.RealtimeEvent{
			Type: domain.EventInboxLoaded,
			Data: fiber.Map{"mode": deps.Inbox.Mode(), "counts": deps.Inbox.Counts()},
		})
		return response.OK(c, deps.Inbox.Stats())
	})

	dev.Get("/stats", func(c *fiber.Ctx) error {
		return response.OK(c, fiber.Map{
			"inbox":   deps.Inbox.Stats(),
			"mode":    deps.Inbox.Mode(),
			"sse":     deps.Hub.Metrics(),
			"circuit": deps.Gmail.CircuitState(),
		})
	})

	// Dry-run the classifier and template table on arbitrary text
	dev.Get("/classify", func(c *fiber.Ctx) error {
		subject, body := c.Query("subject"), c.Query("body")
		if subject == "" && body == "" {
			return apperr.MissingField("subject")
		}

		result := classification.Classify(subject, body)
		tmpl := reply.Lookup(&domain.Email{
			Subject:  subject,
			Body:     body,
			Category: result.Category,
			Priority: result.Priority,
		})
		return response.OK(c, fiber.Map{
			"category":   result.Category,
			"priority":   result.Priority,
			"template":   tmpl.Key,
			"confidence": tmpl.Confidence,
		})
	})
}
