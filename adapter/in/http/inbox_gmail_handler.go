package http

import (
	"strings"

	"support_inbox/core/domain"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// GmailHandler serves the provider-mode endpoints. Every route requires a
// session.
type GmailHandler struct {
	inbox *inbox.Service
	auth  fiber.Handler
	guard fiber.Handler
}

func NewGmailHandler(svc *inbox.Service, auth, guard fiber.Handler) *GmailHandler {
	if guard == nil {
		guard = passThrough
	}
	return &GmailHandler{inbox: svc, auth: auth, guard: guard}
}

func (h *GmailHandler) Register(app fiber.Router) {
	gmail := app.Group("/gmail", h.auth)
	gmail.Post("/load", h.guard, h.Load)
	gmail.Get("/search", h.guard, h.Search)
	gmail.Get("/category/:category", h.guard, h.Category)
	gmail.Get("/quota", h.Quota)

	app.Post("/emails/:id/archive", h.auth, h.guard, h.Archive)
	app.Post("/emails/:id/unread", h.auth, h.guard, h.MarkUnread)
}

// Load replaces the inbox with the signed-in account's messages.
func (h *GmailHandler) Load(c *fiber.Ctx) error {
	result, err := h.inbox.LoadFromProvider(c.UserContext())
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, result)
}

// Search handles GET /gmail/search?q=
func (h *GmailHandler) Search(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return apperr.MissingField("q")
	}
	emails, err := h.inbox.SearchProvider(c.UserContext(), q)
	if err != nil {
		return toAppError(err)
	}
	return response.OKWithMeta(c, emails, &response.Meta{Total: len(emails), Mode: string(inbox.ModeGmail)})
}

func (h *GmailHandler) Category(c *fiber.Ctx) error {
	category, err := domain.ParseCategory(c.Params("category"))
	if err != nil {
		return apperr.InvalidInput("category", err.Error())
	}
	emails, err := h.inbox.ProviderCategory(c.UserContext(), category)
	if err != nil {
		return toAppError(err)
	}
	return response.OKWithMeta(c, emails, &response.Meta{Total: len(emails), Filter: string(category), Mode: string(inbox.ModeGmail)})
}

func (h *GmailHandler) Quota(c *fiber.Ctx) error {
	status, err := h.inbox.CheckQuota(c.UserContext())
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, fiber.Map{"status": status})
}

func (h *GmailHandler) Archive(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	email, err := h.inbox.Archive(c.UserContext(), id)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, email)
}

func (h *GmailHandler) MarkUnread(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	email, err := h.inbox.MarkUnread(c.UserContext(), id)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, email)
}
