package http

import (
	"support_inbox/core/domain"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// EmailHandler serves the inbox list, the detail pane and replies. In Gmail
// mode every route requires a session.
type EmailHandler struct {
	inbox *inbox.Service
	auth  fiber.Handler
	guard fiber.Handler // applied to routes that may reach the provider
}

func NewEmailHandler(svc *inbox.Service, auth, guard fiber.Handler) *EmailHandler {
	if guard == nil {
		guard = passThrough
	}
	return &EmailHandler{inbox: svc, auth: requireSessionInGmailMode(svc, auth), guard: guard}
}

func (h *EmailHandler) Register(app fiber.Router) {
	emails := app.Group("/emails", h.auth)
	emails.Get("/", h.List)
	emails.Get("/counts", h.Counts)
	emails.Get("/stats", h.Stats)
	emails.Post("/refresh", h.guard, h.Refresh)
	emails.Get("/:id", h.Get)
	emails.Post("/:id/select", h.Select)
	emails.Post("/:id/reply", h.Draft)
	emails.Post("/:id/reply/regenerate", h.Regenerate)
	emails.Post("/:id/reply/send", h.guard, h.Send)
}

// List handles GET /emails?filter=&category=&q=&sort=
func (h *EmailHandler) List(c *fiber.Ctx) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}
	items := h.inbox.List(q)
	return response.OKWithMeta(c, items, &response.Meta{
		Total:  len(items),
		Filter: string(q.Filter),
		Sort:   string(q.Sort),
		Mode:   string(h.inbox.Mode()),
	})
}

func parseListQuery(c *fiber.Ctx) (domain.ListQuery, error) {
	filter, err := domain.ParseFilter(c.Query("filter"))
	if err != nil {
		return domain.ListQuery{}, apperr.InvalidInput("filter", err.Error())
	}
	sort, err := domain.ParseSortOrder(c.Query("sort"))
	if err != nil {
		return domain.ListQuery{}, apperr.InvalidInput("sort", err.Error())
	}

	var category *domain.Category
	if raw := c.Query("category"); raw != "" && raw != "all" {
		cat, err := domain.ParseCategory(raw)
		if err != nil {
			return domain.ListQuery{}, apperr.InvalidInput("category", err.Error())
		}
		category = &cat
	}

	return domain.ListQuery{
		Filter:   filter,
		Category: category,
		Search:   c.Query("q"),
		Sort:     sort,
	}, nil
}

func (h *EmailHandler) Counts(c *fiber.Ctx) error {
	return response.OK(c, h.inbox.Counts())
}

func (h *EmailHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.inbox.Stats())
}

type emailDetail struct {
	Email    *domain.Email    `json:"email"`
	Customer *domain.Customer `json:"customer,omitempty"`
}

// Get returns an email without changing its status.
func (h *EmailHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	email, customer, err := h.inbox.Get(id)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, emailDetail{Email: email, Customer: customer})
}

// Select opens an email in the detail pane, marking it read.
func (h *EmailHandler) Select(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	email, err := h.inbox.Select(c.UserContext(), id)
	if err != nil {
		return toAppError(err)
	}
	_, customer, err := h.inbox.Get(id)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, emailDetail{Email: email, Customer: customer})
}

func (h *EmailHandler) Draft(c *fiber.Ctx) error {
	return h.generate(c, false)
}

func (h *EmailHandler) Regenerate(c *fiber.Ctx) error {
	return h.generate(c, true)
}

func (h *EmailHandler) generate(c *fiber.Ctx, regenerate bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	draft, err := h.inbox.GenerateReply(c.UserContext(), id, regenerate)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, draft)
}

// Send accepts a draft. In Gmail mode the reply is also sent through the
// provider.
func (h *EmailHandler) Send(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req domain.SendReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.inbox.SendReply(c.UserContext(), id, req)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, result)
}

func (h *EmailHandler) Refresh(c *fiber.Ctx) error {
	result, err := h.inbox.Refresh(c.UserContext())
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, result)
}
