package http

import (
	"support_inbox/core/domain"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	inbox *inbox.Service
}

func NewSettingsHandler(svc *inbox.Service) *SettingsHandler {
	return &SettingsHandler{inbox: svc}
}

func (h *SettingsHandler) Register(app fiber.Router) {
	app.Get("/settings/ai", h.Get)
	app.Put("/settings/ai", h.Update)
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.inbox.Settings())
}

// Update replaces the AI settings; omitted fields keep their value.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	current := h.inbox.Settings()
	req := struct {
		AutoReply           *bool `json:"auto_reply"`
		ConfidenceThreshold *int  `json:"confidence_threshold"`
	}{}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	next := domain.AISettings{AutoReply: current.AutoReply, ConfidenceThreshold: current.ConfidenceThreshold}
	if req.AutoReply != nil {
		next.AutoReply = *req.AutoReply
	}
	if req.ConfidenceThreshold != nil {
		next.ConfidenceThreshold = *req.ConfidenceThreshold
	}

	updated, err := h.inbox.UpdateSettings(next)
	if err != nil {
		return err
	}
	return response.OK(c, updated)
}
