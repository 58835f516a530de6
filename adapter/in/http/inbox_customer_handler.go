package http

import (
	"support_inbox/core/domain"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CustomerHandler serves customer profiles and the sidebar metadata.
type CustomerHandler struct {
	inbox *inbox.Service
	auth  fiber.Handler
	title cases.Caser
}

func NewCustomerHandler(svc *inbox.Service, auth fiber.Handler) *CustomerHandler {
	return &CustomerHandler{inbox: svc, auth: requireSessionInGmailMode(svc, auth), title: cases.Title(language.English)}
}

func (h *CustomerHandler) Register(app fiber.Router) {
	// Profiles list the customer's emails.
	app.Get("/customers/:id", h.auth, h.Get)
	app.Get("/categories", h.Categories)
}

// Get returns a customer with their recent emails.
func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	profile, err := h.inbox.CustomerProfile(id)
	if err != nil {
		return toAppError(err)
	}
	return response.OK(c, profile)
}

// =============================================================================
// Metadata
// =============================================================================

type optionMeta struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count *int   `json:"count,omitempty"`
}

type categoriesResponse struct {
	Categories []optionMeta `json:"categories"`
	Priorities []optionMeta `json:"priorities"`
	Filters    []optionMeta `json:"filters"`
	SortOrders []optionMeta `json:"sort_orders"`
}

var sortLabels = []optionMeta{
	{Key: string(domain.SortNewest), Label: "Newest first"},
	{Key: string(domain.SortOldest), Label: "Oldest first"},
	{Key: string(domain.SortPriority), Label: "Priority"},
	{Key: string(domain.SortSender), Label: "Sender"},
}

// Categories lists the category, priority, filter and sort options together
// with the live counts the sidebar shows.
func (h *CustomerHandler) Categories(c *fiber.Ctx) error {
	stats := h.inbox.Stats()

	resp := categoriesResponse{SortOrders: sortLabels}
	for _, cat := range domain.Categories {
		n := stats.ByCategory[cat]
		resp.Categories = append(resp.Categories, optionMeta{Key: string(cat), Label: h.title.String(string(cat)), Count: &n})
	}
	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow} {
		resp.Priorities = append(resp.Priorities, optionMeta{Key: string(p), Label: h.title.String(string(p))})
	}

	counts := filterCounts(stats.Counts)
	for _, f := range domain.Filters {
		n := counts[f]
		resp.Filters = append(resp.Filters, optionMeta{Key: string(f), Label: h.title.String(string(f)), Count: &n})
	}
	return response.OK(c, resp)
}

func filterCounts(fc domain.FilterCounts) map[domain.Filter]int {
	return map[domain.Filter]int{
		domain.FilterAll:       fc.All,
		domain.FilterUnread:    fc.Unread,
		domain.FilterAIReplied: fc.AIReplied,
		domain.FilterUrgent:    fc.Urgent,
		domain.FilterResolved:  fc.Resolved,
	}
}
