package http

import (
	"context"
	"time"

	"support_inbox/adapter/out/realtime"
	"support_inbox/core/service/inbox"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	inbox *inbox.Service
	redis *redis.Client
	hub   *realtime.SSEHub
}

// NewHealthHandler creates the liveness/readiness handler. redis may be nil
// when OAuth state is kept in memory.
func NewHealthHandler(svc *inbox.Service, redisClient *redis.Client, hub *realtime.SSEHub) *HealthHandler {
	return &HealthHandler{inbox: svc, redis: redisClient, hub: hub}
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			ready = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	counts := h.inbox.Counts()
	if counts.All == 0 {
		checks["inbox"] = "empty"
	} else {
		checks["inbox"] = "loaded"
	}

	status, code := "ready", fiber.StatusOK
	if !ready {
		status, code = "not ready", fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"status":    status,
		"mode":      h.inbox.Mode(),
		"emails":    counts.All,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		body["sse_clients"] = h.hub.ClientCount()
	}
	return c.Status(code).JSON(body)
}
