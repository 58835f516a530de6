package http

import (
	"bufio"
	"time"

	"support_inbox/adapter/out/realtime"
	"support_inbox/core/domain"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// SSEHandler streams inbox events to the browser.
type SSEHandler struct {
	hub   *realtime.SSEHub
	inbox *inbox.Service
	log   zerolog.Logger
}

func NewSSEHandler(hub *realtime.SSEHub, svc *inbox.Service, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{
		hub:   hub,
		inbox: svc,
		log:   log.With().Str("handler", "sse").Logger(),
	}
}

func (h *SSEHandler) Register(app fiber.Router) {
	app.Get("/events", h.Stream)
	app.Get("/events/status", h.Status)
}

// Stream holds the connection open and writes one frame per event. The
// first frame carries the current counts so a reconnecting client can
// resync.
func (h *SSEHandler) Stream(c *fiber.Ctx) error {
	client := h.hub.Subscribe()
	hello := domain.NewEvent(domain.EventConnected, fiber.Map{
		"client_id": client.ID,
		"mode":      h.inbox.Mode(),
		"counts":    h.inbox.Counts(),
	})

	h.log.Info().Str("client_id", client.ID).Msg("SSE client connected")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(client.HeartbeatInterval())
		defer ticker.Stop()
		defer func() {
			client.Close()
			h.log.Info().Str("client_id", client.ID).Msg("SSE client disconnected")
		}()

		if !h.write(w, hello) {
			return
		}

		for {
			select {
			case event, ok := <-client.Events():
				if !ok || !h.write(w, event) {
					return
				}
			case <-ticker.C:
				_, _ = w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during heartbeat")
					return
				}
			case <-client.Done():
				return
			}
		}
	})
	return nil
}

// write reports whether the client is still reachable.
func (h *SSEHandler) write(w *bufio.Writer, event *domain.RealtimeEvent) bool {
	frame, err := realtime.FormatFrame(event)
	if err != nil {
		h.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to serialize event")
		return true
	}
	if _, err := w.Write(frame); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		h.log.Debug().Err(err).Msg("client disconnected during write")
		return false
	}
	return true
}

func (h *SSEHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.hub.Metrics())
}
