// Package realtime fans inbox events out to Server-Sent Events clients.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	clientBuffer             = 64
	defaultHeartbeatInterval = 30 * time.Second
)

// =============================================================================
// SSE Hub
// =============================================================================

// SSEHub implements out.RealtimePort. Every connected browser tab gets its
// own buffered channel; a slow tab loses events rather than blocking the
// inbox.
type SSEHub struct {
	mu      sync.RWMutex
	clients map[string]*SSEClient
	log     zerolog.Logger

	heartbeatInterval time.Duration

	seq     int64
	sent    int64
	dropped int64
}

func NewSSEHub(log zerolog.Logger) *SSEHub {
	return &SSEHub{
		clients:           make(map[string]*SSEClient),
		log:               log.With().Str("component", "sse_hub").Logger(),
		heartbeatInterval: defaultHeartbeatInterval,
	}
}

// WithHeartbeat overrides the keep-alive interval.
func (h *SSEHub) WithHeartbeat(d time.Duration) *SSEHub {
	if d > 0 {
		h.heartbeatInterval = d
	}
	return h
}

// Subscribe registers a new client.
func (h *SSEHub) Subscribe() *SSEClient {
	client := &SSEClient{
		ID:     uuid.NewString(),
		events: make(chan *domain.RealtimeEvent, clientBuffer),
		done:   make(chan struct{}),
		hub:    h,
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().
		Str("client_id", client.ID).
		Int("total_connections", total).
		Msg("client subscribed")

	return client
}

// Unsubscribe removes the client and closes its channel. Safe to call twice.
func (h *SSEHub) Unsubscribe(client *SSEClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	close(client.events)
	h.mu.Unlock()

	h.log.Debug().Str("client_id", client.ID).Msg("client unsubscribed")
}

// Broadcast stamps the event with the next sequence number and queues it
// for every client.
func (h *SSEHub) Broadcast(ctx context.Context, event *domain.RealtimeEvent) {
	if event == nil {
		return
	}
	event.Seq = atomic.AddInt64(&h.seq, 1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Held for the whole loop so Unsubscribe cannot close a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		select {
		case client.events <- event:
			atomic.AddInt64(&h.sent, 1)
		default:
			atomic.AddInt64(&h.dropped, 1)
			h.log.Warn().
				Str("client_id", id).
				Str("event_type", string(event.Type)).
				Int64("seq", event.Seq).
				Msg("dropped event due to full buffer")
		}
	}
}

// ClientCount returns the number of open streams.
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *SSEHub) Metrics() SSEMetrics {
	return SSEMetrics{
		Connections:     h.ClientCount(),
		LastSeq:         atomic.LoadInt64(&h.seq),
		MessagesSent:    atomic.LoadInt64(&h.sent),
		MessagesDropped: atomic.LoadInt64(&h.dropped),
	}
}

type SSEMetrics struct {
	Connections     int   `json:"connections"`
	LastSeq         int64 `json:"last_seq"`
	MessagesSent    int64 `json:"messages_sent"`
	MessagesDropped int64 `json:"messages_dropped"`
}

// =============================================================================
// Client
// =============================================================================

// SSEClient is one open event stream.
type SSEClient struct {
	ID     string
	events chan *domain.RealtimeEvent
	done   chan struct{}
	once   sync.Once
	hub    *SSEHub
}

// Events is closed once the client is unsubscribed.
func (c *SSEClient) Events() <-chan *domain.RealtimeEvent {
	return c.events
}

// Done is closed by Close.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

func (c *SSEClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.Unsubscribe(c)
	})
}

func (c *SSEClient) HeartbeatInterval() time.Duration {
	return c.hub.heartbeatInterval
}

// =============================================================================
// Serialization
// =============================================================================

// SerializeEvent renders the data line of an SSE frame.
func SerializeEvent(event *domain.RealtimeEvent) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":      event.Type,
		"seq":       event.Seq,
		"data":      event.Data,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	})
}

// FormatFrame renders a complete SSE frame including the trailing blank line.
func FormatFrame(event *domain.RealtimeEvent) ([]byte, error) {
	data, err := SerializeEvent(event)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(data)+64)
	frame = append(frame, "event: "...)
	frame = append(frame, string(event.Type)...)
	frame = append(frame, '\n')
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

var _ out.RealtimePort = (*SSEHub)(nil)
