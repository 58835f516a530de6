package realtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"support_inbox/core/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *SSEClient) *domain.RealtimeEvent {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestSSEHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewSSEHub(zerolog.Nop())
	a, b := hub.Subscribe(), hub.Subscribe()
	defer a.Close()
	defer b.Close()
	assert.Equal(t, 2, hub.ClientCount())

	hub.Broadcast(context.Background(), domain.NewEvent(domain.EventNewEmail, map[string]int{"id": 9}))
	hub.Broadcast(context.Background(), domain.NewEvent(domain.EventInboxRefreshed, nil))

	for _, c := range []*SSEClient{a, b} {
		first, second := receive(t, c), receive(t, c)
		assert.Equal(t, domain.EventNewEmail, first.Type)
		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
	}

	m := hub.Metrics()
	assert.Equal(t, int64(4), m.MessagesSent)
	assert.Equal(t, int64(2), m.LastSeq)
}

func TestSSEHub_SlowClientDrops(t *testing.T) {
	hub := NewSSEHub(zerolog.Nop())
	c := hub.Subscribe()
	defer c.Close()

	for i := 0; i < clientBuffer+5; i++ {
		hub.Broadcast(context.Background(), domain.NewEvent(domain.EventEmailUpdated, i))
	}

	assert.Equal(t, int64(5), hub.Metrics().MessagesDropped)
	assert.Len(t, c.Events(), clientBuffer)
}

func TestSSEHub_CloseIsIdempotent(t *testing.T) {
	hub := NewSSEHub(zerolog.Nop())
	c := hub.Subscribe()

	c.Close()
	c.Close()
	hub.Unsubscribe(c)

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-c.Events()
	assert.False(t, open)
	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}

	// Broadcasting after everyone left is a no-op.
	hub.Broadcast(context.Background(), domain.NewEvent(domain.EventNotice, nil))
}

func TestSSEHub_ConcurrentBroadcastAndClose(t *testing.T) {
	hub := NewSSEHub(zerolog.Nop())
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		c := hub.Subscribe()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Broadcast(context.Background(), domain.NewEvent(domain.EventEmailRead, j))
			}
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, int64(400), hub.Metrics().LastSeq)
}

func TestFormatFrame(t *testing.T) {
	ev := &domain.RealtimeEvent{
		Type:      domain.EventEmailReplied,
		Seq:       3,
		Data:      map[string]int{"id": 1},
		Timestamp: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	frame, err := FormatFrame(ev)
	require.NoError(t, err)

	text := string(frame)
	assert.True(t, strings.HasPrefix(text, "event: email.replied\ndata: "))
	assert.True(t, strings.HasSuffix(text, "\n\n"))

	payload := strings.TrimSuffix(strings.TrimPrefix(text, "event: email.replied\ndata: "), "\n\n")
	var decoded struct {
		Type      string         `json:"type"`
		Seq       int64          `json:"seq"`
		Data      map[string]int `json:"data"`
		Timestamp string         `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "email.replied", decoded.Type)
	assert.Equal(t, int64(3), decoded.Seq)
	assert.Equal(t, 1, decoded.Data["id"])
	assert.Equal(t, "2024-03-10T12:00:00Z", decoded.Timestamp)
}
