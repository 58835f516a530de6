package out

import (
	"context"
	"time"

	"support_inbox/core/domain"
)

// RealtimePort fans inbox events out to connected clients.
type RealtimePort interface {
	Broadcast(ctx context.Context, event *domain.RealtimeEvent)
}

// OAuthStateStore keeps one-time OAuth state values for CSRF protection.
type OAuthStateStore interface {
	StoreState(ctx context.Context, state string, ttl time.Duration) error
	// ValidateState consumes the state; a second call for the same value fails.
	ValidateState(ctx context.Context, state string) error
}
