package domain

import "time"

// RealtimeEvent is pushed to SSE subscribers whenever the inbox changes.
type RealtimeEvent struct {
	Type      EventType   `json:"type"`
	Seq       int64       `json:"seq"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type EventType string

const (
	// Email events
	EventNewEmail     EventType = "email.new"
	EventEmailRead    EventType = "email.read"
	EventEmailReplied EventType = "email.replied"
	EventEmailUpdated EventType = "email.updated"

	// Inbox events
	EventInboxRefreshed EventType = "inbox.refreshed"
	EventInboxLoaded    EventType = "inbox.loaded"

	// Notices the UI shows as toasts
	EventNotice EventType = "notice"

	// OAuth events
	EventSignedIn  EventType = "oauth.signed_in"
	EventSignedOut EventType = "oauth.signed_out"

	// System events
	EventConnected EventType = "connected"
)

// NoticeLevel mirrors the toast styles of the UI.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(t EventType, data interface{}) *RealtimeEvent {
	return &RealtimeEvent{
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewNoticeEvent wraps a notice in an event.
func NewNoticeEvent(level NoticeLevel, title, message string) *RealtimeEvent {
	return NewEvent(EventNotice, &Notice{Level: level, Title: title, Message: message})
}
