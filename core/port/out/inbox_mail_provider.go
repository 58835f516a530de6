// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// =============================================================================
// Mail Provider Port (Gmail)
// =============================================================================

// MailProvider is the outbound port for the external mail service.
type MailProvider interface {
	GetProviderType() string

	ListMessages(ctx context.Context, token *oauth2.Token, query string, maxResults int) ([]string, error)
	GetMessage(ctx context.Context, token *oauth2.Token, id string) (*ProviderMessage, error)
	SendMessage(ctx context.Context, token *oauth2.Token, raw []byte, threadID string) (*ProviderSendResult, error)
	ModifyLabels(ctx context.Context, token *oauth2.Token, id string, add, remove []string) error
	GetProfile(ctx context.Context, token *oauth2.Token) (*ProviderProfile, error)
}

// ProviderMessage is a provider message in its raw tree form.
type ProviderMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	InternalDate time.Time
	Payload      *ProviderPart
}

// Header returns the first header value matching name, case-insensitively.
func (m *ProviderMessage) Header(name string) string {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Header(name)
}

// HasLabel reports whether the message carries the label.
func (m *ProviderMessage) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// ProviderPart is one node of a message body tree. A node has either an
// inline encoded body or child parts.
type ProviderPart struct {
	MimeType string
	Filename string
	Headers  []ProviderHeader
	Data     string // base64url as delivered by the provider
	Parts    []*ProviderPart
}

// Header returns the first header value matching name, case-insensitively.
func (p *ProviderPart) Header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

type ProviderHeader struct {
	Name  string
	Value string
}

type ProviderSendResult struct {
	ID       string
	ThreadID string
	SentAt   time.Time
}

type ProviderProfile struct {
	Email         string
	MessagesTotal int64
	ThreadsTotal  int64
}

// Gmail system labels.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelSent   = "SENT"
	LabelSpam   = "SPAM"
	LabelTrash  = "TRASH"
)

// =============================================================================
// Errors
// =============================================================================

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth          ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired  ProviderErrorCode = "token_expired"
	ProviderErrQuotaExceeded ProviderErrorCode = "quota_exceeded"
	ProviderErrNotFound      ProviderErrorCode = "not_found"
	ProviderErrNetwork       ProviderErrorCode = "network_error"
	ProviderErrServer        ProviderErrorCode = "server_error"
	ProviderErrInvalidInput  ProviderErrorCode = "invalid_input"
	ProviderErrUnavailable   ProviderErrorCode = "unavailable" // circuit open
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider string
	Code     ProviderErrorCode
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}
