// Package provider implements the mail provider port on top of the Gmail
// REST API.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"support_inbox/core/port/out"
	"support_inbox/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerName   = "gmail"
	userMe         = "me"
	defaultTimeout = 30 * time.Second
)

// Reasons Google reports for quota and rate limit failures.
var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// GmailConfig tunes the adapter. Endpoint and HTTPClient are only set by
// tests that stand in for the API.
type GmailConfig struct {
	Timeout    time.Duration
	Endpoint   string
	HTTPClient *http.Client
}

// GmailAdapter implements out.MailProvider for Gmail. Calls go through a
// circuit breaker and fail fast while it is open; nothing is retried.
type GmailAdapter struct {
	cb         *gobreaker.CircuitBreaker
	timeout    time.Duration
	endpoint   string
	httpClient *http.Client
}

func NewGmailAdapter(cfg GmailConfig) *GmailAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Client errors are the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &GmailAdapter{
		cb:         gobreaker.NewCircuitBreaker(cbSettings),
		timeout:    cfg.Timeout,
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
	}
}

func (a *GmailAdapter) GetProviderType() string {
	return providerName
}

// =============================================================================
// Reading
// =============================================================================

// ListMessages returns the ids of messages matching query, newest first.
func (a *GmailAdapter) ListMessages(ctx context.Context, token *oauth2.Token, query string, maxResults int) ([]string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 50
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.executeWithCircuitBreaker("ListMessages", func() error {
		req := svc.Users.Messages.List(userMe).MaxResults(int64(maxResults))
		if query != "" {
			req = req.Q(query)
		}
		var apiErr error
		resp, apiErr = req.Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches one message with its full part tree.
func (a *GmailAdapter) GetMessage(ctx context.Context, token *oauth2.Token, id string) (*out.ProviderMessage, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	cbErr := a.executeWithCircuitBreaker("GetMessage", func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get(userMe, id).Format("full").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to get message")
	}
	return convertMessage(msg), nil
}

// GetProfile returns the signed-in account. It doubles as the quota check.
func (a *GmailAdapter) GetProfile(ctx context.Context, token *oauth2.Token) (*out.ProviderProfile, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	var profile *gmail.Profile
	cbErr := a.executeWithCircuitBreaker("GetProfile", func() error {
		var apiErr error
		profile, apiErr = svc.Users.GetProfile(userMe).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to get profile")
	}

	return &out.ProviderProfile{
		Email:         profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		ThreadsTotal:  profile.ThreadsTotal,
	}, nil
}

// =============================================================================
// Writing
// =============================================================================

// SendMessage sends a raw RFC 5322 message, threading it when threadID is set.
func (a *GmailAdapter) SendMessage(ctx context.Context, token *oauth2.Token, raw []byte, threadID string) (*out.ProviderSendResult, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, err
	}

	gmailMsg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}

	var sent *gmail.Message
	cbErr := a.executeWithCircuitBreaker("SendMessage", func() error {
		var apiErr error
		sent, apiErr = svc.Users.Messages.Send(userMe, gmailMsg).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to send message")
	}

	return &out.ProviderSendResult{
		ID:       sent.Id,
		ThreadID: sent.ThreadId,
		SentAt:   time.Now(),
	}, nil
}

// ModifyLabels adds and removes labels on a message.
func (a *GmailAdapter) ModifyLabels(ctx context.Context, token *oauth2.Token, id string, add, remove []string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	svc, err := a.getService(ctx, token)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	cbErr := a.executeWithCircuitBreaker("ModifyLabels", func() error {
		_, apiErr := svc.Users.Messages.Modify(userMe, id, req).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return a.wrapError(cbErr, "failed to modify labels")
	}
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (a *GmailAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *GmailAdapter) getService(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	if token == nil {
		return nil, out.NewProviderError(providerName, out.ProviderErrAuth, "missing token", nil)
	}

	var opts []option.ClientOption
	if a.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(a.httpClient))
	} else {
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, out.NewProviderError(providerName, out.ProviderErrServer, "failed to create gmail client", err)
	}
	return svc, nil
}

// executeWithCircuitBreaker runs fn through the breaker. Client errors are
// passed through without counting as failures.
func (a *GmailAdapter) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if err != nil {
		logger.WithError(err).WithFields(map[string]any{
			"operation": operation,
			"state":     a.cb.State().String(),
		}).Warn("gmail call failed")
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// CircuitState reports the breaker state for the readiness check.
func (a *GmailAdapter) CircuitState() string {
	return a.cb.State().String()
}

func (a *GmailAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(providerName, out.ProviderErrUnavailable, "Gmail temporarily unavailable", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case isQuotaError(apiErr):
			return out.NewProviderError(providerName, out.ProviderErrQuotaExceeded, "Gmail quota exceeded", err)
		case apiErr.Code == http.StatusUnauthorized:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired, "Token expired", err)
		case apiErr.Code == http.StatusForbidden:
			return out.NewProviderError(providerName, out.ProviderErrAuth, "Access denied", err)
		case apiErr.Code == http.StatusNotFound:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "Not found", err)
		case apiErr.Code == http.StatusBadRequest:
			return out.NewProviderError(providerName, out.ProviderErrInvalidInput, "Invalid request", err)
		case apiErr.Code >= 500:
			return out.NewProviderError(providerName, out.ProviderErrServer, "Server error", err)
		}
		return out.NewProviderError(providerName, out.ProviderErrServer, defaultMsg, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return out.NewProviderError(providerName, out.ProviderErrNetwork, "Request timed out", err)
	}
	return out.NewProviderError(providerName, out.ProviderErrNetwork, defaultMsg, err)
}

// isQuotaError matches 429 and the 403 variants Google uses for rate limits.
func isQuotaError(apiErr *googleapi.Error) bool {
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota")
}

// =============================================================================
// Conversion
// =============================================================================

func convertMessage(msg *gmail.Message) *out.ProviderMessage {
	result := &out.ProviderMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		LabelIDs: append([]string(nil), msg.LabelIds...),
		Payload:  convertPart(msg.Payload),
	}
	if msg.InternalDate > 0 {
		result.InternalDate = time.UnixMilli(msg.InternalDate)
	}
	return result
}

func convertPart(part *gmail.MessagePart) *out.ProviderPart {
	if part == nil {
		return nil
	}
	result := &out.ProviderPart{
		MimeType: part.MimeType,
		Filename: part.Filename,
	}
	for _, h := range part.Headers {
		result.Headers = append(result.Headers, out.ProviderHeader{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil {
		result.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		result.Parts = append(result.Parts, convertPart(child))
	}
	return result
}

var _ out.MailProvider = (*GmailAdapter)(nil)
