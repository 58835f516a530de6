package inbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"
	"support_inbox/core/service/reply"
	"support_inbox/core/service/search"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Mode is where the inbox gets its emails from.
type Mode string

const (
	ModeSample Mode = "sample"
	ModeGmail  Mode = "gmail"
)

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeSample, ModeGmail:
		return m, nil
	}
	return "", fmt.Errorf("unknown data mode %q", s)
}

const (
	defaultAuthor     = "AI Assistant"
	defaultConfidence = 85
)

// Random is the injected source for simulated arrivals and timestamp drift.
type Random interface {
	Intn(n int) int
	Float64() float64
	Int63n(n int64) int64
}

// TokenSource hands out the signed-in user's OAuth token. It returns
// apperr.ProviderNotReady while nobody is signed in.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Email() string
}

// Config tunes the inbox controller.
type Config struct {
	Mode            Mode
	NewEmailRate    float64       // chance of a simulated arrival per refresh
	NudgeRate       float64       // chance per email of timestamp drift per refresh
	MaxNudge        time.Duration // upper bound of one drift step
	MaxResults      int           // provider inbox listing size
	SearchResults   int           // provider search listing size
	FetchWorkers    int
	ArrivalSubjects []string
	Settings        domain.AISettings
}

func DefaultConfig() Config {
	return Config{
		Mode:          ModeSample,
		NewEmailRate:  0.1,
		NudgeRate:     0.05,
		MaxNudge:      5 * time.Minute,
		MaxResults:    50,
		SearchResults: 20,
		FetchWorkers:  defaultFetchWorkers,
		Settings:      domain.AISettings{AutoReply: true, ConfidenceThreshold: 80},
	}
}

// arrivalCategories are the categories simulated arrivals are drawn from.
var arrivalCategories = []domain.Category{
	domain.CategorySupport, domain.CategoryBilling, domain.CategorySales, domain.CategoryGeneral,
}

var arrivalPriorities = []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Mode   Mode                `json:"mode"`
	Added  *domain.Email       `json:"added,omitempty"`
	Moved  int                 `json:"moved"`
	Total  int                 `json:"total"`
	Counts domain.FilterCounts `json:"counts"`
	Notice *domain.Notice      `json:"notice"`
}

// Service is the inbox controller. It owns the store and routes every
// mutation through its methods.
type Service struct {
	store    *Store
	selector *reply.Selector
	provider out.MailProvider
	tokens   TokenSource
	realtime out.RealtimePort

	cfg Config

	rngMu sync.Mutex
	rng   Random

	mu       sync.RWMutex
	mode     Mode
	settings domain.AISettings

	flight singleflight.Group
	now    func() time.Time
}

// NewService creates a sample-mode controller without provider access.
func NewService(store *Store, selector *reply.Selector, rng Random, cfg Config) *Service {
	return NewServiceFull(store, selector, rng, cfg, nil, nil, nil)
}

// NewServiceFull creates a controller with all dependencies. provider,
// tokens and realtime may be nil.
func NewServiceFull(
	store *Store,
	selector *reply.Selector,
	rng Random,
	cfg Config,
	provider out.MailProvider,
	tokens TokenSource,
	realtime out.RealtimePort,
) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeSample
	}
	return &Service{
		store:    store,
		selector: selector,
		provider: provider,
		tokens:   tokens,
		realtime: realtime,
		cfg:      cfg,
		rng:      rng,
		mode:     cfg.Mode,
		settings: cfg.Settings,
		now:      time.Now,
	}
}

// =============================================================================
// State
// =============================================================================

func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Service) setMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Service) Settings() domain.AISettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the AI settings. The threshold must be 0..100.
func (s *Service) UpdateSettings(settings domain.AISettings) (domain.AISettings, error) {
	if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold > 100 {
		return domain.AISettings{}, apperr.InvalidInput("confidence_threshold", "must be between 0 and 100")
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return settings, nil
}

// LoadSample resets the store to a sample dataset and switches to sample
// mode.
func (s *Service) LoadSample(data *SampleData) {
	s.store.Load(data.Customers, data.Emails)
	if len(data.ArrivalSubjects) > 0 {
		s.mu.Lock()
		s.cfg.ArrivalSubjects = data.ArrivalSubjects
		s.mu.Unlock()
	}
	s.setMode(ModeSample)
	logger.Info("sample inbox loaded: %d customers, %d emails", len(data.Customers), len(data.Emails))
}

// =============================================================================
// Queries
// =============================================================================

// List returns list items for q.
func (s *Service) List(q domain.ListQuery) []*domain.EmailListItem {
	return s.store.ListItems(s.store.List(q))
}

func (s *Service) Counts() domain.FilterCounts {
	return s.store.Counts()
}

func (s *Service) Stats() domain.InboxStats {
	return s.store.Stats()
}

// Get returns an email without marking it read.
func (s *Service) Get(id int64) (*domain.Email, *domain.Customer, error) {
	return s.store.Get(id)
}

func (s *Service) CustomerProfile(id int64) (*domain.CustomerProfile, error) {
	return s.store.CustomerProfile(id)
}

// =============================================================================
// Selection & replies
// =============================================================================

// Select opens an email, marking it read if it was unread.
func (s *Service) Select(ctx context.Context, id int64) (*domain.Email, error) {
	email, changed, err := s.store.Select(id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.broadcast(ctx, domain.NewEvent(domain.EventEmailRead, map[string]any{
			"email_id": id,
			"counts":   s.store.Counts(),
		}))
	}
	return email, nil
}

// GenerateReply drafts a reply. regenerate perturbs the confidence.
func (s *Service) GenerateReply(ctx context.Context, id int64, regenerate bool) (*domain.ReplyDraft, error) {
	email, customer, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	draft, err := s.selector.Generate(ctx, email, customer, regenerate)
	if err != nil {
		return nil, err
	}
	draft.MeetsThreshold = draft.Confidence >= s.Settings().ConfidenceThreshold

	logger.WithFields(map[string]any{
		"email_id":   id,
		"template":   draft.TemplateKey,
		"confidence": draft.Confidence,
	}).Debug("reply drafted in %dms", draft.DurationMS)
	return draft, nil
}

// SendReply accepts a draft: in Gmail mode it is sent through the provider
// first, then the store records it. Concurrent sends of the same content to
// the same email share one attempt; different content is sent separately.
func (s *Service) SendReply(ctx context.Context, id int64, req domain.SendReplyRequest) (*domain.SendReplyResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.MissingField("content")
	}
	if req.Confidence == 0 {
		req.Confidence = defaultConfidence
	}
	if req.Author == "" {
		req.Author = defaultAuthor
	}

	v, err, _ := s.flight.Do(sendFlightKey(id, content), func() (any, error) {
		return s.sendReply(ctx, id, content, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SendReplyResult), nil
}

func sendFlightKey(id int64, content string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return "send:" + strconv.FormatInt(id, 10) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func (s *Service) sendReply(ctx context.Context, id int64, content string, req domain.SendReplyRequest) (*domain.SendReplyResult, error) {
	original, _, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	sentAt := s.now()
	result := &domain.SendReplyResult{SentAt: sentAt}

	if s.Mode() == ModeGmail && original.ProviderID != "" {
		token, err := s.requireToken(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := buildReplyMIME(s.tokens.Email(), original, content, sentAt)
		if err != nil {
			return nil, apperr.BadRequest(err.Error())
		}
		sent, err := s.provider.SendMessage(ctx, token, raw, original.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("failed to send reply: %w", err)
		}
		result.ProviderSent = true
		result.ProviderID = sent.ID

		if err := s.provider.ModifyLabels(ctx, token, original.ProviderID, nil, []string{out.LabelUnread}); err != nil {
			logger.WithError(err).WithField("email_id", id).Warn("failed to mark replied email read")
		}
	}

	updated, err := s.store.AppendAIReply(id, domain.NewAIReplyEntry(req.Author, content, req.Confidence, sentAt))
	if err != nil {
		return nil, err
	}
	result.Email = updated

	s.broadcast(ctx, domain.NewEvent(domain.EventEmailReplied, map[string]any{
		"email_id": id,
		"counts":   s.store.Counts(),
	}))
	s.broadcast(ctx, domain.NewNoticeEvent(domain.NoticeSuccess, "AI Reply Sent", "Response has been sent successfully."))

	logger.WithField("email_id", id).Info("reply sent (provider=%t)", result.ProviderSent)
	return result, nil
}

// =============================================================================
// Refresh
// =============================================================================

// Single-flight keys. Provider loads and provider refreshes share a key so
// only one inbox fetch is ever in flight.
const (
	flightSample   = "refresh:sample"
	flightProvider = "refresh:provider"
)

// Refresh updates the inbox. Concurrent calls share one in-flight refresh.
func (s *Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	var (
		v      any
		err    error
		shared bool
	)
	if s.Mode() == ModeGmail {
		v, err, shared = s.flight.Do(flightProvider, func() (any, error) {
			return s.refreshFromProvider(ctx)
		})
	} else {
		v, err, shared = s.flight.Do(flightSample, func() (any, error) {
			return s.refreshSample(ctx), nil
		})
	}
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("refresh joined an in-flight refresh")
	}
	return v.(*RefreshResult), nil
}

func (s *Service) refreshSample(ctx context.Context) *RefreshResult {
	result := &RefreshResult{Mode: ModeSample}

	s.rngMu.Lock()
	arrive := s.rng.Float64() < s.cfg.NewEmailRate
	var arrival *domain.Email
	if arrive {
		arrival = s.simulatedArrivalLocked()
	}
	nudges := make(map[int64]time.Duration)
	for _, e := range s.store.List(domain.ListQuery{Filter: domain.FilterAll}) {
		if s.cfg.MaxNudge > 0 && s.rng.Float64() < s.cfg.NudgeRate {
			nudges[e.ID] = time.Duration(s.rng.Int63n(int64(s.cfg.MaxNudge)) + 1)
		}
	}
	s.rngMu.Unlock()

	result.Moved = s.store.ShiftTimestamps(func(e *domain.Email) time.Duration {
		return nudges[e.ID]
	})

	if arrival != nil {
		result.Added = s.store.Add(arrival)
		s.broadcast(ctx, domain.NewEvent(domain.EventNewEmail, result.Added))
	}

	result.Total = s.store.Len()
	result.Counts = s.store.Counts()
	result.Notice = &domain.Notice{Level: domain.NoticeSuccess, Title: "Refreshed", Message: "Email list updated successfully."}
	s.broadcast(ctx, domain.NewEvent(domain.EventInboxRefreshed, result))
	return result
}

// simulatedArrivalLocked builds a random new email. Caller holds rngMu.
func (s *Service) simulatedArrivalLocked() *domain.Email {
	customers := s.store.CustomerIDs()
	if len(customers) == 0 {
		return nil
	}
	s.mu.RLock()
	subjects := s.cfg.ArrivalSubjects
	s.mu.RUnlock()
	if len(subjects) == 0 {
		subjects = []string{"New Support Request"}
	}
	return &domain.Email{
		CustomerID: customers[s.rng.Intn(len(customers))],
		Subject:    subjects[s.rng.Intn(len(subjects))],
		Body:       "This is a new email that just arrived...",
		Status:     domain.StatusUnread,
		Category:   arrivalCategories[s.rng.Intn(len(arrivalCategories))],
		Priority:   arrivalPriorities[s.rng.Intn(len(arrivalPriorities))],
		Tags:       []string{domain.TagNew},
		Thread:     []domain.ThreadEntry{},
		ReceivedAt: s.now(),
	}
}

func (s *Service) refreshFromProvider(ctx context.Context) (*RefreshResult, error) {
	total, err := s.loadFromProvider(ctx, search.CategoryQuery(""))
	if err != nil {
		return nil, err
	}
	result := &RefreshResult{
		Mode:   ModeGmail,
		Total:  total,
		Counts: s.store.Counts(),
		Notice: &domain.Notice{Level: domain.NoticeSuccess, Title: "Refreshed", Message: fmt.Sprintf("Loaded %d emails from Gmail.", total)},
	}
	s.broadcast(ctx, domain.NewEvent(domain.EventInboxRefreshed, result))
	return result, nil
}

// =============================================================================
// Provider mode
// =============================================================================

// LoadFromProvider replaces the inbox with the provider's current listing
// and switches to Gmail mode.
func (s *Service) LoadFromProvider(ctx context.Context) (*RefreshResult, error) {
	v, err, _ := s.flight.Do(flightProvider, func() (any, error) {
		return s.refreshFromProvider(ctx)
	})
	if err != nil {
		return nil, err
	}
	result := v.(*RefreshResult)
	s.broadcast(ctx, domain.NewEvent(domain.EventInboxLoaded, result))
	return result, nil
}

func (s *Service) loadFromProvider(ctx context.Context, query string) (int, error) {
	token, err := s.requireToken(ctx)
	if err != nil {
		return 0, err
	}
	emails, err := fetchMessages(ctx, s.provider, token, query, s.cfg.MaxResults, s.cfg.FetchWorkers)
	if err != nil {
		return 0, err
	}
	s.store.Replace(emails)
	s.setMode(ModeGmail)
	logger.WithField("query", query).Info("loaded %d emails from provider", len(emails))
	return len(emails), nil
}

// SearchProvider runs a free-text provider search. Failures are logged and
// yield an empty result.
func (s *Service) SearchProvider(ctx context.Context, q string) ([]*domain.Email, error) {
	return s.providerRead(ctx, search.SearchQuery(q))
}

// ProviderCategory lists provider messages for a category. Failures are
// logged and yield an empty result.
func (s *Service) ProviderCategory(ctx context.Context, category domain.Category) ([]*domain.Email, error) {
	return s.providerRead(ctx, search.CategoryQuery(category))
}

func (s *Service) providerRead(ctx context.Context, query string) ([]*domain.Email, error) {
	token, err := s.requireToken(ctx)
	if err != nil {
		return nil, err
	}
	emails, err := fetchMessages(ctx, s.provider, token, query, s.cfg.SearchResults, s.cfg.FetchWorkers)
	if err != nil {
		logger.WithError(err).WithField("query", query).Warn("provider search failed")
		return []*domain.Email{}, nil
	}
	return emails, nil
}

// Archive removes an email from the provider inbox.
func (s *Service) Archive(ctx context.Context, id int64) (*domain.Email, error) {
	return s.modifyLabels(ctx, id, nil, []string{out.LabelInbox})
}

// MarkUnread flags an email unread at the provider.
func (s *Service) MarkUnread(ctx context.Context, id int64) (*domain.Email, error) {
	return s.modifyLabels(ctx, id, []string{out.LabelUnread}, nil)
}

func (s *Service) modifyLabels(ctx context.Context, id int64, add, remove []string) (*domain.Email, error) {
	email, _, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if email.ProviderID == "" {
		return nil, apperr.BadRequest("email is not backed by the mail provider")
	}
	token, err := s.requireToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.provider.ModifyLabels(ctx, token, email.ProviderID, add, remove); err != nil {
		return nil, fmt.Errorf("failed to modify labels: %w", err)
	}
	updated, err := s.store.UpdateLabels(id, add, remove)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, domain.NewEvent(domain.EventEmailUpdated, updated.ToListItem(nil)))
	return updated, nil
}

// QuotaStatus is the result of a provider quota check.
type QuotaStatus string

const (
	QuotaOK       QuotaStatus = "ok"
	QuotaExceeded QuotaStatus = "quota_exceeded"
	QuotaError    QuotaStatus = "error"
)

// CheckQuota tests the provider with a cheap profile call.
func (s *Service) CheckQuota(ctx context.Context) (QuotaStatus, error) {
	token, err := s.requireToken(ctx)
	if err != nil {
		return "", err
	}
	if _, err := s.provider.GetProfile(ctx, token); err != nil {
		var perr *out.ProviderError
		if errors.As(err, &perr) && perr.Code == out.ProviderErrQuotaExceeded {
			return QuotaExceeded, nil
		}
		logger.WithError(err).Warn("quota check failed")
		return QuotaError, nil
	}
	return QuotaOK, nil
}

func (s *Service) requireToken(ctx context.Context) (*oauth2.Token, error) {
	if s.provider == nil || s.tokens == nil {
		return nil, apperr.ProviderNotReady()
	}
	return s.tokens.Token(ctx)
}

func (s *Service) broadcast(ctx context.Context, event *domain.RealtimeEvent) {
	if s.realtime == nil {
		return
	}
	s.realtime.Broadcast(ctx, event)
}
