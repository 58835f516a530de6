package inbox

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"
	"support_inbox/core/service/reply"
	"support_inbox/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// =============================================================================
// Fakes
// =============================================================================

// scriptedRandom replays Float64 values and returns zero for integer draws.
// Once the script runs out Float64 returns 0.99.
type scriptedRandom struct {
	floats []float64
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.99
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptedRandom) Intn(int) int       { return 0 }
func (r *scriptedRandom) Int63n(int64) int64 { return 0 }

type staticTokens struct{}

func (staticTokens) Token(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "access"}, nil
}

func (staticTokens) Email() string { return "agent@example.com" }

type fakeProvider struct {
	mu       sync.Mutex
	ids      []string
	messages map[string]*out.ProviderMessage
	sent     [][]byte
	threads  []string
	modified []string
	sendErr  error
	profErr  error
}

func (p *fakeProvider) GetProviderType() string { return "fake" }

func (p *fakeProvider) ListMessages(_ context.Context, _ *oauth2.Token, _ string, _ int) ([]string, error) {
	return p.ids, nil
}

func (p *fakeProvider) GetMessage(_ context.Context, _ *oauth2.Token, id string) (*out.ProviderMessage, error) {
	msg, ok := p.messages[id]
	if !ok {
		return nil, out.NewProviderError("fake", out.ProviderErrNotFound, "message not found", nil)
	}
	return msg, nil
}

func (p *fakeProvider) SendMessage(_ context.Context, _ *oauth2.Token, raw []byte, threadID string) (*out.ProviderSendResult, error) {
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, raw)
	p.threads = append(p.threads, threadID)
	return &out.ProviderSendResult{ID: "sent-1", ThreadID: threadID}, nil
}

func (p *fakeProvider) ModifyLabels(_ context.Context, _ *oauth2.Token, id string, add, remove []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modified = append(p.modified, id+" +"+strings.Join(add, ",")+" -"+strings.Join(remove, ","))
	return nil
}

func (p *fakeProvider) GetProfile(context.Context, *oauth2.Token) (*out.ProviderProfile, error) {
	if p.profErr != nil {
		return nil, p.profErr
	}
	return &out.ProviderProfile{Email: "agent@example.com"}, nil
}

type recordingRealtime struct {
	mu     sync.Mutex
	events []domain.EventType
}

func (r *recordingRealtime) Broadcast(_ context.Context, event *domain.RealtimeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.Type)
}

func (r *recordingRealtime) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.EventType(nil), r.events...)
}

func providerMessage(id, from, subject, body string, labels ...string) *out.ProviderMessage {
	return &out.ProviderMessage{
		ID:           id,
		ThreadID:     "thread-" + id,
		LabelIDs:     labels,
		InternalDate: baseTime,
		Payload: &out.ProviderPart{
			MimeType: "text/plain",
			Headers: []out.ProviderHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Data: base64.URLEncoding.EncodeToString([]byte(body)),
		},
	}
}

func newSampleService(t *testing.T, rng Random, rt out.RealtimePort) *Service {
	t.Helper()
	data, err := LoadSample("", baseTime)
	require.NoError(t, err)

	store := NewStore()
	cfg := DefaultConfig()
	svc := NewServiceFull(store, reply.NewSelector(&scriptedRandom{}, 0), rng, cfg, nil, nil, rt)
	svc.LoadSample(data)
	svc.now = func() time.Time { return baseTime }
	return svc
}

func newGmailService(t *testing.T, provider *fakeProvider, rt out.RealtimePort) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mode = ModeGmail
	svc := NewServiceFull(NewStore(), reply.NewSelector(&scriptedRandom{}, 0), &scriptedRandom{}, cfg, provider, staticTokens{}, rt)
	svc.now = func() time.Time { return baseTime }
	return svc
}

// =============================================================================
// Sample mode
// =============================================================================

func TestService_SelectDecrementsUnreadOnce(t *testing.T) {
	rt := &recordingRealtime{}
	svc := newSampleService(t, &scriptedRandom{}, rt)
	ctx := context.Background()

	before := svc.Counts().Unread

	email, err := svc.Select(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, email.Status)
	assert.Equal(t, before-1, svc.Counts().Unread)

	_, err = svc.Select(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before-1, svc.Counts().Unread)

	assert.Equal(t, []domain.EventType{domain.EventEmailRead}, rt.types())
}

func TestService_GenerateAndSendReply(t *testing.T) {
	rt := &recordingRealtime{}
	svc := newSampleService(t, &scriptedRandom{}, rt)
	ctx := context.Background()

	draft, err := svc.GenerateReply(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, "billing.refund", draft.TemplateKey)
	assert.Equal(t, 95, draft.Confidence)
	assert.True(t, draft.MeetsThreshold)
	assert.Contains(t, draft.Content, "Mike Chen")

	svc.store.Add(&domain.Email{
		CustomerID: 4,
		Subject:    "Still locked out",
		Body:       "I cannot login after the password reset.",
		Status:     domain.StatusUnread,
		Category:   domain.CategoryTechnical,
		Priority:   domain.PriorityMedium,
		Tags:       []string{domain.TagPending},
		ReceivedAt: baseTime,
	})

	draft, err = svc.GenerateReply(ctx, 9, false)
	require.NoError(t, err)
	assert.Equal(t, "technical.password", draft.TemplateKey)

	result, err := svc.SendReply(ctx, 9, domain.SendReplyRequest{Content: draft.Content, Confidence: draft.Confidence})
	require.NoError(t, err)

	assert.False(t, result.ProviderSent)
	assert.Equal(t, domain.StatusAIReplied, result.Email.Status)
	assert.NotContains(t, result.Email.Tags, domain.TagPending)
	assert.Contains(t, result.Email.Tags, domain.TagAIReplied)
	require.Len(t, result.Email.Thread, 1)
	assert.Equal(t, defaultAuthor, result.Email.Thread[0].Author)
	assert.Equal(t, baseTime, result.Email.Thread[0].Timestamp)

	assert.Equal(t, []domain.EventType{domain.EventEmailReplied, domain.EventNotice}, rt.types())
}

func TestService_SendReplyValidation(t *testing.T) {
	svc := newSampleService(t, &scriptedRandom{}, nil)
	ctx := context.Background()

	_, err := svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "   "})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeMissingField, apperr.AsAppError(err).Code)

	_, err = svc.SendReply(ctx, 999, domain.SendReplyRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrEmailNotFound)

	result, err := svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, defaultConfidence, *result.Email.Thread[0].Confidence)
}

func TestService_GenerateReplyThreshold(t *testing.T) {
	svc := newSampleService(t, &scriptedRandom{}, nil)
	ctx := context.Background()

	_, err := svc.UpdateSettings(domain.AISettings{AutoReply: true, ConfidenceThreshold: 90})
	require.NoError(t, err)

	// sales catch-all sits at 89
	draft, err := svc.GenerateReply(ctx, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 89, draft.Confidence)
	assert.False(t, draft.MeetsThreshold)

	_, err = svc.UpdateSettings(domain.AISettings{ConfidenceThreshold: 101})
	assert.Error(t, err)
	assert.Equal(t, 90, svc.Settings().ConfidenceThreshold)
}

func TestService_RefreshSample(t *testing.T) {
	t.Run("arrival", func(t *testing.T) {
		rt := &recordingRealtime{}
		svc := newSampleService(t, &scriptedRandom{floats: []float64{0.05}}, rt)

		result, err := svc.Refresh(context.Background())
		require.NoError(t, err)

		require.NotNil(t, result.Added)
		assert.Equal(t, int64(9), result.Added.ID)
		assert.Equal(t, []string{domain.TagNew}, result.Added.Tags)
		assert.Equal(t, domain.StatusUnread, result.Added.Status)
		assert.Equal(t, "Quick Question About Features", result.Added.Subject)
		assert.Equal(t, int64(1), result.Added.CustomerID)
		assert.Equal(t, 9, result.Total)
		assert.Equal(t, 3, result.Counts.Unread)
		assert.Zero(t, result.Moved)

		items := svc.List(domain.ListQuery{Sort: domain.SortNewest})
		assert.Equal(t, int64(9), items[0].ID)

		assert.Equal(t, []domain.EventType{domain.EventNewEmail, domain.EventInboxRefreshed}, rt.types())
	})

	t.Run("no arrival", func(t *testing.T) {
		svc := newSampleService(t, &scriptedRandom{floats: []float64{0.5}}, nil)

		result, err := svc.Refresh(context.Background())
		require.NoError(t, err)
		assert.Nil(t, result.Added)
		assert.Equal(t, 8, result.Total)
		require.NotNil(t, result.Notice)
		assert.Equal(t, domain.NoticeSuccess, result.Notice.Level)
	})

	t.Run("timestamp drift", func(t *testing.T) {
		// no arrival, then the first email is nudged
		svc := newSampleService(t, &scriptedRandom{floats: []float64{0.5, 0.01}}, nil)
		before, _, err := svc.Get(1)
		require.NoError(t, err)

		result, err := svc.Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Moved)

		after, _, err := svc.Get(1)
		require.NoError(t, err)
		assert.Equal(t, before.ReceivedAt.Add(time.Nanosecond), after.ReceivedAt)
	})
}

func TestService_ProviderNotReady(t *testing.T) {
	svc := newSampleService(t, &scriptedRandom{}, nil)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	assert.ErrorIs(t, err, apperr.ErrProviderNotReady)

	_, err = svc.SearchProvider(ctx, "refund")
	assert.ErrorIs(t, err, apperr.ErrProviderNotReady)

	_, err = svc.CheckQuota(ctx)
	assert.ErrorIs(t, err, apperr.ErrProviderNotReady)

	assert.Equal(t, ModeSample, svc.Mode())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Gmail")
	require.NoError(t, err)
	assert.Equal(t, ModeGmail, m)

	_, err = ParseMode("imap")
	assert.Error(t, err)
}

// =============================================================================
// Gmail mode
// =============================================================================

func TestService_LoadFromProvider(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1", "missing", "m2"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", `"Ann Lee" <ann@shop.io>`, "Refund please", "I was charged twice.", out.LabelInbox, out.LabelUnread),
			"m2": providerMessage("m2", "bob@corp.com", "Hello", "Just saying hi.", out.LabelInbox),
		},
	}
	rt := &recordingRealtime{}
	svc := newGmailService(t, provider, rt)

	result, err := svc.LoadFromProvider(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeGmail, result.Mode)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, ModeGmail, svc.Mode())

	items := svc.List(domain.ListQuery{Sort: domain.SortSender})
	require.Len(t, items, 2)
	assert.Equal(t, "Ann Lee", items[0].CustomerName)
	assert.Equal(t, domain.CategoryBilling, items[0].Category)
	assert.Equal(t, domain.StatusUnread, items[0].Status)
	assert.Equal(t, "bob", items[1].CustomerName)

	assert.Equal(t, []domain.EventType{domain.EventInboxRefreshed, domain.EventInboxLoaded}, rt.types())
}

func TestService_SendReplyThroughProvider(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", `"Ann Lee" <ann@shop.io>`, "Order status", "Where is my package?", out.LabelInbox, out.LabelUnread),
		},
	}
	svc := newGmailService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	require.NoError(t, err)

	result, err := svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "It ships today.", Confidence: 88})
	require.NoError(t, err)

	assert.True(t, result.ProviderSent)
	assert.Equal(t, "sent-1", result.ProviderID)
	assert.Equal(t, domain.StatusAIReplied, result.Email.Status)

	require.Len(t, provider.sent, 1)
	raw := string(provider.sent[0])
	assert.Contains(t, raw, "Re: Order status")
	assert.Contains(t, raw, "In-Reply-To: <m1>")
	assert.Contains(t, raw, "ann@shop.io")
	assert.Contains(t, raw, "agent@example.com")
	assert.Contains(t, raw, "It ships today.")
	assert.Equal(t, []string{"thread-m1"}, provider.threads)
	assert.Equal(t, []string{"m1 + -UNREAD"}, provider.modified)
}

func TestService_SendReplyProviderFailure(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", "ann@shop.io", "Order", "Where is it?", out.LabelInbox, out.LabelUnread),
		},
		sendErr: errors.New("boom"),
	}
	svc := newGmailService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	require.NoError(t, err)

	_, err = svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "hi"})
	require.Error(t, err)

	email, _, err := svc.Get(1)
	require.NoError(t, err)
	assert.Empty(t, email.Thread)
	assert.Equal(t, domain.StatusUnread, email.Status)
}

// gatedProvider holds every SendMessage until release is closed.
type gatedProvider struct {
	*fakeProvider
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) SendMessage(ctx context.Context, token *oauth2.Token, raw []byte, threadID string) (*out.ProviderSendResult, error) {
	p.entered <- struct{}{}
	<-p.release
	return p.fakeProvider.SendMessage(ctx, token, raw, threadID)
}

func TestService_ConcurrentSendsWithDifferentContent(t *testing.T) {
	base := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", "ann@shop.io", "Order", "Where is it?", out.LabelInbox, out.LabelUnread),
		},
	}
	provider := &gatedProvider{fakeProvider: base, entered: make(chan struct{}, 2), release: make(chan struct{})}

	cfg := DefaultConfig()
	cfg.Mode = ModeGmail
	svc := NewServiceFull(NewStore(), reply.NewSelector(&scriptedRandom{}, 0), &scriptedRandom{}, cfg, provider, staticTokens{}, nil)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	require.NoError(t, err)

	contents := []string{"first reply", "second, different reply"}
	errs := make([]error, len(contents))
	var wg sync.WaitGroup
	for i, content := range contents {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			_, errs[i] = svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: content})
		}(i, content)
	}

	// Both sends must reach the provider before either is released.
	for range contents {
		select {
		case <-provider.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("send did not reach the provider")
		}
	}
	close(provider.release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, base.sent, 2)

	email, _, err := svc.Get(1)
	require.NoError(t, err)
	require.Len(t, email.Thread, 2)
	got := []string{email.Thread[0].Content, email.Thread[1].Content}
	assert.ElementsMatch(t, contents, got)
}

func TestSendFlightKey(t *testing.T) {
	assert.Equal(t, sendFlightKey(1, "hi"), sendFlightKey(1, "hi"))
	assert.NotEqual(t, sendFlightKey(1, "hi"), sendFlightKey(1, "hello"))
	assert.NotEqual(t, sendFlightKey(1, "hi"), sendFlightKey(2, "hi"))
}

func TestService_RefreshKeepsIdentityAndReplies(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1", "m2"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", `"Ann Lee" <ann@shop.io>`, "Refund please", "I was charged twice.", out.LabelInbox, out.LabelUnread),
			"m2": providerMessage("m2", "bob@corp.com", "Question", "Do you ship abroad?", out.LabelInbox, out.LabelUnread),
			"m3": providerMessage("m3", "eve@evil.io", "Hello", "New message.", out.LabelInbox, out.LabelUnread),
		},
	}
	svc := newGmailService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	require.NoError(t, err)

	ann, _, err := svc.Get(1)
	require.NoError(t, err)
	require.Equal(t, "m1", ann.ProviderID)

	_, err = svc.Select(ctx, 2)
	require.NoError(t, err)
	_, err = svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "Refund issued."})
	require.NoError(t, err)

	// A new message arrives at the top of the listing.
	provider.ids = []string{"m3", "m1", "m2"}
	result, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)

	ann, _, err = svc.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "m1", ann.ProviderID)
	assert.Equal(t, domain.StatusAIReplied, ann.Status)
	require.Len(t, ann.Thread, 1)

	bob, _, err := svc.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "m2", bob.ProviderID)
	assert.Equal(t, domain.StatusRead, bob.Status)

	eve, _, err := svc.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "m3", eve.ProviderID)

	counts := svc.Counts()
	assert.Equal(t, 3, counts.All)
	assert.Equal(t, 1, counts.Unread)
	assert.Equal(t, 1, counts.AIReplied)

	// A reply to id 1 still goes to Ann.
	_, err = svc.SendReply(ctx, 1, domain.SendReplyRequest{Content: "Anything else?"})
	require.NoError(t, err)
	require.Len(t, provider.sent, 2)
	assert.Contains(t, string(provider.sent[1]), "ann@shop.io")
	assert.NotContains(t, string(provider.sent[1]), "eve@evil.io")
	assert.Equal(t, []string{"thread-m1", "thread-m1"}, provider.threads)
}

func TestService_ArchiveAndMarkUnread(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", "ann@shop.io", "Order", "Where is it?", out.LabelInbox),
		},
	}
	rt := &recordingRealtime{}
	svc := newGmailService(t, provider, rt)
	ctx := context.Background()

	_, err := svc.LoadFromProvider(ctx)
	require.NoError(t, err)

	email, err := svc.MarkUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{out.LabelInbox, out.LabelUnread}, email.Labels)

	email, err = svc.Archive(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{out.LabelUnread}, email.Labels)

	assert.Equal(t, []string{"m1 +UNREAD -", "m1 + -INBOX"}, provider.modified)
	assert.Contains(t, rt.types(), domain.EventEmailUpdated)
}

func TestService_ModifyLabelsRequiresProviderEmail(t *testing.T) {
	svc := newSampleService(t, &scriptedRandom{}, nil)

	_, err := svc.Archive(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeBadRequest, apperr.AsAppError(err).Code)
}

func TestService_CheckQuota(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want QuotaStatus
	}{
		{"ok", nil, QuotaOK},
		{"exceeded", out.NewProviderError("gmail", out.ProviderErrQuotaExceeded, "quota", nil), QuotaExceeded},
		{"other", errors.New("network down"), QuotaError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newGmailService(t, &fakeProvider{profErr: tt.err}, nil)
			status, err := svc.CheckQuota(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestService_SearchProvider(t *testing.T) {
	provider := &fakeProvider{
		ids: []string{"m1"},
		messages: map[string]*out.ProviderMessage{
			"m1": providerMessage("m1", "ann@shop.io", "Refund", "Please refund.", out.LabelInbox),
		},
	}
	svc := newGmailService(t, provider, nil)

	emails, err := svc.SearchProvider(context.Background(), "refund")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "Refund", emails[0].Subject)

	// searches do not touch the store
	assert.Zero(t, svc.store.Len())
}
