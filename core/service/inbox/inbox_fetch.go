package inbox

import (
	"context"
	"fmt"
	"sync"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"
	"support_inbox/core/service/parse"
	"support_inbox/pkg/logger"

	"github.com/go-pkgz/pool"
	"golang.org/x/oauth2"
)

const defaultFetchWorkers = 4

// messageFetcher loads and normalizes provider messages with a small worker
// group. A message that fails to load is skipped, not fatal.
type messageFetcher struct {
	provider out.MailProvider
	token    *oauth2.Token

	mu      sync.Mutex
	results map[string]*domain.Email
	failed  int
}

// Do implements pool.Worker.
func (f *messageFetcher) Do(ctx context.Context, id string) error {
	msg, err := f.provider.GetMessage(ctx, f.token, id)
	if err != nil {
		logger.WithError(err).WithField("message_id", id).Warn("failed to fetch message")
		f.mu.Lock()
		f.failed++
		f.mu.Unlock()
		return nil
	}

	email := parse.NormalizeMessage(msg)

	f.mu.Lock()
	f.results[id] = email
	f.mu.Unlock()
	return nil
}

// fetchMessages lists messages for query and returns them normalized, in
// listing order.
func fetchMessages(ctx context.Context, provider out.MailProvider, token *oauth2.Token, query string, maxResults, workers int) ([]*domain.Email, error) {
	ids, err := provider.ListMessages(ctx, token, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Email{}, nil
	}
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	fetcher := &messageFetcher{
		provider: provider,
		token:    token,
		results:  make(map[string]*domain.Email, len(ids)),
	}

	group := pool.New[string](workers, fetcher).WithContinueOnError()
	if err := group.Go(ctx); err != nil {
		return nil, fmt.Errorf("failed to start fetch workers: %w", err)
	}
	for _, id := range ids {
		group.Submit(id)
	}
	if err := group.Close(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	emails := make([]*domain.Email, 0, len(ids))
	for _, id := range ids {
		if e, ok := fetcher.results[id]; ok {
			emails = append(emails, e)
		}
	}
	if fetcher.failed > 0 {
		logger.WithField("query", query).Warn("skipped %d of %d messages", fetcher.failed, len(ids))
	}
	return emails, nil
}
