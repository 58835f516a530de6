package reply

import (
	"context"
	"strings"
	"sync"
	"time"

	"support_inbox/core/domain"
)

// Confidence jitter applied by Regenerate, in percentage points either way.
const regenerateJitter = 5

const fallbackName = "there"

// Random is the subset of *rand.Rand the selector draws from.
type Random interface {
	Intn(n int) int
}

// Selector picks and renders canned replies. It is safe for concurrent use.
type Selector struct {
	mu    sync.Mutex // guards rng; *rand.Rand is not goroutine safe
	rng   Random
	delay time.Duration
}

// NewSelector creates a selector. delay simulates generation latency and may
// be zero.
func NewSelector(rng Random, delay time.Duration) *Selector {
	return &Selector{rng: rng, delay: delay}
}

// Lookup returns the template for an email without rendering it.
func Lookup(email *domain.Email) Template {
	entry, ok := templates[email.Category]
	if !ok {
		return GenericTemplate
	}

	if entry.ByPriority != nil {
		if tmpl, ok := entry.ByPriority[email.Priority]; ok {
			return tmpl
		}
		return GenericTemplate
	}

	body := strings.ToLower(email.Body)
	for _, tmpl := range entry.Variants {
		if len(tmpl.Keywords) == 0 || containsAny(body, tmpl.Keywords) {
			return tmpl
		}
	}
	return GenericTemplate
}

// Select renders the reply for an email at its nominal confidence.
func (s *Selector) Select(email *domain.Email, customer *domain.Customer) *domain.ReplyDraft {
	tmpl := Lookup(email)
	return newDraft(email, tmpl, customer, tmpl.Confidence)
}

// Regenerate renders the same reply with its confidence moved up to five
// points from the nominal value. Repeated calls never drift further.
func (s *Selector) Regenerate(email *domain.Email, customer *domain.Customer) *domain.ReplyDraft {
	tmpl := Lookup(email)

	s.mu.Lock()
	delta := s.rng.Intn(2*regenerateJitter+1) - regenerateJitter
	s.mu.Unlock()

	return newDraft(email, tmpl, customer, tmpl.Confidence+delta)
}

// Generate is Select (or Regenerate) behind the simulated latency. It
// returns ctx.Err() if the context ends first.
func (s *Selector) Generate(ctx context.Context, email *domain.Email, customer *domain.Customer, regenerate bool) (*domain.ReplyDraft, error) {
	start := time.Now()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var draft *domain.ReplyDraft
	if regenerate {
		draft = s.Regenerate(email, customer)
	} else {
		draft = s.Select(email, customer)
	}
	draft.DurationMS = time.Since(start).Milliseconds()
	return draft, nil
}

func newDraft(email *domain.Email, tmpl Template, customer *domain.Customer, confidence int) *domain.ReplyDraft {
	name := fallbackName
	if customer != nil && customer.Name != "" {
		name = customer.Name
	}
	return &domain.ReplyDraft{
		EmailID:     email.ID,
		TemplateKey: tmpl.Key,
		Author:      tmpl.Author,
		Content:     renderText(tmpl.Content, map[string]string{customerNameVar: name}),
		Confidence:  domain.ClampConfidence(confidence),
		Nominal:     tmpl.Confidence,
	}
}

// renderText replaces ${name} placeholders in text
func renderText(text string, variables map[string]string) string {
	if text == "" || len(variables) == 0 {
		return text
	}
	result := text
	for name, value := range variables {
		result = strings.ReplaceAll(result, "${"+name+"}", value)
	}
	return result
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
