// Package inbox owns the in-memory inbox: the email store, its filter engine
// and the controller that mutates it.
package inbox

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"support_inbox/core/domain"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrEmailNotFound    = errors.New("email not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

// recentHistory is how many emails a customer profile shows.
const recentHistory = 5

// Store holds the ordered email collection and the customers they belong to.
// Records are never deleted; status, tags, labels and thread mutate in place.
// Every method returns copies, so callers cannot bypass the lock.
type Store struct {
	mu        sync.RWMutex
	emails    []*domain.Email // display order, newest arrivals first
	byID      map[int64]*domain.Email
	customers map[int64]*domain.Customer
	nextID    int64

	// Provider message id -> local id. Survives Replace so a message keeps
	// its id across re-fetches.
	providerIDs map[string]int64
}

func NewStore() *Store {
	return &Store{
		byID:      make(map[int64]*domain.Email),
		customers:   make(map[int64]*domain.Customer),
		nextID:      1,
		providerIDs: make(map[string]int64),
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load replaces customers and emails with a fresh dataset. Emails without an
// id get the next free one.
func (s *Store) Load(customers []*domain.Customer, emails []*domain.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = make(map[int64]*domain.Customer, len(customers))
	for _, c := range customers {
		cp := c.Clone()
		cp.TotalEmails = 0
		cp.LastContact = nil
		s.customers[cp.ID] = cp
	}
	s.nextID = 1
	s.providerIDs = make(map[string]int64)
	s.replaceEmailsLocked(emails)
}

// Replace swaps the email set, keeping known customers. Used when the
// provider listing is re-fetched: a message seen before keeps its local id
// and its local reply state, new messages get fresh ids.
func (s *Store) Replace(emails []*domain.Email) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		c.TotalEmails = 0
		c.LastContact = nil
	}
	s.replaceEmailsLocked(emails)
}

func (s *Store) replaceEmailsLocked(emails []*domain.Email) {
	previous := s.byID
	s.emails = make([]*domain.Email, 0, len(emails))
	s.byID = make(map[int64]*domain.Email, len(emails))
	for _, e := range emails {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	for _, e := range emails {
		cp := e.Clone()
		if id, ok := s.providerIDs[cp.ProviderID]; ok && cp.ProviderID != "" {
			cp.ID = id
			if prev := previous[id]; prev != nil && prev.ProviderID == cp.ProviderID {
				carryLocalState(cp, prev)
			}
		}
		if cp.ID == 0 || s.byID[cp.ID] != nil {
			cp.ID = s.nextID
			s.nextID++
		}
		if cp.ProviderID != "" {
			s.providerIDs[cp.ProviderID] = cp.ID
		}
		s.emails = append(s.emails, cp)
		s.byID[cp.ID] = cp
		s.attributeLocked(cp)
	}
}

// carryLocalState keeps transitions made here that the provider listing does
// not reflect. Status only moves forward: unread -> read -> ai-replied.
func carryLocalState(next, prev *domain.Email) {
	if prev.Status == domain.StatusAIReplied || (next.Status == domain.StatusUnread && prev.Status != domain.StatusUnread) {
		next.Status = prev.Status
	}
	if prev.HasTag(domain.TagAIReplied) {
		next.RemoveTag(domain.TagPending)
		next.AddTag(domain.TagAIReplied)
	}
	if len(next.Thread) < len(prev.Thread) {
		next.Thread = prev.Clone().Thread
	}
}

// Add inserts a new email at the front of the inbox and returns its copy
// with the assigned id.
func (s *Store) Add(email *domain.Email) *domain.Email {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := email.Clone()
	cp.ID = s.nextID
	s.nextID++
	if cp.ProviderID != "" {
		s.providerIDs[cp.ProviderID] = cp.ID
	}
	s.emails = append([]*domain.Email{cp}, s.emails...)
	s.byID[cp.ID] = cp
	s.attributeLocked(cp)
	return cp.Clone()
}

// attributeLocked counts the email against its customer, creating the
// customer on first sight.
func (s *Store) attributeLocked(e *domain.Email) {
	c, ok := s.customers[e.CustomerID]
	if !ok {
		c = newCustomerFor(e)
		s.customers[c.ID] = c
	}
	c.TotalEmails++
	if c.LastContact == nil || e.ReceivedAt.After(*c.LastContact) {
		t := e.ReceivedAt
		c.LastContact = &t
	}
}

func newCustomerFor(e *domain.Email) *domain.Customer {
	c := &domain.Customer{
		ID:       e.CustomerID,
		Name:     fmt.Sprintf("Customer #%d", e.CustomerID),
		Tier:     domain.TierStandard,
		Tags:     domain.TierTags(domain.TierStandard),
		JoinDate: e.ReceivedAt,
	}
	if e.Sender != nil {
		c.Name = e.Sender.Name
		c.Email = e.Sender.Email
		if at := strings.Index(c.Email, "@"); at >= 0 {
			c.Company = c.Email[at+1:]
		}
	}
	return c
}

// =============================================================================
// Queries
// =============================================================================

// List returns the emails matching q in the requested order.
func (s *Store) List(q domain.ListQuery) []*domain.Email {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))

	result := make([]*domain.Email, 0, len(s.emails))
	for _, e := range s.emails {
		if !q.Filter.Matches(e) {
			continue
		}
		if q.Category != nil && e.Category != *q.Category {
			continue
		}
		if search != "" && !strings.Contains(s.searchTextLocked(e), search) {
			continue
		}
		result = append(result, e.Clone())
	}

	s.sortLocked(result, q.Sort)
	return result
}

func (s *Store) searchTextLocked(e *domain.Email) string {
	var name, email string
	if c := s.customers[e.CustomerID]; c != nil {
		name, email = c.Name, c.Email
	}
	return strings.ToLower(e.Subject + " " + e.Body + " " + name + " " + email)
}

func (s *Store) sortLocked(emails []*domain.Email, order domain.SortOrder) {
	switch order {
	case domain.SortOldest:
		sort.SliceStable(emails, func(i, j int) bool {
			return emails[i].ReceivedAt.Before(emails[j].ReceivedAt)
		})
	case domain.SortPriority:
		sort.SliceStable(emails, func(i, j int) bool {
			return emails[i].Priority.Rank() > emails[j].Priority.Rank()
		})
	case domain.SortSender:
		// Collator keeps internal buffers; one per call.
		col := collate.New(language.English, collate.IgnoreCase)
		names := make(map[int64]string, len(emails))
		for _, e := range emails {
			if c := s.customers[e.CustomerID]; c != nil {
				names[e.ID] = c.Name
			}
		}
		sort.SliceStable(emails, func(i, j int) bool {
			return col.CompareString(names[emails[i].ID], names[emails[j].ID]) < 0
		})
	default:
		sort.SliceStable(emails, func(i, j int) bool {
			return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
		})
	}
}

// Get returns an email and its customer without changing anything.
func (s *Store) Get(id int64) (*domain.Email, *domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, nil, ErrEmailNotFound
	}
	var customer *domain.Customer
	if c := s.customers[e.CustomerID]; c != nil {
		customer = c.Clone()
	}
	return e.Clone(), customer, nil
}

// Customer returns a customer by id.
func (s *Store) Customer(id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return c.Clone(), nil
}

// CustomerIDs returns the known customer ids in ascending order.
func (s *Store) CustomerIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CustomerProfile returns a customer with their most recent emails.
func (s *Store) CustomerProfile(id int64) (*domain.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}

	var history []*domain.Email
	for _, e := range s.emails {
		if e.CustomerID == id {
			history = append(history, e)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].ReceivedAt.After(history[j].ReceivedAt)
	})

	profile := &domain.CustomerProfile{
		Customer: c.Clone(),
		Initials: c.Initials(),
		Recent:   []*domain.EmailListItem{},
		Total:    len(history),
	}
	for i, e := range history {
		if i == recentHistory {
			break
		}
		profile.Recent = append(profile.Recent, e.ToListItem(c))
	}
	return profile, nil
}

// ListItems converts emails to list DTOs with their customers resolved.
func (s *Store) ListItems(emails []*domain.Email) []*domain.EmailListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*domain.EmailListItem, len(emails))
	for i, e := range emails {
		items[i] = e.ToListItem(s.customers[e.CustomerID])
	}
	return items
}

// Counts returns the sidebar filter counters.
func (s *Store) Counts() domain.FilterCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

func (s *Store) countsLocked() domain.FilterCounts {
	counts := domain.FilterCounts{All: len(s.emails)}
	for _, e := range s.emails {
		if domain.FilterUnread.Matches(e) {
			counts.Unread++
		}
		if domain.FilterAIReplied.Matches(e) {
			counts.AIReplied++
		}
		if domain.FilterUrgent.Matches(e) {
			counts.Urgent++
		}
		if domain.FilterResolved.Matches(e) {
			counts.Resolved++
		}
	}
	return counts
}

// Stats returns dashboard statistics.
func (s *Store) Stats() domain.InboxStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.countsLocked()
	stats := domain.InboxStats{
		Counts:      counts,
		ByCategory:  make(map[domain.Category]int, len(domain.Categories)),
		TotalEmails: counts.All,
		AIReplies:   counts.AIReplied,
	}
	for _, c := range domain.Categories {
		stats.ByCategory[c] = 0
	}
	for _, e := range s.emails {
		stats.ByCategory[e.Category]++
	}
	return stats
}

// =============================================================================
// Mutations
// =============================================================================

// Select marks an unread email read and returns it. Selecting an email that
// is not unread changes nothing. The bool reports whether a transition
// happened.
func (s *Store) Select(id int64) (*domain.Email, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false, ErrEmailNotFound
	}
	changed := false
	if e.Status == domain.StatusUnread {
		e.Status = domain.StatusRead
		changed = true
	}
	return e.Clone(), changed, nil
}

// AppendAIReply records an accepted reply: the entry is appended, the status
// becomes ai-replied and the pending tag is swapped for ai-replied.
func (s *Store) AppendAIReply(id int64, entry domain.ThreadEntry) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEmailNotFound
	}
	entry.Kind = domain.ThreadAIReply
	e.Thread = append(e.Thread, entry)
	e.Status = domain.StatusAIReplied
	e.RemoveTag(domain.TagPending)
	e.AddTag(domain.TagAIReplied)
	return e.Clone(), nil
}

// UpdateLabels adds and removes provider labels on an email.
func (s *Store) UpdateLabels(id int64, add, remove []string) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEmailNotFound
	}
	drop := make(map[string]bool, len(remove))
	for _, l := range remove {
		drop[l] = true
	}
	labels := make([]string, 0, len(e.Labels)+len(add))
	seen := make(map[string]bool)
	for _, l := range append(append([]string(nil), e.Labels...), add...) {
		if drop[l] || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	e.Labels = labels
	return e.Clone(), nil
}

// ShiftTimestamps moves each email's received time forward by the duration
// shift returns for it. Returns how many emails moved.
func (s *Store) ShiftTimestamps(shift func(e *domain.Email) time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for _, e := range s.emails {
		if d := shift(e); d > 0 {
			e.ReceivedAt = e.ReceivedAt.Add(d)
			moved++
		}
	}
	return moved
}

// Len returns the number of emails.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}
