package domain

import (
	"fmt"
	"time"
)

// EmailStatus is the workflow state of an email in the inbox.
type EmailStatus string

const (
	StatusUnread    EmailStatus = "unread"
	StatusRead      EmailStatus = "read"
	StatusAIReplied EmailStatus = "ai-replied"
	StatusResolved  EmailStatus = "resolved"
	StatusUrgent    EmailStatus = "urgent"
)

// ParseEmailStatus converts a string to an EmailStatus.
func ParseEmailStatus(s string) (EmailStatus, error) {
	switch st := EmailStatus(s); st {
	case StatusUnread, StatusRead, StatusAIReplied, StatusResolved, StatusUrgent:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Category is the coarse subject-matter classification of an email.
type Category string

const (
	CategoryBilling   Category = "billing"
	CategoryShipping  Category = "shipping"
	CategoryReturns   Category = "returns"
	CategoryTechnical Category = "technical"
	CategoryGeneral   Category = "general"
	CategorySupport   Category = "support"
	CategorySales     Category = "sales"
)

// Categories lists every category in table order.
var Categories = []Category{
	CategoryBilling,
	CategoryShipping,
	CategoryReturns,
	CategoryTechnical,
	CategoryGeneral,
	CategorySupport,
	CategorySales,
}

// Index returns the position of the category in Categories, or -1.
func (c Category) Index() int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return -1
}

// ParseCategory converts a string to a Category. Unknown values are an error.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if c.Index() < 0 {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Priority is the urgency level of an email.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities: high > medium > low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority converts a string to a Priority. Unknown values are an error.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if p.Rank() == 0 {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Well-known tags.
const (
	TagPending   = "pending"
	TagAIReplied = "ai-replied"
	TagUrgent    = "urgent"
	TagNew       = "new"
)

// Sender is the parsed "From" header of a message.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Email struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	ProviderID string `json:"provider_id,omitempty"` // Gmail message id
	ThreadID   string `json:"thread_id,omitempty"`

	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Sender  *Sender `json:"sender,omitempty"`

	Status   EmailStatus `json:"status"`
	Category Category    `json:"category"`
	Priority Priority    `json:"priority"`
	Tags     []string    `json:"tags"`
	Labels   []string    `json:"labels,omitempty"`

	Thread []ThreadEntry `json:"thread"`

	HasAttachments bool      `json:"has_attachments"`
	ReceivedAt     time.Time `json:"received_at"`
}

// HasTag reports whether the email carries the tag.
func (e *Email) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag adds a tag if absent.
func (e *Email) AddTag(tag string) {
	if !e.HasTag(tag) {
		e.Tags = append(e.Tags, tag)
	}
}

// RemoveTag removes every occurrence of tag.
func (e *Email) RemoveTag(tag string) {
	kept := e.Tags[:0]
	for _, t := range e.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	e.Tags = kept
}

// IsUrgent is the "urgent" filter predicate.
func (e *Email) IsUrgent() bool {
	return e.Priority == PriorityHigh || e.HasTag(TagUrgent)
}

// Clone returns a deep copy so callers outside the store cannot mutate it.
func (e *Email) Clone() *Email {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	c.Labels = append([]string(nil), e.Labels...)
	c.Thread = make([]ThreadEntry, len(e.Thread))
	for i, entry := range e.Thread {
		c.Thread[i] = entry
		if entry.Confidence != nil {
			v := *entry.Confidence
			c.Thread[i].Confidence = &v
		}
	}
	if e.Sender != nil {
		s := *e.Sender
		c.Sender = &s
	}
	return &c
}

// EmailListItem is the lightweight list-view DTO.
type EmailListItem struct {
	ID            int64       `json:"id"`
	CustomerID    int64       `json:"customer_id"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Subject       string      `json:"subject"`
	Preview       string      `json:"preview"`
	Status        EmailStatus `json:"status"`
	Category      Category    `json:"category"`
	Priority      Priority    `json:"priority"`
	Tags          []string    `json:"tags"`
	ThreadLength  int         `json:"thread_length"`
	ReceivedAt    time.Time   `json:"received_at"`
}

const previewLength = 120

// ToListItem converts Email to EmailListItem.
func (e *Email) ToListItem(customer *Customer) *EmailListItem {
	item := &EmailListItem{
		ID:           e.ID,
		CustomerID:   e.CustomerID,
		Subject:      e.Subject,
		Preview:      truncate(e.Body, previewLength),
		Status:       e.Status,
		Category:     e.Category,
		Priority:     e.Priority,
		Tags:         append([]string(nil), e.Tags...),
		ThreadLength: len(e.Thread),
		ReceivedAt:   e.ReceivedAt,
	}
	if customer != nil {
		item.CustomerName = customer.Name
		item.CustomerEmail = customer.Email
	}
	return item
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
