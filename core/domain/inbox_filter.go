package domain

import "fmt"

// Filter selects a subset of the inbox by status-like predicates.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterUnread    Filter = "unread"
	FilterAIReplied Filter = "ai-replied"
	FilterUrgent    Filter = "urgent"
	FilterResolved  Filter = "resolved"
)

// Filters lists every filter, in sidebar order.
var Filters = []Filter{FilterAll, FilterUnread, FilterAIReplied, FilterUrgent, FilterResolved}

// ParseFilter converts a string to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Matches reports whether the email passes the filter.
func (f Filter) Matches(e *Email) bool {
	switch f {
	case FilterUnread:
		return e.Status == StatusUnread
	case FilterAIReplied:
		return e.Status == StatusAIReplied
	case FilterUrgent:
		return e.IsUrgent()
	case FilterResolved:
		return e.Status == StatusResolved
	default:
		return true
	}
}

// SortOrder orders list results.
type SortOrder string

const (
	SortNewest   SortOrder = "newest"
	SortOldest   SortOrder = "oldest"
	SortPriority SortOrder = "priority"
	SortSender   SortOrder = "sender"
)

// ParseSortOrder converts a string to a SortOrder. Empty means newest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortPriority, SortSender:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// ListQuery is the input of a store listing.
type ListQuery struct {
	Filter   Filter
	Category *Category
	Search   string
	Sort     SortOrder
}

// FilterCounts holds the sidebar counters.
type FilterCounts struct {
	All       int `json:"all"`
	Unread    int `json:"unread"`
	AIReplied int `json:"ai_replied"`
	Urgent    int `json:"urgent"`
	Resolved  int `json:"resolved"`
}

// InboxStats holds dashboard statistics.
type InboxStats struct {
	Counts      FilterCounts     `json:"counts"`
	ByCategory  map[Category]int `json:"by_category"`
	TotalEmails int              `json:"total_emails"`
	AIReplies   int              `json:"ai_replies"`
}
