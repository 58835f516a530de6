// Package search translates inbox filters into provider search syntax.
package search

import (
	"fmt"
	"strings"

	"support_inbox/core/domain"
)

const inboxScope = "in:inbox"

// Gmail search groups for each category. Categories without a group search
// the whole inbox.
var categoryGroups = map[domain.Category][]string{
	domain.CategoryBilling:   {"billing", "payment", "invoice", "charge", "refund"},
	domain.CategoryShipping:  {"shipping", "delivery", "tracking", "order"},
	domain.CategoryTechnical: {"technical", "support", "login", "password", "bug"},
	domain.CategoryReturns:   {"return", "exchange", "defective", "broken"},
}

// general is everything that none of the topical groups claim.
var generalExclusions = []string{"billing", "payment", "shipping", "delivery", "return", "technical", "support"}

// CategoryQuery builds the provider query listing an inbox category.
func CategoryQuery(category domain.Category) string {
	if category == domain.CategoryGeneral {
		return inboxScope + " -" + orGroup(generalExclusions)
	}
	if terms, ok := categoryGroups[category]; ok {
		return inboxScope + " " + orGroup(terms)
	}
	return inboxScope
}

// SearchQuery builds a free-text provider query. Address-like input searches
// by sender.
func SearchQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return inboxScope
	}
	if strings.Contains(q, "@") {
		return fmt.Sprintf("from:%s", q)
	}
	return fmt.Sprintf("subject:%s OR %s", q, q)
}

func orGroup(terms []string) string {
	return "(" + strings.Join(terms, " OR ") + ")"
}
