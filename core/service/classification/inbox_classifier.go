// Package classification assigns category and priority to inbox emails
// using keyword containment.
package classification

import (
	"strings"

	"support_inbox/core/domain"
)

// =============================================================================
// Keyword Rules
// =============================================================================

type categoryRule struct {
	category domain.Category
	keywords []string
}

type priorityRule struct {
	priority domain.Priority
	keywords []string
}

// Evaluated in order; the first rule with a hit wins.
var categoryRules = []categoryRule{
	{domain.CategoryBilling, []string{"bill", "payment", "charge", "refund", "invoice"}},
	{domain.CategoryShipping, []string{"ship", "delivery", "track", "address", "order"}},
	{domain.CategoryReturns, []string{"return", "refund", "exchange", "defective", "broken"}},
	{domain.CategoryTechnical, []string{"login", "password", "account", "technical", "bug", "error", "app", "website"}},
}

var priorityRules = []priorityRule{
	{domain.PriorityHigh, []string{"urgent", "asap", "emergency", "immediately", "broken", "not working"}},
	{domain.PriorityMedium, []string{"question", "help", "issue", "problem"}},
}

// =============================================================================
// Classifier
// =============================================================================

// Result is the outcome of classifying one email.
type Result struct {
	Category domain.Category
	Priority domain.Priority
}

// Classify runs both axes over the same text. They are independent: a billing
// email can be high priority.
func Classify(subject, body string) Result {
	text := normalize(subject, body)
	return Result{
		Category: categoryOf(text),
		Priority: priorityOf(text),
	}
}

// ClassifyCategory returns the category for subject and body.
func ClassifyCategory(subject, body string) domain.Category {
	return categoryOf(normalize(subject, body))
}

// ClassifyPriority returns the priority for subject and body.
func ClassifyPriority(subject, body string) domain.Priority {
	return priorityOf(normalize(subject, body))
}

func normalize(subject, body string) string {
	return strings.ToLower(subject + " " + body)
}

func categoryOf(text string) domain.Category {
	for _, rule := range categoryRules {
		if containsAny(text, rule.keywords) {
			return rule.category
		}
	}
	return domain.CategoryGeneral
}

func priorityOf(text string) domain.Priority {
	for _, rule := range priorityRules {
		if containsAny(text, rule.keywords) {
			return rule.priority
		}
	}
	return domain.PriorityLow
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// MatchedKeywords lists the category keywords found in the text, for
// explaining a classification to the UI.
func MatchedKeywords(subject, body string) []string {
	text := normalize(subject, body)
	seen := make(map[string]bool)
	var out []string
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if !seen[kw] && strings.Contains(text, kw) {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}
