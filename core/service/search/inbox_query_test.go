package search

import (
	"testing"

	"support_inbox/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestCategoryQuery(t *testing.T) {
	tests := []struct {
		category domain.Category
		want     string
	}{
		{domain.CategoryBilling, "in:inbox (billing OR payment OR invoice OR charge OR refund)"},
		{domain.CategoryShipping, "in:inbox (shipping OR delivery OR tracking OR order)"},
		{domain.CategoryTechnical, "in:inbox (technical OR support OR login OR password OR bug)"},
		{domain.CategoryReturns, "in:inbox (return OR exchange OR defective OR broken)"},
		{domain.CategoryGeneral, "in:inbox -(billing OR payment OR shipping OR delivery OR return OR technical OR support)"},
		{domain.CategorySales, "in:inbox"},
		{domain.CategorySupport, "in:inbox"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryQuery(tt.category))
		})
	}
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name string
		q    string
		want string
	}{
		{"address", "sarah@example.com", "from:sarah@example.com"},
		{"single word", "refund", "subject:refund OR refund"},
		{"phrase", "late order", "subject:late order OR late order"},
		{"trimmed", "  refund ", "subject:refund OR refund"},
		{"empty", "", "in:inbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchQuery(tt.q))
		})
	}
}
