package inbox

import (
	"testing"
	"time"

	"support_inbox/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	data, err := LoadSample("", baseTime)
	require.NoError(t, err)
	s := NewStore()
	s.Load(data.Customers, data.Emails)
	return s
}

func ids(emails []*domain.Email) []int64 {
	out := make([]int64, len(emails))
	for i, e := range emails {
		out[i] = e.ID
	}
	return out
}

func categoryPtr(c domain.Category) *domain.Category { return &c }

func TestStore_ListFilters(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name   string
		filter domain.Filter
		want   []int64
	}{
		{"all", domain.FilterAll, []int64{1, 2, 3, 4, 5, 6, 7, 8}},
		{"unread", domain.FilterUnread, []int64{1, 4}},
		{"ai-replied", domain.FilterAIReplied, []int64{2, 3, 7}},
		{"urgent", domain.FilterUrgent, []int64{1, 6, 8}},
		{"resolved", domain.FilterResolved, []int64{5, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.List(domain.ListQuery{Filter: tt.filter, Sort: domain.SortNewest})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStore_UnreadIndependentOfOtherFilters(t *testing.T) {
	s := newTestStore(t)

	queries := []domain.ListQuery{
		{Category: categoryPtr(domain.CategorySupport)},
		{Search: "password"},
		{Search: "api"},
		{Category: categoryPtr(domain.CategoryBilling), Search: "charge"},
	}

	for _, q := range queries {
		// unread narrows the result set and nothing else
		base := s.List(q)
		var want []int64
		for _, e := range base {
			if e.Status == domain.StatusUnread {
				want = append(want, e.ID)
			}
		}

		q.Filter = domain.FilterUnread
		got := ids(s.List(q))
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got)
	}

	assert.Equal(t, []int64{1, 4}, ids(s.List(domain.ListQuery{Filter: domain.FilterUnread, Category: categoryPtr(domain.CategorySupport)})))
	assert.Equal(t, []int64{4}, ids(s.List(domain.ListQuery{Filter: domain.FilterUnread, Search: "password"})))
	assert.Empty(t, s.List(domain.ListQuery{Filter: domain.FilterUnread, Category: categoryPtr(domain.CategoryBilling)}))
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)

	t.Run("empty search equals no search", func(t *testing.T) {
		assert.Equal(t, ids(s.List(domain.ListQuery{})), ids(s.List(domain.ListQuery{Search: ""})))
		assert.Equal(t, ids(s.List(domain.ListQuery{})), ids(s.List(domain.ListQuery{Search: "   "})))
	})

	t.Run("case insensitive subject", func(t *testing.T) {
		assert.Equal(t, []int64{2}, ids(s.List(domain.ListQuery{Search: "DOUBLE CHARGE"})))
	})

	t.Run("customer name", func(t *testing.T) {
		assert.Equal(t, []int64{7}, ids(s.List(domain.ListQuery{Search: "jessica wu"})))
	})

	t.Run("customer email", func(t *testing.T) {
		assert.Equal(t, []int64{8}, ids(s.List(domain.ListQuery{Search: "financialservices.com"})))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, s.List(domain.ListQuery{Search: "zzz-nothing"}))
	})
}

func TestStore_Sort(t *testing.T) {
	s := newTestStore(t)

	t.Run("newest", func(t *testing.T) {
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, ids(s.List(domain.ListQuery{Sort: domain.SortNewest})))
	})

	t.Run("oldest", func(t *testing.T) {
		assert.Equal(t, []int64{8, 7, 6, 5, 4, 3, 2, 1}, ids(s.List(domain.ListQuery{Sort: domain.SortOldest})))
	})

	t.Run("priority", func(t *testing.T) {
		got := s.List(domain.ListQuery{Sort: domain.SortPriority})
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Priority.Rank(), got[i].Priority.Rank())
		}
		assert.Equal(t, []int64{1, 6, 8, 2, 4, 5, 7, 3}, ids(got))
	})

	t.Run("sender", func(t *testing.T) {
		// Alex, David, Emily, Jessica, Lisa, Mike, Robert, Sarah
		assert.Equal(t, []int64{6, 4, 3, 7, 5, 2, 8, 1}, ids(s.List(domain.ListQuery{Sort: domain.SortSender})))
	})
}

func TestStore_SelectTransitions(t *testing.T) {
	s := newTestStore(t)
	before := s.Counts().Unread

	email, changed, err := s.Select(1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusRead, email.Status)
	assert.Equal(t, before-1, s.Counts().Unread)

	email, changed, err = s.Select(1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusRead, email.Status)
	assert.Equal(t, before-1, s.Counts().Unread)

	// selecting a non-unread email leaves its status alone
	email, changed, err = s.Select(5)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusResolved, email.Status)

	_, _, err = s.Select(999)
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestStore_AppendAIReply(t *testing.T) {
	s := NewStore()
	s.Load(nil, []*domain.Email{{
		ID:         1,
		CustomerID: 1,
		Subject:    "Order",
		Status:     domain.StatusUnread,
		Tags:       []string{domain.TagPending, "vip"},
		ReceivedAt: baseTime,
	}})

	entry := domain.NewAIReplyEntry("AI Assistant", "Hello", 91, baseTime.Add(time.Minute))
	email, err := s.AppendAIReply(1, entry)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAIReplied, email.Status)
	assert.NotContains(t, email.Tags, domain.TagPending)
	assert.Contains(t, email.Tags, domain.TagAIReplied)
	assert.Contains(t, email.Tags, "vip")
	require.Len(t, email.Thread, 1)
	assert.Equal(t, domain.ThreadAIReply, email.Thread[0].Kind)
	assert.Equal(t, 91, *email.Thread[0].Confidence)

	// a second reply appends and does not duplicate the tag
	email, err = s.AppendAIReply(1, domain.NewAIReplyEntry("AI Assistant", "Again", 80, baseTime.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Len(t, email.Thread, 2)
	assert.Equal(t, "Again", email.Thread[1].Content)
	count := 0
	for _, tag := range email.Tags {
		if tag == domain.TagAIReplied {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := newTestStore(t)

	email, _, err := s.Get(1)
	require.NoError(t, err)
	email.Status = domain.StatusResolved
	email.Tags = append(email.Tags, "mutated")

	again, _, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnread, again.Status)
	assert.NotContains(t, again.Tags, "mutated")
}

func TestStore_CustomerAttribution(t *testing.T) {
	s := newTestStore(t)

	c, err := s.Customer(1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalEmails)
	require.NotNil(t, c.LastContact)
	assert.Equal(t, baseTime.Add(-45*time.Minute), *c.LastContact)

	added := s.Add(&domain.Email{
		CustomerID: 4242,
		Sender:     &domain.Sender{Name: "New Person", Email: "new@acme.io"},
		Subject:    "Hi",
		Status:     domain.StatusUnread,
		ReceivedAt: baseTime,
	})
	assert.Equal(t, int64(9), added.ID)
	assert.Equal(t, int64(9), s.List(domain.ListQuery{Sort: ""})[0].ID)

	created, err := s.Customer(4242)
	require.NoError(t, err)
	assert.Equal(t, "New Person", created.Name)
	assert.Equal(t, "new@acme.io", created.Email)
	assert.Equal(t, "acme.io", created.Company)
	assert.Equal(t, 1, created.TotalEmails)

	_, err = s.Customer(777)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestStore_Replace(t *testing.T) {
	s := newTestStore(t)

	s.Replace([]*domain.Email{
		{CustomerID: 1, Subject: "one", ReceivedAt: baseTime},
		{CustomerID: 1, Subject: "two", ReceivedAt: baseTime.Add(time.Hour)},
	})

	assert.Equal(t, 2, s.Len())
	c, err := s.Customer(1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalEmails)
	assert.Equal(t, baseTime.Add(time.Hour), *c.LastContact)

	other, err := s.Customer(2)
	require.NoError(t, err)
	assert.Zero(t, other.TotalEmails)
	assert.Nil(t, other.LastContact)
}

func providerEmail(providerID string, customerID int64) *domain.Email {
	return &domain.Email{
		ProviderID: providerID,
		CustomerID: customerID,
		Subject:    "subject " + providerID,
		Status:     domain.StatusUnread,
		Tags:       []string{domain.TagPending},
		ReceivedAt: baseTime,
	}
}

func TestStore_ReplaceKeepsProviderIdentity(t *testing.T) {
	s := NewStore()
	s.Replace([]*domain.Email{providerEmail("m1", 10), providerEmail("m2", 20)})
	require.Equal(t, []int64{1, 2}, ids(s.List(domain.ListQuery{})))

	_, _, err := s.Select(2)
	require.NoError(t, err)
	_, err = s.AppendAIReply(1, domain.NewAIReplyEntry("AI Assistant", "On it.", 90, baseTime))
	require.NoError(t, err)

	// m3 arrives first in the listing; m2 dropped out and came back.
	s.Replace([]*domain.Email{providerEmail("m3", 30), providerEmail("m1", 10), providerEmail("m2", 20)})

	byProvider := make(map[string]*domain.Email)
	for _, e := range s.List(domain.ListQuery{}) {
		byProvider[e.ProviderID] = e
	}
	require.Len(t, byProvider, 3)
	assert.Equal(t, int64(1), byProvider["m1"].ID)
	assert.Equal(t, int64(2), byProvider["m2"].ID)
	assert.Equal(t, int64(3), byProvider["m3"].ID)

	replied := byProvider["m1"]
	assert.Equal(t, domain.StatusAIReplied, replied.Status)
	assert.True(t, replied.HasTag(domain.TagAIReplied))
	assert.False(t, replied.HasTag(domain.TagPending))
	require.Len(t, replied.Thread, 1)
	assert.Equal(t, "On it.", replied.Thread[0].Content)

	assert.Equal(t, domain.StatusRead, byProvider["m2"].Status)
	assert.Equal(t, domain.StatusUnread, byProvider["m3"].Status)

	counts := s.Counts()
	assert.Equal(t, 3, counts.All)
	assert.Equal(t, 1, counts.Unread)
	assert.Equal(t, 1, counts.AIReplied)

	got, _, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ProviderID)
}

func TestStore_LoadResetsProviderIdentity(t *testing.T) {
	s := NewStore()
	s.Replace([]*domain.Email{providerEmail("m1", 10)})
	s.Load(nil, []*domain.Email{{ID: 1, CustomerID: 1, ReceivedAt: baseTime}})

	s.Replace([]*domain.Email{providerEmail("m1", 10)})
	emails := s.List(domain.ListQuery{})
	require.Len(t, emails, 1)
	assert.Equal(t, int64(2), emails[0].ID)
	assert.Equal(t, domain.StatusUnread, emails[0].Status)
}

func TestStore_CountsAndStats(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, domain.FilterCounts{All: 8, Unread: 2, AIReplied: 3, Urgent: 3, Resolved: 2}, s.Counts())

	stats := s.Stats()
	assert.Equal(t, 8, stats.TotalEmails)
	assert.Equal(t, 3, stats.AIReplies)
	assert.Equal(t, 5, stats.ByCategory[domain.CategorySupport])
	assert.Equal(t, 2, stats.ByCategory[domain.CategorySales])
	assert.Equal(t, 0, stats.ByCategory[domain.CategoryShipping])
}

func TestStore_UpdateLabels(t *testing.T) {
	s := NewStore()
	s.Load(nil, []*domain.Email{{ID: 1, CustomerID: 1, Labels: []string{"INBOX", "UNREAD"}, ReceivedAt: baseTime}})

	email, err := s.UpdateLabels(1, []string{"STARRED", "INBOX"}, []string{"UNREAD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "STARRED"}, email.Labels)

	_, err = s.UpdateLabels(2, nil, nil)
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestStore_CustomerProfile(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 6; i++ {
		s.Add(&domain.Email{CustomerID: 2, Subject: "follow-up", ReceivedAt: baseTime.Add(time.Duration(i) * time.Minute)})
	}

	profile, err := s.CustomerProfile(2)
	require.NoError(t, err)

	assert.Equal(t, "MC", profile.Initials)
	assert.Equal(t, 7, profile.Total)
	assert.Len(t, profile.Recent, recentHistory)
	assert.Equal(t, baseTime.Add(5*time.Minute), profile.Recent[0].ReceivedAt)
}
