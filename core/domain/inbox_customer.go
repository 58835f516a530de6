package domain

import "time"

// CustomerTier drives the support tags a customer gets.
type CustomerTier string

const (
	TierStandard   CustomerTier = "standard"
	TierBusiness   CustomerTier = "business"
	TierPremium    CustomerTier = "premium"
	TierEnterprise CustomerTier = "enterprise"
)

// TierTags returns the tags attached to every customer of a tier.
func TierTags(tier CustomerTier) []string {
	tags := []string{"active"}
	switch tier {
	case TierStandard:
		tags = append(tags, "basic-support")
	case TierBusiness:
		tags = append(tags, "priority-support", "phone-support")
	case TierPremium:
		tags = append(tags, "premium-support", "dedicated-rep", "priority-queue")
	case TierEnterprise:
		tags = append(tags, "enterprise", "dedicated-rep", "sla-guaranteed", "phone-support")
	}
	return tags
}

type Customer struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Company  string       `json:"company,omitempty"`
	Tier     CustomerTier `json:"tier,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	JoinDate time.Time    `json:"join_date"`

	// Derived, recomputed on attribution.
	TotalEmails int        `json:"total_emails"`
	LastContact *time.Time `json:"last_contact,omitempty"`
}

// Initials returns up to two initials for avatars.
func (c *Customer) Initials() string {
	var out []rune
	start := true
	for _, r := range c.Name {
		if r == ' ' || r == '.' || r == '-' || r == '_' {
			start = true
			continue
		}
		if start {
			out = append(out, r)
			start = false
			if len(out) == 2 {
				break
			}
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// Clone returns a copy safe to hand out of the store.
func (c *Customer) Clone() *Customer {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	if c.LastContact != nil {
		t := *c.LastContact
		cp.LastContact = &t
	}
	return &cp
}

// CustomerProfile is a customer with the emails attributed to them.
type CustomerProfile struct {
	Customer *Customer        `json:"customer"`
	Initials string           `json:"initials"`
	Recent   []*EmailListItem `json:"recent_emails"`
	Total    int              `json:"total_emails"`
}
