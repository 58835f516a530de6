package bootstrap

import (
	"io"

	"support_inbox/config"
	"support_inbox/core/domain"
	"support_inbox/core/service/classification"
	"support_inbox/core/service/inbox"
	"support_inbox/core/service/reply"

	"github.com/goccy/go-json"
)

// SampleReport summarizes a dataset the way the inbox would present it.
type SampleReport struct {
	Stats  domain.InboxStats `json:"stats"`
	Emails []sampleLine      `json:"emails"`
}

type sampleLine struct {
	ID         int64           `json:"id"`
	Subject    string          `json:"subject"`
	Category   domain.Category `json:"category"`
	Priority   domain.Priority `json:"priority"`
	Classified domain.Category `json:"classified_category"`
	Template   string          `json:"template"`
}

// BuildSampleReport loads the configured dataset into a scratch store.
// Classified differs from Category when the dataset overrides the rules.
func BuildSampleReport(cfg *config.Config) *SampleReport {
	data := loadSample(cfg)

	store := inbox.NewStore()
	store.Load(data.Customers, data.Emails)

	report := &SampleReport{Stats: store.Stats(), Emails: make([]sampleLine, 0, len(data.Emails))}
	for _, e := range data.Emails {
		report.Emails = append(report.Emails, sampleLine{
			ID:         e.ID,
			Subject:    e.Subject,
			Category:   e.Category,
			Priority:   e.Priority,
			Classified: classification.ClassifyCategory(e.Subject, e.Body),
			Template:   reply.Lookup(e).Key,
		})
	}
	return report
}

// WriteSampleReport prints the report as indented JSON.
func WriteSampleReport(w io.Writer, cfg *config.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildSampleReport(cfg))
}
