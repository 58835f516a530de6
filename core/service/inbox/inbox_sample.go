package inbox

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"support_inbox/core/domain"

	"gopkg.in/yaml.v3"
)

//go:embed data/inbox_sample.yaml
var embeddedSample []byte

// SampleData is a demo inbox ready to load into a Store.
type SampleData struct {
	Customers       []*domain.Customer
	Emails          []*domain.Email
	ArrivalSubjects []string
}

type sampleFile struct {
	Customers       []sampleCustomer `yaml:"customers"`
	Emails          []sampleEmail    `yaml:"emails"`
	ArrivalSubjects []string         `yaml:"arrival_subjects"`
}

type sampleCustomer struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Company  string `yaml:"company"`
	JoinDate string `yaml:"join_date"`
	Tier     string `yaml:"tier"`
}

type sampleEmail struct {
	CustomerID int64         `yaml:"customer_id"`
	Subject    string        `yaml:"subject"`
	Body       string        `yaml:"body"`
	Category   string        `yaml:"category"`
	Priority   string        `yaml:"priority"`
	Status     string        `yaml:"status"`
	Tags       []string      `yaml:"tags"`
	Age        time.Duration `yaml:"age"`
	Thread     []sampleEntry `yaml:"thread"`
}

type sampleEntry struct {
	Type       string        `yaml:"type"`
	Author     string        `yaml:"author"`
	Content    string        `yaml:"content"`
	Age        time.Duration `yaml:"age"`
	Confidence *int          `yaml:"confidence"`
}

// LoadSample reads the dataset at path, or the embedded one when path is
// empty. Ages in the file are resolved against now.
func LoadSample(path string, now time.Time) (*SampleData, error) {
	raw := embeddedSample
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sample data: %w", err)
		}
		raw = b
	}
	return ParseSample(raw, now)
}

// ParseSample decodes and validates a YAML dataset.
func ParseSample(raw []byte, now time.Time) (*SampleData, error) {
	var file sampleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sample data: %w", err)
	}
	if len(file.Emails) == 0 {
		return nil, fmt.Errorf("sample data has no emails")
	}

	data := &SampleData{ArrivalSubjects: file.ArrivalSubjects}

	known := make(map[int64]bool, len(file.Customers))
	for _, sc := range file.Customers {
		c, err := sc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("customer %d: %w", sc.ID, err)
		}
		known[c.ID] = true
		data.Customers = append(data.Customers, c)
	}

	for i, se := range file.Emails {
		if !known[se.CustomerID] {
			return nil, fmt.Errorf("email %d: unknown customer %d", i+1, se.CustomerID)
		}
		e, err := se.toDomain(int64(i+1), now)
		if err != nil {
			return nil, fmt.Errorf("email %d: %w", i+1, err)
		}
		data.Emails = append(data.Emails, e)
	}
	return data, nil
}

func (sc sampleCustomer) toDomain() (*domain.Customer, error) {
	join, err := time.Parse("2006-01-02", sc.JoinDate)
	if err != nil {
		return nil, fmt.Errorf("join_date: %w", err)
	}
	tier := domain.CustomerTier(sc.Tier)
	return &domain.Customer{
		ID:       sc.ID,
		Name:     sc.Name,
		Email:    sc.Email,
		Company:  sc.Company,
		Tier:     tier,
		Tags:     domain.TierTags(tier),
		JoinDate: join,
	}, nil
}

func (se sampleEmail) toDomain(id int64, now time.Time) (*domain.Email, error) {
	category, err := domain.ParseCategory(se.Category)
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(se.Priority)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseEmailStatus(se.Status)
	if err != nil {
		return nil, err
	}

	e := &domain.Email{
		ID:         id,
		CustomerID: se.CustomerID,
		Subject:    se.Subject,
		Body:       se.Body,
		Status:     status,
		Category:   category,
		Priority:   priority,
		Tags:       append([]string{}, se.Tags...),
		Thread:     []domain.ThreadEntry{},
		ReceivedAt: now.Add(-se.Age),
	}
	for _, entry := range se.Thread {
		kind, err := domain.ParseThreadKind(entry.Type)
		if err != nil {
			return nil, err
		}
		e.Thread = append(e.Thread, domain.ThreadEntry{
			Kind:       kind,
			Author:     entry.Author,
			Content:    entry.Content,
			Timestamp:  now.Add(-entry.Age),
			Confidence: entry.Confidence,
		})
	}
	return e, nil
}

// FallbackSample is the minimal dataset used when the configured one cannot
// be loaded.
func FallbackSample(now time.Time) *SampleData {
	customer := &domain.Customer{
		ID:       1,
		Name:     "Demo Customer",
		Email:    "demo@example.com",
		Company:  "Example Inc",
		Tier:     domain.TierStandard,
		Tags:     domain.TierTags(domain.TierStandard),
		JoinDate: now.AddDate(-1, 0, 0),
	}
	email := &domain.Email{
		ID:         1,
		CustomerID: customer.ID,
		Subject:    "Welcome to the support inbox",
		Body:       "This is a sample email. Sample data could not be loaded, so a minimal inbox is shown.",
		Status:     domain.StatusUnread,
		Category:   domain.CategoryGeneral,
		Priority:   domain.PriorityLow,
		Tags:       []string{domain.TagPending},
		Thread:     []domain.ThreadEntry{},
		ReceivedAt: now,
	}
	return &SampleData{
		Customers:       []*domain.Customer{customer},
		Emails:          []*domain.Email{email},
		ArrivalSubjects: []string{"New Support Request"},
	}
}
