package parse

import (
	"hash/fnv"
	"strings"
	"time"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"
	"support_inbox/core/service/classification"
)

const (
	noSubject      = "No Subject"
	unknownAddress = "Unknown"
)

// NormalizeMessage converts a provider message into an inbox record. The
// record gets no store id; the store assigns one.
func NormalizeMessage(msg *out.ProviderMessage) *domain.Email {
	subject := msg.Header("Subject")
	if subject == "" {
		subject = noSubject
	}
	from := msg.Header("From")
	if from == "" {
		from = unknownAddress
	}
	sender := ParseSender(from)
	body := ExtractContent(msg.Payload)

	received := msg.InternalDate
	if received.IsZero() {
		if d, err := time.Parse(time.RFC1123Z, msg.Header("Date")); err == nil {
			received = d
		} else {
			received = time.Now()
		}
	}

	result := classification.Classify(subject, body)

	email := &domain.Email{
		CustomerID:     CustomerIDFor(sender.Email),
		ProviderID:     msg.ID,
		ThreadID:       msg.ThreadID,
		Subject:        subject,
		Body:           body,
		Sender:         &sender,
		Category:       result.Category,
		Priority:       result.Priority,
		Tags:           []string{},
		Labels:         append([]string(nil), msg.LabelIDs...),
		Thread:         []domain.ThreadEntry{},
		HasAttachments: hasAttachment(msg.Payload),
		ReceivedAt:     received,
	}

	if msg.HasLabel(out.LabelUnread) {
		email.Status = domain.StatusUnread
		email.AddTag(domain.TagPending)
	} else {
		email.Status = domain.StatusRead
	}
	return email
}

// CustomerIDFor derives a stable customer id from an address so repeat
// senders map to the same customer across reloads.
func CustomerIDFor(address string) int64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(address))))
	return int64(h.Sum32())
}

func hasAttachment(p *out.ProviderPart) bool {
	if p == nil {
		return false
	}
	if p.Filename != "" {
		return true
	}
	for _, child := range p.Parts {
		if hasAttachment(child) {
			return true
		}
	}
	return false
}
