package inbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"support_inbox/core/domain"

	"github.com/emersion/go-message/mail"
)

const replyPrefix = "Re: "

// replySubject prefixes subject with "Re: " unless it already has it.
func replySubject(subject string) string {
	if strings.HasPrefix(subject, replyPrefix) {
		return subject
	}
	return replyPrefix + subject
}

// buildReplyMIME renders a plain-text reply to original as an RFC 5322
// message threaded onto the original by In-Reply-To and References.
func buildReplyMIME(from string, original *domain.Email, body string, at time.Time) ([]byte, error) {
	if original.Sender == nil || original.Sender.Email == "" {
		return nil, fmt.Errorf("email %d has no sender address", original.ID)
	}

	var h mail.Header
	h.SetDate(at)
	h.SetSubject(replySubject(original.Subject))
	h.SetAddressList("To", []*mail.Address{{Name: original.Sender.Name, Address: original.Sender.Email}})
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}
	if original.ProviderID != "" {
		ref := "<" + original.ProviderID + ">"
		h.Set("In-Reply-To", ref)
		h.Set("References", ref)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}
