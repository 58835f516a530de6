package parse

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"support_inbox/core/port/out"
	"support_inbox/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

// NoContent is returned when a message has no readable body.
const NoContent = "No content available"

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// ExtractContent returns the readable body of a message part tree.
// Plain text wins over HTML; HTML is only used, stripped of markup, when no
// text/plain part exists anywhere in the tree.
func ExtractContent(payload *out.ProviderPart) string {
	if payload == nil {
		return NoContent
	}

	if payload.Data != "" {
		body := DecodeBody(payload.Data)
		if strings.HasPrefix(payload.MimeType, mimeTextHTML) {
			body = StripHTML(body)
		}
		return orPlaceholder(body)
	}

	var plain strings.Builder
	var html string
	foundHTML := false
	walkParts(payload.Parts, func(p *out.ProviderPart) {
		switch {
		case strings.HasPrefix(p.MimeType, mimeTextPlain) && p.Data != "":
			plain.WriteString(DecodeBody(p.Data))
		case strings.HasPrefix(p.MimeType, mimeTextHTML) && p.Data != "" && !foundHTML:
			html = DecodeBody(p.Data)
			foundHTML = true
		}
	})

	if plain.Len() > 0 {
		return plain.String()
	}
	if foundHTML {
		return orPlaceholder(StripHTML(html))
	}
	return NoContent
}

// walkParts visits parts depth-first in document order.
func walkParts(parts []*out.ProviderPart, visit func(*out.ProviderPart)) {
	for _, p := range parts {
		if p == nil {
			continue
		}
		visit(p)
		walkParts(p.Parts, visit)
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoContent
	}
	return s
}

// DecodeBody decodes a URL-safe base64 fragment into UTF-8 text.
// Malformed input yields "" instead of an error.
func DecodeBody(data string) string {
	s := strings.NewReplacer("-", "+", "_", "/").Replace(data)
	s = strings.TrimRight(s, "=")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)

	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		logger.WithError(err).Debug("failed to decode body fragment (len=%d)", len(data))
		return ""
	}
	if !utf8.Valid(raw) {
		logger.Debug("body fragment is not valid UTF-8 (len=%d)", len(raw))
		return ""
	}
	return string(raw)
}

// StripHTML returns the text content of an HTML document.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.WithError(err).Debug("failed to parse html body")
		return ""
	}
	doc.Find("script, style, head").Remove()
	return strings.TrimSpace(doc.Text())
}
