// Package parse turns raw provider messages into inbox records.
package parse

import (
	"strings"

	"support_inbox/core/domain"
)

// ParseSender splits a "From" header into display name and address.
//
//	"Jane Doe" <jane@example.com>  -> {Jane Doe, jane@example.com}
//	jane@example.com              -> {jane, jane@example.com}
//
// It never fails; malformed input comes back as both name and address.
func ParseSender(header string) domain.Sender {
	open := strings.Index(header, "<")
	if open >= 0 {
		if end := strings.LastIndex(header, ">"); end > open+1 {
			email := header[open+1 : end]
			name := strings.Trim(header[:open], "\" \t")
			if name == "" {
				name = localPart(email)
			}
			return domain.Sender{Name: name, Email: email}
		}
	}
	return domain.Sender{Name: localPart(header), Email: header}
}

func localPart(address string) string {
	if at := strings.Index(address, "@"); at >= 0 {
		return address[:at]
	}
	return address
}
