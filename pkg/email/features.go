package email

import (
	"regexp"
	"strings"
)

// urlPattern matches http(s) links up to the next whitespace or angle bracket
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>]+`)

// Features are the values derived from a Message that rules evaluate
type Features struct {
	Subject string

	// Subject, plain body and HTML body joined by newlines
	ScanText string

	// Links in ScanText in order of appearance, duplicates kept
	URLs []string

	// Lowercased domain of the From address, empty when there is none
	SenderDomain string
}

// Extract derives scoring features from a parsed message
func Extract(msg *Message) *Features {
	subject := msg.Header("Subject")
	scanText := strings.Join([]string{subject, msg.PlainBody, msg.HTMLBody}, "\n")

	return &Features{
		Subject:      subject,
		ScanText:     scanText,
		URLs:         ExtractURLs(scanText),
		SenderDomain: DomainFromAddress(msg.Header("From")),
	}
}

// ExtractURLs returns every http(s) link in text
func ExtractURLs(text string) []string {
	urls := urlPattern.FindAllString(text, -1)
	if urls == nil {
		return []string{}
	}
	return urls
}

// DomainFromAddress returns the lowercased, trimmed text after the last "@"
// in address. Nothing else is stripped, so "Name <user@host>" yields "host>".
func DomainFromAddress(address string) string {
	idx := strings.LastIndex(address, "@")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[idx+1:]))
}
