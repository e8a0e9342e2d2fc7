package email

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	msg, err := NewParser().Parse(sampleEmail)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	features := Extract(msg)

	if features.Subject != "WINNER WINNER" {
		t.Errorf("Subject = %q", features.Subject)
	}
	if !strings.HasPrefix(features.ScanText, "WINNER WINNER\n") {
		t.Errorf("ScanText should start with the subject line, got %q", features.ScanText)
	}
	if !strings.Contains(features.ScanText, "free money") {
		t.Errorf("ScanText should contain the body, got %q", features.ScanText)
	}
	if len(features.URLs) != 1 || features.URLs[0] != "http://bit.ly/spammy" {
		t.Errorf("URLs = %v", features.URLs)
	}
	if features.SenderDomain != "mailinator.com" {
		t.Errorf("SenderDomain = %q", features.SenderDomain)
	}
}

func TestExtractScanTextLayout(t *testing.T) {
	msg := &Message{
		Headers:   map[string]string{},
		PlainBody: "plain",
		HTMLBody:  "<b>html</b>",
	}

	features := Extract(msg)
	if features.ScanText != "\nplain\n<b>html</b>" {
		t.Errorf("ScanText = %q", features.ScanText)
	}
	if features.SenderDomain != "" {
		t.Errorf("Missing From should give empty domain, got %q", features.SenderDomain)
	}
}

func TestExtractURLs(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []string
	}{
		{"none", "no links here", []string{}},
		{"stops at whitespace", "go to https://example.com/a now", []string{"https://example.com/a"}},
		{"stops at angle bracket", "<a href=x>http://example.com/b</a>", []string{"http://example.com/b"}},
		{"case insensitive scheme", "HTTP://Example.com/C", []string{"HTTP://Example.com/C"}},
		{"keeps duplicates in order", "http://a.io http://b.io http://a.io", []string{"http://a.io", "http://b.io", "http://a.io"}},
		{"ignores other schemes", "ftp://files.example.com mailto:x@y.z", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractURLs(tc.text)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("ExtractURLs(%q) = %v, expected %v", tc.text, got, tc.expected)
			}
		})
	}
}

func TestDomainFromAddress(t *testing.T) {
	testCases := []struct {
		address  string
		expected string
	}{
		{"spammer@mailinator.com", "mailinator.com"},
		{"user@DOMAIN.COM", "domain.com"},
		{"Name <user@example.org>", "example.org>"},
		{"Name <user@Example.org> ", "example.org>"},
		{"odd@name@last.net ", "last.net"},
		{"invalid-email", ""},
		{"", ""},
		{"test@", ""},
	}

	for _, tc := range testCases {
		if got := DomainFromAddress(tc.address); got != tc.expected {
			t.Errorf("DomainFromAddress(%q) = %q, expected %q", tc.address, got, tc.expected)
		}
	}
}
