package email

import (
	"errors"
	"strings"
	"testing"
)

const sampleEmail = "From: spammer@mailinator.com\nSubject: WINNER WINNER\n\nClaim now for free money!!! Visit http://bit.ly/spammy\n"

const multipartEmail = `From: Alice <alice@example.com>
Subject: Quarterly report
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XX"

--XX
Content-Type: text/plain; charset=utf-8

plain text part
--XX
Content-Type: text/html; charset=utf-8

<p>html part</p>
--XX
Content-Type: application/octet-stream

AAAA
--XX--
`

func TestParseSinglePart(t *testing.T) {
	msg, err := NewParser().Parse(sampleEmail)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := msg.Header("From"); got != "spammer@mailinator.com" {
		t.Errorf("From = %q", got)
	}
	if got := msg.Header("subject"); got != "WINNER WINNER" {
		t.Errorf("Subject = %q", got)
	}
	if !strings.Contains(msg.PlainBody, "Claim now for free money!!!") {
		t.Errorf("PlainBody missing text: %q", msg.PlainBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("Expected empty HTMLBody, got %q", msg.HTMLBody)
	}
}

func TestParseMultipart(t *testing.T) {
	msg, err := NewParser().Parse(multipartEmail)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !strings.Contains(msg.PlainBody, "plain text part") {
		t.Errorf("PlainBody = %q", msg.PlainBody)
	}
	if strings.Contains(msg.PlainBody, "html part") || strings.Contains(msg.PlainBody, "AAAA") {
		t.Errorf("PlainBody contains other parts: %q", msg.PlainBody)
	}
	if !strings.Contains(msg.HTMLBody, "<p>html part</p>") {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
}

func TestParseJoinsRepeatedPartTypes(t *testing.T) {
	raw := `From: a@example.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="B"

--B
Content-Type: text/plain

first
--B
Content-Type: text/plain

second
--B--
`
	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	first := strings.Index(msg.PlainBody, "first")
	second := strings.Index(msg.PlainBody, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("Expected both parts in order, got %q", msg.PlainBody)
	}
	if !strings.Contains(msg.PlainBody[first:second], "\n") {
		t.Errorf("Parts should be newline-joined, got %q", msg.PlainBody)
	}
}

func TestParseHTMLOnly(t *testing.T) {
	raw := "From: a@example.com\nMIME-Version: 1.0\nContent-Type: text/html\n\n<div>hello</div>\n"
	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.PlainBody != "" {
		t.Errorf("HTML-only message should have empty PlainBody, got %q", msg.PlainBody)
	}
	if !strings.Contains(msg.HTMLBody, "<div>hello</div>") {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
}

func TestParseDecodesContent(t *testing.T) {
	raw := "From: a@example.com\n" +
		"Subject: =?UTF-8?B?V0lOTkVSIQ==?=\n" +
		"MIME-Version: 1.0\n" +
		"Content-Type: text/plain; charset=utf-8\n" +
		"Content-Transfer-Encoding: quoted-printable\n\n" +
		"free=20money today\n"

	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := msg.Header("Subject"); got != "WINNER!" {
		t.Errorf("Subject not decoded: %q", got)
	}
	if !strings.Contains(msg.PlainBody, "free money today") {
		t.Errorf("Body not decoded: %q", msg.PlainBody)
	}
}

func TestParseDuplicateHeadersLastWins(t *testing.T) {
	raw := "From: first@one.com\nFrom: second@two.com\nSubject: x\n\nbody\n"
	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := msg.Header("From"); got != "second@two.com" {
		t.Errorf("Expected last From header, got %q", got)
	}
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	raw := "From: a@example.com\nDKIM-Signature: v=1; d=example.com\n\nbody\n"
	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, name := range []string{"DKIM-Signature", "Dkim-Signature", "dkim-signature"} {
		if msg.Header(name) == "" {
			t.Errorf("Header(%q) should find the DKIM signature", name)
		}
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t  \n"},
		{"no headers", "No headers here"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := NewParser().Parse(tc.raw)
			if err == nil {
				t.Fatalf("Expected error, got message %+v", msg)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestValidateHeaderFormat(t *testing.T) {
	testCases := []struct {
		raw   string
		valid bool
	}{
		{"No headers here", false},
		{"just words\nand more words", false},
		{"From: a@b.com", true},
		{"garbage\nX-Custom-Header: 1", true},
		{"Received-SPF: pass", true},
	}

	for _, tc := range testCases {
		err := ValidateHeaderFormat(tc.raw)
		if (err == nil) != tc.valid {
			t.Errorf("ValidateHeaderFormat(%q) error = %v, expected valid=%v", tc.raw, err, tc.valid)
		}
	}
}

func TestParseWithoutHeaderBlock(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		from      string
		plainBody string
	}{
		{
			name:      "mbox envelope line",
			raw:       "From spammer@mailinator.com Mon Jan  1 00:00:00 2024\nFrom: spammer@mailinator.com\nSubject: hi\n\nlottery\n",
			from:      "spammer@mailinator.com",
			plainBody: "lottery",
		},
		{
			name:      "text before headers",
			raw:       "Hello there\nFrom: a@b.com\n\nbody\n",
			from:      "",
			plainBody: "Hello there\nFrom: a@b.com\n\nbody\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := NewParser().Parse(tc.raw)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := msg.Header("From"); got != tc.from {
				t.Errorf("From = %q, expected %q", got, tc.from)
			}
			if strings.TrimSpace(msg.PlainBody) != strings.TrimSpace(tc.plainBody) {
				t.Errorf("PlainBody = %q, expected %q", msg.PlainBody, tc.plainBody)
			}
		})
	}
}

func TestParseAttachedMessage(t *testing.T) {
	raw := `From: forwarder@example.com
Subject: Fwd: hello
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="OUTER"

--OUTER
Content-Type: text/plain

see attached
--OUTER
Content-Type: message/rfc822

From: original@example.net
Subject: inner
Content-Type: text/plain

lottery inner
--OUTER--
`
	msg, err := NewParser().Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	outer := strings.Index(msg.PlainBody, "see attached")
	inner := strings.Index(msg.PlainBody, "lottery inner")
	if outer < 0 || inner < 0 || outer > inner {
		t.Errorf("Expected outer then attached text, got %q", msg.PlainBody)
	}
	if got := msg.Header("Subject"); got != "Fwd: hello" {
		t.Errorf("Attached headers must not replace outer ones, Subject = %q", got)
	}
}
