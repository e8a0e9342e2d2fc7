package email

import (
	"bytes"
	"fmt"
	"mime"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/jhillyerd/enmime"
)

// headerLine matches a "Name:" header at the start of any line
var headerLine = regexp.MustCompile(`(?m)^[\w-]+:`)

// headerStart matches a message whose first line is a header field
var headerStart = regexp.MustCompile(`^[\x21-\x39\x3b-\x7e]+:`)

// Message is the structure of a raw email needed for scoring
type Message struct {
	// Decoded header values keyed by canonical name; the last occurrence wins
	Headers map[string]string

	// Text of every text/plain part, joined by newline in traversal order
	PlainBody string

	// Text of every text/html part, joined by newline in traversal order
	HTMLBody string
}

// Header returns the value of the named header, matching the name case-insensitively
func (m *Message) Header(name string) string {
	return m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// ValidationError reports input that cannot be analyzed
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Parser turns raw message text into a Message
type Parser struct {
	decoder *mime.WordDecoder
}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{
		decoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
}

// ValidateHeaderFormat fails unless raw contains at least one header-shaped line
func ValidateHeaderFormat(raw string) error {
	if !headerLine.MatchString(raw) {
		return &ValidationError{Reason: "input does not look like valid email headers"}
	}
	return nil
}

// Parse parses a raw email message
func (p *Parser) Parse(raw string) (*Message, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ValidationError{Reason: "email content is required"}
	}
	if err := ValidateHeaderFormat(raw); err != nil {
		return nil, err
	}

	raw = stripEnvelopeLine(raw)

	env, err := enmime.ReadEnvelope(strings.NewReader(raw))
	if err != nil {
		// no header block at all: the whole input is a plain text body
		if !headerStart.MatchString(raw) {
			return &Message{Headers: map[string]string{}, PlainBody: raw}, nil
		}
		return nil, &ValidationError{Reason: "failed to parse email", Err: err}
	}
	if env.Root == nil {
		return nil, &ValidationError{Reason: "failed to parse email: no message root"}
	}

	msg := &Message{Headers: p.flattenHeaders(env.Root.Header)}

	var plain, html []string
	walkParts(env.Root, func(part *enmime.Part) {
		switch contentType(part) {
		case "text/plain":
			plain = append(plain, string(part.Content))
		case "text/html":
			html = append(html, string(part.Content))
		}
	})
	msg.PlainBody = strings.Join(plain, "\n")
	msg.HTMLBody = strings.Join(html, "\n")

	return msg, nil
}

// flattenHeaders keeps the last value of each header, decoding encoded words
func (p *Parser) flattenHeaders(header textproto.MIMEHeader) map[string]string {
	headers := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		value := values[len(values)-1]
		if decoded, err := p.decoder.DecodeHeader(value); err == nil {
			value = decoded
		}
		headers[textproto.CanonicalMIMEHeaderKey(key)] = value
	}
	return headers
}

// stripEnvelopeLine drops a leading mbox "From " line
func stripEnvelopeLine(raw string) string {
	if !strings.HasPrefix(raw, "From ") {
		return raw
	}
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		return raw[idx+1:]
	}
	return ""
}

// walkParts visits part and all of its descendants depth-first, parents
// before children. Attached messages are parsed and walked in place.
func walkParts(part *enmime.Part, visit func(*enmime.Part)) {
	for ; part != nil; part = part.NextSibling {
		visit(part)
		if contentType(part) == "message/rfc822" && part.FirstChild == nil {
			inner, err := enmime.ReadEnvelope(bytes.NewReader(part.Content))
			if err == nil && inner.Root != nil {
				walkParts(inner.Root, visit)
			}
		}
		walkParts(part.FirstChild, visit)
	}
}

// contentType returns the lowercased media type; parts without one are plain text
func contentType(part *enmime.Part) string {
	if part.ContentType == "" {
		return "text/plain"
	}
	return strings.ToLower(part.ContentType)
}
