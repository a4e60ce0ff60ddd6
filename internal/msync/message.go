package msync

import (
	"html"
	"strings"
	"time"

	"github.com/k3a/html2text"

	"github.com/custodia-labs/mailbridge/internal/graph"
)

// maxSubjectLen is the longest subject stored verbatim; longer subjects are
// truncated with an ellipsis.
const maxSubjectLen = 140

// defaultSubject replaces an empty or whitespace-only subject.
const defaultSubject = "(No Subject)"

// SanitizeSubject trims, defaults and truncates a message subject.
func SanitizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return defaultSubject
	}
	runes := []rune(subject)
	if len(runes) > maxSubjectLen {
		return string(runes[:maxSubjectLen]) + "..."
	}
	return subject
}

// FormatBody normalises a message body to HTML. HTML bodies pass through
// verbatim; plain text is escaped and wrapped in <pre> to preserve
// whitespace.
func FormatBody(body *graph.MessageBody) string {
	if body == nil {
		return ""
	}
	if strings.EqualFold(body.ContentType, "html") {
		return body.Content
	}
	return "<pre>" + html.EscapeString(body.Content) + "</pre>"
}

// TextPreview renders a plain-text preview of an HTML body for list views.
func TextPreview(content string) string {
	text := strings.TrimSpace(html2text.HTML2Text(content))
	runes := []rune(text)
	if len(runes) > 500 {
		return string(runes[:500])
	}
	return text
}

// ParseGraphTime parses a Graph timestamp into a naive wall-clock value: the
// local reading of the instant with its offset discarded, re-tagged as UTC so
// it compares consistently everywhere.
func ParseGraphTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
}

// recipientAddresses flattens Graph recipients into bare addresses.
func recipientAddresses(recipients []graph.Recipient) []string {
	if len(recipients) == 0 {
		return nil
	}
	addrs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if addr := r.EmailAddress.Address; addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// ShouldSync reports whether a message received at the given time falls
// inside the account's sync window. A nil window admits everything.
func ShouldSync(received time.Time, from *time.Time) bool {
	if from == nil {
		return true
	}
	return !received.Before(*from)
}
