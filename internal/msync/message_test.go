package msync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbridge/internal/graph"
)

func TestSanitizeSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{
			name:    "normal subject unchanged",
			subject: "Quarterly report",
			want:    "Quarterly report",
		},
		{
			name:    "empty subject gets default",
			subject: "",
			want:    "(No Subject)",
		},
		{
			name:    "whitespace-only subject gets default",
			subject: "   \t ",
			want:    "(No Subject)",
		},
		{
			name:    "surrounding whitespace trimmed",
			subject: "  hello  ",
			want:    "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSubject(tt.subject))
		})
	}
}

func TestSanitizeSubject_Truncation(t *testing.T) {
	long := strings.Repeat("a", 200)

	got := SanitizeSubject(long)

	assert.Len(t, got, 143)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("a", 140), strings.TrimSuffix(got, "..."))
}

func TestSanitizeSubject_ExactLimit(t *testing.T) {
	exact := strings.Repeat("b", 140)

	assert.Equal(t, exact, SanitizeSubject(exact))
}

func TestFormatBody_HTML(t *testing.T) {
	body := &graph.MessageBody{
		ContentType: "html",
		Content:     "<p>Hello <b>world</b></p>",
	}

	assert.Equal(t, "<p>Hello <b>world</b></p>", FormatBody(body))
}

func TestFormatBody_PlainText(t *testing.T) {
	body := &graph.MessageBody{
		ContentType: "text",
		Content:     "line one\nline two <tag>",
	}

	got := FormatBody(body)

	assert.True(t, strings.HasPrefix(got, "<pre>"))
	assert.True(t, strings.HasSuffix(got, "</pre>"))
	assert.Contains(t, got, "line one\nline two")
	// Angle brackets must be escaped, not interpreted
	assert.Contains(t, got, "&lt;tag&gt;")
	assert.NotContains(t, got, "<tag>")
}

func TestFormatBody_Nil(t *testing.T) {
	assert.Empty(t, FormatBody(nil))
}

func TestParseGraphTime(t *testing.T) {
	got, err := ParseGraphTime("2024-03-15T10:30:00Z")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), got)
}

func TestParseGraphTime_OffsetDiscarded(t *testing.T) {
	// The wall-clock reading is kept; the offset is dropped.
	got, err := ParseGraphTime("2024-03-15T10:30:00+05:30")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), got)
}

func TestParseGraphTime_Invalid(t *testing.T) {
	_, err := ParseGraphTime("not a time")

	assert.Error(t, err)
}

func TestShouldSync(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		received time.Time
		from     *time.Time
		want     bool
	}{
		{
			name:     "nil window admits everything",
			received: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			from:     nil,
			want:     true,
		},
		{
			name:     "after cutoff",
			received: cutoff.Add(time.Hour),
			from:     &cutoff,
			want:     true,
		},
		{
			name:     "exactly at cutoff",
			received: cutoff,
			from:     &cutoff,
			want:     true,
		},
		{
			name:     "before cutoff",
			received: cutoff.Add(-time.Hour),
			from:     &cutoff,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldSync(tt.received, tt.from))
		})
	}
}

func TestRecipientAddresses(t *testing.T) {
	recipients := []graph.Recipient{
		graph.NewRecipient("a@example.com"),
		graph.NewRecipient("b@example.com"),
		{}, // empty address dropped
	}

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, recipientAddresses(recipients))
	assert.Nil(t, recipientAddresses(nil))
}
