// Package delivery drains the outbound mail queue and sends each message
// through Microsoft Graph with per-recipient status tracking.
package delivery

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// parsedMail is the subject and body lifted out of a raw MIME payload.
type parsedMail struct {
	Subject string
	// Body is HTML when the payload carried an HTML part, otherwise the
	// plain-text part as-is.
	Body   string
	IsHTML bool
}

// parseMIME extracts the subject and the preferred body part from a raw MIME
// message. HTML wins over plain text when both are present.
func parseMIME(raw string) (*parsedMail, error) {
	entity, err := message.Read(strings.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse mime payload: %w", err)
	}

	parsed := &parsedMail{
		Subject: entity.Header.Get("Subject"),
	}

	var plain, html string
	collectParts(entity, &plain, &html)

	if html != "" {
		parsed.Body = html
		parsed.IsHTML = true
	} else {
		parsed.Body = plain
	}
	return parsed, nil
}

// collectParts walks the MIME tree recording the first plain and HTML parts.
func collectParts(entity *message.Entity, plain, html *string) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil {
				return
			}
			collectParts(part, plain, html)
		}
	}

	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		mediaType = "text/plain"
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}

	switch mediaType {
	case "text/html":
		if *html == "" {
			*html = string(body)
		}
	case "text/plain":
		if *plain == "" {
			*plain = string(body)
		}
	}
}
