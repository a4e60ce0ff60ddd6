package delivery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// Placeholder tokens embedded in queued message bodies by the host
// application. Each is resolved per recipient at send time.
const (
	unsubscribePlaceholder = "<!--unsubscribe_url-->"
	openCheckPlaceholder   = "<!--email_open_check-->"
	ccMessagePlaceholder   = "<!--cc_message-->"
	recipientPlaceholder   = "<!--recipient-->"
)

// payloadBuilder turns a parsed queue entry into the final per-recipient
// HTML body. BaseURL anchors unsubscribe links and the open-tracking pixel.
type payloadBuilder struct {
	BaseURL    string
	TrackOpens bool
}

// Build resolves all placeholders for one recipient and appends the sending
// identity's footer. The footer is appended after substitution so its own
// content is never rewritten.
func (b *payloadBuilder) Build(msg *domain.QueuedMessage, body, recipient string, identity domain.SendingIdentity) string {
	body = b.substituteUnsubscribe(msg, body, recipient)
	body = b.substituteOpenCheck(msg, body, recipient)
	body = substituteCCMessage(msg, body, recipient)

	// In header disclosure mode the raw recipient token is left to the
	// provider's own headers rather than expanded into the body.
	if msg.DisclosureMode != domain.DiscloseHeader {
		body = strings.ReplaceAll(body, recipientPlaceholder, recipient)
	} else {
		body = strings.ReplaceAll(body, recipientPlaceholder, "")
	}

	if footer := identity.Footer(); footer != "" {
		body += footer
	}
	return body
}

func (b *payloadBuilder) substituteUnsubscribe(msg *domain.QueuedMessage, body, recipient string) string {
	if !strings.Contains(body, unsubscribePlaceholder) {
		return body
	}
	if !msg.AddUnsubscribeLink || msg.ReferenceType == "" || msg.ReferenceName == "" {
		return strings.ReplaceAll(body, unsubscribePlaceholder, "")
	}

	link := fmt.Sprintf("%s/api/method/unsubscribe?doctype=%s&name=%s&email=%s",
		strings.TrimRight(b.BaseURL, "/"),
		url.QueryEscape(msg.ReferenceType),
		url.QueryEscape(msg.ReferenceName),
		url.QueryEscape(recipient))
	return strings.ReplaceAll(body, unsubscribePlaceholder, link)
}

// substituteOpenCheck injects the open-tracking pixel. The pixel reports back
// onto the linked conversation record, so a message without one gets the
// placeholder stripped; TrackOpens is an additional operator kill-switch.
func (b *payloadBuilder) substituteOpenCheck(msg *domain.QueuedMessage, body, recipient string) string {
	if !strings.Contains(body, openCheckPlaceholder) {
		return body
	}
	if !b.TrackOpens || msg.ConversationID == "" {
		return strings.ReplaceAll(body, openCheckPlaceholder, "")
	}

	pixel := fmt.Sprintf(`<img src="%s/api/method/mark_email_as_seen?name=%s&recipient=%s"/>`,
		strings.TrimRight(b.BaseURL, "/"),
		url.QueryEscape(msg.ConversationID),
		url.QueryEscape(recipient))
	return strings.ReplaceAll(body, openCheckPlaceholder, pixel)
}

// substituteCCMessage expands the disclosure line in footer mode, naming the
// direct recipient and the carbon-copy list.
func substituteCCMessage(msg *domain.QueuedMessage, body, recipient string) string {
	if !strings.Contains(body, ccMessagePlaceholder) {
		return body
	}
	if msg.DisclosureMode != domain.DiscloseFooter {
		return strings.ReplaceAll(body, ccMessagePlaceholder, "")
	}

	line := "This email was sent to " + recipient
	if cc := strings.TrimSpace(msg.ShowAsCC); cc != "" {
		line += " and copied to " + cc
	}
	return strings.ReplaceAll(body, ccMessagePlaceholder, line)
}
