package domain

import "time"

// QueueStatus is the overall state of a queued outbound message.
type QueueStatus string

const (
	// QueueNotSent means the message has not been attempted yet.
	QueueNotSent QueueStatus = "not_sent"
	// QueueSending means a delivery pass has picked the message up. Sending
	// is not an exclusion filter for the next pass: a crash mid-send leaves
	// the message re-eligible, giving at-least-once delivery.
	QueueSending QueueStatus = "sending"
	// QueueSent means at least one recipient received the message.
	QueueSent QueueStatus = "sent"
	// QueueError means no recipient could be delivered to.
	QueueError QueueStatus = "error"
)

// DeliveryStatus is the per-recipient outcome.
type DeliveryStatus string

const (
	// DeliveryPending means the recipient has not been attempted.
	DeliveryPending DeliveryStatus = "pending"
	// DeliverySent means the provider accepted the send for this recipient.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed means payload construction or the send call failed.
	DeliveryFailed DeliveryStatus = "failed"
)

// DisclosureMode controls whether the recipient and CC lists are revealed in
// the message footer or left to the headers.
type DisclosureMode string

const (
	// DiscloseHeader reveals recipients through normal headers only.
	DiscloseHeader DisclosureMode = "header"
	// DiscloseFooter injects a "sent to X, copied to Y" line in the footer.
	DiscloseFooter DisclosureMode = "footer"
)

// Recipient is one destination of a queued message with its own delivery
// state, written back immediately after each attempt.
type Recipient struct {
	Address string         `json:"address"`
	Status  DeliveryStatus `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// AttachmentRef describes one attachment of a queued message. Either FileID
// or FileURL locates a stored file; PrintFormat requests on-demand document
// rendering instead.
type AttachmentRef struct {
	FileID      string `json:"fid,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	PrintFormat string `json:"print_format,omitempty"`
	RefType     string `json:"ref_type,omitempty"`
	RefName     string `json:"ref_name,omitempty"`
}

// QueuedMessage is one outbound unit produced by the host application's mail
// queue. The raw payload is MIME; recipients carry independent status.
//
// The host queue does not retain bcc recipients past enqueue, so provider
// delivery can never populate bcc. The delivery engine logs a warning when it
// detects the gap instead of silently dropping it.
type QueuedMessage struct {
	ID      string
	Message string // raw MIME payload
	Sender  string

	Recipients []Recipient
	ShowAsCC   string // comma-separated CC list carried on every send

	Status QueueStatus
	Error  string

	// Routing flags set at enqueue time.
	SendViaGraph bool
	AccountID    string

	Attachments    []AttachmentRef
	DisclosureMode DisclosureMode

	// Unsubscribe link is injected only when requested and a reference
	// target exists to point it at.
	AddUnsubscribeLink bool
	ReferenceType      string
	ReferenceName      string

	// ConversationID links to a host conversation record whose status is
	// mirrored on successful delivery.
	ConversationID string

	CreatedAt time.Time
}

// PendingRecipients returns the recipients not yet marked sent.
func (m *QueuedMessage) PendingRecipients() []int {
	var idx []int
	for i, r := range m.Recipients {
		if r.Status != DeliverySent {
			idx = append(idx, i)
		}
	}
	return idx
}
