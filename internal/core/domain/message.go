package domain

import "time"

// MessageRecord is the local copy of a synced mailbox message. ProviderID is
// the Graph message id and is globally unique; the store enforces uniqueness
// so two sync runs can never record the same message twice.
type MessageRecord struct {
	ID         string
	ProviderID string
	AccountID  string
	FolderName string

	Subject    string
	Sender     string
	SenderName string
	To         []string
	CC         []string
	BCC        []string

	// Content is HTML, either verbatim from the provider or plain text
	// wrapped to preserve whitespace. TextPreview is a plain-text rendering
	// for list views and search.
	Content     string
	TextPreview string

	// Timestamp is the provider time with its offset applied and then
	// discarded (a naive UTC wall-clock value).
	Timestamp time.Time

	HasAttachments bool
	ConversationID string
	ContactID      string

	CreatedAt time.Time
}

// Contact is auto-created from a message sender when the account opts in.
type Contact struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// StoredFile is binary content held by the document store, attached either to
// a synced message or referenced by an outbound attachment descriptor.
type StoredFile struct {
	ID        string
	Name      string
	URL       string
	Content   []byte
	Private   bool
	RecordID  string
	CreatedAt time.Time
}
