package graph

import "encoding/json"

// fileAttachmentType is the OData type of a plain file attachment. Item and
// reference attachments are skipped during sync.
const fileAttachmentType = "#microsoft.graph.fileAttachment"

// Message is an Outlook message as returned by the Graph API.
type Message struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	BodyPreview      string       `json:"bodyPreview"`
	Body             *MessageBody `json:"body"`
	From             *Recipient   `json:"from"`
	ToRecipients     []Recipient  `json:"toRecipients"`
	CcRecipients     []Recipient  `json:"ccRecipients"`
	BccRecipients    []Recipient  `json:"bccRecipients"`
	ReceivedDateTime string       `json:"receivedDateTime"`
	SentDateTime     string       `json:"sentDateTime"`
	IsRead           bool         `json:"isRead"`
	ConversationID   string       `json:"conversationId"`
	ParentFolderID   string       `json:"parentFolderId"`
	HasAttachments   bool         `json:"hasAttachments"`

	// Removed is set on delta responses for deleted items.
	Removed *Removed `json:"@removed,omitempty"`
}

// MessageBody is the body of a message.
type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Recipient is a sender or recipient address with optional display name.
type Recipient struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// NewRecipient builds a Recipient for an outbound payload.
func NewRecipient(address string) Recipient {
	var r Recipient
	r.EmailAddress.Address = address
	return r
}

// Removed marks a deleted item in a delta response.
type Removed struct {
	Reason string `json:"reason"`
}

// DeltaResponse is one page of a delta query.
type DeltaResponse struct {
	Value     []Message `json:"value"`
	NextLink  string    `json:"@odata.nextLink"`
	DeltaLink string    `json:"@odata.deltaLink"`
}

// Attachment is a message attachment. ContentBytes is base64 and only
// present for file attachments.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentBytes string `json:"contentBytes"`
}

// IsFile reports whether the attachment is a plain file attachment.
func (a *Attachment) IsFile() bool {
	return a.ODataType == fileAttachmentType
}

// MailFolder is one mailbox folder.
type MailFolder struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	TotalItemCount  int    `json:"totalItemCount"`
	UnreadItemCount int    `json:"unreadItemCount"`
}

// MailboxSettings identifies mailbox properties such as shared-mailbox hints.
type MailboxSettings struct {
	UserPurpose string `json:"userPurpose"`
	TimeZone    string `json:"timeZone"`
}

// User is a directory user, used when discovering shared mailboxes.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// OutboundAttachment is a file attachment on an outbound sendMail payload.
type OutboundAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentBytes string `json:"contentBytes"` // base64
}

// NewOutboundAttachment wraps base64 content as a file attachment.
func NewOutboundAttachment(name, contentBase64 string) OutboundAttachment {
	return OutboundAttachment{
		ODataType:    fileAttachmentType,
		Name:         name,
		ContentBytes: contentBase64,
	}
}

// SendMessage is the message portion of a sendMail request.
type SendMessage struct {
	Subject       string               `json:"subject"`
	Body          MessageBody          `json:"body"`
	ToRecipients  []Recipient          `json:"toRecipients"`
	CcRecipients  []Recipient          `json:"ccRecipients,omitempty"`
	BccRecipients []Recipient          `json:"bccRecipients,omitempty"`
	Attachments   []OutboundAttachment `json:"attachments,omitempty"`
}

// sendMailRequest is the full sendMail body.
type sendMailRequest struct {
	Message         SendMessage `json:"message"`
	SaveToSentItems bool        `json:"saveToSentItems"`
}

// decodeInto unmarshals one raw page item.
func decodeInto(item json.RawMessage, out any) error {
	return json.Unmarshal(item, out)
}

// decodeMessages unmarshals raw page items into messages, skipping items
// that do not decode.
func decodeMessages(items []json.RawMessage) []Message {
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		var m Message
		if err := json.Unmarshal(item, &m); err == nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
