package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListMessages fetches the most recent messages of one folder, newest first.
func (c *Client) ListMessages(ctx context.Context, token, userEmail, folder string, top int) ([]Message, error) {
	if top <= 0 {
		top = 50
	}
	endpoint := fmt.Sprintf("/users/%s/mailFolders/%s/messages", url.PathEscape(userEmail), url.PathEscape(folder))
	query := url.Values{
		"$top":     {fmt.Sprint(top)},
		"$orderby": {"receivedDateTime DESC"},
	}

	var page Page
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, query, &page); err != nil {
		return nil, err
	}
	return decodeMessages(page.Value), nil
}

// DeltaMessages fetches one page of a delta query for a folder. An empty
// deltaLink starts a fresh delta round; otherwise the stored continuation
// URL is followed as-is.
func (c *Client) DeltaMessages(ctx context.Context, token, userEmail, folder, deltaLink string) (*DeltaResponse, error) {
	endpoint := deltaLink
	if endpoint == "" {
		endpoint = fmt.Sprintf("/users/%s/mailFolders/%s/messages/delta",
			url.PathEscape(userEmail), url.PathEscape(folder))
	}

	var resp DeltaResponse
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessage fetches the full message, including the body.
func (c *Client) GetMessage(ctx context.Context, token, userEmail, messageID string) (*Message, error) {
	endpoint := fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(userEmail), url.PathEscape(messageID))

	var msg Message
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListAttachments fetches all attachments of a message.
func (c *Client) ListAttachments(ctx context.Context, token, userEmail, messageID string) ([]Attachment, error) {
	endpoint := fmt.Sprintf("/users/%s/messages/%s/attachments",
		url.PathEscape(userEmail), url.PathEscape(messageID))

	var resp struct {
		Value []Attachment `json:"value"`
	}
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// DownloadAttachment fetches one attachment with its content bytes.
func (c *Client) DownloadAttachment(ctx context.Context, token, userEmail, messageID, attachmentID string) (*Attachment, error) {
	endpoint := fmt.Sprintf("/users/%s/messages/%s/attachments/%s",
		url.PathEscape(userEmail), url.PathEscape(messageID), url.PathEscape(attachmentID))

	var att Attachment
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// MarkMessageRead marks a message as read in the remote mailbox.
func (c *Client) MarkMessageRead(ctx context.Context, token, userEmail, messageID string) error {
	endpoint := fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(userEmail), url.PathEscape(messageID))
	body := map[string]bool{"isRead": true}
	return c.Do(ctx, http.MethodPatch, endpoint, token, body, nil, nil)
}

// ListMailFolders fetches all mail folders of a mailbox, following
// pagination until exhausted.
func (c *Client) ListMailFolders(ctx context.Context, token, userEmail string) ([]MailFolder, error) {
	endpoint := fmt.Sprintf("/users/%s/mailFolders", url.PathEscape(userEmail))

	var page Page
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &page); err != nil {
		return nil, err
	}
	items, err := c.GetAllPages(ctx, &page, token)
	if err != nil {
		return nil, err
	}

	folders := make([]MailFolder, 0, len(items))
	for _, item := range items {
		var f MailFolder
		if err := decodeInto(item, &f); err == nil {
			folders = append(folders, f)
		}
	}
	return folders, nil
}

// GetMailboxSettings fetches mailbox settings, used to identify shared
// mailboxes.
func (c *Client) GetMailboxSettings(ctx context.Context, token, userEmail string) (*MailboxSettings, error) {
	endpoint := fmt.Sprintf("/users/%s/mailboxSettings", url.PathEscape(userEmail))

	var settings MailboxSettings
	if err := c.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ListUsers lists directory users, for discovering shared mailboxes.
func (c *Client) ListUsers(ctx context.Context, token string, top int) ([]User, error) {
	if top <= 0 {
		top = 100
	}
	query := url.Values{"$top": {fmt.Sprint(top)}}

	var page Page
	if err := c.Do(ctx, http.MethodGet, "/users", token, nil, query, &page); err != nil {
		return nil, err
	}

	users := make([]User, 0, len(page.Value))
	for _, item := range page.Value {
		var u User
		if err := decodeInto(item, &u); err == nil {
			users = append(users, u)
		}
	}
	return users, nil
}

// SendMailAsUser issues a sendMail call with the given sender mailbox.
// Requires the Mail.Send application permission.
func (c *Client) SendMailAsUser(ctx context.Context, token, senderEmail string, msg SendMessage) error {
	endpoint := fmt.Sprintf("/users/%s/sendMail", url.PathEscape(senderEmail))
	body := sendMailRequest{Message: msg, SaveToSentItems: true}
	return c.Do(ctx, http.MethodPost, endpoint, token, body, nil, nil)
}
