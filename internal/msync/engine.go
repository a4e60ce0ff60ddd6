package msync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
	"github.com/custodia-labs/mailbridge/internal/graph"
)

// Store is the storage surface the sync engine needs.
type Store interface {
	driven.AccountStore
	driven.MessageStore
	driven.SyncLogStore
	driven.FileStore
	driven.ContactStore
}

// Engine pulls mailbox changes through Graph delta queries and records them
// in the document store. One Engine serves all accounts; passes for distinct
// accounts are independent.
type Engine struct {
	store  Store
	tokens driven.TokenSource
	client *graph.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewEngine creates a sync engine.
func NewEngine(store Store, tokens driven.TokenSource, client *graph.Client, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  store,
		tokens: tokens,
		client: client,
		log:    log.Named("sync"),
		now:    time.Now,
	}
}

// SyncAccount runs one sync pass over every enabled folder of the account.
// Folder failures do not abort the pass; the account ends up success, partial
// or failed depending on how many folders completed.
func (e *Engine) SyncAccount(ctx context.Context, account *domain.MailAccount, syncType domain.SyncType) (*domain.SyncLog, error) {
	if !account.Enabled || !account.EnableIncoming {
		return nil, domain.ErrAccountDisabled
	}

	slog := &domain.SyncLog{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		SyncType:  syncType,
		Status:    domain.SyncInProgress,
		StartTime: e.now(),
	}
	if err := e.store.InsertSyncLog(ctx, slog); err != nil {
		return nil, fmt.Errorf("open sync log: %w", err)
	}

	token, err := e.tokens.Token(ctx, account.PrincipalID)
	if err != nil {
		e.finishLog(ctx, slog, domain.SyncFailed, err.Error())
		e.recordStatus(ctx, account.ID, domain.SyncFailed, err.Error())
		return slog, fmt.Errorf("acquire token: %w", err)
	}

	folders := account.EnabledFolders()
	failedFolders := 0
	var lastErr error

	for _, folder := range folders {
		if err := e.syncFolder(ctx, token, account, folder, slog); err != nil {
			failedFolders++
			lastErr = err
			e.log.Error("folder sync failed",
				zap.String("account", account.Email),
				zap.String("folder", folder),
				zap.Error(err))
		}
	}

	status := domain.SyncSuccess
	errMsg := ""
	switch {
	case failedFolders == len(folders) && len(folders) > 0:
		status = domain.SyncFailed
		errMsg = lastErr.Error()
	case failedFolders > 0:
		status = domain.SyncPartial
		errMsg = lastErr.Error()
	}

	e.finishLog(ctx, slog, status, errMsg)
	e.recordStatus(ctx, account.ID, status, errMsg)

	e.log.Info("sync pass finished",
		zap.String("account", account.Email),
		zap.String("status", string(status)),
		zap.Int("fetched", slog.Fetched),
		zap.Int("created", slog.Created),
		zap.Int("failed", slog.Failed))

	return slog, nil
}

// syncFolder drains the delta feed of one folder. The cursor is persisted
// only after every message of a page has been handled, so a crash mid-page
// replays that page rather than skipping it.
func (e *Engine) syncFolder(ctx context.Context, token string, account *domain.MailAccount, folder string, slog *domain.SyncLog) error {
	cursor, err := DecodeCursor(account.Cursor(folder))
	if err != nil {
		// An undecodable cursor forces a full resync of the folder.
		e.log.Warn("discarding invalid cursor",
			zap.String("account", account.Email),
			zap.String("folder", folder))
		cursor = NewCursor()
	}

	link := cursor.DeltaLink
	resynced := false

	for {
		resp, err := e.client.DeltaMessages(ctx, token, account.Email, folder, link)
		if graph.IsDeltaTokenExpired(err) && !resynced {
			// 410 Gone: the server can no longer resume this cursor.
			e.log.Warn("delta cursor expired, restarting full sync",
				zap.String("account", account.Email),
				zap.String("folder", folder))
			link = ""
			resynced = true
			continue
		}
		if err != nil {
			return err
		}

		for i := range resp.Value {
			msg := &resp.Value[i]
			slog.Fetched++
			if err := e.processMessage(ctx, token, account, folder, msg, slog); err != nil {
				slog.Failed++
				e.log.Error("message processing failed",
					zap.String("account", account.Email),
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}

		next := resp.DeltaLink
		if resp.NextLink != "" {
			next = resp.NextLink
		}
		cursor.SetDeltaLink(next)
		if err := e.store.UpdateCursor(ctx, account.ID, folder, cursor.Encode(), e.now()); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}

		if resp.NextLink == "" {
			return nil
		}
		link = resp.NextLink
	}
}

// processMessage records one delta item. Deletions and messages outside the
// sync window are skipped; a message already recorded under the same provider
// id counts as updated, not created.
func (e *Engine) processMessage(ctx context.Context, token string, account *domain.MailAccount, folder string, msg *graph.Message, slog *domain.SyncLog) error {
	if msg.Removed != nil {
		return nil
	}

	received, err := ParseGraphTime(msg.ReceivedDateTime)
	if err != nil {
		received = e.now().UTC()
	}
	if !ShouldSync(received, account.SyncFromDate) {
		return nil
	}

	// Delta items carry truncated bodies; fetch the full message.
	full, err := e.client.GetMessage(ctx, token, account.Email, msg.ID)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	record := e.buildRecord(account, folder, full, received)

	if account.AutoCreateContact && record.Sender != "" {
		record.ContactID = e.ensureContact(ctx, record.SenderName, record.Sender)
	}

	err = e.store.InsertMessage(ctx, record)
	switch {
	case errors.Is(err, domain.ErrDuplicateMessage):
		slog.Updated++
		return nil
	case err != nil:
		return fmt.Errorf("insert message: %w", err)
	}
	slog.Created++

	if full.HasAttachments && account.SyncAttachments {
		if err := e.syncAttachments(ctx, token, account, record, full.ID); err != nil {
			e.log.Warn("attachment sync failed",
				zap.String("message_id", full.ID),
				zap.Error(err))
		}
	}

	if account.MarkSyncedAsRead && !full.IsRead {
		if err := e.client.MarkMessageRead(ctx, token, account.Email, full.ID); err != nil {
			e.log.Warn("mark-as-read failed",
				zap.String("message_id", full.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) buildRecord(account *domain.MailAccount, folder string, msg *graph.Message, received time.Time) *domain.MessageRecord {
	content := FormatBody(msg.Body)

	record := &domain.MessageRecord{
		ID:             uuid.NewString(),
		ProviderID:     msg.ID,
		AccountID:      account.ID,
		FolderName:     folder,
		Subject:        SanitizeSubject(msg.Subject),
		To:             recipientAddresses(msg.ToRecipients),
		CC:             recipientAddresses(msg.CcRecipients),
		BCC:            recipientAddresses(msg.BccRecipients),
		Content:        content,
		TextPreview:    TextPreview(content),
		Timestamp:      received,
		HasAttachments: msg.HasAttachments,
		ConversationID: msg.ConversationID,
		CreatedAt:      e.now(),
	}
	if msg.From != nil {
		record.Sender = msg.From.EmailAddress.Address
		record.SenderName = msg.From.EmailAddress.Name
	}
	return record
}

// syncAttachments stores file attachments up to the account's size ceiling.
// Item and reference attachments are skipped.
func (e *Engine) syncAttachments(ctx context.Context, token string, account *domain.MailAccount, record *domain.MessageRecord, messageID string) error {
	attachments, err := e.client.ListAttachments(ctx, token, account.Email, messageID)
	if err != nil {
		return err
	}

	ceiling := account.MaxAttachmentBytes()
	for i := range attachments {
		att := &attachments[i]
		if !att.IsFile() || att.Size > ceiling {
			continue
		}

		content := att.ContentBytes
		if content == "" {
			downloaded, err := e.client.DownloadAttachment(ctx, token, account.Email, messageID, att.ID)
			if err != nil {
				e.log.Warn("attachment download failed",
					zap.String("attachment", att.Name),
					zap.Error(err))
				continue
			}
			content = downloaded.ContentBytes
		}

		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			e.log.Warn("attachment decode failed", zap.String("attachment", att.Name))
			continue
		}

		file := &domain.StoredFile{
			ID:        uuid.NewString(),
			Name:      att.Name,
			Content:   raw,
			Private:   true,
			RecordID:  record.ID,
			CreatedAt: e.now(),
		}
		if err := e.store.SaveFile(ctx, file); err != nil {
			e.log.Warn("attachment save failed",
				zap.String("attachment", att.Name),
				zap.Error(err))
		}
	}
	return nil
}

// ensureContact resolves or creates a contact for the sender address.
// Failures here never fail the message.
func (e *Engine) ensureContact(ctx context.Context, name, email string) string {
	existing, err := e.store.GetContactByEmail(ctx, email)
	if err == nil && existing != nil {
		return existing.ID
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.log.Warn("contact lookup failed", zap.String("email", email), zap.Error(err))
		return ""
	}

	contact := &domain.Contact{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: e.now(),
	}
	if contact.Name == "" {
		contact.Name = email
	}
	if err := e.store.SaveContact(ctx, contact); err != nil {
		e.log.Warn("contact create failed", zap.String("email", email), zap.Error(err))
		return ""
	}
	return contact.ID
}

func (e *Engine) finishLog(ctx context.Context, slog *domain.SyncLog, status domain.SyncStatus, errMsg string) {
	slog.Finalize(status, e.now())
	slog.ErrorMessage = errMsg
	if err := e.store.UpdateSyncLog(ctx, slog); err != nil {
		e.log.Warn("sync log update failed", zap.String("log", slog.ID), zap.Error(err))
	}
}

func (e *Engine) recordStatus(ctx context.Context, accountID string, status domain.SyncStatus, errMsg string) {
	if err := e.store.UpdateSyncStatus(ctx, accountID, status, errMsg, e.now()); err != nil {
		e.log.Warn("sync status update failed", zap.String("account", accountID), zap.Error(err))
	}
}
