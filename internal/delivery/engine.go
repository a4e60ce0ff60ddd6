package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
	"github.com/custodia-labs/mailbridge/internal/graph"
)

// DefaultBatchSize is how many queue entries one delivery pass picks up.
const DefaultBatchSize = 100

// Store is the storage surface the delivery engine needs.
type Store interface {
	driven.QueueStore
	driven.FileStore
}

// Engine drains the outbound queue and sends messages through Graph. Each
// recipient is attempted independently and its outcome written back
// immediately, so a crash mid-message leaves accurate partial progress.
type Engine struct {
	store    Store
	resolver SenderResolver
	tokens   driven.TokenSource
	client   *graph.Client
	renderer driven.DocumentRenderer
	builder  payloadBuilder
	log      *zap.Logger
	now      func() time.Time
}

// Options tunes payload construction.
type Options struct {
	// BaseURL anchors unsubscribe links and the open-tracking pixel.
	BaseURL string
	// TrackOpens injects the open-tracking pixel when the body asks for one.
	TrackOpens bool
}

// NewEngine creates a delivery engine. renderer may be nil when the host
// never enqueues print-format attachments.
func NewEngine(store Store, resolver SenderResolver, tokens driven.TokenSource, client *graph.Client, renderer driven.DocumentRenderer, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		tokens:   tokens,
		client:   client,
		renderer: renderer,
		builder:  payloadBuilder{BaseURL: opts.BaseURL, TrackOpens: opts.TrackOpens},
		log:      log.Named("delivery"),
		now:      time.Now,
	}
}

// ProcessQueue runs one delivery pass over pending queue entries and reports
// how many were sent and how many failed. Entries left to the external
// delivery path count as neither. Entry failures are isolated; the pass always
// visits the whole batch.
func (e *Engine) ProcessQueue(ctx context.Context) (sent, failed int, err error) {
	batch, err := e.store.PendingMessages(ctx, DefaultBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range batch {
		msg := &batch[i]
		ok, err := e.SendQueuedMessage(ctx, msg)
		if err != nil {
			failed++
			e.log.Error("queue entry failed",
				zap.String("queue_id", msg.ID),
				zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, failed, nil
}

// SendQueuedMessage delivers one queue entry. It returns true only when at
// least one recipient has been delivered, this pass or a previous one. Entries
// not routed through Graph, because they were not flagged for provider
// delivery or no sending account could be resolved, return false with no
// error and are left untouched for the external delivery path.
func (e *Engine) SendQueuedMessage(ctx context.Context, msg *domain.QueuedMessage) (bool, error) {
	if !msg.SendViaGraph {
		return false, nil
	}

	identity, err := e.resolver.Resolve(ctx, msg.Sender)
	if errors.Is(err, domain.ErrNoSendingAccount) {
		e.log.Debug("no sending account, leaving entry to external path",
			zap.String("queue_id", msg.ID),
			zap.String("sender", msg.Sender))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := e.store.UpdateQueueStatus(ctx, msg.ID, domain.QueueSending, ""); err != nil {
		return false, err
	}

	parsed, err := parseMIME(msg.Message)
	if err != nil {
		e.failWhole(ctx, msg, err)
		return false, err
	}

	// The host queue drops bcc recipients at enqueue time, so provider
	// delivery can never reproduce them.
	if bcc := mimeHeader(msg.Message, "Bcc"); bcc != "" {
		e.log.Warn("queued message carries bcc recipients that cannot be delivered via provider",
			zap.String("queue_id", msg.ID))
	}

	attachments, err := resolveAttachments(ctx, e.store, e.renderer, msg)
	if err != nil {
		e.failWhole(ctx, msg, err)
		return false, err
	}

	token, err := e.tokens.Token(ctx, identity.PrincipalID())
	if err != nil {
		e.failWhole(ctx, msg, err)
		return false, err
	}

	cc := splitAddresses(msg.ShowAsCC)
	sentAny := false
	var lastErr error

	for _, idx := range msg.PendingRecipients() {
		recipient := msg.Recipients[idx].Address
		body := e.builder.Build(msg, parsed.Body, recipient, identity)

		payload := graph.SendMessage{
			Subject:     parsed.Subject,
			Body:        graph.MessageBody{ContentType: "HTML", Content: body},
			Attachments: attachments,
		}
		payload.ToRecipients = []graph.Recipient{graph.NewRecipient(recipient)}
		for _, addr := range cc {
			payload.CcRecipients = append(payload.CcRecipients, graph.NewRecipient(addr))
		}

		if err := e.client.SendMailAsUser(ctx, token, identity.Address, payload); err != nil {
			lastErr = err
			msg.Recipients[idx].Status = domain.DeliveryFailed
			msg.Recipients[idx].Error = err.Error()
			e.writeRecipient(ctx, msg.ID, idx, domain.DeliveryFailed, err.Error())
			e.log.Error("recipient delivery failed",
				zap.String("queue_id", msg.ID),
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}

		sentAny = true
		msg.Recipients[idx].Status = domain.DeliverySent
		msg.Recipients[idx].Error = ""
		e.writeRecipient(ctx, msg.ID, idx, domain.DeliverySent, "")
	}

	for _, r := range msg.Recipients {
		if r.Status == domain.DeliverySent {
			sentAny = true
		}
	}

	if sentAny {
		if err := e.store.UpdateQueueStatus(ctx, msg.ID, domain.QueueSent, ""); err != nil {
			return true, err
		}
		if msg.ConversationID != "" {
			if err := e.store.MarkConversationSent(ctx, msg.ConversationID); err != nil {
				e.log.Warn("conversation status update failed",
					zap.String("conversation", msg.ConversationID),
					zap.Error(err))
			}
		}
		return true, nil
	}

	errMsg := "no recipients delivered"
	if lastErr == nil {
		lastErr = errors.New(errMsg)
	} else {
		errMsg = lastErr.Error()
	}
	if err := e.store.UpdateQueueStatus(ctx, msg.ID, domain.QueueError, errMsg); err != nil {
		return false, err
	}
	return false, lastErr
}

// failWhole marks the entry and every pending recipient failed after an error
// that precedes any per-recipient attempt.
func (e *Engine) failWhole(ctx context.Context, msg *domain.QueuedMessage, cause error) {
	for _, idx := range msg.PendingRecipients() {
		e.writeRecipient(ctx, msg.ID, idx, domain.DeliveryFailed, cause.Error())
	}
	if err := e.store.UpdateQueueStatus(ctx, msg.ID, domain.QueueError, cause.Error()); err != nil {
		e.log.Warn("queue status update failed", zap.String("queue_id", msg.ID), zap.Error(err))
	}
}

func (e *Engine) writeRecipient(ctx context.Context, id string, idx int, status domain.DeliveryStatus, errMsg string) {
	if err := e.store.UpdateRecipientStatus(ctx, id, idx, status, errMsg); err != nil {
		e.log.Warn("recipient status update failed",
			zap.String("queue_id", id),
			zap.Int("recipient", idx),
			zap.Error(err))
	}
}

// splitAddresses parses a comma-separated address list.
func splitAddresses(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// mimeHeader reads one top-level header from a raw payload without a full
// parse.
func mimeHeader(raw, name string) string {
	prefix := strings.ToLower(name) + ":"
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			return ""
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
