package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
	"github.com/custodia-labs/mailbridge/internal/delivery"
	"github.com/custodia-labs/mailbridge/internal/msync"
)

// LogRetention is how long sync audit records are kept.
const LogRetention = 30 * 24 * time.Hour

// Tasks bundles the scheduled background jobs. Each job fans out over its
// work items sequentially and isolates per-item failures, so one broken
// account never starves the rest.
type Tasks struct {
	store    driven.Store
	tokens   driven.TokenSource
	sync     *msync.Engine
	delivery *delivery.Engine
	log      *zap.Logger
	now      func() time.Time
}

// NewTasks creates the background task runner.
func NewTasks(store driven.Store, tokens driven.TokenSource, sync *msync.Engine, del *delivery.Engine, log *zap.Logger) *Tasks {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tasks{
		store:    store,
		tokens:   tokens,
		sync:     sync,
		delivery: del,
		log:      log.Named("tasks"),
		now:      time.Now,
	}
}

// SyncAllAccounts runs a delta sync pass over every incoming-enabled account.
func (t *Tasks) SyncAllAccounts(ctx context.Context) {
	accounts, err := t.store.ListIncomingAccounts(ctx)
	if err != nil {
		t.log.Error("listing sync accounts failed", zap.Error(err))
		return
	}

	for i := range accounts {
		account := &accounts[i]
		if _, err := t.sync.SyncAccount(ctx, account, domain.DeltaSync); err != nil {
			t.log.Error("account sync failed",
				zap.String("account", account.Email),
				zap.Error(err))
		}
	}
}

// ProcessOutboundQueue runs one delivery pass.
func (t *Tasks) ProcessOutboundQueue(ctx context.Context) {
	sent, failed, err := t.delivery.ProcessQueue(ctx)
	if err != nil {
		t.log.Error("queue pass failed", zap.Error(err))
		return
	}
	if sent > 0 || failed > 0 {
		t.log.Info("queue pass finished",
			zap.Int("sent", sent),
			zap.Int("failed", failed))
	}
}

// RefreshAllTokens proactively refreshes the token of every enabled
// principal so scheduled syncs never pay the grant latency.
func (t *Tasks) RefreshAllTokens(ctx context.Context) {
	principals, err := t.store.ListPrincipals(ctx, true)
	if err != nil {
		t.log.Error("listing principals failed", zap.Error(err))
		return
	}

	for _, p := range principals {
		if _, err := t.tokens.Token(ctx, p.ID); err != nil {
			t.log.Error("token refresh failed",
				zap.String("principal", p.ID),
				zap.Error(err))
		}
	}
}

// ValidateAllCredentials force-refreshes every enabled principal and reports
// the ones whose grants fail.
func (t *Tasks) ValidateAllCredentials(ctx context.Context) map[string]error {
	principals, err := t.store.ListPrincipals(ctx, true)
	if err != nil {
		t.log.Error("listing principals failed", zap.Error(err))
		return nil
	}

	failures := make(map[string]error)
	for _, p := range principals {
		if _, err := t.tokens.ForceRefresh(ctx, p.ID); err != nil {
			failures[p.ID] = err
			t.log.Warn("credential validation failed",
				zap.String("principal", p.ID),
				zap.Error(err))
		}
	}
	return failures
}

// PurgeOldLogs deletes sync audit records older than the retention window.
func (t *Tasks) PurgeOldLogs(ctx context.Context) {
	cutoff := t.now().Add(-LogRetention)
	n, err := t.store.PurgeSyncLogs(ctx, cutoff)
	if err != nil {
		t.log.Error("log purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		t.log.Info("purged old sync logs", zap.Int("deleted", n))
	}
}
