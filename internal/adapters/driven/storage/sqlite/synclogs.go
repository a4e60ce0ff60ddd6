package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// InsertSyncLog appends a new audit record.
func (s *Store) InsertSyncLog(ctx context.Context, l *domain.SyncLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_logs
		(id, account_id, sync_type, status, start_time, end_time, duration_sec,
		 fetched, created, updated, failed, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.AccountID, string(l.SyncType), string(l.Status), l.StartTime,
		nullTime(l.EndTime), l.DurationSec, l.Fetched, l.Created, l.Updated, l.Failed, l.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// UpdateSyncLog finalizes an audit record.
func (s *Store) UpdateSyncLog(ctx context.Context, l *domain.SyncLog) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs
		SET status = ?, end_time = ?, duration_sec = ?,
		    fetched = ?, created = ?, updated = ?, failed = ?, error_message = ?
		WHERE id = ?
	`, string(l.Status), nullTime(l.EndTime), l.DurationSec,
		l.Fetched, l.Created, l.Updated, l.Failed, l.ErrorMessage, l.ID)
	if err != nil {
		return fmt.Errorf("update sync log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSyncLogs returns the most recent audit records for an account.
func (s *Store) ListSyncLogs(ctx context.Context, accountID string, limit int) ([]domain.SyncLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, sync_type, status, start_time, end_time, duration_sec,
		       fetched, created, updated, failed, error_message
		FROM sync_logs
		WHERE account_id = ?
		ORDER BY start_time DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.SyncLog
	for rows.Next() {
		var (
			l        domain.SyncLog
			syncType string
			status   string
			end      sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.AccountID, &syncType, &status, &l.StartTime, &end,
			&l.DurationSec, &l.Fetched, &l.Created, &l.Updated, &l.Failed, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		l.SyncType = domain.SyncType(syncType)
		l.Status = domain.SyncStatus(status)
		l.EndTime = timePtr(end)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PurgeSyncLogs deletes audit records started before the cutoff.
func (s *Store) PurgeSyncLogs(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_logs WHERE start_time < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("purge sync logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
