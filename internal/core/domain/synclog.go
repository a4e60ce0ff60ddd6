package domain

import "time"

// SyncType records what kind of pass produced a log entry.
type SyncType string

const (
	// DeltaSync is the scheduled incremental pass.
	DeltaSync SyncType = "delta"
	// ManualSync is an operator-triggered pass.
	ManualSync SyncType = "manual"
)

// SyncLog is an append-only audit record for one sync invocation. A row is
// created when the pass starts and finalized when it ends; old rows are
// purged by the daily retention task.
type SyncLog struct {
	ID        string
	AccountID string
	SyncType  SyncType
	Status    SyncStatus

	StartTime   time.Time
	EndTime     *time.Time
	DurationSec float64

	Fetched int
	Created int
	Updated int
	Failed  int

	ErrorMessage string
}

// Finalize stamps the end time, duration and terminal status.
func (l *SyncLog) Finalize(status SyncStatus, end time.Time) {
	l.Status = status
	l.EndTime = &end
	l.DurationSec = end.Sub(l.StartTime).Seconds()
}
