package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule holds the cron expressions for the background jobs.
type Schedule struct {
	Sync            string
	Queue           string
	TokenRefresh    string
	LogRetention    string
	CredentialCheck string
}

// DefaultSchedule is the cadence used when the config omits a job's cron
// expression.
var DefaultSchedule = Schedule{
	Sync:            "*/5 * * * *",
	Queue:           "* * * * *",
	TokenRefresh:    "*/30 * * * *",
	LogRetention:    "0 2 * * *",
	CredentialCheck: "0 3 * * *",
}

// Scheduler drives the background tasks on a cron cadence.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler registers every task with its schedule. Start it with Run and
// stop it by cancelling the context passed to Run.
func NewScheduler(tasks *Tasks, schedule Schedule, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scheduler")

	c := cron.New()
	ctx := context.Background()

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"sync", orDefault(schedule.Sync, DefaultSchedule.Sync), tasks.SyncAllAccounts},
		{"queue", orDefault(schedule.Queue, DefaultSchedule.Queue), tasks.ProcessOutboundQueue},
		{"token-refresh", orDefault(schedule.TokenRefresh, DefaultSchedule.TokenRefresh), tasks.RefreshAllTokens},
		{"log-retention", orDefault(schedule.LogRetention, DefaultSchedule.LogRetention), tasks.PurgeOldLogs},
		{"credential-check", orDefault(schedule.CredentialCheck, DefaultSchedule.CredentialCheck),
			func(ctx context.Context) { tasks.ValidateAllCredentials(ctx) }},
	}

	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			log.Debug("running scheduled job", zap.String("job", job.name))
			job.run(ctx)
		}); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", job.name, job.spec, err)
		}
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Run starts the scheduler and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
}

func orDefault(spec, fallback string) string {
	if spec == "" {
		return fallback
	}
	return spec
}
