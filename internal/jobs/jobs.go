package jobs

import (
	"context"
	"log/slog"
	"time"

	"botpanel/internal/botapi"
	"botpanel/internal/metrics"
	"botpanel/internal/store"

	"github.com/robfig/cron/v3"
)

const notificationRetention = 30 * 24 * time.Hour

// Runner schedules the background maintenance jobs.
type Runner struct {
	cron    *cron.Cron
	store   store.Store
	bot     *botapi.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New wires the job table. Call Start to begin scheduling.
func New(st store.Store, bot *botapi.Client, logger *slog.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		cron:    cron.New(),
		store:   st,
		bot:     bot,
		logger:  logger.With("component", "jobs"),
		metrics: m,
	}
}

// Start registers and launches the cron schedule.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc("* * * * *", r.expireTransactions); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("0 3 * * *", r.purgeStaleRows); err != nil {
		return err
	}
	if r.bot != nil && r.bot.Enabled() {
		if _, err := r.cron.AddFunc("*/5 * * * *", r.refreshBotStats); err != nil {
			return err
		}
	}
	r.cron.Start()
	r.logger.Info("background jobs scheduled")
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Runner) outcome(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if r.metrics != nil {
		r.metrics.JobRuns.WithLabelValues(job, result).Inc()
	}
}

func (r *Runner) expireTransactions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := r.store.ExpireTransactions(ctx, time.Now().UTC())
	r.outcome("expire_transactions", err)
	if err != nil {
		r.logger.Error("expire transactions failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("expired stale transactions", "count", n)
	}
}

func (r *Runner) purgeStaleRows() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	purged, err := r.store.PurgeReadNotifications(ctx, now.Add(-notificationRetention))
	r.outcome("purge_notifications", err)
	if err != nil {
		r.logger.Error("purge notifications failed", "error", err)
	} else if purged > 0 {
		r.logger.Info("purged read notifications", "count", purged)
	}

	revoked, err := r.store.PurgeExpiredRevocations(ctx, now)
	r.outcome("purge_revocations", err)
	if err != nil {
		r.logger.Error("purge revocations failed", "error", err)
	} else if revoked > 0 {
		r.logger.Info("purged expired token revocations", "count", revoked)
	}
}

func (r *Runner) refreshBotStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := r.bot.Stats(ctx, true)
	r.outcome("refresh_bot_stats", err)
	if err != nil {
		r.logger.Warn("refresh bot stats failed", "error", err)
	}
}
