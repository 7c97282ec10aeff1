package core

// scheduler.go runs background maintenance for the ledger.
//
// Currently it purges audit entries older than the configured retention.
// The scheduler is long-running and stops with its context. Individual purge
// failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// StartRetentionScheduler purges expired audit entries immediately, then
// every AuditCheckEvery until ctx is cancelled.
func (s *Service) StartRetentionScheduler(ctx context.Context) {
	slog.Info("retention scheduler started",
		"retention", s.cfg.AuditRetention.String(),
		"interval", s.cfg.AuditCheckEvery.String(),
	)

	s.runRetentionJob(ctx)

	ticker := time.NewTicker(s.cfg.AuditCheckEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx)
		}
	}
}

// runRetentionJob performs one purge cycle.
func (s *Service) runRetentionJob(ctx context.Context) {
	start := time.Now()
	cutoff := s.now().Add(-s.cfg.AuditRetention)

	purged, err := s.PurgeAuditLog(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged audit log entries",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
