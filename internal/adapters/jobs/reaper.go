package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgecraft/storefront/internal/ports"
)

// Reaper periodically deletes abandoned download attempts: rows whose token
// was minted but never redeemed (browser closed, network failure). Without
// reaping, those rows accumulate forever; quota only counts successful rows,
// so deleting these never affects a license's accounting.
type Reaper struct {
	logger    *slog.Logger
	downloads ports.DownloadRepository
	interval  time.Duration
	maxAge    time.Duration
	nowFn     func() time.Time
}

func NewReaper(logger *slog.Logger, downloads ports.DownloadRepository, interval, maxAge time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Reaper{
		logger:    logger,
		downloads: downloads,
		interval:  interval,
		maxAge:    maxAge,
		nowFn:     time.Now,
	}
}

// Run executes the reap loop until context cancellation. Failures are logged
// and the loop keeps going; reaping is idempotent and never blocks a request.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.reapOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reaper) reapOnce(ctx context.Context) {
	cutoff := r.nowFn().UTC().Add(-r.maxAge)
	deleted, err := r.downloads.DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "stale download cleanup failed",
			"module", "jobs.reaper",
			"operation", "reap_stale_downloads",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	if deleted > 0 {
		r.logger.InfoContext(ctx, "stale downloads reaped",
			"module", "jobs.reaper",
			"operation", "reap_stale_downloads",
			"outcome", "success",
			"deleted_count", deleted,
		)
	}
}
