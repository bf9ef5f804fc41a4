package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/robfig/cron/v3"
)

const limiterIdleTTL = 10 * time.Minute

// SnapshotRefresher is satisfied by usecase.PriceCache.
type SnapshotRefresher interface {
	EnsureFresh(ctx context.Context) (*domain.PriceSnapshot, error)
}

// LimiterJanitor is satisfied by middleware.RateLimiter.
type LimiterJanitor interface {
	Cleanup(idle time.Duration) int
}

// BackgroundTasks runs periodic jobs on a single cron scheduler.
type BackgroundTasks struct {
	cron *cron.Cron
	log  *slog.Logger
	jobs int
}

func NewBackgroundTasks(log *slog.Logger) *BackgroundTasks {
	if log == nil {
		log = slog.Default()
	}
	return &BackgroundTasks{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:  log.With("component", "background"),
	}
}

// AddSnapshotWarmer refreshes the cache on schedule so request paths rarely
// pay for an upstream burst. An empty schedule disables the job.
func (bt *BackgroundTasks) AddSnapshotWarmer(schedule string, cache SnapshotRefresher, timeout time.Duration) error {
	if schedule == "" {
		return nil
	}
	_, err := bt.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		bt.warm(ctx, cache)
	})
	if err != nil {
		return fmt.Errorf("schedule snapshot warmer %q: %w", schedule, err)
	}
	bt.jobs++
	return nil
}

func (bt *BackgroundTasks) AddLimiterCleanup(schedule string, limiter LimiterJanitor) error {
	_, err := bt.cron.AddFunc(schedule, func() {
		if removed := limiter.Cleanup(limiterIdleTTL); removed > 0 {
			bt.log.Debug("rate limiters evicted", "count", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule limiter cleanup %q: %w", schedule, err)
	}
	bt.jobs++
	return nil
}

func (bt *BackgroundTasks) warm(ctx context.Context, cache SnapshotRefresher) {
	snapshot, err := cache.EnsureFresh(ctx)
	if err != nil {
		var upstreamErr *domain.UpstreamFetchError
		if errors.As(err, &upstreamErr) {
			bt.log.Warn("snapshot warm-up failed", "market", upstreamErr.Market, "error", err)
			return
		}
		bt.log.Warn("snapshot warm-up failed", "error", err)
		return
	}
	bt.log.Debug("snapshot warm", "captured_at", snapshot.CapturedAt)
}

func (bt *BackgroundTasks) Jobs() int {
	return bt.jobs
}

func (bt *BackgroundTasks) StartAll() {
	bt.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (bt *BackgroundTasks) Stop(ctx context.Context) {
	done := bt.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		bt.log.Warn("background jobs did not finish before shutdown")
	}
}
