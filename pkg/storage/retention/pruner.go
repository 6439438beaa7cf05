package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ceeval-hq/verdict/pkg/storage"
)

// Config contains configuration for the history pruner.
type Config struct {
	// RetentionDays is how long history entries are kept.
	// 0 keeps history forever.
	RetentionDays int

	// PruneSchedule is a cron expression, e.g. "0 3 * * *" (daily at 3 AM).
	// Empty disables scheduled pruning.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 365,
		PruneSchedule: "0 3 * * *",
	}
}

// RetentionError reports a failed pruning run.
type RetentionError struct {
	RetentionDays int
	Cause         error
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("retention error [retention_days=%d]: %v", e.RetentionDays, e.Cause)
}

func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// Pruner deletes evaluation history past the retention period.
type Pruner struct {
	store     storage.Store
	config    *Config
	logger    *slog.Logger
	now       func() time.Time
	scheduler *Scheduler
	onPruned  func(deleted int64)
}

// NewPruner creates a pruner for store. A nil config uses DefaultConfig.
func NewPruner(store storage.Store, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "storage.retention"),
		now:    time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// OnPruned registers fn to run after every successful prune.
func (p *Pruner) OnPruned(fn func(deleted int64)) {
	p.onPruned = fn
}

// Scheduler returns the pruner's cron scheduler.
func (p *Pruner) Scheduler() *Scheduler {
	return p.scheduler
}

// Cutoff returns the time before which history is deleted, and false when
// retention is unlimited.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.config.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return p.now().AddDate(0, 0, -p.config.RetentionDays), true
}

// Prune deletes history entries older than the retention period and
// returns how many were deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff, ok := p.Cutoff()
	if !ok {
		p.logger.Debug("retention unlimited, nothing pruned")
		return 0, nil
	}

	deleted, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, &RetentionError{RetentionDays: p.config.RetentionDays, Cause: err}
	}

	if p.onPruned != nil {
		p.onPruned(deleted)
	}
	if deleted > 0 {
		p.logger.Info("evaluation history pruned",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"cutoff_time", cutoff,
		)
	}
	return deleted, nil
}
