package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/metrics"
	"github.com/robfig/cron/v3"
)

// TokenPruner is the subset of repository.UserRepository the pruner needs.
type TokenPruner interface {
	PruneInvalidatedTokens(ctx context.Context, cutoff time.Time) (int, error)
}

// Pruner drops invalidated tokens whose own expiry has passed. Such tokens
// already fail verification, so removing them never revives a session.
type Pruner struct {
	users    TokenPruner
	schedule cron.Schedule
	now      func() time.Time
	logger   *slog.Logger
}

// NewPruner accepts a standard five-field cron expression or a descriptor
// such as "@hourly" or "@every 30m".
func NewPruner(users TokenPruner, spec string, logger *slog.Logger) (*Pruner, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", spec, err)
	}
	return &Pruner{
		users:    users,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.With("component", "pruner"),
	}, nil
}

// Start runs until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	p.logger.Info("pruner started")

	for {
		now := p.now()
		timer := time.NewTimer(p.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("pruner shut down")
			return
		case <-timer.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "prune invalidated tokens", "error", err)
			}
		}
	}
}

// PruneOnce runs a single cycle and returns the store's removal count.
func (p *Pruner) PruneOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.PruneCycleDuration.Observe(time.Since(start).Seconds())
	}()

	n, err := p.users.PruneInvalidatedTokens(ctx, p.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.TokensPrunedTotal.Add(float64(n))
		p.logger.InfoContext(ctx, "pruned invalidated tokens", "count", n)
	}
	return n, nil
}
