package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Expirer drops entries that are stale at now and reports how many went.
type Expirer interface {
	Expire(ctx context.Context, now time.Time) (int, error)
}

// ExpireFunc adapts a plain function to Expirer.
type ExpireFunc func(ctx context.Context, now time.Time) (int, error)

func (f ExpireFunc) Expire(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}

type target struct {
	name    string
	expirer Expirer
}

// Job sweeps process-local TTL stores: sessions, dedup marks and rate
// windows. Redis-backed stores expire by themselves and are not attached.
type Job struct {
	targets []target
	now     func() time.Time
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		now:    time.Now,
		logger: logger,
	}
}

func (j *Job) Attach(name string, expirer Expirer) {
	if expirer == nil {
		return
	}
	j.targets = append(j.targets, target{name: name, expirer: expirer})
}

// Run sweeps every target once. A failing target does not stop the others.
func (j *Job) Run(ctx context.Context) error {
	now := j.now()
	var firstErr error
	for _, t := range j.targets {
		removed, err := t.expirer.Expire(ctx, now)
		if err != nil {
			j.logger.Warn("cleanup target failed", zap.String("target", t.name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("cleanup %s: %w", t.name, err)
			}
			continue
		}
		if removed > 0 {
			j.logger.Debug("cleanup expired entries", zap.String("target", t.name), zap.Int("removed", removed))
		}
	}
	return firstErr
}

// Loop runs the job immediately and then every interval until ctx ends.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
