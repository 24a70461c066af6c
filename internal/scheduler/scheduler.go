// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PruneGrace keeps freshly written images out of reach of the pruner while
// the request that saved them is still inserting the post.
const PruneGrace = time.Hour

// jobTimeout bounds a single prune run.
const jobTimeout = 5 * time.Minute

// Pruner removes image files that no post references.
type Pruner interface {
	PruneImages(ctx context.Context, grace time.Duration) (int, error)
}

type Scheduler struct {
	c *cron.Cron
}

// Start schedules the image prune job on schedule (standard cron syntax or a
// descriptor such as "@hourly") and starts the cron runner. Overlapping runs
// are skipped.
func Start(schedule string, p Pruner) (*Scheduler, error) {
	logger := slogLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() { prune(p) }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid prune schedule %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("scheduler started", "job", "prune_images", "schedule", schedule)
	return &Scheduler{c: c}, nil
}

// Stop stops scheduling and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

func prune(p Pruner) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := p.PruneImages(ctx, PruneGrace)
	if err != nil {
		slog.Error("scheduler: prune images", "error", err)
		return
	}
	slog.Info("scheduler: pruned images", "removed", n, "duration_ms", time.Since(start).Milliseconds())
}

// slogLogger adapts cron's logger interface to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
