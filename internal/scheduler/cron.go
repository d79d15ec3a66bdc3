package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// UsageSource supplies the current model-usage snapshot on each tick.
// The Scheduler has no opinion on where this comes from; the
// composition root wires it to whatever surfaces the runner's
// usage-limit telemetry (spec §4.F "Capacity throttling").
type UsageSource func(ctx context.Context) (UsageSnapshot, error)

// CronRunner drives the Scheduler's periodic re-evaluation loop (spec
// §4.F "the scheduler runs continuously, re-evaluating readiness and
// capacity on a fixed interval"). Not required when Dispatch is
// instead triggered purely event-driven (e.g. immediately after a
// task completes); CronRunner exists for the baseline "nothing has
// changed in a while, check anyway" tick.
type CronRunner struct {
	sched  *Scheduler
	usage  UsageSource
	logger *zap.Logger
	c      *cron.Cron
}

// NewCronRunner builds a CronRunner that ticks Dispatch and (if usage
// is non-nil) ApplyUsage on the given cron spec, e.g. "@every 5s".
func NewCronRunner(sched *Scheduler, usage UsageSource, logger *zap.Logger, spec string) (*CronRunner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &CronRunner{
		sched:  sched,
		usage:  usage,
		logger: logger,
		c:      cron.New(),
	}
	if _, err := r.c.AddFunc(spec, r.tick); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the periodic loop. It returns immediately; ticks run on
// cron's own goroutine until Stop is called.
func (r *CronRunner) Start() {
	r.c.Start()
}

// Stop halts the loop, waiting for any in-flight tick to finish.
func (r *CronRunner) Stop() {
	<-r.c.Stop().Done()
}

func (r *CronRunner) tick() {
	ctx := context.Background()

	if r.usage != nil {
		snap, err := r.usage(ctx)
		if err != nil {
			r.logger.Warn("cron: reading usage snapshot failed", zap.Error(err))
		} else if err := r.sched.ApplyUsage(ctx, snap); err != nil {
			r.logger.Warn("cron: applying usage snapshot failed", zap.Error(err))
		}
	}

	if err := r.sched.Dispatch(ctx); err != nil {
		r.logger.Warn("cron: dispatch tick failed", zap.Error(err))
	}
}
