package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Benny93/sentinel-go/internal/logging"
)

// Loader gathers the inputs of a cycle.
type Loader interface {
	Load(ctx context.Context) (CycleInput, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (CycleInput, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (CycleInput, error) { return f(ctx) }

// Recorder receives every finished cycle, typically to persist it.
type Recorder interface {
	Record(ctx context.Context, res *CycleResult) error
}

// Runner loads inputs, runs a cycle and hands the result to a Recorder.
type Runner struct {
	loader   Loader
	recorder Recorder
	opts     Options
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(loader Loader, recorder Recorder, opts Options) *Runner {
	return &Runner{loader: loader, recorder: recorder, opts: opts}
}

// RunOnce runs a single cycle. A recorder failure is logged and does not
// fail the cycle.
func (r *Runner) RunOnce(ctx context.Context) (*CycleResult, error) {
	in, err := r.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}

	res, err := RunCycle(ctx, in, r.opts)
	if err != nil {
		return nil, err
	}

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, res); err != nil {
			logging.OrDefault(r.opts.Logger).Warn("cycle not persisted", "cycle_id", res.ID, "error", err)
		}
	}
	return res, nil
}

// Monitor runs a cycle immediately and then every interval until ctx is
// done. A cycle in flight when ctx is cancelled is allowed to finish its
// current stage; onCycle (may be nil) sees every outcome. Monitor returns nil
// on cancellation.
func (r *Runner) Monitor(ctx context.Context, interval time.Duration, onCycle func(*CycleResult, error)) error {
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", interval)
	}
	log := logging.OrDefault(r.opts.Logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("cycle failed", "error", err)
		}
		if onCycle != nil {
			onCycle(res, err)
		}

		select {
		case <-ctx.Done():
			log.Info("monitor stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}
