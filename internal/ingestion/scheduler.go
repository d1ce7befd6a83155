package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/geobase/geobase/internal/logging"
)

// Runner is the subset of *Engine the Scheduler drives; narrowed to an
// interface so tests can substitute a fake without a real Store.
type Runner interface {
	Run(ctx context.Context, name string) (RunStats, error)
}

// Scheduler is a suture supervisor holding one pluginJob per registered
// plugin, each firing Engine.Run on its own cron-style cadence (spec.md
// §4.4.1's schedule hint). Adapted from the teacher's newsletter scheduler,
// replaced ticker-plus-due-query polling with one goroutine per plugin
// computing its own next fire time, since geobase's plugin set is small and
// fixed rather than dynamically stored rows.
type Scheduler struct {
	*suture.Supervisor
}

// NewScheduler builds a Scheduler that will run every plugin currently
// registered in the ingestion registry against engine, on each plugin's own
// Schedule(). Call this after all plugins have registered.
func NewScheduler(engine Runner) *Scheduler {
	sup := suture.New("ingestion-scheduler", suture.Spec{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
	})

	for name, p := range Registered() {
		sup.Add(&pluginJob{name: name, schedule: p.Schedule(), engine: engine})
	}

	return &Scheduler{Supervisor: sup}
}

// pluginJob is a suture.Service that calls engine.Run(ctx, name) each time
// its cron expression next matches, looping until ctx is canceled.
type pluginJob struct {
	name     string
	schedule string
	engine   Runner
}

func (j *pluginJob) String() string { return "ingestion-job:" + j.name }

// Serve implements suture.Service. An invalid cron expression is a
// configuration error the supervisor can't recover from by restarting, so
// it returns immediately rather than looping forever on the same error.
func (j *pluginJob) Serve(ctx context.Context) error {
	expr, err := parseCron(j.schedule)
	if err != nil {
		return fmt.Errorf("ingestion: plugin %q has invalid schedule %q: %w", j.name, j.schedule, err)
	}

	for {
		next := expr.next(time.Now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := j.engine.Run(ctx, j.name); err != nil {
			logging.WithComponent("scheduler").Error().Err(err).Str("plugin", j.name).Msg("scheduled ingestion run failed")
		}
	}
}
