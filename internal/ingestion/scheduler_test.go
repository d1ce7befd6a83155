package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobase/geobase/internal/models"
)

type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, name string) (RunStats, error) {
	f.calls = append(f.calls, name)
	return RunStats{Source: name}, nil
}

func TestPluginJob_InvalidScheduleReturnsImmediately(t *testing.T) {
	job := &pluginJob{name: "bad", schedule: "not a cron expr", engine: &fakeRunner{}}

	err := job.Serve(context.Background())
	require.Error(t, err)
}

func TestPluginJob_CancelBeforeNextFireReturnsCtxErr(t *testing.T) {
	runner := &fakeRunner{}
	// A once-a-year schedule guarantees next() lands well beyond this test's
	// timeout, so canceling immediately exercises the ctx.Done() branch
	// without ever firing Run.
	job := &pluginJob{name: "yearly", schedule: "0 0 1 1 *", engine: runner}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := job.Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runner.calls)
}

func TestNewScheduler_BuildsSupervisorWithRegisteredPlugins(t *testing.T) {
	resetRegistryForTest()
	defer resetRegistryForTest()

	Register(&stubPlugin{name: "stub-a"})
	Register(&stubPlugin{name: "stub-b"})

	sched := NewScheduler(&fakeRunner{})
	require.NotNil(t, sched.Supervisor)
}

type stubPlugin struct{ name string }

func (s *stubPlugin) Name() string            { return s.name }
func (s *stubPlugin) HasNativeLocation() bool { return false }
func (s *stubPlugin) Schedule() string        { return "*/5 * * * *" }
func (s *stubPlugin) Discover(ctx context.Context, since *models.Watermark) ([]Record, error) {
	return nil, nil
}
