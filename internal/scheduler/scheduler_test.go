package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	scheduler := New(zerolog.Nop())

	err := scheduler.AddJob("not a schedule", &countingJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, scheduler.Jobs())
}

func TestJobsListedInRegistrationOrder(t *testing.T) {
	scheduler := New(zerolog.Nop())

	require.NoError(t, scheduler.AddJob("30 2 * * *", &countingJob{name: "backup"}))
	require.NoError(t, scheduler.AddJob("@hourly", &countingJob{name: "checkpoint"}))

	jobs := scheduler.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobInfo{Name: "backup", Schedule: "30 2 * * *"}, jobs[0])
	assert.Equal(t, JobInfo{Name: "checkpoint", Schedule: "@hourly"}, jobs[1])

	// The returned slice is a copy
	jobs[0].Name = "mutated"
	assert.Equal(t, "backup", scheduler.Jobs()[0].Name)
}

func TestRunNow(t *testing.T) {
	scheduler := New(zerolog.Nop())

	job := &countingJob{name: "reaper"}
	require.NoError(t, scheduler.AddJob("* * * * *", job))

	require.NoError(t, scheduler.RunNow("reaper"))
	assert.Equal(t, int64(1), job.runs.Load())

	err := scheduler.RunNow("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestRunNowSurfacesJobError(t *testing.T) {
	scheduler := New(zerolog.Nop())

	boom := errors.New("disk full")
	job := &countingJob{name: "backup", err: boom}
	require.NoError(t, scheduler.AddJob("30 2 * * *", job))

	assert.ErrorIs(t, scheduler.RunNow("backup"), boom)
}

func TestStartStop(t *testing.T) {
	scheduler := New(zerolog.Nop())
	require.NoError(t, scheduler.AddJob("@hourly", &countingJob{name: "noop"}))

	scheduler.Start()
	scheduler.Stop()
}
