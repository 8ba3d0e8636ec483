package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/demsim/internal/dem"
)

// failingSim fails on the step after failAt successful ones.
type failingSim struct {
	*CPU
	failAt int64
}

func (f *failingSim) Next() error {
	if f.TimeStep() >= f.failAt {
		return &dem.StepError{Step: f.TimeStep(), Time: f.T(), Wrapped: errors.New("device lost")}
	}
	return f.CPU.Next()
}

func TestRunConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   RunConfig
		valid bool
	}{
		{"unbounded", RunConfig{}, true},
		{"steps", RunConfig{MaxSteps: 10, SampleEvery: 2}, true},
		{"negative steps", RunConfig{MaxSteps: -1}, false},
		{"negative end", RunConfig{EndTime: -0.5}, false},
		{"negative sample", RunConfig{SampleEvery: -3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, dem.ErrInvalidConfig)
			}
		})
	}
}

func TestRunner_MaxSteps(t *testing.T) {
	c := newCPU(t, nil)
	c.AddParticle(movable(0, 0.05, dem.Vector{Z: 1}))

	var seen []int64
	r := NewRunner(c)
	r.AddObserver(ObserverFunc(func(f *dem.Frame) {
		seen = append(seen, f.TimeStep)
		assert.Len(t, f.Particles, 1)
	}))

	res, err := r.Run(context.Background(), RunConfig{MaxSteps: 10, SampleEvery: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Steps)
	assert.False(t, res.Stopped)
	assert.Equal(t, c.T(), res.T)
	assert.Equal(t, []int64{3, 6, 9}, seen)
}

func TestRunner_EndTime(t *testing.T) {
	c := newCPU(t, nil)
	res, err := NewRunner(c).Run(context.Background(), RunConfig{EndTime: 0.05})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.T, 0.05)
	assert.Less(t, res.T, 0.05+DefaultMaxDt+1e-12)
}

func TestRunner_InvalidConfig(t *testing.T) {
	_, err := NewRunner(newCPU(t, nil)).Run(context.Background(), RunConfig{MaxSteps: -1})
	assert.ErrorIs(t, err, dem.ErrInvalidConfig)
}

func TestRunner_StepError(t *testing.T) {
	s := &failingSim{CPU: newCPU(t, nil), failAt: 4}
	res, err := NewRunner(s).Run(context.Background(), RunConfig{MaxSteps: 10})

	var se *dem.StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(4), se.Step)
	assert.Equal(t, int64(4), res.Steps)
}

func TestRunner_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewRunner(newCPU(t, nil)).Run(ctx, RunConfig{})
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Zero(t, res.Steps)
}

func TestRunner_AcceleratorSamples(t *testing.T) {
	a := newAccel(t)
	a.AddParticle(movable(0, 0.05, dem.Vector{}))

	var frames int
	r := NewRunner(a)
	r.AddObserver(ObserverFunc(func(f *dem.Frame) {
		frames++
		assert.Len(t, f.Particles, 1)
		assert.Positive(t, f.Dt)
	}))
	res, err := r.Run(context.Background(), RunConfig{MaxSteps: 4, SampleEvery: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Steps)
	assert.Equal(t, 4, frames)
}

func TestJob_StartStop(t *testing.T) {
	c := newCPU(t, nil)
	c.AddParticle(movable(0, 0.05, dem.Vector{Z: 1}))

	job := NewRunner(c).Start(context.Background(), RunConfig{})
	time.Sleep(10 * time.Millisecond)
	job.Stop()

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop")
	}
	res, err := job.Wait()
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Positive(t, res.Steps)
}
