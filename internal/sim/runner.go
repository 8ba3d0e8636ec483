package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/dem"
)

// Observer receives sampled frames from a Runner. OnStep runs on the stepping
// goroutine and must not retain f.Particles past the call unless it copies.
type Observer interface {
	OnStep(f *dem.Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *dem.Frame)

func (fn ObserverFunc) OnStep(f *dem.Frame) { fn(f) }

// RunConfig bounds a run. Zero MaxSteps and EndTime mean unbounded; the run
// then ends only when the context is cancelled.
type RunConfig struct {
	MaxSteps int64
	EndTime  float64
	// SampleEvery invokes observers every n steps. Zero disables sampling.
	SampleEvery int64
}

func (c RunConfig) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must not be negative, got %d", dem.ErrInvalidConfig, c.MaxSteps)
	}
	if c.EndTime < 0 {
		return fmt.Errorf("%w: end time must not be negative, got %g", dem.ErrInvalidConfig, c.EndTime)
	}
	if c.SampleEvery < 0 {
		return fmt.Errorf("%w: sample interval must not be negative, got %d", dem.ErrInvalidConfig, c.SampleEvery)
	}
	return nil
}

// Result summarises a finished run.
type Result struct {
	Steps   int64
	T       float64
	Elapsed time.Duration
	// Stopped is set when the run ended by cancellation.
	Stopped bool
}

func (r *Result) StepsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Steps) / r.Elapsed.Seconds()
}

// Runner drives a Simulation from a single stepping goroutine.
type Runner struct {
	sim       dem.Simulation
	observers []Observer
}

func NewRunner(s dem.Simulation) *Runner {
	return &Runner{sim: s, observers: make([]Observer, 0)}
}

func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// framer is implemented by evaluators that publish whole frames.
type framer interface {
	Frame() *dem.Frame
}

// Run steps until a bound is reached, Next fails or ctx is cancelled.
// Cancellation is a normal stop: the partial result is returned with a nil
// error and Stopped set.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{}
	done := func() *Result {
		res.T = r.sim.T()
		res.Elapsed = time.Since(start)
		return res
	}

	logrus.WithFields(logrus.Fields{
		"particles": r.sim.ParticleCount(),
		"max_steps": cfg.MaxSteps,
		"end_time":  cfg.EndTime,
	}).Debug("run started")

	for {
		if cfg.MaxSteps > 0 && res.Steps >= cfg.MaxSteps {
			break
		}
		if cfg.EndTime > 0 && r.sim.T() >= cfg.EndTime {
			break
		}

		select {
		case <-ctx.Done():
			res.Stopped = true
			return done(), nil
		default:
		}

		if err := r.sim.Next(); err != nil {
			return done(), err
		}
		res.Steps++

		if cfg.SampleEvery > 0 && res.Steps%cfg.SampleEvery == 0 {
			r.notify()
		}
	}

	out := done()
	logrus.WithFields(logrus.Fields{
		"steps":   out.Steps,
		"t":       out.T,
		"elapsed": out.Elapsed,
	}).Debug("run finished")
	return out, nil
}

func (r *Runner) notify() {
	if len(r.observers) == 0 {
		return
	}
	var f *dem.Frame
	if fr, ok := r.sim.(framer); ok {
		f = fr.Frame()
	} else {
		f = &dem.Frame{
			Particles: r.sim.GetParticles(),
			T:         r.sim.T(),
			TimeStep:  r.sim.TimeStep(),
			Dt:        r.sim.Dt(),
		}
	}
	for _, o := range r.observers {
		o.OnStep(f)
	}
}

// Job is a run on its own goroutine.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	res    *Result
	err    error
}

// Start runs r in the background. Stop cancels it; Wait blocks for the result.
func (r *Runner) Start(ctx context.Context, cfg RunConfig) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		j.res, j.err = r.Run(ctx, cfg)
	}()
	return j
}

func (j *Job) Stop() { j.cancel() }

func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.res, j.err
}
