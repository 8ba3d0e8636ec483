package metrics

import (
	"sync"

	"github.com/san-kum/demsim/internal/dem"
)

// Sample is one row of run telemetry.
type Sample struct {
	Step          int64      `json:"step"`
	T             float64    `json:"t"`
	Dt            float64    `json:"dt"`
	Particles     int        `json:"particles"`
	KineticEnergy float64    `json:"kinetic_energy"`
	MaxSpeed      float64    `json:"max_speed"`
	CentreOfMass  dem.Vector `json:"centre_of_mass"`
	Contacts      int        `json:"contacts"`
	Coincident    int        `json:"coincident"`
}

// NewSample summarises a frame.
func NewSample(f *dem.Frame) Sample {
	return Sample{
		Step:          f.TimeStep,
		T:             f.T,
		Dt:            f.Dt,
		Particles:     len(f.Particles),
		KineticEnergy: KineticEnergy(f.Particles),
		MaxSpeed:      MaxSpeed(f.Particles),
		CentreOfMass:  CentreOfMass(f.Particles),
		Contacts:      f.Stats.Contacts,
		Coincident:    f.Stats.Coincident,
	}
}

// Recorder keeps a telemetry series and feeds its metrics. It is safe to read
// while a runner writes to it.
type Recorder struct {
	mu      sync.RWMutex
	samples []Sample
	metrics []Metric
	last    *dem.Frame
}

func NewRecorder(ms ...Metric) *Recorder {
	return &Recorder{metrics: ms}
}

// OnStep records f. The recorder keeps f itself as the latest frame, so
// callers must hand over frames they no longer mutate.
func (r *Recorder) OnStep(f *dem.Frame) {
	s := NewSample(f)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	r.last = f
	for _, m := range r.metrics {
		m.Observe(f)
	}
}

func (r *Recorder) Samples() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Latest returns the newest sample, if any.
func (r *Recorder) Latest() (Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// LastFrame is the most recently recorded frame or nil.
func (r *Recorder) LastFrame() *dem.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Values reports every metric by name.
func (r *Recorder) Values() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Series extracts one column of the samples.
func (r *Recorder) Series(get func(Sample) float64) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]float64, len(r.samples))
	for i, s := range r.samples {
		out[i] = get(s)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
	r.last = nil
	for _, m := range r.metrics {
		m.Reset()
	}
}
