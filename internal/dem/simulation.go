package dem

import (
	"sync"
	"sync/atomic"
)

// Simulation is the stepping contract shared by every evaluator.
type Simulation interface {
	// AddParticle queues p; it takes effect at the start of the next Next.
	// Particles that fail Validate are dropped at that point with a warning.
	AddParticle(p Particle)
	// Next advances the simulation by one adaptive step.
	Next() error
	// GetParticles returns an independent copy of the last published frame.
	GetParticles() []Particle
	ParticleCount() int
	T() float64
	TimeStep() int64
	Dt() float64
}

// Frame is the state published by the stepper after each step.
// A published Frame is never modified.
type Frame struct {
	Particles []Particle
	T         float64
	TimeStep  int64
	Dt        float64
	Stats     StepStats
}

// StepStats counts what the contact pass saw during one step.
type StepStats struct {
	Contacts   int
	Coincident int
}

// Pending collects particles added between steps.
type Pending struct {
	mu        sync.Mutex
	particles []Particle
}

func (q *Pending) Push(p Particle) {
	q.mu.Lock()
	q.particles = append(q.particles, p)
	q.mu.Unlock()
}

// Drain returns the queued particles in insertion order and empties the queue.
func (q *Pending) Drain() []Particle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.particles
	q.particles = nil
	return out
}

func (q *Pending) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.particles)
}

// Publisher hands frames from the stepper to readers.
type Publisher struct {
	frame atomic.Pointer[Frame]
}

func NewPublisher(dt float64) *Publisher {
	p := &Publisher{}
	p.frame.Store(&Frame{Dt: dt})
	return p
}

func (p *Publisher) Publish(f *Frame) {
	p.frame.Store(f)
}

func (p *Publisher) Load() *Frame {
	return p.frame.Load()
}

// Snapshot copies the current frame's particles.
func (p *Publisher) Snapshot() []Particle {
	f := p.frame.Load()
	out := make([]Particle, len(f.Particles))
	copy(out, f.Particles)
	return out
}

// Commit appends pending particles to current in a fresh backing array.
// When pending is empty current is returned unchanged.
func Commit(current, pending []Particle) []Particle {
	if len(pending) == 0 {
		return current
	}
	next := make([]Particle, len(current)+len(pending))
	copy(next, current)
	copy(next[len(current):], pending)
	return next
}
