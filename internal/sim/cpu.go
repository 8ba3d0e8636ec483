package sim

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/physics"
)

// CPU evaluates all pairwise contacts in process.
type CPU struct {
	cfg     CPUConfig
	workers int
	pending dem.Pending
	pub     *dem.Publisher

	// owned by the stepping goroutine
	particles []dem.Particle
	t         float64
	step      int64
	pool      *accelPool
}

var _ dem.Simulation = (*CPU)(nil)

func NewCPU(cfg CPUConfig) (*CPU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CPU{
		cfg:     cfg,
		workers: workerCount(cfg.Workers),
		pub:     dem.NewPublisher(cfg.MaxDt),
	}, nil
}

func (c *CPU) Config() CPUConfig { return c.cfg }

// Workers is the resolved number of contact workers.
func (c *CPU) Workers() int { return c.workers }

func (c *CPU) AddParticle(p dem.Particle) { c.pending.Push(p) }

func (c *CPU) Next() error {
	c.commitPending()

	field := c.cfg.Gravity
	if c.cfg.Drive != nil {
		field = c.cfg.Drive.Acceleration(c.t)
	}
	for i := range c.particles {
		c.particles[i].Acceleration = field
	}

	stats := contactPass(c.particles, c.cfg.Damping, c.workers, c.pool)

	dt := c.cfg.MaxDt
	for i := range c.particles {
		p := &c.particles[i]
		dt = math.Min(dt, physics.CourantLimit(c.cfg.Courant, p.Diameter, p.Velocity))
	}

	for i := range c.particles {
		physics.Advance(&c.particles[i], dt)
	}

	c.t += dt
	c.step++

	frame := &dem.Frame{
		Particles: make([]dem.Particle, len(c.particles)),
		T:         c.t,
		TimeStep:  c.step,
		Dt:        dt,
		Stats:     stats,
	}
	copy(frame.Particles, c.particles)
	c.pub.Publish(frame)
	return nil
}

func (c *CPU) commitPending() {
	added := acceptValid("cpu", c.pending.Drain())
	if len(added) == 0 {
		return
	}
	c.particles = dem.Commit(c.particles, added)
	c.pool = newAccelPool(len(c.particles))
	logrus.WithFields(logrus.Fields{
		"backend": "cpu",
		"added":   len(added),
		"total":   len(c.particles),
	}).Debug("committed pending particles")
}

func (c *CPU) GetParticles() []dem.Particle { return c.pub.Snapshot() }
func (c *CPU) Frame() *dem.Frame            { return c.pub.Load() }
func (c *CPU) ParticleCount() int           { return len(c.pub.Load().Particles) }
func (c *CPU) T() float64                   { return c.pub.Load().T }
func (c *CPU) TimeStep() int64              { return c.pub.Load().TimeStep }
func (c *CPU) Dt() float64                  { return c.pub.Load().Dt }
