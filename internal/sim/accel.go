package sim

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/compute"
	"github.com/san-kum/demsim/internal/dem"
)

// Accelerator integrates the driven oscillator model on a compute device.
// Particle state lives in device buffers; the host keeps the fields the
// kernels never touch.
type Accelerator struct {
	cfg       AccelConfig
	dev       compute.Device
	drive     compute.Kernel
	integrate compute.Kernel
	pending   dem.Pending
	pub       *dem.Publisher
	count     atomic.Int64

	// mu serialises device access between the stepper and readers.
	mu     sync.Mutex
	bufs   *deviceBuffers
	host   hostArrays
	limits []float32
	t      float64
	step   int64
	closed bool
}

var _ dem.Simulation = (*Accelerator)(nil)

// hostArrays mirrors the per-particle fields that stay on the host.
type hostArrays struct {
	ids       []uint64
	diameters []float64
	materials []*dem.Material
	kinds     []dem.Kind
}

type deviceBuffers struct {
	x, u, a  compute.Buffer
	d, limit compute.Buffer
}

func allocBuffers(dev compute.Device, n int) (*deviceBuffers, error) {
	b := &deviceBuffers{}
	var err error
	if b.x, err = dev.NewVec4Buffer(n); err != nil {
		return nil, err
	}
	if b.u, err = dev.NewVec4Buffer(n); err != nil {
		b.release()
		return nil, err
	}
	if b.a, err = dev.NewVec4Buffer(n); err != nil {
		b.release()
		return nil, err
	}
	if b.d, err = dev.NewFloatBuffer(n); err != nil {
		b.release()
		return nil, err
	}
	if b.limit, err = dev.NewFloatBuffer(n); err != nil {
		b.release()
		return nil, err
	}
	return b, nil
}

func (b *deviceBuffers) release() {
	for _, buf := range []compute.Buffer{b.x, b.u, b.a, b.d, b.limit} {
		if buf != nil {
			buf.Release()
		}
	}
}

// NewAccelerator builds the drive and integrate kernels on dev. A kernel that
// fails to build returns a *compute.BuildError and no evaluator.
func NewAccelerator(dev compute.Device, cfg AccelConfig) (*Accelerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drive, err := dev.Build(compute.DriveSource)
	if err != nil {
		return nil, fmt.Errorf("sim: building %s kernel: %w", compute.DriveEntry, err)
	}
	integrate, err := dev.Build(compute.IntegrateSource)
	if err != nil {
		drive.Release()
		return nil, fmt.Errorf("sim: building %s kernel: %w", compute.IntegrateEntry, err)
	}
	logrus.WithField("device", dev.Name()).Debug("accelerator kernels built")
	return &Accelerator{
		cfg:       cfg,
		dev:       dev,
		drive:     drive,
		integrate: integrate,
		pub:       dem.NewPublisher(cfg.MaxDt),
	}, nil
}

func (a *Accelerator) Config() AccelConfig    { return a.cfg }
func (a *Accelerator) Device() compute.Device { return a.dev }

func (a *Accelerator) AddParticle(p dem.Particle) { a.pending.Push(p) }

func (a *Accelerator) Next() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return &dem.StepError{Step: a.step, Time: a.t, Wrapped: compute.ErrReleased}
	}
	if err := a.commitPending(); err != nil {
		return &dem.StepError{Step: a.step, Time: a.t, Wrapped: err}
	}
	dt, err := a.dispatch()
	if err != nil {
		return &dem.StepError{Step: a.step, Time: a.t, Wrapped: err}
	}

	a.t += dt
	a.step++
	a.pub.Publish(&dem.Frame{T: a.t, TimeStep: a.step, Dt: dt})
	return nil
}

func (a *Accelerator) dispatch() (float64, error) {
	dt := a.cfg.MaxDt
	n := len(a.host.ids)
	if n == 0 {
		return dt, nil
	}

	args := []interface{}{
		compute.DriveArgCount:     int32(n),
		compute.DriveArgX:         a.bufs.x,
		compute.DriveArgU:         a.bufs.u,
		compute.DriveArgA:         a.bufs.a,
		compute.DriveArgD:         a.bufs.d,
		compute.DriveArgLimit:     a.bufs.limit,
		compute.DriveArgAmplitude: float32(a.cfg.Drive.Amplitude),
		compute.DriveArgOmega:     float32(a.cfg.Drive.Omega),
		compute.DriveArgTime:      float32(a.t),
		compute.DriveArgCourant:   float32(a.cfg.Courant),
	}
	if err := setArgs(a.drive, args); err != nil {
		return 0, err
	}
	if err := a.drive.Dispatch(n); err != nil {
		return 0, err
	}
	if err := a.dev.Finish(); err != nil {
		return 0, err
	}
	if err := a.dev.ReadFloat(a.bufs.limit, a.limits); err != nil {
		return 0, err
	}
	for _, l := range a.limits {
		dt = math.Min(dt, float64(l))
	}

	args = []interface{}{
		compute.IntegrateArgCount: int32(n),
		compute.IntegrateArgX:     a.bufs.x,
		compute.IntegrateArgU:     a.bufs.u,
		compute.IntegrateArgA:     a.bufs.a,
		compute.IntegrateArgDt:    float32(dt),
	}
	if err := setArgs(a.integrate, args); err != nil {
		return 0, err
	}
	if err := a.integrate.Dispatch(n); err != nil {
		return 0, err
	}
	return dt, a.dev.Finish()
}

func setArgs(k compute.Kernel, args []interface{}) error {
	for i, v := range args {
		if err := k.SetArg(i, v); err != nil {
			return err
		}
	}
	return nil
}

// commitPending reallocates the device buffers for the grown particle set and
// uploads every particle. Particles already on the device are read back first
// so their current state survives the reallocation.
func (a *Accelerator) commitPending() error {
	added := acceptValid("accel", a.pending.Drain())
	if len(added) == 0 {
		return nil
	}
	current, err := a.readBack()
	if err != nil {
		return err
	}
	all := dem.Commit(current, added)
	n := len(all)

	bufs, err := allocBuffers(a.dev, n)
	if err != nil {
		return err
	}

	x := make([]compute.Vec4, n)
	u := make([]compute.Vec4, n)
	acc := make([]compute.Vec4, n)
	d := make([]float32, n)
	host := hostArrays{
		ids:       make([]uint64, n),
		diameters: make([]float64, n),
		materials: make([]*dem.Material, n),
		kinds:     make([]dem.Kind, n),
	}
	for i, p := range all {
		mobile := float32(0)
		if p.Movable() {
			mobile = 1
		}
		x[i] = toVec4(p.Position, mobile)
		u[i] = toVec4(p.Velocity, 0)
		acc[i] = toVec4(p.Acceleration, 0)
		d[i] = float32(p.Diameter)
		host.ids[i] = p.ID
		host.diameters[i] = p.Diameter
		host.materials[i] = p.Material
		host.kinds[i] = p.Kind
	}

	upload := func() error {
		if err := a.dev.WriteVec4(bufs.x, x); err != nil {
			return err
		}
		if err := a.dev.WriteVec4(bufs.u, u); err != nil {
			return err
		}
		if err := a.dev.WriteVec4(bufs.a, acc); err != nil {
			return err
		}
		if err := a.dev.WriteFloat(bufs.d, d); err != nil {
			return err
		}
		return a.dev.Finish()
	}
	if err := upload(); err != nil {
		bufs.release()
		return err
	}

	if a.bufs != nil {
		a.bufs.release()
	}
	a.bufs = bufs
	a.host = host
	a.limits = make([]float32, n)
	a.count.Store(int64(n))

	logrus.WithFields(logrus.Fields{
		"backend": "accel",
		"device":  a.dev.Name(),
		"added":   len(added),
		"total":   n,
	}).Debug("uploaded particles to device")
	return nil
}

func toVec4(v dem.Vector, w float32) compute.Vec4 {
	return compute.Vec4{float32(v.X), float32(v.Y), float32(v.Z), w}
}

func fromVec4(v compute.Vec4) dem.Vector {
	return dem.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// readBack rebuilds particle values from the device. Callers hold mu.
func (a *Accelerator) readBack() ([]dem.Particle, error) {
	if a.bufs == nil {
		return []dem.Particle{}, nil
	}
	n := len(a.host.ids)
	x := make([]compute.Vec4, n)
	u := make([]compute.Vec4, n)
	acc := make([]compute.Vec4, n)
	if err := a.dev.ReadVec4(a.bufs.x, x); err != nil {
		return nil, err
	}
	if err := a.dev.ReadVec4(a.bufs.u, u); err != nil {
		return nil, err
	}
	if err := a.dev.ReadVec4(a.bufs.a, acc); err != nil {
		return nil, err
	}
	if err := a.dev.Finish(); err != nil {
		return nil, err
	}

	out := make([]dem.Particle, n)
	for i := range out {
		p := dem.NewParticle(a.host.ids[i], a.host.diameters[i], a.host.materials[i], a.host.kinds[i])
		p.Position = fromVec4(x[i])
		p.Velocity = fromVec4(u[i])
		p.Acceleration = fromVec4(acc[i])
		out[i] = p
	}
	return out, nil
}

// GetParticles reads the device state back. It waits for a step in progress
// and returns an empty slice before the first commit or on a device error.
func (a *Accelerator) GetParticles() []dem.Particle {
	ps, err := a.Snapshot()
	if err != nil {
		logrus.WithError(err).Warn("accelerator read back failed")
		return []dem.Particle{}
	}
	return ps
}

// Snapshot is GetParticles with the device error exposed.
func (a *Accelerator) Snapshot() ([]dem.Particle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return []dem.Particle{}, nil
	}
	return a.readBack()
}

func (a *Accelerator) ParticleCount() int { return int(a.count.Load()) }
func (a *Accelerator) T() float64         { return a.pub.Load().T }
func (a *Accelerator) TimeStep() int64    { return a.pub.Load().TimeStep }
func (a *Accelerator) Dt() float64        { return a.pub.Load().Dt }

// Close releases the device buffers and kernels. The device itself belongs to
// the caller.
func (a *Accelerator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.bufs != nil {
		a.bufs.release()
		a.bufs = nil
	}
	a.drive.Release()
	a.integrate.Release()
	return nil
}
