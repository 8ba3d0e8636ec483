// Package dem provides the core types of the discrete element simulation.
//
// The package defines the particle model shared by every evaluator:
//
//   - [Vector]: three component double precision vector
//   - [Material]: immutable physical properties shared by particles
//   - [Particle]: a sphere with mutable kinematics
//   - [Simulation]: the stepping contract implemented by each backend
//   - [Frame]: an immutable snapshot published after every step
//
// # Example
//
//	s := sim.NewCPU(sim.DefaultCPUConfig())
//	s.AddParticle(dem.NewParticle(0, 0.05, steel, dem.FreeMovable))
//	for i := 0; i < 1000; i++ {
//		_ = s.Next()
//	}
//	snapshot := s.GetParticles()
//
// # Thread Safety
//
// Next must be driven from a single goroutine. AddParticle and the read-only
// observers (GetParticles, T, TimeStep, Dt, ParticleCount) may be called from
// any goroutine; readers always see a complete [Frame].
package dem
