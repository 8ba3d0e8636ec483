// Package physics provides the particle interaction laws used by the
// evaluators.
//
// The functions are pure and shared by the CPU and accelerator backends:
//
//   - [ContactForce]: Hertz-inspired spring-dashpot normal contact
//   - [HarmonicMean]: material blending where a zero modulus disables stiffness
//   - [Drive]: prescribed oscillatory acceleration field
//   - [CourantLimit]: per-particle bound on the time step
//   - [Advance]: constant-acceleration update of a movable particle
//
// # Contact Model
//
// Two spheres touch when the distance between their centres is below the
// mean of their diameters. The overlap δ drives a normal spring
//
//	kn = sqrt|δ| · 2/3 · E/(1-ν²) · sqrt(d1·d2 / 2(d1+d2))
//
// damped by a dashpot derived from the one-dimensional critical damping
// condition cn = 2·sqrt(M·kn), scaled by an empirical multiplier.
package physics
