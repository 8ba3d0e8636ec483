// Package viz renders run telemetry in the terminal.
//
//   - [LiveModel]: Bubble Tea view of a running simulation, showing clock,
//     step size, energy history and an xz scatter of the particles
//   - [Canvas]: Braille-based pixel canvas
//   - [Plot]: asciigraph line charts of saved telemetry
//
// # Key Bindings
//
//	Q, Ctrl+C - Stop the run and leave
//	?         - Toggle help
package viz
