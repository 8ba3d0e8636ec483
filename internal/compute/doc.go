// Package compute provides co-processor devices for the accelerator evaluator.
//
// A [Device] is an in-order command queue with device-resident buffers and
// kernels built from program source:
//
//   - host: kernels run as Go functions across CPU workers (always present)
//   - opengl: kernels run as GLSL compute shaders (build tag opengl)
//
// # Selecting a Device
//
//	dev, err := compute.Select("auto")
//	kernel, err := dev.Build(compute.DriveSource)
//
// Build with the OpenGL device:
//
//	go build -tags opengl ./...
//
// The OpenGL device opens a hidden glfw window for its GL 4.3 context and
// keeps it on a dedicated locked OS thread. On macOS glfw must be initialised
// on the main thread, so the device is not supported there.
// A program that fails to compile or link yields a [*BuildError] carrying the
// source and the driver's log.
package compute
