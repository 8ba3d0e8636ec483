package compute

import (
	"fmt"
	"sort"

	"github.com/san-kum/demsim/internal/dem"
)

// Vec4 is the device-side vector layout: xyz plus one spare lane.
type Vec4 [4]float32

// Source is kernel program text together with its entry point.
type Source struct {
	Entry string
	Text  string
}

// Buffer is device-resident memory owned by whoever allocated it.
type Buffer interface {
	Len() int
	Release()
}

// Kernel is a built entry point ready for argument binding and dispatch.
// Arguments are Buffers, int32 or float32 values bound by index.
type Kernel interface {
	Name() string
	SetArg(index int, value interface{}) error
	// Dispatch enqueues globalSize work-items. Completion is observed with
	// Device.Finish or any read.
	Dispatch(globalSize int) error
	Release()
}

// Device is an in-order command queue on one co-processor.
type Device interface {
	Name() string
	Available() bool
	Build(src Source) (Kernel, error)
	NewVec4Buffer(n int) (Buffer, error)
	NewFloatBuffer(n int) (Buffer, error)
	WriteVec4(b Buffer, data []Vec4) error
	WriteFloat(b Buffer, data []float32) error
	ReadVec4(b Buffer, dst []Vec4) error
	ReadFloat(b Buffer, dst []float32) error
	// Finish blocks until every enqueued command has completed.
	Finish() error
	Cleanup()
}

var factories = map[string]func() Device{
	"host": func() Device { return NewHostDevice(0) },
}

func register(name string, f func() Device) {
	factories[name] = f
}

// Names lists the devices compiled into this binary.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select opens the named device. "auto" or "" picks the best available one.
func Select(name string) (Device, error) {
	if name == "" || name == "auto" {
		return AutoSelect(), nil
	}
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", dem.ErrNoDevice, name, Names())
	}
	d := f()
	if !d.Available() {
		d.Cleanup()
		return nil, fmt.Errorf("%w: %s", dem.ErrDeviceUnavailable, d.Name())
	}
	return d, nil
}

// AutoSelect prefers a hardware device and falls back to the host.
func AutoSelect() Device {
	if f, ok := factories["opengl"]; ok {
		d := f()
		if d.Available() {
			return d
		}
		d.Cleanup()
	}
	return NewHostDevice(0)
}
