//go:build opengl

package compute

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/san-kum/demsim/internal/dem"
)

func init() {
	register("opengl", func() Device { return NewGLDevice() })
}

// GLDevice runs kernels as GLSL compute shaders. The device owns a locked OS
// thread holding a hidden-window GL 4.3 context; every GL call is sent to
// that thread, so the device may be used from any goroutine.
type GLDevice struct {
	version string
	initErr error

	// mu guards calls against Cleanup closing it.
	mu      sync.RWMutex
	calls   chan glCall
	stopped chan struct{}
	closed  bool
}

type glCall struct {
	fn   func() error
	done chan error
}

func NewGLDevice() *GLDevice {
	d := &GLDevice{
		calls:   make(chan glCall),
		stopped: make(chan struct{}),
	}
	ready := make(chan error)
	go d.loop(ready)
	if err := <-ready; err != nil {
		d.initErr = err
		d.closed = true
	}
	return d
}

func (d *GLDevice) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(d.stopped)

	if err := glfw.Init(); err != nil {
		ready <- fmt.Errorf("failed to init glfw: %v", err)
		return
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	window, err := glfw.CreateWindow(1, 1, "demsim", nil, nil)
	if err != nil {
		ready <- fmt.Errorf("failed to create gl 4.3 context: %v", err)
		return
	}
	defer window.Destroy()
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		ready <- fmt.Errorf("failed to init opengl: %v", err)
		return
	}
	d.version = gl.GoStr(gl.GetString(gl.VERSION))
	ready <- nil

	for c := range d.calls {
		c.done <- c.fn()
	}
}

// do runs fn on the context thread and waits for it.
func (d *GLDevice) do(fn func() error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.initErr != nil {
		return fmt.Errorf("%w: %v", dem.ErrDeviceUnavailable, d.initErr)
	}
	if d.closed {
		return ErrReleased
	}
	c := glCall{fn: fn, done: make(chan error, 1)}
	d.calls <- c
	return <-c.done
}

func (d *GLDevice) Name() string {
	if d.Available() {
		return "opengl (" + d.version + ")"
	}
	return "opengl (not available)"
}

func (d *GLDevice) Available() bool { return d.initErr == nil && d.version != "" }

// Cleanup destroys the context. Buffers and kernels die with it.
func (d *GLDevice) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.calls)
	<-d.stopped
}

func (d *GLDevice) Build(src Source) (Kernel, error) {
	var k Kernel
	err := d.do(func() error {
		var err error
		k, err = d.build(src)
		return err
	})
	return k, err
}

func (d *GLDevice) build(src Source) (Kernel, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csources, free := gl.Strs(src.Text + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return nil, &BuildError{Device: d.Name(), Entry: src.Entry, Source: src.Text, Log: strings.TrimRight(log, "\x00")}
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)
	gl.DeleteShader(shader)

	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return nil, &BuildError{Device: d.Name(), Entry: src.Entry, Source: src.Text, Log: strings.TrimRight(log, "\x00")}
	}

	return &glKernel{dev: d, name: src.Entry, program: program, args: map[int]interface{}{}}, nil
}

type glBuffer struct {
	dev      *GLDevice
	id       uint32
	n        int
	elem     int
	kind     ParamKind
	released bool
}

func (b *glBuffer) Len() int { return b.n }

func (b *glBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.dev.do(func() error {
		gl.DeleteBuffers(1, &b.id)
		return nil
	})
}

func (d *GLDevice) newBuffer(n, elem int, kind ParamKind) (Buffer, error) {
	b := &glBuffer{dev: d, n: n, elem: elem, kind: kind}
	err := d.do(func() error {
		gl.GenBuffers(1, &b.id)
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
		gl.BufferData(gl.SHADER_STORAGE_BUFFER, n*elem, nil, gl.DYNAMIC_COPY)
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
		if code := gl.GetError(); code != gl.NO_ERROR {
			gl.DeleteBuffers(1, &b.id)
			return fmt.Errorf("compute: opengl buffer of %d bytes: error 0x%x", n*elem, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *GLDevice) NewVec4Buffer(n int) (Buffer, error)  { return d.newBuffer(n, 16, ParamVec4Buffer) }
func (d *GLDevice) NewFloatBuffer(n int) (Buffer, error) { return d.newBuffer(n, 4, ParamFloatBuffer) }

func (d *GLDevice) buffer(b Buffer, kind ParamKind, n int) (*glBuffer, error) {
	gb, ok := b.(*glBuffer)
	if !ok || gb.dev != d {
		return nil, ErrForeignBuffer
	}
	if gb.released {
		return nil, ErrReleased
	}
	if gb.kind != kind {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrBufferType, gb.kind, kind)
	}
	if gb.n != n {
		return nil, fmt.Errorf("%w: buffer holds %d, transfer has %d", ErrBufferSize, gb.n, n)
	}
	return gb, nil
}

func (d *GLDevice) write(gb *glBuffer, ptr interface{}) error {
	if gb.n == 0 {
		return nil
	}
	return d.do(func() error {
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, gb.id)
		gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, gb.n*gb.elem, gl.Ptr(ptr))
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
		return glError("write")
	})
}

func (d *GLDevice) read(gb *glBuffer, ptr interface{}) error {
	if gb.n == 0 {
		return nil
	}
	return d.do(func() error {
		gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, gb.id)
		gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, gb.n*gb.elem, gl.Ptr(ptr))
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
		return glError("read")
	})
}

func (d *GLDevice) WriteVec4(b Buffer, data []Vec4) error {
	gb, err := d.buffer(b, ParamVec4Buffer, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	return d.write(gb, &data[0][0])
}

func (d *GLDevice) WriteFloat(b Buffer, data []float32) error {
	gb, err := d.buffer(b, ParamFloatBuffer, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	return d.write(gb, &data[0])
}

func (d *GLDevice) ReadVec4(b Buffer, dst []Vec4) error {
	gb, err := d.buffer(b, ParamVec4Buffer, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}
	return d.read(gb, &dst[0][0])
}

func (d *GLDevice) ReadFloat(b Buffer, dst []float32) error {
	gb, err := d.buffer(b, ParamFloatBuffer, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}
	return d.read(gb, &dst[0])
}

func (d *GLDevice) Finish() error {
	return d.do(func() error {
		gl.Finish()
		return glError("finish")
	})
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("compute: opengl %s: error 0x%x", op, code)
	}
	return nil
}

type glKernel struct {
	dev      *GLDevice
	name     string
	program  uint32
	args     map[int]interface{}
	released bool
}

func (k *glKernel) Name() string { return k.name }

func (k *glKernel) Release() {
	if k.released {
		return
	}
	k.released = true
	k.dev.do(func() error {
		gl.DeleteProgram(k.program)
		return nil
	})
}

func (k *glKernel) SetArg(index int, value interface{}) error {
	if k.released {
		return ErrReleased
	}
	switch v := value.(type) {
	case int32, float32:
	case *glBuffer:
		if v.released {
			return ErrReleased
		}
		if v.dev != k.dev {
			return ErrForeignBuffer
		}
	default:
		return fmt.Errorf("%w: %s argument %d has unsupported type %T", ErrArgument, k.name, index, value)
	}
	k.args[index] = value
	return nil
}

func (k *glKernel) Dispatch(globalSize int) error {
	if k.released {
		return ErrReleased
	}
	return k.dev.do(func() error {
		gl.UseProgram(k.program)
		for index, value := range k.args {
			switch v := value.(type) {
			case int32:
				gl.Uniform1i(int32(index), v)
			case float32:
				gl.Uniform1f(int32(index), v)
			case *glBuffer:
				gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, uint32(index), v.id)
			}
		}

		numGroups := (globalSize + 255) / 256
		if numGroups > 0 {
			gl.DispatchCompute(uint32(numGroups), 1, 1)
		}
		gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
		return glError("dispatch " + k.name)
	})
}
