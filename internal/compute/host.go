package compute

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParamKind is the type of one kernel argument slot.
type ParamKind uint8

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamVec4Buffer
	ParamFloatBuffer
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamVec4Buffer:
		return "vec4[]"
	case ParamFloatBuffer:
		return "float[]"
	default:
		return fmt.Sprintf("param(%d)", uint8(k))
	}
}

// Args gives a host kernel typed access to its bound arguments.
type Args struct {
	values []interface{}
}

func (a Args) Int(i int) int32        { return a.values[i].(int32) }
func (a Args) Float(i int) float32    { return a.values[i].(float32) }
func (a Args) Vec4(i int) []Vec4      { return a.values[i].(*hostBuffer).vec4 }
func (a Args) Floats(i int) []float32 { return a.values[i].(*hostBuffer).f32 }

// HostKernelFunc runs one work-item.
type HostKernelFunc func(gid int, args Args)

type hostKernelDef struct {
	params []ParamKind
	run    HostKernelFunc
}

var hostKernels = map[string]hostKernelDef{}

// RegisterHostKernel makes entry buildable on the host device.
func RegisterHostKernel(entry string, params []ParamKind, run HostKernelFunc) {
	hostKernels[entry] = hostKernelDef{params: params, run: run}
}

// HostDevice executes kernels on the CPU. Commands run asynchronously, one at
// a time, in submission order.
type HostDevice struct {
	workers int

	mu       sync.Mutex
	inflight *errgroup.Group
}

func NewHostDevice(workers int) *HostDevice {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &HostDevice{workers: workers}
}

func (d *HostDevice) Name() string    { return fmt.Sprintf("host (%d workers)", d.workers) }
func (d *HostDevice) Available() bool { return true }

func (d *HostDevice) Cleanup() {
	_ = d.Finish()
}

func (d *HostDevice) Build(src Source) (Kernel, error) {
	var log strings.Builder
	def, ok := hostKernels[src.Entry]
	if !ok {
		fmt.Fprintf(&log, "error: no host implementation for entry point %q\n", src.Entry)
	}
	if strings.TrimSpace(src.Text) == "" {
		log.WriteString("error: empty program source\n")
	}
	checkBalance(src.Text, &log)
	if log.Len() > 0 {
		return nil, &BuildError{Device: d.Name(), Entry: src.Entry, Source: src.Text, Log: log.String()}
	}
	return &hostKernel{
		dev:  d,
		name: src.Entry,
		def:  def,
		args: make([]interface{}, len(def.params)),
	}, nil
}

// checkBalance reports unmatched brackets, ignoring line comments.
func checkBalance(text string, log *strings.Builder) {
	type open struct {
		r    rune
		line int
	}
	pairs := map[rune]rune{')': '(', '}': '{', ']': '['}
	var stack []open
	line := 1
	comment := false
	prev := rune(0)
	for _, r := range text {
		switch {
		case r == '\n':
			line++
			comment = false
		case comment:
		case r == '/' && prev == '/':
			comment = true
		case r == '(' || r == '{' || r == '[':
			stack = append(stack, open{r, line})
		case r == ')' || r == '}' || r == ']':
			if len(stack) == 0 || stack[len(stack)-1].r != pairs[r] {
				fmt.Fprintf(log, "%d: error: unexpected '%c'\n", line, r)
				return
			}
			stack = stack[:len(stack)-1]
		}
		prev = r
	}
	for _, o := range stack {
		fmt.Fprintf(log, "%d: error: unclosed '%c'\n", o.line, o.r)
	}
}

// Finish waits for the command in flight, if any.
func (d *HostDevice) Finish() error {
	d.mu.Lock()
	g := d.inflight
	d.inflight = nil
	d.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

func (d *HostDevice) enqueue(cmd func() error) error {
	if err := d.Finish(); err != nil {
		return err
	}
	g := new(errgroup.Group)
	g.Go(cmd)
	d.mu.Lock()
	d.inflight = g
	d.mu.Unlock()
	return nil
}

func (d *HostDevice) run(n int, fn HostKernelFunc, args Args) error {
	if n == 0 {
		return nil
	}
	var g errgroup.Group
	chunk := (n + d.workers - 1) / d.workers
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("compute: host kernel panicked in work-items [%d,%d): %v", start, end, r)
				}
			}()
			for gid := start; gid < end; gid++ {
				fn(gid, args)
			}
			return nil
		})
	}
	return g.Wait()
}

type hostBuffer struct {
	dev      *HostDevice
	kind     ParamKind
	vec4     []Vec4
	f32      []float32
	n        int
	released bool
}

func (b *hostBuffer) Len() int { return b.n }

func (b *hostBuffer) Release() {
	b.released = true
	b.vec4 = nil
	b.f32 = nil
}

func (d *HostDevice) NewVec4Buffer(n int) (Buffer, error) {
	return &hostBuffer{dev: d, kind: ParamVec4Buffer, vec4: make([]Vec4, n), n: n}, nil
}

func (d *HostDevice) NewFloatBuffer(n int) (Buffer, error) {
	return &hostBuffer{dev: d, kind: ParamFloatBuffer, f32: make([]float32, n), n: n}, nil
}

func (d *HostDevice) buffer(b Buffer, kind ParamKind, n int) (*hostBuffer, error) {
	hb, ok := b.(*hostBuffer)
	if !ok || hb.dev != d {
		return nil, ErrForeignBuffer
	}
	if hb.released {
		return nil, ErrReleased
	}
	if hb.kind != kind {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrBufferType, hb.kind, kind)
	}
	if hb.n != n {
		return nil, fmt.Errorf("%w: buffer holds %d, transfer has %d", ErrBufferSize, hb.n, n)
	}
	return hb, d.Finish()
}

func (d *HostDevice) WriteVec4(b Buffer, data []Vec4) error {
	hb, err := d.buffer(b, ParamVec4Buffer, len(data))
	if err != nil {
		return err
	}
	copy(hb.vec4, data)
	return nil
}

func (d *HostDevice) WriteFloat(b Buffer, data []float32) error {
	hb, err := d.buffer(b, ParamFloatBuffer, len(data))
	if err != nil {
		return err
	}
	copy(hb.f32, data)
	return nil
}

func (d *HostDevice) ReadVec4(b Buffer, dst []Vec4) error {
	hb, err := d.buffer(b, ParamVec4Buffer, len(dst))
	if err != nil {
		return err
	}
	copy(dst, hb.vec4)
	return nil
}

func (d *HostDevice) ReadFloat(b Buffer, dst []float32) error {
	hb, err := d.buffer(b, ParamFloatBuffer, len(dst))
	if err != nil {
		return err
	}
	copy(dst, hb.f32)
	return nil
}

type hostKernel struct {
	dev      *HostDevice
	name     string
	def      hostKernelDef
	args     []interface{}
	released bool
}

func (k *hostKernel) Name() string { return k.name }

func (k *hostKernel) Release() {
	k.released = true
	k.args = nil
}

func (k *hostKernel) SetArg(index int, value interface{}) error {
	if k.released {
		return ErrReleased
	}
	if index < 0 || index >= len(k.def.params) {
		return fmt.Errorf("%w: %s has %d arguments, got index %d", ErrArgument, k.name, len(k.def.params), index)
	}
	want := k.def.params[index]
	switch v := value.(type) {
	case int32:
		if want != ParamInt {
			return fmt.Errorf("%w: %s argument %d wants %s, got int", ErrArgument, k.name, index, want)
		}
	case float32:
		if want != ParamFloat {
			return fmt.Errorf("%w: %s argument %d wants %s, got float", ErrArgument, k.name, index, want)
		}
	case *hostBuffer:
		if v.dev != k.dev {
			return ErrForeignBuffer
		}
		if v.released {
			return ErrReleased
		}
		if want != v.kind {
			return fmt.Errorf("%w: %s argument %d wants %s, got %s", ErrArgument, k.name, index, want, v.kind)
		}
	default:
		return fmt.Errorf("%w: %s argument %d has unsupported type %T", ErrArgument, k.name, index, value)
	}
	k.args[index] = value
	return nil
}

func (k *hostKernel) Dispatch(globalSize int) error {
	if k.released {
		return ErrReleased
	}
	for i, v := range k.args {
		if v == nil {
			return fmt.Errorf("%w: %s argument %d not set", ErrArgument, k.name, i)
		}
		if b, ok := v.(*hostBuffer); ok && b.released {
			return fmt.Errorf("%w: %s argument %d", ErrReleased, k.name, i)
		}
	}
	args := Args{values: append([]interface{}(nil), k.args...)}
	run := k.def.run
	return k.dev.enqueue(func() error {
		return k.dev.run(globalSize, run, args)
	})
}
