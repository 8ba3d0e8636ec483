package compute

import "math"

// NoLimit marks a particle that does not constrain the time step.
const NoLimit = math.MaxFloat32

// Entry points of the oscillator program.
const (
	DriveEntry     = "drive"
	IntegrateEntry = "integrate"
)

// Argument slots of the drive kernel.
const (
	DriveArgCount = iota
	DriveArgX
	DriveArgU
	DriveArgA
	DriveArgD
	DriveArgLimit
	DriveArgAmplitude
	DriveArgOmega
	DriveArgTime
	DriveArgCourant
)

// Argument slots of the integrate kernel.
const (
	IntegrateArgCount = iota
	IntegrateArgX
	IntegrateArgU
	IntegrateArgA
	IntegrateArgDt
)

// DriveSource sets every particle's acceleration to the oscillatory field and
// writes its Courant limit. Buffer bindings and uniform locations equal the
// argument slots.
var DriveSource = Source{
	Entry: DriveEntry,
	Text: `#version 430
layout(local_size_x = 256) in;

layout(std430, binding = 1) readonly buffer Positions { vec4 x[]; };
layout(std430, binding = 2) readonly buffer Velocities { vec4 u[]; };
layout(std430, binding = 3) writeonly buffer Accelerations { vec4 a[]; };
layout(std430, binding = 4) readonly buffer Diameters { float d[]; };
layout(std430, binding = 5) writeonly buffer Limits { float limit[]; };

layout(location = 0) uniform int n;
layout(location = 6) uniform float amplitude;
layout(location = 7) uniform float omega;
layout(location = 8) uniform float t;
layout(location = 9) uniform float courant;

const float NO_LIMIT = 3.402823466e+38;

void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i >= uint(n)) {
		return;
	}
	a[i] = vec4(amplitude * cos(omega * t), 0.0, amplitude * cos(1.0 / omega * t), 0.0);

	float speed = length(u[i].xyz);
	limit[i] = speed == 0.0 ? NO_LIMIT : courant * d[i] / speed;
}
`,
}

// IntegrateSource advances movable particles (x.w != 0) by dt.
var IntegrateSource = Source{
	Entry: IntegrateEntry,
	Text: `#version 430
layout(local_size_x = 256) in;

layout(std430, binding = 1) buffer Positions { vec4 x[]; };
layout(std430, binding = 2) buffer Velocities { vec4 u[]; };
layout(std430, binding = 3) readonly buffer Accelerations { vec4 a[]; };

layout(location = 0) uniform int n;
layout(location = 4) uniform float dt;

void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i >= uint(n) || x[i].w == 0.0) {
		return;
	}
	vec3 acc = a[i].xyz;
	x[i].xyz += u[i].xyz * dt + acc * dt * dt * 0.5;
	u[i].xyz += acc * dt;
}
`,
}

func init() {
	RegisterHostKernel(DriveEntry, []ParamKind{
		DriveArgCount:     ParamInt,
		DriveArgX:         ParamVec4Buffer,
		DriveArgU:         ParamVec4Buffer,
		DriveArgA:         ParamVec4Buffer,
		DriveArgD:         ParamFloatBuffer,
		DriveArgLimit:     ParamFloatBuffer,
		DriveArgAmplitude: ParamFloat,
		DriveArgOmega:     ParamFloat,
		DriveArgTime:      ParamFloat,
		DriveArgCourant:   ParamFloat,
	}, driveKernel)

	RegisterHostKernel(IntegrateEntry, []ParamKind{
		IntegrateArgCount: ParamInt,
		IntegrateArgX:     ParamVec4Buffer,
		IntegrateArgU:     ParamVec4Buffer,
		IntegrateArgA:     ParamVec4Buffer,
		IntegrateArgDt:    ParamFloat,
	}, integrateKernel)
}

func driveKernel(i int, args Args) {
	if i >= int(args.Int(DriveArgCount)) {
		return
	}
	amp := float64(args.Float(DriveArgAmplitude))
	omega := float64(args.Float(DriveArgOmega))
	t := float64(args.Float(DriveArgTime))

	a := args.Vec4(DriveArgA)
	a[i] = Vec4{
		float32(amp * math.Cos(omega*t)),
		0,
		float32(amp * math.Cos(1/omega*t)),
		0,
	}

	u := args.Vec4(DriveArgU)[i]
	speed := math.Sqrt(float64(u[0]*u[0] + u[1]*u[1] + u[2]*u[2]))
	limit := args.Floats(DriveArgLimit)
	if speed == 0 {
		limit[i] = NoLimit
		return
	}
	limit[i] = float32(float64(args.Float(DriveArgCourant)) * float64(args.Floats(DriveArgD)[i]) / speed)
}

func integrateKernel(i int, args Args) {
	if i >= int(args.Int(IntegrateArgCount)) {
		return
	}
	x := args.Vec4(IntegrateArgX)
	if x[i][3] == 0 {
		return
	}
	u := args.Vec4(IntegrateArgU)
	a := args.Vec4(IntegrateArgA)[i]
	dt := args.Float(IntegrateArgDt)
	for c := 0; c < 3; c++ {
		x[i][c] += u[i][c]*dt + a[c]*dt*dt/2
		u[i][c] += a[c] * dt
	}
}
