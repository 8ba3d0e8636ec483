package compute_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/demsim/internal/compute"
	"github.com/san-kum/demsim/internal/dem"
)

var _ = Describe("HostDevice", func() {
	var dev *compute.HostDevice

	BeforeEach(func() {
		dev = compute.NewHostDevice(3)
	})

	AfterEach(func() {
		dev.Cleanup()
	})

	Describe("Build", func() {
		It("builds the registered programs", func() {
			for _, src := range []compute.Source{compute.DriveSource, compute.IntegrateSource} {
				k, err := dev.Build(src)
				Expect(err).NotTo(HaveOccurred())
				Expect(k.Name()).To(Equal(src.Entry))
				k.Release()
			}
		})

		It("rejects an unknown entry point", func() {
			_, err := dev.Build(compute.Source{Entry: "collide", Text: "void main() {}"})
			var be *compute.BuildError
			Expect(err).To(BeAssignableToTypeOf(be))
			be = err.(*compute.BuildError)
			Expect(be.Entry).To(Equal("collide"))
			Expect(be.Log).To(ContainSubstring("no host implementation"))
		})

		It("reports unbalanced source with its line", func() {
			src := compute.Source{Entry: compute.DriveEntry, Text: "void main() {\n\ta[i] = b[i;\n}\n"}
			_, err := dev.Build(src)
			Expect(err).To(HaveOccurred())
			be := err.(*compute.BuildError)
			Expect(be.Source).To(Equal(src.Text))
			Expect(be.Log).To(HavePrefix("3: error: unexpected '}'"))
			Expect(be.Error()).To(ContainSubstring(`build of "drive" failed`))
		})

		It("ignores brackets in line comments", func() {
			src := compute.Source{Entry: compute.IntegrateEntry, Text: "// {(\nvoid main() {}\n"}
			_, err := dev.Build(src)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects empty source", func() {
			_, err := dev.Build(compute.Source{Entry: compute.DriveEntry})
			Expect(err).To(HaveOccurred())
			Expect(err.(*compute.BuildError).Log).To(ContainSubstring("empty program source"))
		})
	})

	Describe("buffers", func() {
		It("round-trips data", func() {
			b, err := dev.NewVec4Buffer(2)
			Expect(err).NotTo(HaveOccurred())
			in := []compute.Vec4{{1, 2, 3, 4}, {5, 6, 7, 8}}
			Expect(dev.WriteVec4(b, in)).To(Succeed())

			out := make([]compute.Vec4, 2)
			Expect(dev.ReadVec4(b, out)).To(Succeed())
			Expect(out).To(Equal(in))
			Expect(b.Len()).To(Equal(2))
		})

		It("checks size and element type", func() {
			b, _ := dev.NewFloatBuffer(3)
			Expect(dev.WriteFloat(b, []float32{1})).To(MatchError(compute.ErrBufferSize))
			Expect(dev.WriteVec4(b, make([]compute.Vec4, 3))).To(MatchError(compute.ErrBufferType))
		})

		It("refuses released and foreign buffers", func() {
			b, _ := dev.NewFloatBuffer(1)
			b.Release()
			Expect(dev.ReadFloat(b, make([]float32, 1))).To(MatchError(compute.ErrReleased))

			other := compute.NewHostDevice(1)
			ob, _ := other.NewFloatBuffer(1)
			Expect(dev.WriteFloat(ob, []float32{1})).To(MatchError(compute.ErrForeignBuffer))
		})
	})

	Describe("kernels", func() {
		var (
			n         = 5
			drive     compute.Kernel
			integrate compute.Kernel
			x, u, a   compute.Buffer
			d, limit  compute.Buffer
		)

		BeforeEach(func() {
			var err error
			drive, err = dev.Build(compute.DriveSource)
			Expect(err).NotTo(HaveOccurred())
			integrate, err = dev.Build(compute.IntegrateSource)
			Expect(err).NotTo(HaveOccurred())

			x, _ = dev.NewVec4Buffer(n)
			u, _ = dev.NewVec4Buffer(n)
			a, _ = dev.NewVec4Buffer(n)
			d, _ = dev.NewFloatBuffer(n)
			limit, _ = dev.NewFloatBuffer(n)

			xs := make([]compute.Vec4, n)
			us := make([]compute.Vec4, n)
			ds := make([]float32, n)
			for i := range xs {
				xs[i] = compute.Vec4{float32(i), 0, 0, 1}
				us[i] = compute.Vec4{float32(i), 0, 0, 0}
				ds[i] = 0.1
			}
			xs[n-1][3] = 0
			Expect(dev.WriteVec4(x, xs)).To(Succeed())
			Expect(dev.WriteVec4(u, us)).To(Succeed())
			Expect(dev.WriteFloat(d, ds)).To(Succeed())
		})

		AfterEach(func() {
			for _, b := range []compute.Buffer{x, u, a, d, limit} {
				b.Release()
			}
			drive.Release()
			integrate.Release()
		})

		bindDrive := func(t float32) {
			args := []interface{}{int32(n), x, u, a, d, limit, float32(0.5), float32(2), t, float32(0.2)}
			for i, v := range args {
				Expect(drive.SetArg(i, v)).To(Succeed())
			}
		}

		It("validates argument slots and types", func() {
			Expect(drive.SetArg(-1, int32(1))).To(MatchError(compute.ErrArgument))
			Expect(drive.SetArg(compute.DriveArgCourant+1, float32(1))).To(MatchError(compute.ErrArgument))
			Expect(drive.SetArg(compute.DriveArgCount, float32(1))).To(MatchError(compute.ErrArgument))
			Expect(drive.SetArg(compute.DriveArgD, x)).To(MatchError(compute.ErrArgument))
			Expect(drive.SetArg(compute.DriveArgTime, 1.0)).To(MatchError(compute.ErrArgument))
		})

		It("refuses to dispatch with unbound arguments", func() {
			Expect(drive.SetArg(compute.DriveArgCount, int32(n))).To(Succeed())
			Expect(drive.Dispatch(n)).To(MatchError(compute.ErrArgument))
		})

		It("writes the drive field and Courant limits", func() {
			bindDrive(0.25)
			Expect(drive.Dispatch(n)).To(Succeed())
			Expect(dev.Finish()).To(Succeed())

			acc := make([]compute.Vec4, n)
			lim := make([]float32, n)
			Expect(dev.ReadVec4(a, acc)).To(Succeed())
			Expect(dev.ReadFloat(limit, lim)).To(Succeed())

			for i := range acc {
				Expect(acc[i][0]).To(BeNumerically("~", 0.5*math.Cos(0.5), 1e-6))
				Expect(acc[i][1]).To(BeZero())
				Expect(acc[i][2]).To(BeNumerically("~", 0.5*math.Cos(0.125), 1e-6))
			}
			Expect(lim[0]).To(Equal(float32(compute.NoLimit)))
			Expect(lim[2]).To(BeNumerically("~", 0.2*0.1/2, 1e-7))
		})

		It("moves only flagged particles", func() {
			bindDrive(0)
			Expect(drive.Dispatch(n)).To(Succeed())
			args := []interface{}{int32(n), x, u, a, float32(0.1)}
			for i, v := range args {
				Expect(integrate.SetArg(i, v)).To(Succeed())
			}
			Expect(integrate.Dispatch(n)).To(Succeed())

			xs := make([]compute.Vec4, n)
			Expect(dev.ReadVec4(x, xs)).To(Succeed())
			Expect(xs[1][0]).To(BeNumerically("~", 1+0.1+0.5*0.01/2, 1e-6))
			Expect(xs[1][2]).To(BeNumerically("~", 0.5*0.01/2, 1e-6))
			Expect(xs[n-1]).To(Equal(compute.Vec4{float32(n - 1), 0, 0, 0}))
		})

		It("rejects a released kernel", func() {
			integrate.Release()
			Expect(integrate.Dispatch(n)).To(MatchError(compute.ErrReleased))
		})
	})
})

var _ = Describe("Select", func() {
	It("opens the host device", func() {
		d, err := compute.Select("host")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Available()).To(BeTrue())
		d.Cleanup()
	})

	It("falls back to an available device", func() {
		d, err := compute.Select("auto")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Available()).To(BeTrue())
		d.Cleanup()
	})

	It("reports unknown devices", func() {
		_, err := compute.Select("cuda")
		Expect(err).To(MatchError(dem.ErrNoDevice))
	})

	It("lists compiled devices", func() {
		Expect(compute.Names()).To(ContainElement("host"))
	})
})
