//go:build opengl

package compute_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/demsim/internal/compute"
	"github.com/san-kum/demsim/internal/dem"
)

var _ = Describe("GLDevice", func() {
	var dev *compute.GLDevice

	BeforeEach(func() {
		dev = compute.NewGLDevice()
	})

	AfterEach(func() {
		dev.Cleanup()
	})

	It("reports a missing context instead of calling into GL", func() {
		if dev.Available() {
			Skip("a GL 4.3 context is available")
		}
		Expect(dev.Name()).To(Equal("opengl (not available)"))
		_, err := dev.Build(compute.DriveSource)
		Expect(errors.Is(err, dem.ErrDeviceUnavailable)).To(BeTrue())
		_, err = dev.NewVec4Buffer(4)
		Expect(errors.Is(err, dem.ErrDeviceUnavailable)).To(BeTrue())
		Expect(dev.Finish()).To(MatchError(dem.ErrDeviceUnavailable))
	})

	It("serves goroutines other than the one that created it", func() {
		if !dev.Available() {
			Skip("no GL 4.3 context on this machine")
		}
		buf, err := dev.NewFloatBuffer(8)
		Expect(err).NotTo(HaveOccurred())
		defer buf.Release()

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for g := range errs {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				in := make([]float32, 8)
				for i := range in {
					in[i] = float32(g*10 + i)
				}
				if err := dev.WriteFloat(buf, in); err != nil {
					errs[g] = err
					return
				}
				out := make([]float32, 8)
				errs[g] = dev.ReadFloat(buf, out)
			}(g)
		}
		wg.Wait()
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("builds the oscillator programs", func() {
		if !dev.Available() {
			Skip("no GL 4.3 context on this machine")
		}
		for _, src := range []compute.Source{compute.DriveSource, compute.IntegrateSource} {
			k, err := dev.Build(src)
			Expect(err).NotTo(HaveOccurred())
			k.Release()
		}
	})

	It("rejects calls after Cleanup", func() {
		if !dev.Available() {
			Skip("no GL 4.3 context on this machine")
		}
		dev.Cleanup()
		_, err := dev.NewVec4Buffer(1)
		Expect(err).To(MatchError(compute.ErrReleased))
	})
})
