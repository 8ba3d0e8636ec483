package sim

import (
	"sync"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/physics"
)

type partial struct {
	accel []dem.Vector
	stats dem.StepStats
}

// contactPass adds every pairwise contact force to the particles'
// accelerations. Each unordered pair is visited exactly once.
func contactPass(ps []dem.Particle, damping float64, workers int, pool *accelPool) dem.StepStats {
	n := len(ps)
	if workers <= 1 || n < 2*workers {
		return contactRows(ps, damping, 0, 1, nil)
	}

	parts := make([]partial, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			acc := pool.Get()
			parts[worker] = partial{
				accel: acc,
				stats: contactRows(ps, damping, worker, workers, acc),
			}
		}(w)
	}
	wg.Wait()

	var stats dem.StepStats
	for _, part := range parts {
		for i := range ps {
			ps[i].Acceleration = ps[i].Acceleration.Add(part.accel[i])
		}
		stats.Contacts += part.stats.Contacts
		stats.Coincident += part.stats.Coincident
		pool.Put(part.accel)
	}
	return stats
}

// contactRows handles rows first, first+stride, ... Rows are interleaved so
// the triangular i<j workload spreads evenly. With acc nil forces are applied
// directly to the particles.
func contactRows(ps []dem.Particle, damping float64, first, stride int, acc []dem.Vector) dem.StepStats {
	var stats dem.StepStats
	n := len(ps)
	for i := first; i < n-1; i += stride {
		a := &ps[i]
		ma := a.Mass()
		for j := i + 1; j < n; j++ {
			b := &ps[j]
			f, c := physics.ContactForce(a, b, damping)
			switch c {
			case physics.NoContact:
				continue
			case physics.Coincident:
				stats.Coincident++
				continue
			}
			stats.Contacts++

			da := f.Div(ma)
			db := f.Neg().Div(b.Mass())
			if acc == nil {
				a.Acceleration = a.Acceleration.Add(da)
				b.Acceleration = b.Acceleration.Add(db)
			} else {
				acc[i] = acc[i].Add(da)
				acc[j] = acc[j].Add(db)
			}
		}
	}
	return stats
}
