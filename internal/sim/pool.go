package sim

import (
	"sync"

	"github.com/san-kum/demsim/internal/dem"
)

// accelPool recycles per-worker acceleration accumulators of one size.
type accelPool struct {
	pool sync.Pool
	size int
}

func newAccelPool(size int) *accelPool {
	return &accelPool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]dem.Vector, size)
			},
		},
	}
}

func (p *accelPool) Get() []dem.Vector {
	return p.pool.Get().([]dem.Vector)
}

func (p *accelPool) Put(a []dem.Vector) {
	if len(a) == p.size {
		for i := range a {
			a[i] = dem.Vector{}
		}
		p.pool.Put(a)
	}
}
