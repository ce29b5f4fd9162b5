package systems

import (
	"sync/atomic"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// BucketCounter builds the per-bucket histogram and each particle's slot
// within its bucket.
type BucketCounter struct {
	Histogram []atomic.Uint32 // particles per bucket
	Hashes    []uint32        // bucket of each particle, by original index
	LocalSlot []uint32        // pre-increment histogram value at insert
}

// NewBucketCounter allocates counters for numBuckets buckets and n particles.
func NewBucketCounter(numBuckets, n int) *BucketCounter {
	return &BucketCounter{
		Histogram: make([]atomic.Uint32, numBuckets),
		Hashes:    make([]uint32, n),
		LocalSlot: make([]uint32, n),
	}
}

// Reset zeroes the histogram, one thread per bucket.
func (c *BucketCounter) Reset(dev *compute.Device) {
	dev.DispatchThreads(len(c.Histogram), func(g compute.Group) {
		for l := 0; l < g.Count; l++ {
			c.Histogram[g.Base+l].Store(0)
		}
	})
}

// Insert hashes every particle and claims its slot, one thread per particle.
// Slot order inside a bucket depends on scheduling and carries no meaning.
func (c *BucketCounter) Insert(dev *compute.Device, particles *components.ParticleBuffer, hasher *SpatialHasher, j Jitter) {
	dev.DispatchThreads(particles.Len(), func(g compute.Group) {
		for l := 0; l < g.Count; l++ {
			i := g.Base + l
			h := hasher.Hash(particles.Position(i), j)
			c.Hashes[i] = h
			c.LocalSlot[i] = c.Histogram[h].Add(1) - 1
		}
	})
}

// Count returns the number of particles in bucket b.
func (c *BucketCounter) Count(b int) uint32 {
	return c.Histogram[b].Load()
}

// Len returns the bucket count.
func (c *BucketCounter) Len() int {
	return len(c.Histogram)
}
