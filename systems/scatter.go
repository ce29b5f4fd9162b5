package systems

import (
	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// Scatter copies each particle to its bucket-ordered slot and records the
// inverse mapping, one thread per particle. After it runs every bucket's
// members occupy [Offsets[b], Offsets[b]+count) of sorted.
func Scatter(dev *compute.Device, particles, sorted *components.ParticleBuffer, inverse []uint32, counter *BucketCounter, offsets []uint32) {
	dev.DispatchThreads(particles.Len(), func(g compute.Group) {
		for l := 0; l < g.Count; l++ {
			i := g.Base + l
			slot := int(offsets[counter.Hashes[i]] + counter.LocalSlot[i])
			sorted.CopyParticle(slot, particles, i)
			inverse[slot] = uint32(i)
		}
	})
}
