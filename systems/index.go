package systems

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// SpatialIndex is the per-step counting-sort index over a particle set.
type SpatialIndex struct {
	Hasher  *SpatialHasher
	Counter *BucketCounter
	Scanner *PrefixScanner

	Sorted  *components.ParticleBuffer // particles in bucket order
	Inverse []uint32                   // Inverse[slot] = original index

	// Sorted positions as they were hashed. Integrate moves Sorted in place,
	// so only built still matches Offsets until the next scatter.
	built  []float32
	jitter Jitter
}

// NewSpatialIndex allocates an index for n particles.
func NewSpatialIndex(n, numBuckets, width int, cellSize float32) (*SpatialIndex, error) {
	scanner, err := NewPrefixScanner(numBuckets, width)
	if err != nil {
		return nil, fmt.Errorf("creating prefix scanner: %w", err)
	}
	return &SpatialIndex{
		Hasher:  NewSpatialHasher(cellSize, numBuckets),
		Counter: NewBucketCounter(numBuckets, n),
		Scanner: scanner,
		Sorted:  components.NewParticleBuffer(n),
		Inverse: make([]uint32, n),
		built:   make([]float32, n*components.Stride),
	}, nil
}

// Build runs reset, insert, scan and scatter back to back. The solver calls
// the stages one by one for timing; tests and tools use Build.
func (x *SpatialIndex) Build(dev *compute.Device, particles *components.ParticleBuffer, j Jitter) {
	x.SetJitter(j)
	x.Counter.Reset(dev)
	x.Counter.Insert(dev, particles, x.Hasher, j)
	x.Scanner.Scan(dev, x.Counter)
	x.Scatter(dev, particles)
}

// SetJitter records the jitter the index was built with. Queries must use
// the same jitter as the insert pass.
func (x *SpatialIndex) SetJitter(j Jitter) { x.jitter = j }

// Jitter returns the jitter of the current build.
func (x *SpatialIndex) Jitter() Jitter { return x.jitter }

// Scatter reorders particles into Sorted using the scanned offsets.
func (x *SpatialIndex) Scatter(dev *compute.Device, particles *components.ParticleBuffer) {
	Scatter(dev, particles, x.Sorted, x.Inverse, x.Counter, x.Scanner.Offsets)
	copy(x.built, x.Sorted.Pos)
}

// BuiltPosition returns the position sorted slot s had when it was hashed.
func (x *SpatialIndex) BuiltPosition(s int) mgl32.Vec3 {
	o := s * components.Stride
	return mgl32.Vec3{x.built[o], x.built[o+1], x.built[o+2]}
}

// BucketOf returns the bucket sorted slot s was inserted into.
func (x *SpatialIndex) BucketOf(s int) uint32 {
	return x.Counter.Hashes[x.Inverse[s]]
}

// BucketRange returns the sorted slot range [begin, end) of bucket b.
func (x *SpatialIndex) BucketRange(b uint32) (int, int) {
	begin := int(x.Scanner.Offsets[b])
	return begin, begin + int(x.Counter.Count(int(b)))
}
