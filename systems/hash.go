// Package systems provides the data-parallel stages of the SPH pipeline.
package systems

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Spatial hash primes.
const (
	primeX uint32 = 73856093
	primeY uint32 = 19349663
	primeZ uint32 = 83492791
)

// Jitter shifts and optionally mirrors the hash grid for one step.
type Jitter struct {
	Offset mgl32.Vec3
	Flip   bool
}

// SpatialHasher maps positions to buckets of a uniform grid.
type SpatialHasher struct {
	cellSize   float32
	invCell    float32
	numBuckets uint32
}

// NewSpatialHasher creates a hasher with the given cell edge and bucket count.
func NewSpatialHasher(cellSize float32, numBuckets int) *SpatialHasher {
	return &SpatialHasher{
		cellSize:   cellSize,
		invCell:    1 / cellSize,
		numBuckets: uint32(numBuckets),
	}
}

// CellSize returns the grid cell edge.
func (h *SpatialHasher) CellSize() float32 { return h.cellSize }

// NumBuckets returns the bucket count.
func (h *SpatialHasher) NumBuckets() int { return int(h.numBuckets) }

// Cell returns the integer grid coordinates of p under jitter j.
func (h *SpatialHasher) Cell(p mgl32.Vec3, j Jitter) (int32, int32, int32) {
	if j.Flip {
		p = p.Mul(-1)
	}
	p = p.Add(j.Offset)
	return floorToInt(p[0] * h.invCell), floorToInt(p[1] * h.invCell), floorToInt(p[2] * h.invCell)
}

// CellKey packs cell coordinates into one comparable value.
func CellKey(cx, cy, cz int32) [3]int32 { return [3]int32{cx, cy, cz} }

// HashCell hashes integer cell coordinates into [0, numBuckets).
func (h *SpatialHasher) HashCell(cx, cy, cz int32) uint32 {
	k := uint32(cx)*primeX ^ uint32(cy)*primeY ^ uint32(cz)*primeZ
	return k % h.numBuckets
}

// Hash returns the bucket of p under jitter j.
func (h *SpatialHasher) Hash(p mgl32.Vec3, j Jitter) uint32 {
	return h.HashCell(h.Cell(p, j))
}

func floorToInt(v float32) int32 {
	return int32(math.Floor(float64(v)))
}

// JitterSource produces the per-step grid jitter. With jitter disabled it
// always yields the zero value.
type JitterSource struct {
	rng      *rand.Rand
	cellSize float32
	enabled  bool
	current  Jitter
}

// NewJitterSource creates a source seeded with seed. The same seed yields the
// same sequence.
func NewJitterSource(seed int64, cellSize float32, enabled bool) *JitterSource {
	return &JitterSource{
		rng:      rand.New(rand.NewSource(seed)),
		cellSize: cellSize,
		enabled:  enabled,
	}
}

// Advance draws the jitter for the next step and returns it.
func (s *JitterSource) Advance() Jitter {
	if !s.enabled {
		s.current = Jitter{}
		return s.current
	}
	s.current = Jitter{
		Offset: mgl32.Vec3{
			s.rng.Float32() * s.cellSize,
			s.rng.Float32() * s.cellSize,
			s.rng.Float32() * s.cellSize,
		},
		Flip: s.rng.Intn(2) == 1,
	}
	return s.current
}

// Current returns the jitter drawn by the last Advance.
func (s *JitterSource) Current() Jitter { return s.current }
