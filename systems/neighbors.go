package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
)

// Neighbor holds a candidate within the query radius with precomputed
// spatial data.
type Neighbor struct {
	Slot   int        // Sorted slot of the neighbor
	Delta  mgl32.Vec3 // Query position minus neighbor position
	DistSq float32    // Squared distance (avoid sqrt in hot path)
}

// QueryStats counts the work done by one query.
type QueryStats struct {
	Accessed int // Bucket members examined
	Accepted int // Members inside the radius
}

// Add accumulates o into s.
func (s *QueryStats) Add(o QueryStats) {
	s.Accessed += o.Accessed
	s.Accepted += o.Accepted
}

// QueryInto appends every particle sharing p's bucket and lying strictly
// within radiusSq to dst and returns the updated slice. Reuse dst across
// calls to avoid allocations.
//
// Only p's own bucket is searched. True neighbors that hash elsewhere are
// missed; MeasureRecall quantifies how often.
func (x *SpatialIndex) QueryInto(dst []Neighbor, p mgl32.Vec3, radiusSq float32) ([]Neighbor, QueryStats) {
	begin, end := x.BucketRange(x.Hasher.Hash(p, x.jitter))
	return queryRange(dst, p, x.Sorted.Pos, begin, end, radiusSq)
}

// QuerySlotInto is QueryInto for sorted slot s against the index exactly as
// it was built: the slot's own bucket and hash-time positions. It stays
// valid after integration has moved Sorted, and every slot finds itself.
func (x *SpatialIndex) QuerySlotInto(dst []Neighbor, s int, radiusSq float32) ([]Neighbor, QueryStats) {
	begin, end := x.BucketRange(x.BucketOf(s))
	return queryRange(dst, x.BuiltPosition(s), x.built, begin, end, radiusSq)
}

func queryRange(dst []Neighbor, p mgl32.Vec3, pos []float32, begin, end int, radiusSq float32) ([]Neighbor, QueryStats) {
	var stats QueryStats
	for s := begin; s < end; s++ {
		o := s * components.Stride
		d := mgl32.Vec3{p[0] - pos[o], p[1] - pos[o+1], p[2] - pos[o+2]}
		distSq := d.Dot(d)
		stats.Accessed++
		if distSq < radiusSq {
			dst = append(dst, Neighbor{Slot: s, Delta: d, DistSq: distSq})
			stats.Accepted++
		}
	}
	return dst, stats
}
