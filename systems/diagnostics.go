package systems

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/sphgrid/compute"
)

// HashDiagnostics summarises how well the hash grid separates particles.
// AvgCollisions is particles per used bucket, UsedRate is used over total
// buckets, AcceptRate is accepted over accessed neighbors and
// OccupancyStdDev is taken over used buckets only.
type HashDiagnostics struct {
	UsedBuckets       int     `csv:"used_buckets"`
	MaxCollisions     int     `csv:"max_collisions"`
	UniqueCells       int     `csv:"unique_cells"`
	TotalAccesses     int     `csv:"total_accesses"`
	AcceptedNeighbors int     `csv:"accepted_neighbors"`
	AvgCollisions     float64 `csv:"avg_collisions"`
	UsedRate          float64 `csv:"used_rate"`
	AcceptRate        float64 `csv:"accept_rate"`
	OccupancyStdDev   float64 `csv:"occupancy_std_dev"`
}

// LogValue implements slog.LogValuer for structured logging.
func (d HashDiagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("used_buckets", d.UsedBuckets),
		slog.Int("max_collisions", d.MaxCollisions),
		slog.Int("unique_cells", d.UniqueCells),
		slog.Int("total_accesses", d.TotalAccesses),
		slog.Int("accepted_neighbors", d.AcceptedNeighbors),
		slog.Float64("avg_collisions", d.AvgCollisions),
		slog.Float64("used_rate", d.UsedRate),
		slog.Float64("accept_rate", d.AcceptRate),
		slog.Float64("occupancy_std_dev", d.OccupancyStdDev),
	)
}

// DiagnosticsPass recomputes hash quality counters on demand. It reads the
// index of the last build as it was hashed, so the counters describe the
// grid rather than how far particles moved since.
type DiagnosticsPass struct {
	// Per-group partial counters
	used      []float64
	maxCount  []uint32
	accessed  []float64
	accepted  []float64
	neighbors [][]Neighbor
	occupancy []float64
}

// NewDiagnosticsPass allocates scratch for the given device.
func NewDiagnosticsPass(dev *compute.Device) *DiagnosticsPass {
	nb := make([][]Neighbor, dev.NumWorkers())
	for i := range nb {
		nb[i] = make([]Neighbor, 0, 64)
	}
	return &DiagnosticsPass{neighbors: nb}
}

func grow(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}

// Run walks every bucket and every particle's query range of idx.
func (p *DiagnosticsPass) Run(dev *compute.Device, idx *SpatialIndex, radiusSq float32) HashDiagnostics {
	numBuckets := idx.Counter.Len()
	n := idx.Sorted.Len()

	// Bucket occupancy, one thread per bucket
	bucketGroups := dev.GroupsFor(numBuckets)
	p.used = grow(p.used, bucketGroups)
	if cap(p.maxCount) < bucketGroups {
		p.maxCount = make([]uint32, bucketGroups)
	}
	p.maxCount = p.maxCount[:bucketGroups]
	dev.DispatchThreads(numBuckets, func(g compute.Group) {
		var used float64
		var mx uint32
		for l := 0; l < g.Count; l++ {
			c := idx.Counter.Count(g.Base + l)
			if c > 0 {
				used++
			}
			if c > mx {
				mx = c
			}
		}
		p.used[g.ID] = used
		p.maxCount[g.ID] = mx
	})

	// Query work, one thread per sorted slot
	particleGroups := dev.GroupsFor(n)
	p.accessed = grow(p.accessed, particleGroups)
	p.accepted = grow(p.accepted, particleGroups)
	dev.DispatchThreads(n, func(g compute.Group) {
		nb := p.neighbors[g.Worker]
		var stats QueryStats
		for l := 0; l < g.Count; l++ {
			var qs QueryStats
			nb, qs = idx.QuerySlotInto(nb[:0], g.Base+l, radiusSq)
			stats.Add(qs)
		}
		p.neighbors[g.Worker] = nb
		p.accessed[g.ID] = float64(stats.Accessed)
		p.accepted[g.ID] = float64(stats.Accepted)
	})

	var d HashDiagnostics
	d.UsedBuckets = int(floats.Sum(p.used))
	for _, mx := range p.maxCount {
		if int(mx) > d.MaxCollisions {
			d.MaxCollisions = int(mx)
		}
	}
	d.TotalAccesses = int(floats.Sum(p.accessed))
	d.AcceptedNeighbors = int(floats.Sum(p.accepted))
	d.UniqueCells = uniqueCells(idx)

	if d.UsedBuckets > 0 {
		d.AvgCollisions = float64(n) / float64(d.UsedBuckets)
		p.occupancy = p.occupancy[:0]
		for b := 0; b < numBuckets; b++ {
			if c := idx.Counter.Count(b); c > 0 {
				p.occupancy = append(p.occupancy, float64(c))
			}
		}
		if len(p.occupancy) > 1 {
			d.OccupancyStdDev = stat.StdDev(p.occupancy, nil)
		}
	}
	if numBuckets > 0 {
		d.UsedRate = float64(d.UsedBuckets) / float64(numBuckets)
	}
	if d.TotalAccesses > 0 {
		d.AcceptRate = float64(d.AcceptedNeighbors) / float64(d.TotalAccesses)
	}
	return d
}

// uniqueCells counts distinct grid cells occupied at hash time.
func uniqueCells(idx *SpatialIndex) int {
	seen := make(map[[3]int32]struct{})
	j := idx.Jitter()
	for s := 0; s < idx.Sorted.Len(); s++ {
		seen[CellKey(idx.Hasher.Cell(idx.BuiltPosition(s), j))] = struct{}{}
	}
	return len(seen)
}

// RecallStats compares hash-bucket search with exhaustive search. Recall is
// found over true neighbors, and 1 when there is nothing to find.
type RecallStats struct {
	TrueNeighbors int     `csv:"true_neighbors"`
	Found         int     `csv:"found"`
	Recall        float64 `csv:"recall"`
	AcceptRate    float64 `csv:"accept_rate"`
}

// MeasureRecall checks every sorted slot's hash-bucket result against an
// O(N²) distance filter over the hash-time positions. Intended for tests and
// tuning, not per step.
func MeasureRecall(dev *compute.Device, idx *SpatialIndex, radiusSq float32) RecallStats {
	n := idx.Sorted.Len()
	groups := dev.GroupsFor(n)
	truth := make([]float64, groups)
	found := make([]float64, groups)
	accessed := make([]float64, groups)
	scratch := make([][]Neighbor, dev.NumWorkers())

	dev.DispatchThreads(n, func(g compute.Group) {
		nb := scratch[g.Worker]
		for l := 0; l < g.Count; l++ {
			s := g.Base + l
			p := idx.BuiltPosition(s)
			for o := 0; o < n; o++ {
				d := p.Sub(idx.BuiltPosition(o))
				if d.Dot(d) < radiusSq {
					truth[g.ID]++
				}
			}
			var qs QueryStats
			nb, qs = idx.QuerySlotInto(nb[:0], s, radiusSq)
			found[g.ID] += float64(qs.Accepted)
			accessed[g.ID] += float64(qs.Accessed)
		}
		scratch[g.Worker] = nb
	})

	r := RecallStats{
		TrueNeighbors: int(floats.Sum(truth)),
		Found:         int(floats.Sum(found)),
		Recall:        1,
	}
	if r.TrueNeighbors > 0 {
		r.Recall = float64(r.Found) / float64(r.TrueNeighbors)
	}
	if acc := floats.Sum(accessed); acc > 0 {
		r.AcceptRate = float64(r.Found) / acc
	}
	return r
}
