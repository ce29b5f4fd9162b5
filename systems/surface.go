package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// surfaceScratch is the per-worker decomposition state.
type surfaceScratch struct {
	neighbors []Neighbor
	cov       *mat.SymDense
	eig       mat.EigenSym
	vecs      mat.Dense
	vals      []float64
}

// SurfaceEstimator fills renderer-facing buffers with the kernel-weighted
// neighborhood mean and principal axis of every particle. Both buffers are
// float4 lanes indexed by original particle index; Axis.w holds the largest
// eigenvalue of the neighborhood covariance.
type SurfaceEstimator struct {
	Mean []float32
	Axis []float32

	scratch []surfaceScratch
}

// NewSurfaceEstimator allocates buffers for n particles.
func NewSurfaceEstimator(n, numWorkers int) *SurfaceEstimator {
	sc := make([]surfaceScratch, numWorkers)
	for i := range sc {
		sc[i].neighbors = make([]Neighbor, 0, 64)
		sc[i].cov = mat.NewSymDense(3, nil)
		sc[i].vals = make([]float64, 3)
	}
	return &SurfaceEstimator{
		Mean:    make([]float32, n*components.Stride),
		Axis:    make([]float32, n*components.Stride),
		scratch: sc,
	}
}

// Run estimates every particle from the current index. It only reads the
// index and the kernel constants.
func (se *SurfaceEstimator) Run(dev *compute.Device, idx *SpatialIndex, k KernelCoeffs) {
	sorted := idx.Sorted
	dev.DispatchThreads(sorted.Len(), func(g compute.Group) {
		sc := &se.scratch[g.Worker]
		for l := 0; l < g.Count; l++ {
			s := g.Base + l
			xi := sorted.Position(s)
			sc.neighbors, _ = idx.QueryInto(sc.neighbors[:0], xi, k.HSq)
			mean, axis, spread := sc.estimate(sorted, xi, k)

			o := int(idx.Inverse[s]) * components.Stride
			se.Mean[o], se.Mean[o+1], se.Mean[o+2], se.Mean[o+3] = mean[0], mean[1], mean[2], 1
			se.Axis[o], se.Axis[o+1], se.Axis[o+2], se.Axis[o+3] = axis[0], axis[1], axis[2], spread
		}
	})
}

func (sc *surfaceScratch) estimate(sorted *components.ParticleBuffer, xi mgl32.Vec3, k KernelCoeffs) (mgl32.Vec3, mgl32.Vec3, float32) {
	up := mgl32.Vec3{0, 1, 0}
	if len(sc.neighbors) < 2 {
		return xi, up, 0
	}

	var wsum float64
	var mean [3]float64
	for _, n := range sc.neighbors {
		w := float64(k.Poly6(n.DistSq))
		xj := sorted.Position(n.Slot)
		for a := 0; a < 3; a++ {
			mean[a] += w * float64(xj[a])
		}
		wsum += w
	}
	if wsum <= 0 {
		return xi, up, 0
	}
	for a := 0; a < 3; a++ {
		mean[a] /= wsum
	}

	var c [3][3]float64
	for _, n := range sc.neighbors {
		w := float64(k.Poly6(n.DistSq)) / wsum
		xj := sorted.Position(n.Slot)
		d := [3]float64{float64(xj[0]) - mean[0], float64(xj[1]) - mean[1], float64(xj[2]) - mean[2]}
		for a := 0; a < 3; a++ {
			for b := a; b < 3; b++ {
				c[a][b] += w * d[a] * d[b]
			}
		}
	}
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			sc.cov.SetSym(a, b, c[a][b])
		}
	}

	meanVec := mgl32.Vec3{float32(mean[0]), float32(mean[1]), float32(mean[2])}
	if ok := sc.eig.Factorize(sc.cov, true); !ok {
		return meanVec, up, 0
	}
	sc.vals = sc.eig.Values(sc.vals)
	sc.eig.VectorsTo(&sc.vecs)

	// Eigenvalues come back ascending; the principal axis is the last column.
	axis := mgl32.Vec3{float32(sc.vecs.At(0, 2)), float32(sc.vecs.At(1, 2)), float32(sc.vecs.At(2, 2))}
	return meanVec, axis, float32(sc.vals[2])
}
