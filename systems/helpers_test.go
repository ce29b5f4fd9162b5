package systems

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// testRig bundles a device, particle set and index for pipeline tests.
type testRig struct {
	dev       *compute.Device
	particles *components.ParticleBuffer
	idx       *SpatialIndex
}

func newTestRig(t testing.TB, positions []mgl32.Vec3, numBuckets, width int, cellSize float32) *testRig {
	t.Helper()
	dev := compute.NewDevice(width, 3)
	t.Cleanup(dev.Close)

	particles := components.NewParticleBuffer(len(positions))
	for i, p := range positions {
		particles.SetPosition(i, p)
	}

	idx, err := NewSpatialIndex(len(positions), numBuckets, width, cellSize)
	if err != nil {
		t.Fatalf("NewSpatialIndex failed: %v", err)
	}
	return &testRig{dev: dev, particles: particles, idx: idx}
}

func (r *testRig) build(j Jitter) {
	r.idx.Build(r.dev, r.particles, j)
}

// randomCloud returns n seeded positions inside [0, extent)³.
func randomCloud(n int, extent float32, seed int64) []mgl32.Vec3 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]mgl32.Vec3, n)
	for i := range out {
		out[i] = mgl32.Vec3{rng.Float32() * extent, rng.Float32() * extent, rng.Float32() * extent}
	}
	return out
}

// lattice returns a k×k×k grid starting at origin with the given spacing.
func lattice(k int, origin mgl32.Vec3, spacing float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, 0, k*k*k)
	for x := 0; x < k; x++ {
		for y := 0; y < k; y++ {
			for z := 0; z < k; z++ {
				out = append(out, origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(spacing)))
			}
		}
	}
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func vecNear(a, b mgl32.Vec3, tol float32) bool {
	for i := 0; i < 3; i++ {
		if abs32(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
