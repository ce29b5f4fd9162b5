package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestScatterIsBijection(t *testing.T) {
	const n = 257
	rig := newTestRig(t, randomCloud(n, 25, 9), 64, 8, 2)
	for i := 0; i < n; i++ {
		rig.particles.SetVelocity(i, mgl32.Vec3{float32(i), 0, 0})
		rig.particles.SetPressure(i, float32(-i))
	}
	rig.build(Jitter{Offset: mgl32.Vec3{0.2, 0.2, 0.2}})

	seen := make([]bool, n)
	for s, orig := range rig.idx.Inverse {
		if int(orig) >= n {
			t.Fatalf("slot %d: inverse %d out of range", s, orig)
		}
		if seen[orig] {
			t.Fatalf("particle %d appears twice", orig)
		}
		seen[orig] = true

		if got, want := rig.idx.Sorted.Get(s), rig.particles.Get(int(orig)); got != want {
			t.Fatalf("slot %d holds %+v, want particle %d %+v", s, got, orig, want)
		}
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("particle %d missing from sorted buffer", i)
		}
	}
}

func TestScatterGroupsBucketsContiguously(t *testing.T) {
	rig := newTestRig(t, randomCloud(200, 15, 4), 16, 4, 2)
	rig.build(Jitter{})

	for b := 0; b < rig.idx.Counter.Len(); b++ {
		begin, end := rig.idx.BucketRange(uint32(b))
		for s := begin; s < end; s++ {
			orig := rig.idx.Inverse[s]
			if h := rig.idx.Counter.Hashes[orig]; h != uint32(b) {
				t.Fatalf("slot %d in bucket %d range holds particle with hash %d", s, b, h)
			}
		}
	}
}

func TestWriteBackRestoresOriginalOrder(t *testing.T) {
	const n = 64
	rig := newTestRig(t, randomCloud(n, 10, 2), 16, 4, 2)
	rig.build(Jitter{})

	// Tag every sorted slot, then write back.
	for s := 0; s < n; s++ {
		rig.idx.Sorted.SetPressure(s, float32(rig.idx.Inverse[s])+0.5)
	}
	WriteBack(rig.dev, rig.idx.Sorted, rig.particles, rig.idx.Inverse)

	for i := 0; i < n; i++ {
		if got := rig.particles.Pressure(i); got != float32(i)+0.5 {
			t.Errorf("particle %d pressure = %v, want %v", i, got, float32(i)+0.5)
		}
	}
}
