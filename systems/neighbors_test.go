package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQueryMatchesBruteForceOnLattice(t *testing.T) {
	const radius = float32(1)
	// Eight particles spaced radius/2, all inside one 2*radius cell.
	pts := lattice(2, mgl32.Vec3{0.25, 0.25, 0.25}, radius/2)
	rig := newTestRig(t, pts, 16, 4, 2*radius)
	rig.build(Jitter{})

	var nb []Neighbor
	for s := 0; s < len(pts); s++ {
		q := rig.idx.Sorted.Position(s)
		var stats QueryStats
		nb, stats = rig.idx.QueryInto(nb[:0], q, radius*radius)

		got := make(map[uint32]bool)
		for _, n := range nb {
			got[rig.idx.Inverse[n.Slot]] = true
			if d := q.Sub(rig.idx.Sorted.Position(n.Slot)); d != n.Delta {
				t.Errorf("neighbor delta %v, want %v", n.Delta, d)
			}
		}

		want := make(map[uint32]bool)
		for j, p := range pts {
			d := q.Sub(p)
			if d.Dot(d) < radius*radius {
				want[uint32(j)] = true
			}
		}

		if len(got) != len(want) {
			t.Fatalf("slot %d: found %d neighbors, brute force %d", s, len(got), len(want))
		}
		for j := range want {
			if !got[j] {
				t.Errorf("slot %d: missed neighbor %d", s, j)
			}
		}
		if stats.Accepted != len(nb) || stats.Accessed < stats.Accepted {
			t.Errorf("stats %+v inconsistent with %d results", stats, len(nb))
		}
	}
}

func TestQueryNeverReturnsFalsePositives(t *testing.T) {
	const radius = float32(1.5)
	rig := newTestRig(t, randomCloud(300, 12, 21), 64, 8, 2*radius)
	rig.build(Jitter{Offset: mgl32.Vec3{0.7, 0.1, 1.9}, Flip: true})

	var nb []Neighbor
	for s := 0; s < rig.idx.Sorted.Len(); s++ {
		q := rig.idx.Sorted.Position(s)
		nb, _ = rig.idx.QueryInto(nb[:0], q, radius*radius)
		selfFound := false
		for _, n := range nb {
			if n.DistSq >= radius*radius {
				t.Fatalf("slot %d: neighbor at distSq %v outside radius", s, n.DistSq)
			}
			if n.Slot == s {
				selfFound = true
			}
		}
		if !selfFound {
			t.Fatalf("slot %d: query did not return itself", s)
		}
	}
}

func TestQuerySlotIgnoresMovedSortedPositions(t *testing.T) {
	rig := newTestRig(t, randomCloud(300, 12, 5), 256, 16, 2)
	rig.build(Jitter{Offset: mgl32.Vec3{0.5, 0.25, 0.75}})
	n := rig.idx.Sorted.Len()

	var before [][]Neighbor
	for s := 0; s < n; s++ {
		nb, _ := rig.idx.QuerySlotInto(nil, s, 1)
		before = append(before, nb)
	}

	// Integration moves Sorted in place after the build.
	for s := 0; s < n; s++ {
		rig.idx.Sorted.SetPosition(s, rig.idx.Sorted.Position(s).Add(mgl32.Vec3{0.9, -1.3, 0.4}))
	}

	var nb []Neighbor
	for s := 0; s < n; s++ {
		nb, _ = rig.idx.QuerySlotInto(nb[:0], s, 1)
		self := false
		for _, m := range nb {
			if m.Slot == s {
				self = true
			}
		}
		if !self {
			t.Fatalf("slot %d does not find itself", s)
		}
		if len(nb) != len(before[s]) {
			t.Fatalf("slot %d: %d neighbors after move, %d before", s, len(nb), len(before[s]))
		}
		for k := range nb {
			if nb[k] != before[s][k] {
				t.Fatalf("slot %d neighbor %d = %+v, want %+v", s, k, nb[k], before[s][k])
			}
		}
	}
}
