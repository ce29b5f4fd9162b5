package systems

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDiagnosticsGuardsEmptyIndex(t *testing.T) {
	rig := newTestRig(t, randomCloud(10, 5, 1), 16, 4, 2)
	// Never built: every bucket is empty.
	d := NewDiagnosticsPass(rig.dev).Run(rig.dev, rig.idx, 1)

	if d.UsedBuckets != 0 || d.TotalAccesses != 0 {
		t.Fatalf("unexpected counters on empty index: %+v", d)
	}
	for name, v := range map[string]float64{
		"avg_collisions":    d.AvgCollisions,
		"used_rate":         d.UsedRate,
		"accept_rate":       d.AcceptRate,
		"occupancy_std_dev": d.OccupancyStdDev,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != 0 {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
}

func TestDiagnosticsSingleBucket(t *testing.T) {
	pts := lattice(2, mgl32.Vec3{0.25, 0.25, 0.25}, 0.5)
	rig := newTestRig(t, pts, 16, 4, 2)
	rig.build(Jitter{})

	d := NewDiagnosticsPass(rig.dev).Run(rig.dev, rig.idx, 1)

	n := len(pts)
	if d.UsedBuckets != 1 {
		t.Errorf("used buckets = %d, want 1", d.UsedBuckets)
	}
	if d.MaxCollisions != n {
		t.Errorf("max collisions = %d, want %d", d.MaxCollisions, n)
	}
	if d.UniqueCells != 1 {
		t.Errorf("unique cells = %d, want 1", d.UniqueCells)
	}
	if d.TotalAccesses != n*n || d.AcceptedNeighbors != n*n {
		t.Errorf("accesses %d / accepted %d, want %d / %d", d.TotalAccesses, d.AcceptedNeighbors, n*n, n*n)
	}
	if d.AvgCollisions != float64(n) {
		t.Errorf("avg collisions = %v, want %d", d.AvgCollisions, n)
	}
	if d.UsedRate != 1.0/16 {
		t.Errorf("used rate = %v, want %v", d.UsedRate, 1.0/16)
	}
	if d.AcceptRate != 1 {
		t.Errorf("accept rate = %v, want 1", d.AcceptRate)
	}
	if d.OccupancyStdDev != 0 {
		t.Errorf("occupancy std dev = %v, want 0", d.OccupancyStdDev)
	}
}

func TestDiagnosticsCountsMatchHistogram(t *testing.T) {
	rig := newTestRig(t, randomCloud(500, 30, 8), 64, 8, 2)
	rig.build(Jitter{Offset: mgl32.Vec3{1, 1, 1}})

	d := NewDiagnosticsPass(rig.dev).Run(rig.dev, rig.idx, 1)

	used, mx := 0, 0
	for b := 0; b < rig.idx.Counter.Len(); b++ {
		c := int(rig.idx.Counter.Count(b))
		if c > 0 {
			used++
		}
		if c > mx {
			mx = c
		}
	}
	if d.UsedBuckets != used || d.MaxCollisions != mx {
		t.Errorf("used %d max %d, want %d %d", d.UsedBuckets, d.MaxCollisions, used, mx)
	}
	if d.UniqueCells < used {
		t.Errorf("unique cells %d below used buckets %d", d.UniqueCells, used)
	}
	if d.AcceptRate <= 0 || d.AcceptRate > 1 {
		t.Errorf("accept rate = %v, want in (0,1]", d.AcceptRate)
	}
}

func TestMeasureRecall(t *testing.T) {
	t.Run("single bucket is exact", func(t *testing.T) {
		rig := newTestRig(t, lattice(2, mgl32.Vec3{0.25, 0.25, 0.25}, 0.5), 16, 4, 2)
		rig.build(Jitter{})
		r := MeasureRecall(rig.dev, rig.idx, 1)
		if r.Recall != 1 || r.Found != r.TrueNeighbors {
			t.Errorf("recall = %+v, want exact", r)
		}
	})

	t.Run("spread cloud misses some", func(t *testing.T) {
		rig := newTestRig(t, randomCloud(400, 10, 3), 256, 16, 2)
		rig.build(Jitter{})
		r := MeasureRecall(rig.dev, rig.idx, 1)
		if r.Recall <= 0 || r.Recall > 1 {
			t.Errorf("recall = %v, want in (0,1]", r.Recall)
		}
		// Every particle finds at least itself.
		if r.Found < 400 {
			t.Errorf("found = %d, want at least one per particle", r.Found)
		}
	})
}

func TestDiagnosticsDescribeBuildTimeState(t *testing.T) {
	rig := newTestRig(t, randomCloud(400, 10, 9), 256, 16, 2)
	rig.build(Jitter{})
	pass := NewDiagnosticsPass(rig.dev)

	d0 := pass.Run(rig.dev, rig.idx, 1)
	r0 := MeasureRecall(rig.dev, rig.idx, 1)

	for s := 0; s < rig.idx.Sorted.Len(); s++ {
		rig.idx.Sorted.SetPosition(s, rig.idx.Sorted.Position(s).Mul(1.7))
	}

	if d1 := pass.Run(rig.dev, rig.idx, 1); d1 != d0 {
		t.Errorf("diagnostics changed after Sorted moved:\n got %+v\nwant %+v", d1, d0)
	}
	if r1 := MeasureRecall(rig.dev, rig.idx, 1); r1 != r0 {
		t.Errorf("recall changed after Sorted moved: got %+v, want %+v", r1, r0)
	}
	if d0.UniqueCells < d0.UsedBuckets {
		t.Errorf("unique cells %d below used buckets %d", d0.UniqueCells, d0.UsedBuckets)
	}
	if d0.AcceptedNeighbors < rig.idx.Sorted.Len() {
		t.Errorf("accepted %d, want every slot to find itself", d0.AcceptedNeighbors)
	}
}
