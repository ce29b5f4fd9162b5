package systems

import (
	"sync/atomic"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// Integrate advances every sorted slot by one semi-implicit Euler step and
// clamps the result against planes. Each group updates its contiguous lane
// range with vector ops: v += F·dt/m (+ XSPH Δv), then x += v·dt. The w
// lanes are untouched because the force and velocity w lanes are zero.
// It returns the number of particles that were clamped.
func Integrate(dev *compute.Device, sorted *components.ParticleBuffer, acc *ForceAccumulator, params FluidParams, planes []components.Plane) int {
	dt := params.DT
	invMassDT := dt / params.Mass
	var clamped atomic.Int64

	dev.DispatchThreads(sorted.Len(), func(g compute.Group) {
		lo := g.Base * components.Stride
		hi := (g.Base + g.Count) * components.Stride
		n := hi - lo

		force := blas32.Vector{N: n, Inc: 1, Data: acc.Force[lo:hi]}
		vel := blas32.Vector{N: n, Inc: 1, Data: sorted.Vel[lo:hi]}
		pos := blas32.Vector{N: n, Inc: 1, Data: sorted.Pos[lo:hi]}

		blas32.Axpy(invMassDT, force, vel) // v += F·dt/m
		if params.Smoothing {
			smooth := blas32.Vector{N: n, Inc: 1, Data: acc.Smooth[lo:hi]}
			blas32.Axpy(1, smooth, vel)
		}
		blas32.Axpy(dt, vel, pos) // x += v·dt

		var local int64
		for l := 0; l < g.Count; l++ {
			if ClampParticle(sorted, g.Base+l, planes, params.Restitution) {
				local++
			}
		}
		if local > 0 {
			clamped.Add(local)
		}
	})
	return int(clamped.Load())
}

// ClampParticle projects particle i back into every plane it violates and
// replaces the outward normal velocity vn with -restitution·vn. It reports
// whether any plane was violated.
func ClampParticle(buf *components.ParticleBuffer, i int, planes []components.Plane, restitution float32) bool {
	x := buf.Position(i)
	v := buf.Velocity(i)
	hit := false
	for _, pl := range planes {
		d := pl.Distance(x)
		if d >= 0 {
			continue
		}
		hit = true
		x = x.Sub(pl.Normal.Mul(d))
		if vn := v.Dot(pl.Normal); vn < 0 {
			v = v.Sub(pl.Normal.Mul(vn * (1 + restitution)))
		}
	}
	if hit {
		buf.SetPosition(i, x)
		buf.SetVelocity(i, v)
	}
	return hit
}

// WriteBack copies every sorted slot to its original index.
func WriteBack(dev *compute.Device, sorted, particles *components.ParticleBuffer, inverse []uint32) {
	dev.DispatchThreads(sorted.Len(), func(g compute.Group) {
		for l := 0; l < g.Count; l++ {
			s := g.Base + l
			particles.CopyParticle(int(inverse[s]), sorted, s)
		}
	})
}
