package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
)

// ForceAccumulator holds the per-slot results of the density and force
// passes. Density is written by the density pass and only read afterwards,
// so no particle sees a neighbor's half-updated density.
type ForceAccumulator struct {
	Density []float32 // one per slot
	Force   []float32 // float4 lanes, w always zero
	Smooth  []float32 // float4 lanes, XSPH velocity correction
}

// NewForceAccumulator allocates buffers for n slots.
func NewForceAccumulator(n int) *ForceAccumulator {
	return &ForceAccumulator{
		Density: make([]float32, n),
		Force:   make([]float32, n*components.Stride),
		Smooth:  make([]float32, n*components.Stride),
	}
}

// ForceAt returns the accumulated force of slot s.
func (a *ForceAccumulator) ForceAt(s int) mgl32.Vec3 {
	o := s * components.Stride
	return mgl32.Vec3{a.Force[o], a.Force[o+1], a.Force[o+2]}
}

func (a *ForceAccumulator) setForce(s int, f mgl32.Vec3) {
	o := s * components.Stride
	a.Force[o], a.Force[o+1], a.Force[o+2], a.Force[o+3] = f[0], f[1], f[2], 0
}

func (a *ForceAccumulator) setSmooth(s int, dv mgl32.Vec3) {
	o := s * components.Stride
	a.Smooth[o], a.Smooth[o+1], a.Smooth[o+2], a.Smooth[o+3] = dv[0], dv[1], dv[2], 0
}

// FluidSystem runs the density and force passes over a spatial index.
type FluidSystem struct {
	Coeffs KernelCoeffs
	Params FluidParams

	// Per-worker scratch, indexed by compute.Group.Worker
	neighbors [][]Neighbor
	stats     []QueryStats
}

// NewFluidSystem creates a fluid system for radius h with numWorkers scratch slots.
func NewFluidSystem(h float32, params FluidParams, numWorkers int) *FluidSystem {
	nb := make([][]Neighbor, numWorkers)
	for i := range nb {
		nb[i] = make([]Neighbor, 0, 64)
	}
	return &FluidSystem{
		Coeffs:    NewKernelCoeffs(h),
		Params:    params,
		neighbors: nb,
		stats:     make([]QueryStats, numWorkers),
	}
}

// QueryStats returns the neighbor query totals of the last pass.
func (fs *FluidSystem) QueryStats() QueryStats {
	var total QueryStats
	for _, s := range fs.stats {
		total.Add(s)
	}
	return total
}

func (fs *FluidSystem) resetStats() {
	for i := range fs.stats {
		fs.stats[i] = QueryStats{}
	}
}

// Density computes ρ and p for every sorted slot, one thread per slot.
// Pressure is stored in the w lane of the sorted position.
func (fs *FluidSystem) Density(dev *compute.Device, idx *SpatialIndex, acc *ForceAccumulator) {
	fs.resetStats()
	sorted := idx.Sorted
	k := fs.Coeffs
	mass := fs.Params.Mass

	dev.DispatchThreads(sorted.Len(), func(g compute.Group) {
		nb := fs.neighbors[g.Worker]
		var stats QueryStats
		for l := 0; l < g.Count; l++ {
			s := g.Base + l
			var qs QueryStats
			nb, qs = idx.QueryInto(nb[:0], sorted.Position(s), k.HSq)
			stats.Add(qs)

			var rho float32
			for _, n := range nb {
				rho += mass * k.Poly6(n.DistSq)
			}
			acc.Density[s] = rho
			sorted.SetPressure(s, fs.Params.Pressure(rho))
		}
		fs.neighbors[g.Worker] = nb
		fs.stats[g.Worker].Add(stats)
	})
}

// Forces accumulates pressure, viscosity, gravity and plane penalty forces
// for every sorted slot, plus the XSPH correction when enabled.
func (fs *FluidSystem) Forces(dev *compute.Device, idx *SpatialIndex, acc *ForceAccumulator, planes []components.Plane) {
	sorted := idx.Sorted
	k := fs.Coeffs
	p := fs.Params
	gravity := p.GravityForce()

	dev.DispatchThreads(sorted.Len(), func(g compute.Group) {
		nb := fs.neighbors[g.Worker]
		for l := 0; l < g.Count; l++ {
			s := g.Base + l
			xi := sorted.Position(s)
			vi := sorted.Velocity(s)
			pi := sorted.Pressure(s)
			rhoi := acc.Density[s]

			nb, _ = idx.QueryInto(nb[:0], xi, k.HSq)

			f := gravity
			var dv mgl32.Vec3
			for _, n := range nb {
				if n.Slot == s {
					continue
				}
				r := float32(math.Sqrt(float64(n.DistSq)))
				rhoj := acc.Density[n.Slot]
				vj := sorted.Velocity(n.Slot)

				f = f.Add(PressureForce(k, p.Mass, pi, sorted.Pressure(n.Slot), rhoi, rhoj, n.Delta, r))
				f = f.Add(ViscosityForce(k, p.Viscosity, p.Mass, vi, vj, rhoj, r))

				if p.Smoothing {
					if mean := (rhoi + rhoj) / 2; mean > 0 {
						dv = dv.Add(vj.Sub(vi).Mul(p.SmoothingFactor * p.Mass / mean * k.Poly6(n.DistSq)))
					}
				}
			}

			if p.PenaltyStiffness > 0 || p.PenaltyDamping > 0 {
				f = f.Add(penaltyForce(planes, xi, vi, p.PenaltyStiffness, p.PenaltyDamping))
			}

			acc.setForce(s, f)
			acc.setSmooth(s, dv)
		}
		fs.neighbors[g.Worker] = nb
	})
}

// penaltyForce pushes x back along the normal of every plane it violates and
// damps the outward velocity component.
func penaltyForce(planes []components.Plane, x, v mgl32.Vec3, stiffness, damping float32) mgl32.Vec3 {
	var f mgl32.Vec3
	for _, pl := range planes {
		d := pl.Distance(x)
		if d >= 0 {
			continue
		}
		vn := v.Dot(pl.Normal)
		if vn > 0 {
			vn = 0
		}
		f = f.Add(pl.Normal.Mul(-d*stiffness - damping*vn))
	}
	return f
}
