package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/config"
)

// KernelCoeffs holds the normalisation constants of the smoothing kernels
// for one support radius. Rebuild with NewKernelCoeffs when the radius changes.
type KernelCoeffs struct {
	H          float32
	HSq        float32
	Poly6Coeff float32 // 315 / (64π h⁹)
	SpikyCoeff float32 // 45 / (π h⁶), gradient magnitude factor
	ViscoCoeff float32 // 45 / (π h⁶), Laplacian factor
}

// NewKernelCoeffs computes the kernel constants for radius h.
func NewKernelCoeffs(h float32) KernelCoeffs {
	hd := float64(h)
	return KernelCoeffs{
		H:          h,
		HSq:        h * h,
		Poly6Coeff: float32(315 / (64 * math.Pi * math.Pow(hd, 9))),
		SpikyCoeff: float32(45 / (math.Pi * math.Pow(hd, 6))),
		ViscoCoeff: float32(45 / (math.Pi * math.Pow(hd, 6))),
	}
}

// Poly6 evaluates W_poly6 at squared distance rSq.
func (k KernelCoeffs) Poly6(rSq float32) float32 {
	if rSq >= k.HSq {
		return 0
	}
	d := k.HSq - rSq
	return k.Poly6Coeff * d * d * d
}

// SpikyGrad evaluates ∇W_spiky at delta = r_i - r_j with |delta| = r.
// Coincident points have no defined direction and yield zero.
func (k KernelCoeffs) SpikyGrad(delta mgl32.Vec3, r float32) mgl32.Vec3 {
	if r <= 0 || r >= k.H {
		return mgl32.Vec3{}
	}
	d := k.H - r
	return delta.Mul(-k.SpikyCoeff * d * d / r)
}

// ViscoLaplacian evaluates ∇²W_visco at distance r.
func (k KernelCoeffs) ViscoLaplacian(r float32) float32 {
	if r >= k.H {
		return 0
	}
	return k.ViscoCoeff * (k.H - r)
}

// FluidParams are the material and response constants in float32.
type FluidParams struct {
	Mass        float32
	GasConstant float32
	RestDensity float32
	Viscosity   float32
	Gravity     float32
	DT          float32

	Restitution      float32
	PenaltyStiffness float32
	PenaltyDamping   float32

	Smoothing       bool
	SmoothingFactor float32
}

// NewFluidParams extracts the solver constants from cfg.
func NewFluidParams(cfg *config.Config) FluidParams {
	return FluidParams{
		Mass:             float32(cfg.Fluid.Mass),
		GasConstant:      float32(cfg.Fluid.GasConstant),
		RestDensity:      float32(cfg.Fluid.RestDensity),
		Viscosity:        float32(cfg.Fluid.Viscosity),
		Gravity:          float32(cfg.Fluid.Gravity),
		DT:               cfg.Derived.DT32,
		Restitution:      float32(cfg.Boundary.Restitution),
		PenaltyStiffness: float32(cfg.Boundary.PenaltyStiffness),
		PenaltyDamping:   float32(cfg.Boundary.PenaltyDamping),
		Smoothing:        cfg.Smoothing.Enabled,
		SmoothingFactor:  float32(cfg.Smoothing.Factor),
	}
}

// Pressure applies the equation of state p = k(ρ - ρ0).
func (fp FluidParams) Pressure(density float32) float32 {
	return fp.GasConstant * (density - fp.RestDensity)
}

// PressureForce is the force j exerts on i:
//
//	-m (pi + pj) / (ρi + ρj) ∇W(r)
//
// The denominator is the pair sum ρi + ρj rather than the textbook 2ρj, so
// swapping i and j negates the force exactly and pair forces conserve momentum.
func PressureForce(k KernelCoeffs, mass, pi, pj, rhoi, rhoj float32, delta mgl32.Vec3, r float32) mgl32.Vec3 {
	denom := rhoi + rhoj
	if denom <= 0 {
		return mgl32.Vec3{}
	}
	return k.SpikyGrad(delta, r).Mul(-mass * (pi + pj) / denom)
}

// ViscosityForce is the viscous force j exerts on i.
func ViscosityForce(k KernelCoeffs, mu, mass float32, vi, vj mgl32.Vec3, rhoj, r float32) mgl32.Vec3 {
	if rhoj <= 0 {
		return mgl32.Vec3{}
	}
	return vj.Sub(vi).Mul(mu * mass / rhoj * k.ViscoLaplacian(r))
}

// GravityForce returns the constant downward body force.
func (fp FluidParams) GravityForce() mgl32.Vec3 {
	return mgl32.Vec3{0, -fp.Gravity * fp.Mass, 0}
}
