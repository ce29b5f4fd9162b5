package solver

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/config"
)

// damBreakOrigins returns the centres of the two seed clusters: a quarter and
// three quarters of the way across the domain in x and z, resting on the
// domain floor.
func damBreakOrigins(cfg *config.Config) (mgl32.Vec3, mgl32.Vec3) {
	lo, hi := cfg.Derived.MinBounds, cfg.Derived.MaxBounds
	y := lo.Y() + float32(cfg.Domain.InitSize)*0.5
	at := func(t float32) mgl32.Vec3 {
		return mgl32.Vec3{lerp(lo.X(), hi.X(), t), y, lerp(lo.Z(), hi.Z(), t)}
	}
	return at(0.25), at(0.75)
}

// seedDamBreak fills particles with two cubes of uniform random points. Even
// indices go to the first cube, odd to the second. Velocities and pressures
// start at zero.
func seedDamBreak(particles *components.ParticleBuffer, cfg *config.Config, rng *rand.Rand) {
	o1, o2 := damBreakOrigins(cfg)
	size := float32(cfg.Domain.InitSize)
	half := size * 0.5

	for i := 0; i < particles.Len(); i++ {
		p := mgl32.Vec3{
			rng.Float32()*size - half,
			rng.Float32()*size - half,
			rng.Float32()*size - half,
		}
		if i%2 == 0 {
			p = p.Add(o1)
		} else {
			p = p.Add(o2)
		}
		particles.Set(i, components.Particle{Pos: p})
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
