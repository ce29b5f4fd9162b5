package main

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/solver"
)

// sweepStep is how far across the domain the drag point travels per injection.
const sweepStep = 0.1

// injector stands in for a mouse drag: it drops a block of particles just
// below the top of the domain, sweeping the drop point along x.
type injector struct {
	min, max mgl32.Vec3
	count    int
	n        int
	begin    int
	phase    float32
}

func newInjector(cfg *config.Config, count int) *injector {
	return &injector{
		min:   cfg.Derived.MinBounds,
		max:   cfg.Derived.MaxBounds,
		count: count,
		n:     cfg.Solver.NumParticles,
	}
}

// target returns the current drop point.
func (in *injector) target() mgl32.Vec3 {
	return mgl32.Vec3{
		in.min.X() + (in.max.X()-in.min.X())*in.phase,
		in.max.Y() - 1,
		(in.min.Z() + in.max.Z()) / 2,
	}
}

// fire queues one move command and advances the begin index by count² so
// successive drags pick different particles.
func (in *injector) fire(s *solver.Solver) error {
	if err := s.MoveParticles(in.begin, in.count, in.target(), dragVelocity); err != nil {
		return err
	}
	in.begin = (in.begin + in.count*in.count) % in.n
	in.phase += sweepStep
	if in.phase > 1 {
		in.phase = 0
	}
	return nil
}
