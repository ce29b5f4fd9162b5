package solver

// StateView is a read-only window onto the solver buffers in original index
// order. Positions and Velocities are float4 lanes (x, y, z, pressure) and
// (x, y, z, 0). SurfaceMean and SurfaceAxis are nil unless surface
// estimation is enabled. The slices alias solver memory and are only valid
// inside the ReadState callback.
type StateView struct {
	Step        int64
	Positions   []float32
	Velocities  []float32
	SurfaceMean []float32
	SurfaceAxis []float32
}

// ReadState calls fn with the current state. A step never runs while fn
// executes, so a renderer sees a consistent frame.
func (s *Solver) ReadState(fn func(StateView)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := StateView{
		Step:       s.step,
		Positions:  s.particles.Pos,
		Velocities: s.particles.Vel,
	}
	if s.surface != nil {
		v.SurfaceMean = s.surface.Mean
		v.SurfaceAxis = s.surface.Axis
	}
	fn(v)
}
