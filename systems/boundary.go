package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/config"
)

// ErrUnknownMode is returned for boundary modes that do not exist.
var ErrUnknownMode = errors.New("unknown boundary mode")

// MaxPlanes bounds the active plane set of any mode.
const MaxPlanes = 7

// BoundarySystem owns the half-space planes of every mode as entities and
// keeps the active set for the current mode.
type BoundarySystem struct {
	world *ecs.World

	fixedMapper  *ecs.Map3[components.Plane, components.Anchor, components.Membership]
	movingMapper *ecs.Map4[components.Plane, components.Anchor, components.Membership, components.WallMotion]
	planeFilter  *ecs.Filter2[components.Plane, components.Membership]
	movingFilter *ecs.Filter3[components.Plane, components.Anchor, components.WallMotion]

	mode      components.BoundaryMode
	clock     float32
	clockStep float32
	active    []components.Plane
}

// NewBoundarySystem builds the plane entities for all modes from cfg.
func NewBoundarySystem(cfg config.BoundaryConfig) (*BoundarySystem, error) {
	mode, ok := components.ParseBoundaryMode(cfg.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}

	world := ecs.NewWorld()
	s := &BoundarySystem{
		world:        world,
		fixedMapper:  ecs.NewMap3[components.Plane, components.Anchor, components.Membership](world),
		movingMapper: ecs.NewMap4[components.Plane, components.Anchor, components.Membership, components.WallMotion](world),
		planeFilter:  ecs.NewFilter2[components.Plane, components.Membership](world),
		movingFilter: ecs.NewFilter3[components.Plane, components.Anchor, components.WallMotion](world),
		mode:         mode,
		clockStep:    float32(cfg.Wave.ClockStep),
		active:       make([]components.Plane, 0, MaxPlanes),
	}
	s.spawn(cfg)
	s.refresh()
	return s, nil
}

func (s *BoundarySystem) spawn(cfg config.BoundaryConfig) {
	all := components.MemberOf(components.ModeBox, components.ModeWave, components.ModeGround)
	box := components.MemberOf(components.ModeBox)
	wave := components.MemberOf(components.ModeWave)

	floor := float32(cfg.Floor)
	ceiling := float32(cfg.Ceiling)
	hw := float32(cfg.HalfWidth)
	hd := float32(cfg.HalfDepth)

	up := mgl32.Vec3{0, 1, 0}
	right := mgl32.Vec3{1, 0, 0}
	forward := mgl32.Vec3{0, 0, 1}

	s.addFixed(mgl32.Vec3{0, floor, 0}, up, all)
	s.addFixed(mgl32.Vec3{0, ceiling, 0}, up.Mul(-1), all)

	sides := []struct {
		point  mgl32.Vec3
		normal mgl32.Vec3
	}{
		{mgl32.Vec3{-hw, 0, 0}, right},
		{mgl32.Vec3{hw, 0, 0}, right.Mul(-1)},
		{mgl32.Vec3{0, 0, -hd}, forward},
		{mgl32.Vec3{0, 0, hd}, forward.Mul(-1)},
	}
	motion := components.WallMotion{
		Amplitude: float32(cfg.Wave.Amplitude),
		Rate:      float32(cfg.Wave.Rate),
	}
	for _, side := range sides {
		s.addFixed(side.point, side.normal, box)
		s.addMoving(side.point, side.normal, wave, motion)
	}
}

func (s *BoundarySystem) addFixed(p, n mgl32.Vec3, ms components.Membership) {
	plane := components.PlaneThrough(p, n)
	anchor := components.Anchor{Point: p}
	s.fixedMapper.NewEntity(&plane, &anchor, &ms)
}

func (s *BoundarySystem) addMoving(p, n mgl32.Vec3, ms components.Membership, m components.WallMotion) {
	plane := components.PlaneThrough(p, n)
	anchor := components.Anchor{Point: p}
	s.movingMapper.NewEntity(&plane, &anchor, &ms, &m)
}

// Mode returns the current boundary mode.
func (s *BoundarySystem) Mode() components.BoundaryMode { return s.mode }

// Clock returns the wave clock.
func (s *BoundarySystem) Clock() float32 { return s.clock }

// SetMode switches the active plane set. The wave clock keeps its value.
func (s *BoundarySystem) SetMode(m components.BoundaryMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownMode, m)
	}
	s.mode = m
	s.refresh()
	return nil
}

// Advance runs one step of plane motion. The wave clock only runs while wave
// mode is active.
func (s *BoundarySystem) Advance() {
	if s.mode == components.ModeWave {
		s.clock += s.clockStep
	}
	s.updateMoving()
	s.refresh()
}

// WallTravel returns how far a moving wall has slid inward at the current clock.
func WallTravel(m components.WallMotion, clock float32) float32 {
	phase := math.Min(float64(clock*m.Rate), math.Pi/2)
	sn := math.Sin(phase)
	return m.Amplitude * float32(sn*sn)
}

func (s *BoundarySystem) updateMoving() {
	query := s.movingFilter.Query()
	for query.Next() {
		plane, anchor, motion := query.Get()
		travel := WallTravel(*motion, s.clock)
		p := anchor.Point.Add(plane.Normal.Mul(travel))
		*plane = components.PlaneThrough(p, plane.Normal)
	}
}

// refresh rebuilds the active plane slice for the current mode.
func (s *BoundarySystem) refresh() {
	s.active = s.active[:0]
	query := s.planeFilter.Query()
	for query.Next() {
		plane, ms := query.Get()
		if ms.Has(s.mode) {
			s.active = append(s.active, *plane)
		}
	}
}

// Planes returns the active plane set. The slice is reused by the next
// Advance or SetMode.
func (s *BoundarySystem) Planes() []components.Plane {
	return s.active
}
