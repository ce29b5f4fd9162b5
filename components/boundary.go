package components

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BoundaryMode names a plane configuration.
type BoundaryMode uint8

const (
	ModeBox    BoundaryMode = iota // Floor, ceiling and four fixed side walls
	ModeWave                       // Box with side walls sliding inward over time
	ModeGround                     // Floor and ceiling only
	numModes
)

var modeNames = [...]string{"box", "wave", "ground"}

func (m BoundaryMode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("BoundaryMode(%d)", uint8(m))
}

// Valid reports whether m names a known configuration.
func (m BoundaryMode) Valid() bool { return m < numModes }

// Next returns the mode after m in toggle order. Ground is terminal.
func (m BoundaryMode) Next() BoundaryMode {
	if m+1 >= numModes {
		return ModeGround
	}
	return m + 1
}

// ParseBoundaryMode converts a config string to a mode.
func ParseBoundaryMode(s string) (BoundaryMode, bool) {
	for i, name := range modeNames {
		if name == s {
			return BoundaryMode(i), true
		}
	}
	return 0, false
}

// Plane is the half-space Normal·x + Offset >= 0. Normal is unit length.
type Plane struct {
	Normal mgl32.Vec3
	Offset float32
}

// PlaneThrough builds the plane through p with inward normal n.
func PlaneThrough(p, n mgl32.Vec3) Plane {
	n = n.Normalize()
	return Plane{Normal: n, Offset: -p.Dot(n)}
}

// Distance returns the signed distance of x from the plane; negative means
// x is outside the half-space.
func (pl Plane) Distance(x mgl32.Vec3) float32 {
	return pl.Normal.Dot(x) + pl.Offset
}

// Anchor is the rest point of a plane entity. Moving walls offset it along
// their normal.
type Anchor struct {
	Point mgl32.Vec3
}

// WallMotion marks a plane that slides along its normal as the wave clock runs.
type WallMotion struct {
	Amplitude float32
	Rate      float32
}

// Membership is a bitmask of the modes a plane entity belongs to.
type Membership struct {
	Modes uint8
}

// Has reports whether the plane is active in mode m.
func (ms Membership) Has(m BoundaryMode) bool {
	return ms.Modes&(1<<m) != 0
}

// MemberOf builds a membership mask from a list of modes.
func MemberOf(modes ...BoundaryMode) Membership {
	var ms Membership
	for _, m := range modes {
		ms.Modes |= 1 << m
	}
	return ms
}
