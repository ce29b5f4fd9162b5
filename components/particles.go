// Package components defines the data records shared by the solver stages.
package components

import "github.com/go-gl/mathgl/mgl32"

// Lane stride of the particle buffers. Each particle owns four float32s in
// Pos (x, y, z, pressure) and four in Vel (x, y, z, unused).
const Stride = 4

// Particle is one fluid particle as seen by callers.
type Particle struct {
	Pos      mgl32.Vec3
	Pressure float32
	Vel      mgl32.Vec3
}

// ParticleBuffer stores particles as float4 lanes so whole-buffer updates
// can run as strided vector operations.
type ParticleBuffer struct {
	Pos []float32 // x, y, z, pressure
	Vel []float32 // x, y, z, 0
}

// NewParticleBuffer allocates a zeroed buffer for n particles.
func NewParticleBuffer(n int) *ParticleBuffer {
	return &ParticleBuffer{
		Pos: make([]float32, n*Stride),
		Vel: make([]float32, n*Stride),
	}
}

// Len returns the number of particles.
func (b *ParticleBuffer) Len() int {
	return len(b.Pos) / Stride
}

// Position returns the position of particle i.
func (b *ParticleBuffer) Position(i int) mgl32.Vec3 {
	o := i * Stride
	return mgl32.Vec3{b.Pos[o], b.Pos[o+1], b.Pos[o+2]}
}

// SetPosition overwrites the position of particle i, leaving pressure alone.
func (b *ParticleBuffer) SetPosition(i int, p mgl32.Vec3) {
	o := i * Stride
	b.Pos[o], b.Pos[o+1], b.Pos[o+2] = p[0], p[1], p[2]
}

// Pressure returns the pressure lane of particle i.
func (b *ParticleBuffer) Pressure(i int) float32 {
	return b.Pos[i*Stride+3]
}

// SetPressure writes the pressure lane of particle i.
func (b *ParticleBuffer) SetPressure(i int, p float32) {
	b.Pos[i*Stride+3] = p
}

// Velocity returns the velocity of particle i.
func (b *ParticleBuffer) Velocity(i int) mgl32.Vec3 {
	o := i * Stride
	return mgl32.Vec3{b.Vel[o], b.Vel[o+1], b.Vel[o+2]}
}

// SetVelocity overwrites the velocity of particle i.
func (b *ParticleBuffer) SetVelocity(i int, v mgl32.Vec3) {
	o := i * Stride
	b.Vel[o], b.Vel[o+1], b.Vel[o+2] = v[0], v[1], v[2]
	b.Vel[o+3] = 0
}

// Get returns particle i.
func (b *ParticleBuffer) Get(i int) Particle {
	return Particle{
		Pos:      b.Position(i),
		Pressure: b.Pressure(i),
		Vel:      b.Velocity(i),
	}
}

// Set writes particle i.
func (b *ParticleBuffer) Set(i int, p Particle) {
	b.SetPosition(i, p.Pos)
	b.SetPressure(i, p.Pressure)
	b.SetVelocity(i, p.Vel)
}

// CopyParticle copies particle src of from into slot dst of b.
func (b *ParticleBuffer) CopyParticle(dst int, from *ParticleBuffer, src int) {
	copy(b.Pos[dst*Stride:dst*Stride+Stride], from.Pos[src*Stride:src*Stride+Stride])
	copy(b.Vel[dst*Stride:dst*Stride+Stride], from.Vel[src*Stride:src*Stride+Stride])
}

// CopyFrom copies every particle of from into b. Lengths must match.
func (b *ParticleBuffer) CopyFrom(from *ParticleBuffer) {
	copy(b.Pos, from.Pos)
	copy(b.Vel, from.Vel)
}
