package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
	"github.com/pthm-cable/sphgrid/systems"
	"github.com/pthm-cable/sphgrid/telemetry"
)

// ErrMoveCount is returned when a move command names more particles than exist.
var ErrMoveCount = errors.New("move count out of range")

type commandKind uint8

const (
	cmdMove commandKind = iota
	cmdSetMode
	cmdCycleMode
)

// command is one queued external request. Commands are drained at the start
// of the next step, in submission order.
type command struct {
	kind  commandKind
	begin int
	count int
	pos   mgl32.Vec3
	vel   mgl32.Vec3
	mode  components.BoundaryMode
}

// MoveParticles queues a command that places count particles, starting at
// original index begin and wrapping modulo the particle count, at pos with
// velocity vel. It is safe to call from any goroutine.
func (s *Solver) MoveParticles(begin, count int, pos, vel mgl32.Vec3) error {
	n := s.particles.Len()
	if count < 0 || count > n {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrMoveCount, count, n)
	}
	begin %= n
	if begin < 0 {
		begin += n
	}
	s.enqueue(command{kind: cmdMove, begin: begin, count: count, pos: pos, vel: vel})
	return nil
}

// SetBoundaryMode queues a switch to mode.
func (s *Solver) SetBoundaryMode(mode components.BoundaryMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %v", systems.ErrUnknownMode, mode)
	}
	s.enqueue(command{kind: cmdSetMode, mode: mode})
	return nil
}

// CycleBoundaryMode queues a switch to the mode after the one active when the
// command is applied. Ground is the last mode and stays put.
func (s *Solver) CycleBoundaryMode() {
	s.enqueue(command{kind: cmdCycleMode})
}

func (s *Solver) enqueue(c command) {
	s.queueMu.Lock()
	s.commands = append(s.commands, c)
	s.queueMu.Unlock()
}

// applyCommands drains the queue. Called from Step with the write lock held.
func (s *Solver) applyCommands() {
	s.queueMu.Lock()
	pending := s.commands
	s.commands = nil
	s.queueMu.Unlock()

	for _, c := range pending {
		switch c.kind {
		case cmdMove:
			s.moveParticles(c)
		case cmdSetMode:
			s.switchMode(c.mode)
		case cmdCycleMode:
			s.switchMode(s.boundary.Mode().Next())
		}
	}
}

// moveParticles runs one thread per moved particle.
func (s *Solver) moveParticles(c command) {
	if c.count == 0 {
		return
	}
	n := s.particles.Len()
	s.dev.DispatchThreads(c.count, func(g compute.Group) {
		for l := 0; l < g.Count; l++ {
			i := (c.begin + g.Base + l) % n
			s.particles.SetPosition(i, c.pos)
			s.particles.SetVelocity(i, c.vel)
		}
	})
	s.record(telemetry.NewMoveEvent(s.step, c.count))
}

func (s *Solver) switchMode(mode components.BoundaryMode) {
	from := s.boundary.Mode()
	if mode == from {
		return
	}
	if err := s.boundary.SetMode(mode); err != nil {
		slog.Error("failed to change boundary mode", "mode", mode.String(), "error", err)
		return
	}
	slog.Info("boundary mode changed",
		"from", from.String(),
		"to", mode.String(),
		"step", s.step,
		"wave_clock", s.boundary.Clock(),
	)
	s.record(telemetry.NewModeSwitchEvent(s.step, mode))
}
