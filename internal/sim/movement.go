package sim

import (
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/nav"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// arriveEpsilon is how close an entity must come to a waypoint to pop it.
const arriveEpsilon = 0.05

// Movement validates and applies position changes against the navigation
// mesh, for both client-driven players and path-following AI entities.
type Movement struct {
	mesh *nav.Mesh
}

// NewMovement creates a movement controller over a loaded mesh.
func NewMovement(mesh *nav.Mesh) *Movement {
	return &Movement{mesh: mesh}
}

// ProcessInput reconciles one client movement sample. The candidate position
// is derived from the directional axes and the entity's speed, then validated
// as a straight segment on the mesh. The input sequence number is recorded
// whether or not the move commits, so the client can discard its prediction.
func (m *Movement) ProcessInput(e *Entity, h, v float64, seq uint32) bool {
	if e.Blocked {
		e.Sequence = seq
		return false
	}

	oldPos := e.Pos
	oldRot := e.Rot

	e.Pos.X -= h * e.Speed
	e.Pos.Z -= v * e.Speed
	e.Rot = spatial.Facing(h, v)

	if !m.mesh.CheckPath(oldPos, e.Pos) {
		e.Pos = oldPos
		e.Rot = oldRot
		e.Sequence = seq
		e.AnimState = AnimIdle
		return false
	}

	e.Sequence = seq
	if h != 0 || v != 0 {
		e.AnimState = AnimWalk
	} else {
		e.AnimState = AnimIdle
	}
	return true
}

// SetDestination computes a waypoint path to dest and installs it as the
// entity's queue. Returns false when no path exists; the entity's previous
// queue is cleared either way.
func (m *Movement) SetDestination(e *Entity, dest spatial.Vec3) bool {
	e.waypoints = nil

	path := m.mesh.FindPath(e.Pos, dest)
	if path == nil {
		logger.Debug("No path to destination",
			"entity", e.SessionID,
			"dest_x", dest.X,
			"dest_z", dest.Z)
		return false
	}

	e.waypoints = path
	return true
}

// HasDestination reports whether the entity still has waypoints queued.
func (m *Movement) HasDestination(e *Entity) bool {
	return len(e.waypoints) > 0
}

// MoveTowards advances the entity one step toward the head waypoint at its
// speed, popping the waypoint on arrival and facing the direction of travel.
// Returns true once the queue is exhausted (arrived).
func (m *Movement) MoveTowards(e *Entity) bool {
	if len(e.waypoints) == 0 {
		return true
	}
	if e.Blocked {
		return false
	}

	head := e.waypoints[0]
	dist := spatial.Distance(e.Pos, head)

	if dist <= arriveEpsilon {
		e.Pos = head
		e.waypoints = e.waypoints[1:]
	} else {
		step := e.Speed
		if step > dist {
			step = dist
		}
		t := step / dist
		e.Rot = spatial.FaceTowards(e.Pos, head)
		e.Pos.X += (head.X - e.Pos.X) * t
		e.Pos.Y += (head.Y - e.Pos.Y) * t
		e.Pos.Z += (head.Z - e.Pos.Z) * t
		if spatial.Distance(e.Pos, head) <= arriveEpsilon {
			e.Pos = head
			e.waypoints = e.waypoints[1:]
		}
	}

	if len(e.waypoints) == 0 {
		e.AnimState = AnimIdle
		return true
	}
	e.AnimState = AnimWalk
	return false
}

// ResetDestination clears the waypoint queue. AI calls this when a path
// fails or a chase is abandoned.
func (m *Movement) ResetDestination(e *Entity) {
	e.waypoints = nil
	if !e.Dead {
		e.AnimState = AnimIdle
	}
}

// Mesh exposes the room's navigation mesh to the AI for destination rolls.
func (m *Movement) Mesh() *nav.Mesh {
	return m.mesh
}
