package sim

import (
	"time"

	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// BrainState is one state of the enemy decision machine.
type BrainState string

const (
	StateIdle   BrainState = "idle"
	StatePatrol BrainState = "patrol"
	StateChase  BrainState = "chase"
	StateAttack BrainState = "attack"
	StateDead   BrainState = "dead"
)

// Patrol pacing, in room time.
const (
	patrolPauseMin = 2 * time.Second
	patrolPauseMax = 6 * time.Second
	repathInterval = 500 * time.Millisecond
)

// Brain drives one enemy entity through idle, patrol, chase, and attack. It
// is stepped once per tick on the room goroutine and never touches any state
// outside its entity and the room it is handed.
type Brain struct {
	e *Entity

	state    BrainState
	targetID string

	// nextDecision gates patrol destination rolls and re-paths.
	nextDecision time.Time
	// giveUpAt bounds a chase; past it the enemy returns to patrol.
	giveUpAt time.Time
	// nextAttack paces melee swings while in attack range.
	nextAttack time.Time
}

// NewBrain creates a brain in the idle state.
func NewBrain(e *Entity) *Brain {
	return &Brain{e: e, state: StateIdle}
}

// State returns the current decision state.
func (b *Brain) State() BrainState {
	return b.state
}

// SetDead moves the brain to its terminal state. Respawn builds a fresh
// entity with a fresh brain, so there is no way back out.
func (b *Brain) SetDead() {
	b.state = StateDead
	b.targetID = ""
}

// Update advances the machine one tick.
func (b *Brain) Update(r *Room) {
	if b.state == StateDead {
		return
	}
	now := r.serverTime
	spawn := b.e.Spawn

	switch b.state {
	case StateIdle:
		if b.tryAggro(r, now) {
			return
		}
		if spawn.Behavior != content.BehaviorPatrol {
			return
		}
		if now.Before(b.nextDecision) {
			return
		}
		b.startPatrol(r, now)

	case StatePatrol:
		if b.tryAggro(r, now) {
			return
		}
		if r.movement.MoveTowards(b.e) {
			b.state = StateIdle
			b.nextDecision = now.Add(b.pause(r))
		}

	case StateChase:
		target := b.chaseTarget(r)
		if target == nil || now.After(b.giveUpAt) {
			b.abandonChase(r, now)
			return
		}
		if spatial.Distance(b.e.Pos, target.Pos) <= spawn.AttackRange {
			r.movement.ResetDestination(b.e)
			b.state = StateAttack
			b.nextAttack = now
			return
		}
		if !now.Before(b.nextDecision) {
			r.movement.SetDestination(b.e, target.Pos)
			b.nextDecision = now.Add(repathInterval)
		}
		if !r.movement.HasDestination(b.e) {
			// No route to the target; wait out the search window in place.
			return
		}
		r.movement.MoveTowards(b.e)

	case StateAttack:
		target := b.chaseTarget(r)
		if target == nil {
			b.abandonChase(r, now)
			return
		}
		if spatial.Distance(b.e.Pos, target.Pos) > spawn.AttackRange {
			b.state = StateChase
			b.giveUpAt = now.Add(time.Duration(spawn.SearchPeriodMS) * time.Millisecond)
			b.nextDecision = now
			return
		}
		b.e.Rot = spatial.FaceTowards(b.e.Pos, target.Pos)
		if now.Before(b.nextAttack) {
			return
		}
		b.e.AnimState = AnimAttack
		r.applyDamage(target, b.e, spawn.AttackDamage)
		b.nextAttack = now.Add(time.Duration(spawn.AttackIntervalMS) * time.Millisecond)
	}
}

// tryAggro scans for the closest living player within the aggro radius and
// opens a chase on it. Players inside their join grace window are invisible
// to the scan.
func (b *Brain) tryAggro(r *Room, now time.Time) bool {
	if !b.e.Spawn.Aggressive {
		return false
	}

	radiusSq := b.e.Spawn.AggroRadius * b.e.Spawn.AggroRadius
	var closest *Entity
	closestSq := radiusSq

	for _, t := range r.entities {
		if !t.IsPlayer() || t.Dead || t.InGrace(now) {
			continue
		}
		d := spatial.DistanceSq(b.e.Pos, t.Pos)
		if d <= closestSq {
			closest = t
			closestSq = d
		}
	}
	if closest == nil {
		return false
	}

	b.state = StateChase
	b.targetID = closest.SessionID
	b.giveUpAt = now.Add(time.Duration(b.e.Spawn.SearchPeriodMS) * time.Millisecond)
	b.nextDecision = now
	return true
}

// chaseTarget resolves the current target, or nil once it is gone or dead.
func (b *Brain) chaseTarget(r *Room) *Entity {
	target := r.entities[b.targetID]
	if target == nil || target.Dead || !target.IsPlayer() {
		return nil
	}
	return target
}

// startPatrol rolls a random mesh region and walks to its center.
func (b *Brain) startPatrol(r *Room, now time.Time) {
	dest := r.mesh.RandomRegion(r.rng)
	if !r.movement.SetDestination(b.e, dest) {
		b.nextDecision = now.Add(b.pause(r))
		return
	}
	b.state = StatePatrol
}

// abandonChase drops the target and returns to idle, resuming patrol on the
// next decision roll.
func (b *Brain) abandonChase(r *Room, now time.Time) {
	b.targetID = ""
	b.state = StateIdle
	b.nextDecision = now.Add(b.pause(r))
	r.movement.ResetDestination(b.e)
}

func (b *Brain) pause(r *Room) time.Duration {
	span := float64(patrolPauseMax - patrolPauseMin)
	return patrolPauseMin + time.Duration(r.rng.Float64()*span)
}
