package sim

import (
	"testing"
	"time"

	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

func TestBrainStaticStaysIdle(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Behavior = content.BehaviorStatic
	rat.Spawn.Aggressive = false
	pos := rat.Pos

	now := testStart
	for i := 0; i < 20; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Tick(now)
	}

	if rat.brain.State() != StateIdle {
		t.Errorf("Static enemy should stay idle, got %s", rat.brain.State())
	}
	if rat.Pos != pos {
		t.Errorf("Static enemy should not move, got %+v", rat.Pos)
	}
}

func TestBrainPatrolRoundTrip(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Aggressive = false
	rat.Pos = spatial.Vec3{X: 10, Z: 10}

	// First decision roll starts a patrol towards a region center.
	now := testStart.Add(100 * time.Millisecond)
	r.Tick(now)
	if rat.brain.State() != StatePatrol {
		t.Fatalf("Expected patrol after the first decision, got %s", rat.brain.State())
	}

	// Walk until arrival; the single-region mesh always routes to (0, 0).
	for i := 0; i < 200 && rat.brain.State() == StatePatrol; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Tick(now)
	}

	if rat.brain.State() != StateIdle {
		t.Fatalf("Patrol should end back in idle, got %s", rat.brain.State())
	}
	if spatial.Distance(rat.Pos, spatial.Vec3{}) > 0.5 {
		t.Errorf("Patrol should arrive near the region center, at %+v", rat.Pos)
	}
}

func TestBrainAggroChaseAttack(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Behavior = content.BehaviorStatic
	rat.Pos = spatial.Vec3{X: 3, Z: 0}
	rat.spawnPoint = rat.Pos

	e, _ := joinPlayer(t, r, 1, "Hero")
	e.RegenHealth = 0

	// Inside the grace window the rat must not aggro.
	r.Tick(testStart.Add(100 * time.Millisecond))
	if rat.brain.State() != StateIdle {
		t.Fatalf("Aggro during grace, state %s", rat.brain.State())
	}

	// Past grace it opens a chase and closes to attack range.
	now := testStart.Add(graceWindow + time.Second)
	r.Tick(now)
	if rat.brain.State() != StateChase {
		t.Fatalf("Expected chase after grace, got %s", rat.brain.State())
	}

	for i := 0; i < 50 && rat.brain.State() == StateChase; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Tick(now)
	}
	if rat.brain.State() != StateAttack {
		t.Fatalf("Expected attack once in range, got %s", rat.brain.State())
	}

	// Swings land on the attack interval.
	before := e.Health
	for i := 0; i < 10; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Tick(now)
	}
	if e.Health >= before {
		t.Errorf("Expected melee damage, health still %f", e.Health)
	}
}

func TestBrainAbandonsChase(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Behavior = content.BehaviorStatic
	rat.Pos = spatial.Vec3{X: 3, Z: 0}

	e, _ := joinPlayer(t, r, 1, "Hero")

	now := testStart.Add(graceWindow + time.Second)
	r.Tick(now)
	if rat.brain.State() != StateChase {
		t.Fatalf("Expected chase, got %s", rat.brain.State())
	}

	// The target escapes beyond the aggro radius; the search window
	// (3000ms) runs out and the rat goes home to idle.
	e.Pos = spatial.Vec3{X: 45, Z: 45}
	for i := 0; i < 60; i++ {
		now = now.Add(100 * time.Millisecond)
		r.Tick(now)
	}

	if rat.brain.State() == StateChase || rat.brain.State() == StateAttack {
		t.Errorf("Chase should be abandoned after the search window, got %s", rat.brain.State())
	}
	if rat.brain.targetID != "" {
		t.Error("Abandoning a chase must clear the target")
	}
}

func TestBrainIgnoresDeadPlayers(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Behavior = content.BehaviorStatic
	rat.Pos = spatial.Vec3{X: 2, Z: 0}

	e, _ := joinPlayer(t, r, 1, "Hero")
	e.Die()

	r.Tick(testStart.Add(graceWindow + time.Second))
	if rat.brain.State() != StateIdle {
		t.Errorf("Dead players must be invisible to aggro, state %s", rat.brain.State())
	}
}

func TestBrainDropsTargetWhenItDies(t *testing.T) {
	r := newTestRoom(t)
	rat := findEnemy(t, r)
	rat.Spawn.Behavior = content.BehaviorStatic
	rat.Pos = spatial.Vec3{X: 3, Z: 0}

	e, _ := joinPlayer(t, r, 1, "Hero")

	now := testStart.Add(graceWindow + time.Second)
	r.Tick(now)
	if rat.brain.State() != StateChase {
		t.Fatalf("Expected chase, got %s", rat.brain.State())
	}

	e.Die()
	r.Tick(now.Add(100 * time.Millisecond))
	if rat.brain.State() != StateIdle {
		t.Errorf("Chase should end when the target dies, got %s", rat.brain.State())
	}
}
