package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberfall/emberfall/server/internal/config"
	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/nav"
)

// testStart is the fixed simulation epoch every room test begins at.
var testStart = time.Unix(1000, 0)

// fakeSession records everything the room sends to it.
type fakeSession struct {
	msgs   []any
	closed bool
}

func (f *fakeSession) Send(v any) { f.msgs = append(f.msgs, v) }
func (f *fakeSession) Close()     { f.closed = true }

// messagesOfType filters received messages by concrete type.
func messagesOfType[T any](f *fakeSession) []T {
	var out []T
	for _, m := range f.msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

const testAbilities = `
abilities:
  jab:
    name: Jab
    mana_cost: 0
    cooldown_ms: 1000
    cast_time_ms: 0
    min_range: 100
    requires_target: true
    target_effects:
      - property: health
        op: remove
        min: 5
        max: 5
  windup:
    name: Windup Bolt
    mana_cost: 10
    cooldown_ms: 2000
    cast_time_ms: 500
    min_range: 100
    requires_target: true
    target_effects:
      - property: health
        op: remove
        min: 8
        max: 8
  mend:
    name: Mend
    mana_cost: 5
    cooldown_ms: 1000
    cast_time_ms: 0
    requires_target: true
    self_cast_allowed: true
    target_effects:
      - property: health
        op: add
        min: 10
        max: 10
  nova:
    name: Nova
    mana_cost: 0
    cooldown_ms: 1000
    cast_time_ms: 0
    range: 6
    target_effects:
      - property: health
        op: remove
        min: 4
        max: 4
  reachjab:
    name: Reach Jab
    mana_cost: 0
    cooldown_ms: 1000
    cast_time_ms: 0
    min_range: 2
    requires_target: true
    target_effects:
      - property: health
        op: remove
        min: 5
        max: 5
  smite:
    name: Smite
    mana_cost: 0
    cooldown_ms: 1000
    cast_time_ms: 0
    animation_ms: 400
    min_range: 100
    requires_target: true
    target_effects:
      - property: health
        op: remove
        min: 5
        max: 5
`

const testItems = `
items:
  potion:
    name: Potion
    value: 10
    consumable: true
    heal_amount: 25
  rat_tail:
    name: Rat Tail
    value: 2
  helm:
    name: Helm
    slot: head
    value: 40
    armor: 5
`

const testRaces = `
races:
  human:
    name: Human
    speed: 0.5
    base_health: 100
    base_mana: 50
    regen_health: 0.5
    regen_mana: 1
  rat:
    name: Giant Rat
    speed: 0.3
    base_health: 30
    base_mana: 0
    regen_health: 0
    regen_mana: 0
`

const testQuests = `
quests:
  cull:
    name: Cull the Rats
    target_race: rat
    required_qty: 2
    reward_exp: 50
    reward_gold: 20
`

const testLocations = `
locations:
  arena:
    name: Arena
    mesh_file: arena.json
    spawn_point:
      x: 0
      y: 0
      z: 0
    spawners:
      - race: rat
        count: 1
        behavior: patrol
        aggro_radius: 5
        attack_range: 1.5
        attack_interval_ms: 500
        attack_damage: 3
        aggressive: true
        attackable: true
        search_period_ms: 3000
        exp_min: 10
        exp_max: 10
        gold_min: 2
        gold_max: 2
        loot:
          - key: rat_tail
            weight: 60
            min: 1
            max: 1
          - key: potion
            weight: 40
            min: 1
            max: 1
`

func testCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	dir := t.TempDir()
	tables := map[string]string{
		"abilities.yaml": testAbilities,
		"items.yaml":     testItems,
		"races.yaml":     testRaces,
		"quests.yaml":    testQuests,
		"locations.yaml": testLocations,
	}
	for name, body := range tables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	catalog, err := content.Load(dir)
	if err != nil {
		t.Fatalf("Failed to load test catalog: %v", err)
	}
	return catalog
}

// newTestRoom builds a room over one big walkable square, no store, fixed
// seed and epoch. Tests drive it with Tick directly; Run is never started.
func newTestRoom(t *testing.T) *Room {
	t.Helper()
	catalog := testCatalog(t)
	loc, _ := catalog.Location("arena")
	mesh := nav.NewMesh([]nav.Region{
		{ID: "floor", MinX: -50, MinZ: -50, MaxX: 50, MaxZ: 50},
	})

	cfg := config.DefaultConfig()
	return NewRoom(loc, mesh, catalog, cfg, nil, 1, testStart)
}

func testCharacter(id int64, name string) *database.Character {
	return &database.Character{
		ID:         id,
		AccountID:  1,
		Name:       name,
		Race:       "human",
		Location:   "arena",
		Level:      1,
		Health:     100,
		MaxHealth:  100,
		Mana:       50,
		MaxMana:    50,
		Hotbar: map[int]string{
			1: "jab",
			2: "windup",
			3: "mend",
			4: "nova",
			5: "reachjab",
			6: "potion",
			7: "smite",
		},
		Quests:    map[string]database.QuestState{},
		Equipment: map[string]string{},
	}
}

// joinPlayer adds a test character and returns its entity and session.
func joinPlayer(t *testing.T, r *Room, id int64, name string) (*Entity, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	char := testCharacter(id, name)
	inventory := map[string]int{"potion": 3, "helm": 1}
	abilities := []string{"jab", "windup", "mend", "nova", "reachjab", "smite"}

	sessionID, err := r.Join(sess, char, inventory, abilities)
	if err != nil {
		t.Fatalf("Failed to join %s: %v", name, err)
	}
	return r.entities[sessionID], sess
}

// findEnemy returns the first enemy in the room.
func findEnemy(t *testing.T, r *Room) *Entity {
	t.Helper()
	for _, e := range r.entities {
		if e.IsEnemy() {
			return e
		}
	}
	t.Fatal("No enemy in room")
	return nil
}

// endGrace ticks the room past the join grace window.
func endGrace(r *Room) time.Time {
	now := r.serverTime.Add(graceWindow + time.Second)
	r.Tick(now)
	return now
}
