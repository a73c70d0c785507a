// Package sim implements the authoritative per-room simulation: the
// replicated entity records, movement reconciliation, ability casting and
// combat, enemy AI, loot, and the fixed-rate room loop that ties them
// together and diff-syncs state to every connected client.
package sim

import (
	"time"

	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// EntityType distinguishes the three kinds of replicated records.
type EntityType string

const (
	TypePlayer EntityType = "player"
	TypeEnemy  EntityType = "entity"
	TypeItem   EntityType = "item"
)

// AnimState is the animation signal replicated to clients.
type AnimState string

const (
	AnimIdle   AnimState = "idle"
	AnimWalk   AnimState = "walk"
	AnimAttack AnimState = "attack"
	AnimCast   AnimState = "cast"
	AnimDie    AnimState = "die"
)

// PlayerData is the player-only nested record.
type PlayerData struct {
	CharacterID  int64
	AccountID    int64
	Strength     int
	Endurance    int
	Agility      int
	Intelligence int
	Wisdom       int
	ArmorClass   int
	Experience   int
	Points       int
	Gold         int
	Inventory    map[string]int              // item key → quantity
	Abilities    map[string]bool             // learned ability keys
	Hotbar       map[int]string              // slot digit → ability or item key
	Quests       map[string]database.QuestState
	Equipment    map[string]string           // slot → item key
}

// GroundItem is the ground-item-only record.
type GroundItem struct {
	Key string
	Qty int
}

// Entity is one replicated entity record: a player, an enemy, or a ground
// item. All mutation happens on the owning room's goroutine.
type Entity struct {
	SessionID string
	Type      EntityType
	Race      string
	Name      string

	Pos spatial.Vec3
	Rot float64

	Health    float64
	MaxHealth float64
	Mana      float64
	MaxMana   float64
	Level     int

	Blocked   bool
	Dead      bool
	AnimState AnimState
	Sequence  uint32

	Speed       float64
	RegenHealth float64
	RegenMana   float64

	Player *PlayerData
	Spawn  *content.SpawnDef
	Item   *GroundItem

	// spawnPoint is where an enemy respawns and a dead player revives.
	spawnPoint spatial.Vec3

	// graceUntil shields a freshly joined player from aggro scans.
	graceUntil time.Time

	// movement waypoint queue, head first
	waypoints []spatial.Vec3

	// combat state
	cooldowns      map[int]bool
	globalCooldown bool
	casting        bool // wind-up pending
	animating      bool // post-cast animation lock
	pendingDigit   int
	pendingTarget  string // session id of the move-then-cast target

	brain *Brain // enemies only
}

// NewPlayerEntity builds a player record from a character row and its race,
// mapping each field explicitly.
func NewPlayerEntity(sessionID string, char *database.Character, race *content.Race,
	inventory map[string]int, abilities []string) *Entity {

	learned := make(map[string]bool, len(abilities))
	for _, key := range abilities {
		learned[key] = true
	}

	hotbar := make(map[int]string, len(char.Hotbar))
	for digit, key := range char.Hotbar {
		hotbar[digit] = key
	}
	quests := make(map[string]database.QuestState, len(char.Quests))
	for key, state := range char.Quests {
		quests[key] = state
	}
	equipment := make(map[string]string, len(char.Equipment))
	for slot, key := range char.Equipment {
		equipment[slot] = key
	}
	if inventory == nil {
		inventory = make(map[string]int)
	}

	e := &Entity{
		SessionID: sessionID,
		Type:      TypePlayer,
		Race:      char.Race,
		Name:      char.Name,
		Pos:       spatial.Vec3{X: char.X, Y: char.Y, Z: char.Z},
		Rot:       char.Rot,
		Health:    char.Health,
		MaxHealth: char.MaxHealth,
		Mana:      char.Mana,
		MaxMana:   char.MaxMana,
		Level:     char.Level,
		AnimState: AnimIdle,
		Speed:     race.Speed,
		RegenHealth: race.RegenHealth,
		RegenMana:   race.RegenMana,
		Player: &PlayerData{
			CharacterID:  char.ID,
			AccountID:    char.AccountID,
			Strength:     char.Strength,
			Endurance:    char.Endurance,
			Agility:      char.Agility,
			Intelligence: char.Intelligence,
			Wisdom:       char.Wisdom,
			Experience:   char.Experience,
			Points:       char.Points,
			Gold:         char.Gold,
			Inventory:    inventory,
			Abilities:    learned,
			Hotbar:       hotbar,
			Quests:       quests,
			Equipment:    equipment,
		},
		spawnPoint: spatial.Vec3{X: char.X, Y: char.Y, Z: char.Z},
		cooldowns:  make(map[int]bool),
	}
	e.NormalizeVitals()
	return e
}

// NewEnemyEntity builds an enemy record from its race and spawn definition.
func NewEnemyEntity(sessionID string, race *content.Race, spawn *content.SpawnDef, pos spatial.Vec3) *Entity {
	e := &Entity{
		SessionID:   sessionID,
		Type:        TypeEnemy,
		Race:        race.Key,
		Name:        race.Name,
		Pos:         pos,
		Health:      race.BaseHealth,
		MaxHealth:   race.BaseHealth,
		Mana:        race.BaseMana,
		MaxMana:     race.BaseMana,
		Level:       1,
		AnimState:   AnimIdle,
		Speed:       race.Speed,
		RegenHealth: race.RegenHealth,
		RegenMana:   race.RegenMana,
		Spawn:       spawn,
		spawnPoint:  pos,
		cooldowns:   make(map[int]bool),
	}
	e.brain = NewBrain(e)
	return e
}

// NewGroundItemEntity builds a ground-item record at a drop position.
func NewGroundItemEntity(sessionID, itemKey string, qty int, pos spatial.Vec3) *Entity {
	return &Entity{
		SessionID: sessionID,
		Type:      TypeItem,
		Pos:       pos,
		Item:      &GroundItem{Key: itemKey, Qty: qty},
	}
}

// NormalizeVitals clamps health and mana into [0, max]. Every mutation path
// calls this before the record is observable by clients.
func (e *Entity) NormalizeVitals() {
	if e.Health < 0 {
		e.Health = 0
	}
	if e.Health > e.MaxHealth {
		e.Health = e.MaxHealth
	}
	if e.Mana < 0 {
		e.Mana = 0
	}
	if e.Mana > e.MaxMana {
		e.Mana = e.MaxMana
	}
}

// Die marks the entity dead: blocked, zero health, death animation, target
// and path cleared. Idempotent.
func (e *Entity) Die() {
	if e.Dead {
		return
	}
	e.Dead = true
	e.Blocked = true
	e.Health = 0
	e.AnimState = AnimDie
	e.waypoints = nil
	e.casting = false
	e.pendingTarget = ""
	if e.brain != nil {
		e.brain.SetDead()
	}
}

// Revive restores a dead player at its spawn point with full vitals.
func (e *Entity) Revive() {
	e.Dead = false
	e.Blocked = false
	e.Health = e.MaxHealth
	e.Mana = e.MaxMana
	e.AnimState = AnimIdle
	e.Pos = e.spawnPoint
}

// IsPlayer reports whether this record is a player.
func (e *Entity) IsPlayer() bool { return e.Type == TypePlayer }

// IsEnemy reports whether this record is an enemy.
func (e *Entity) IsEnemy() bool { return e.Type == TypeEnemy }

// InGrace reports whether the player is still in its post-join grace window.
func (e *Entity) InGrace(now time.Time) bool {
	return now.Before(e.graceUntil)
}

// replicationFields returns the client-observable fields for diff sync.
func (e *Entity) replicationFields() map[string]any {
	fields := map[string]any{
		"type":      string(e.Type),
		"race":      e.Race,
		"name":      e.Name,
		"x":         e.Pos.X,
		"y":         e.Pos.Y,
		"z":         e.Pos.Z,
		"rot":       e.Rot,
		"blocked":   e.Blocked,
		"animState": string(e.AnimState),
	}

	if e.Type == TypeItem {
		fields["key"] = e.Item.Key
		fields["qty"] = e.Item.Qty
		return fields
	}

	fields["health"] = e.Health
	fields["maxHealth"] = e.MaxHealth
	fields["mana"] = e.Mana
	fields["maxMana"] = e.MaxMana
	fields["level"] = e.Level

	if e.Player != nil {
		fields["sequence"] = e.Sequence
		fields["experience"] = e.Player.Experience
		fields["points"] = e.Player.Points
		fields["gold"] = e.Player.Gold
		fields["inventory"] = copyIntMap(e.Player.Inventory)
		fields["hotbar"] = copyHotbar(e.Player.Hotbar)
		fields["equipment"] = copyStringMap(e.Player.Equipment)
		fields["quests"] = copyQuests(e.Player.Quests)
	}

	return fields
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyHotbar(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyQuests(m map[string]database.QuestState) map[string]database.QuestState {
	out := make(map[string]database.QuestState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
