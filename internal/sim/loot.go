package sim

import (
	"fmt"
	"time"

	"github.com/emberfall/emberfall/server/internal/leveling"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// dropJitter spreads loot drops around the corpse.
const dropJitter = 0.6

// groundItemTTL is how long an unclaimed drop stays in the world.
const groundItemTTL = 2 * time.Minute

// pickupRadius is how close a player must stand to collect a drop.
const pickupRadius = 1.0

// onEntityDeath is the single death path for every entity. It is idempotent:
// the Dead flag set by Die gates rewards so a victim can only pay out once.
func (r *Room) onEntityDeath(victim, attacker *Entity) {
	if victim.Dead {
		return
	}
	victim.Die()
	r.sched.Cancel(victim.SessionID, EventCastResolve, 0)

	if victim.IsPlayer() {
		r.sendTo(victim.SessionID, protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "combat",
			Message: "You died",
			Date:    r.serverTime.UnixMilli(),
		})
		r.sched.Schedule(victim.SessionID, EventRevive, 0, r.cfg.Simulation.RespawnDelay(), func() {
			victim.Revive()
		})
		return
	}

	if victim.IsEnemy() {
		if attacker != nil && attacker.IsPlayer() {
			r.awardKill(attacker, victim)
		}
		r.dropLoot(victim)

		spawn, point := victim.Spawn, victim.spawnPoint
		r.sched.Schedule(victim.SessionID, EventDespawn, 0, r.cfg.Simulation.DespawnDelay(), func() {
			r.removeEntity(victim.SessionID)
			// The refill is keyed off the corpse id so removing the dead
			// entity cannot cancel it.
			r.sched.Schedule("spawn:"+victim.SessionID, EventRespawn, 0,
				r.cfg.Simulation.RespawnDelay(), func() {
					r.spawnEnemy(spawn, point)
				})
		})
	}
}

// awardKill grants experience, gold, and quest progress for a kill.
func (r *Room) awardKill(killer, victim *Entity) {
	spawn := victim.Spawn
	exp := spatial.RandomIntInRange(r.rng, spawn.ExpMin, spawn.ExpMax)
	gold := spatial.RandomIntInRange(r.rng, spawn.GoldMin, spawn.GoldMax)

	killer.Player.Experience += exp
	killer.Player.Gold += gold
	r.sendTo(killer.SessionID, protocol.ServerMessageMsg{
		Type:    protocol.TypeServerMessage,
		Kind:    "combat",
		Message: fmt.Sprintf("You killed %s (+%d exp, +%d gold)", victim.Name, exp, gold),
		Date:    r.serverTime.UnixMilli(),
	})

	r.checkLevelUp(killer)
	r.progressQuests(killer, victim.Race)
}

// checkLevelUp recomputes the killer's level from total experience and applies
// the per-level gains, refilling vitals on each level gained.
func (r *Room) checkLevelUp(e *Entity) {
	newLevel := leveling.LevelForExperience(e.Player.Experience)
	for e.Level < newLevel {
		e.Level++
		gains := leveling.GainsForLevelUp(e.Level)
		e.MaxHealth += gains.HealthGain
		e.MaxMana += gains.ManaGain
		e.Player.Points += gains.PointsGain
		e.Health = e.MaxHealth
		e.Mana = e.MaxMana

		logger.Info("Player leveled up", "name", e.Name, "level", e.Level)
		r.sendTo(e.SessionID, protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "info",
			Message: fmt.Sprintf("You reached level %d!", e.Level),
			Date:    r.serverTime.UnixMilli(),
		})
	}
}

// progressQuests bumps every active quest that counts the victim's race.
func (r *Room) progressQuests(e *Entity, race string) {
	for key, state := range e.Player.Quests {
		if state.Status != "active" {
			continue
		}
		quest, ok := r.catalog.Quest(key)
		if !ok || quest.TargetRace != race || state.Qty >= quest.RequiredQty {
			continue
		}

		state.Qty++
		if state.Qty >= quest.RequiredQty {
			state.Status = "complete"
			r.sendTo(e.SessionID, protocol.ServerMessageMsg{
				Type:    protocol.TypeServerMessage,
				Kind:    "info",
				Message: fmt.Sprintf("Quest complete: %s", quest.Name),
				Date:    r.serverTime.UnixMilli(),
			})
		}
		e.Player.Quests[key] = state
	}
}

// dropLoot rolls the victim's loot table once and spawns at most one stack
// near the corpse.
func (r *Room) dropLoot(victim *Entity) {
	table := victim.Spawn.Loot
	if len(table) == 0 {
		return
	}

	weights := make([]int, len(table))
	for i, entry := range table {
		weights[i] = entry.Weight
	}
	idx := spatial.WeightedIndex(r.rng, weights)
	if idx < 0 {
		return
	}

	entry := table[idx]
	if _, ok := r.catalog.Item(entry.Key); !ok {
		logger.Warning("Loot table references unknown item", "key", entry.Key)
		return
	}
	qty := spatial.RandomIntInRange(r.rng, entry.Min, entry.Max)
	if qty <= 0 {
		return
	}

	pos := spatial.Jitter(r.rng, victim.Pos, dropJitter)
	r.spawnGroundItem(entry.Key, qty, pos)
}

// spawnGroundItem places a drop in the world with an expiry.
func (r *Room) spawnGroundItem(key string, qty int, pos spatial.Vec3) *Entity {
	r.nextID++
	id := fmt.Sprintf("drop-%d", r.nextID)
	item := NewGroundItemEntity(id, key, qty, pos)
	r.entities[id] = item

	r.sched.Schedule(id, EventDespawn, 0, groundItemTTL, func() {
		r.removeEntity(id)
	})
	return item
}

// collectNearbyDrops picks up any ground item the player stands on, merging
// it into the inventory stack.
func (r *Room) collectNearbyDrops(e *Entity) {
	if e.Dead {
		return
	}
	for id, drop := range r.entities {
		if drop.Type != TypeItem {
			continue
		}
		if spatial.Distance(e.Pos, drop.Pos) > pickupRadius {
			continue
		}

		e.Player.Inventory[drop.Item.Key] += drop.Item.Qty
		r.removeEntity(id)

		name := drop.Item.Key
		if item, ok := r.catalog.Item(drop.Item.Key); ok {
			name = item.Name
		}
		r.sendTo(e.SessionID, protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "loot",
			Message: fmt.Sprintf("Picked up %s x%d", name, drop.Item.Qty),
			Date:    r.serverTime.UnixMilli(),
		})
	}
}
