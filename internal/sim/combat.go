package sim

import (
	"fmt"
	"time"

	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// HandleCast processes a cast request for the ability or item bound to the
// given hotbar digit. Every precondition is checked server-side; a request
// that fails any of them is dropped with a notification and no state change.
func (r *Room) HandleCast(e *Entity, digit int, targetID string) {
	if e.Dead {
		return
	}
	if e.casting || e.animating {
		return
	}

	key, ok := e.Player.Hotbar[digit]
	if !ok {
		return
	}

	// A hotbar slot holds either a learned ability or a consumable item.
	ability, isAbility := r.catalog.Ability(key)
	if !isAbility {
		if item, isItem := r.catalog.Item(key); isItem && item.Consumable {
			r.useConsumable(e, item)
		}
		return
	}
	if !e.Player.Abilities[key] {
		return
	}

	if e.cooldowns[digit] {
		return
	}
	if e.globalCooldown {
		return
	}
	if e.Mana < ability.ManaCost {
		r.sendTo(e.SessionID, protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "combat",
			Message: "Not enough mana",
			Date:    r.serverTime.UnixMilli(),
		})
		return
	}

	var target *Entity
	if ability.RequiresTarget {
		target = r.entities[targetID]
		if target == nil || target.Dead {
			return
		}
		if target == e && !ability.SelfCastAllowed {
			return
		}
		if target.IsEnemy() && !target.Spawn.Attackable {
			return
		}

		// Out of reach: walk into range first, then cast on arrival.
		if ability.MinRange > 0 && target != e &&
			spatial.Distance(e.Pos, target.Pos) > ability.MinRange {
			if r.movement.SetDestination(e, target.Pos) {
				e.pendingDigit = digit
				e.pendingTarget = targetID
			}
			return
		}
	}

	r.beginCast(e, ability, digit, targetID)
}

// beginCast starts the wind-up, or resolves immediately for instant abilities.
func (r *Room) beginCast(e *Entity, ability *content.Ability, digit int, targetID string) {
	e.pendingDigit = 0
	e.pendingTarget = ""
	r.movement.ResetDestination(e)

	if target := r.entities[targetID]; target != nil && target != e {
		e.Rot = spatial.FaceTowards(e.Pos, target.Pos)
	}

	if ability.CastTimeMS <= 0 {
		r.resolveCast(e, ability, digit, targetID)
		return
	}

	e.casting = true
	e.AnimState = AnimCast
	r.sendTo(e.SessionID, protocol.CastingStartMsg{Type: protocol.TypeCastingStart, Digit: digit})

	r.sched.Schedule(e.SessionID, EventCastResolve, 0,
		time.Duration(ability.CastTimeMS)*time.Millisecond, func() {
			e.casting = false
			r.resolveCast(e, ability, digit, targetID)
		})
}

// CancelCast interrupts a pending wind-up, typically because the caster moved.
func (r *Room) CancelCast(e *Entity) {
	if !e.casting {
		return
	}
	e.casting = false
	if e.AnimState == AnimCast {
		e.AnimState = AnimIdle
	}
	r.sched.Cancel(e.SessionID, EventCastResolve, 0)
	r.sendTo(e.SessionID, protocol.CastingCancelMsg{Type: protocol.TypeCastingCancel})
}

// resolveCast re-validates the cast after any wind-up, deducts mana, starts
// both cooldowns, applies the effects, and announces the cast to the room.
func (r *Room) resolveCast(e *Entity, ability *content.Ability, digit int, targetID string) {
	if e.Dead {
		return
	}

	var target *Entity
	if ability.RequiresTarget {
		target = r.entities[targetID]
		if target == nil || target.Dead ||
			(target.IsEnemy() && !target.Spawn.Attackable) {
			r.sendTo(e.SessionID, protocol.CastingCancelMsg{Type: protocol.TypeCastingCancel})
			return
		}
	}
	if e.Mana < ability.ManaCost {
		r.sendTo(e.SessionID, protocol.CastingCancelMsg{Type: protocol.TypeCastingCancel})
		return
	}

	e.Mana -= ability.ManaCost
	e.NormalizeVitals()

	// Both cooldown windows begin once the cast animation completes, so the
	// flags go up now and the expiry timers start from the animation callback.
	e.cooldowns[digit] = true
	e.globalCooldown = true
	startCooldowns := func() {
		r.sched.Schedule(e.SessionID, EventCooldown, digit,
			time.Duration(ability.CooldownMS)*time.Millisecond, func() {
				delete(e.cooldowns, digit)
			})
		r.sched.Schedule(e.SessionID, EventGlobalCooldown, 0, r.cfg.Simulation.GlobalCooldown(), func() {
			e.globalCooldown = false
		})
	}

	if ability.AnimationMS > 0 {
		e.animating = true
		e.AnimState = AnimAttack
		r.sched.Schedule(e.SessionID, EventAnimation, 0,
			time.Duration(ability.AnimationMS)*time.Millisecond, func() {
				e.animating = false
				if !e.Dead {
					e.AnimState = AnimIdle
				}
				startCooldowns()
			})
	} else {
		startCooldowns()
	}

	for _, effect := range ability.CasterEffects {
		r.applyEffect(e, e, effect)
	}

	var damage float64
	if ability.Range > 0 {
		for _, t := range r.areaTargets(e, ability) {
			damage = r.applyTargetEffects(e, t, ability)
		}
	} else if target != nil {
		damage = r.applyTargetEffects(e, target, ability)
	}

	r.broadcast(protocol.AbilityCastMsg{
		Type:     protocol.TypeAbilityCast,
		Key:      ability.Key,
		Digit:    digit,
		FromID:   e.SessionID,
		TargetID: targetID,
		Damage:   damage,
	})
}

// areaTargets collects the entities an area ability can hit: living entities
// within the radius on the opposing side, never the caster unless the ability
// allows self-casting.
func (r *Room) areaTargets(caster *Entity, ability *content.Ability) []*Entity {
	var out []*Entity
	for _, t := range r.entities {
		if t.Dead || t.Type == TypeItem {
			continue
		}
		if t == caster {
			if ability.SelfCastAllowed {
				out = append(out, t)
			}
			continue
		}
		if spatial.Distance(caster.Pos, t.Pos) > ability.Range {
			continue
		}
		if caster.IsEnemy() {
			if !t.IsPlayer() {
				continue
			}
		} else {
			if t.IsEnemy() && !t.Spawn.Attackable {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// applyTargetEffects rolls and applies every target effect, returning the
// total health damage dealt for the cast announcement.
func (r *Room) applyTargetEffects(caster, target *Entity, ability *content.Ability) float64 {
	var damage float64
	for _, effect := range ability.TargetEffects {
		delta := r.applyEffect(caster, target, effect)
		if effect.Property == "health" && effect.Op == content.OpRemove {
			damage += delta
		}
	}
	return damage
}

// applyEffect rolls one effect magnitude, scales it by the caster's level,
// and applies it to the target property. Returns the applied magnitude.
func (r *Room) applyEffect(caster, target *Entity, effect content.Effect) float64 {
	magnitude := spatial.RandomInRange(r.rng, effect.Min, effect.Max)
	magnitude *= 1 + float64(caster.Level)/10

	switch effect.Property {
	case "health":
		switch effect.Op {
		case content.OpAdd:
			target.Health += magnitude
		case content.OpRemove:
			r.applyDamage(target, caster, magnitude)
		case content.OpMultiply:
			target.Health *= magnitude
		}
	case "mana":
		switch effect.Op {
		case content.OpAdd:
			target.Mana += magnitude
		case content.OpRemove:
			target.Mana -= magnitude
		case content.OpMultiply:
			target.Mana *= magnitude
		}
	default:
		logger.Warning("Unknown effect property", "property", effect.Property)
		return 0
	}

	target.NormalizeVitals()
	return magnitude
}

// applyDamage subtracts health and routes a lethal hit into the death path.
func (r *Room) applyDamage(victim, attacker *Entity, amount float64) {
	if victim.Dead {
		return
	}
	victim.Health -= amount
	victim.NormalizeVitals()
	if victim.Health <= 0 {
		r.onEntityDeath(victim, attacker)
	}
}

// useConsumable applies a consumable item from the hotbar and decrements the
// stack, removing the hotbar binding when the stack runs out.
func (r *Room) useConsumable(e *Entity, item *content.Item) {
	if e.Player.Inventory[item.Key] <= 0 {
		return
	}

	e.Health += item.HealAmount
	e.Mana += item.ManaAmount
	e.NormalizeVitals()

	e.Player.Inventory[item.Key]--
	if e.Player.Inventory[item.Key] <= 0 {
		delete(e.Player.Inventory, item.Key)
		for digit, key := range e.Player.Hotbar {
			if key == item.Key {
				delete(e.Player.Hotbar, digit)
			}
		}
	}

	r.sendTo(e.SessionID, protocol.ServerMessageMsg{
		Type:    protocol.TypeServerMessage,
		Kind:    "info",
		Message: fmt.Sprintf("You use %s", item.Name),
		Date:    r.serverTime.UnixMilli(),
	})
}

// tryPendingCast retries a deferred move-then-cast once per tick. The intent
// survives until the caster arrives in range, the target dies, or the player
// issues a new command.
func (r *Room) tryPendingCast(e *Entity) {
	if e.pendingTarget == "" || e.casting || e.Dead {
		return
	}

	target := r.entities[e.pendingTarget]
	if target == nil || target.Dead {
		e.pendingDigit = 0
		e.pendingTarget = ""
		r.movement.ResetDestination(e)
		return
	}

	key, ok := e.Player.Hotbar[e.pendingDigit]
	if !ok {
		e.pendingTarget = ""
		return
	}
	ability, ok := r.catalog.Ability(key)
	if !ok {
		e.pendingTarget = ""
		return
	}

	if spatial.Distance(e.Pos, target.Pos) <= ability.MinRange {
		digit, targetID := e.pendingDigit, e.pendingTarget
		e.pendingDigit = 0
		e.pendingTarget = ""
		r.HandleCast(e, digit, targetID)
		return
	}

	// Target moved; keep the path fresh.
	r.movement.SetDestination(e, target.Pos)
	r.movement.MoveTowards(e)
}
