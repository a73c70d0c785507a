package sim

import (
	"fmt"

	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// sellRateDivisor halves an item's value when selling back to the vendor.
const sellRateDivisor = 2

// HandleBuyItem purchases qty of an item from the vendor for gold.
func (r *Room) HandleBuyItem(e *Entity, key string, qty int) {
	if e.Dead {
		return
	}
	if qty <= 0 {
		qty = 1
	}
	item, ok := r.catalog.Item(key)
	if !ok {
		return
	}

	cost := item.Value * qty
	if e.Player.Gold < cost {
		r.notify(e, "info", "Not enough gold")
		return
	}

	e.Player.Gold -= cost
	e.Player.Inventory[key] += qty
	r.notify(e, "info", fmt.Sprintf("Bought %s x%d for %d gold", item.Name, qty, cost))
}

// HandleSellItem sells qty of an inventory stack back to the vendor at half
// value. Equipped items must be unequipped first.
func (r *Room) HandleSellItem(e *Entity, key string, qty int) {
	if e.Dead {
		return
	}
	if qty <= 0 {
		qty = 1
	}
	item, ok := r.catalog.Item(key)
	if !ok {
		return
	}
	if e.Player.Inventory[key] < qty {
		return
	}
	for _, equipped := range e.Player.Equipment {
		if equipped == key && e.Player.Inventory[key]-qty < 1 {
			r.notify(e, "info", "Unequip it first")
			return
		}
	}

	price := item.Value / sellRateDivisor * qty
	r.takeFromInventory(e, key, qty)
	e.Player.Gold += price
	r.notify(e, "info", fmt.Sprintf("Sold %s x%d for %d gold", item.Name, qty, price))
}

// HandleUseItem consumes one charge of a consumable from the inventory.
func (r *Room) HandleUseItem(e *Entity, key string) {
	if e.Dead {
		return
	}
	item, ok := r.catalog.Item(key)
	if !ok || !item.Consumable {
		return
	}
	r.useConsumable(e, item)
}

// HandleDropItem moves qty of a stack from the inventory onto the ground
// beside the player.
func (r *Room) HandleDropItem(e *Entity, key string, qty int) {
	if e.Dead {
		return
	}
	if qty <= 0 {
		qty = 1
	}
	if e.Player.Inventory[key] < qty {
		return
	}
	if _, ok := r.catalog.Item(key); !ok {
		return
	}

	r.takeFromInventory(e, key, qty)
	// Offset past the pickup radius so the drop isn't instantly re-collected.
	pos := spatial.Jitter(r.rng, e.Pos, dropJitter)
	pos.X += pickupRadius * 1.5
	r.spawnGroundItem(key, qty, pos)
}

// HandleEquipItem equips an inventory item into its slot, swapping out
// whatever was there.
func (r *Room) HandleEquipItem(e *Entity, key string) {
	if e.Dead {
		return
	}
	item, ok := r.catalog.Item(key)
	if !ok || item.Slot == "" {
		return
	}
	if e.Player.Inventory[key] <= 0 {
		return
	}

	e.Player.Equipment[item.Slot] = key
	r.recomputeArmor(e)
	r.notify(e, "info", fmt.Sprintf("Equipped %s", item.Name))
}

// HandleUnequipItem clears an equipment slot. The item stays in the
// inventory; only the binding changes.
func (r *Room) HandleUnequipItem(e *Entity, slot string) {
	if e.Dead {
		return
	}
	if _, ok := e.Player.Equipment[slot]; !ok {
		return
	}
	delete(e.Player.Equipment, slot)
	r.recomputeArmor(e)
}

// recomputeArmor sums the armor of every equipped item.
func (r *Room) recomputeArmor(e *Entity) {
	armor := 0
	for _, key := range e.Player.Equipment {
		if item, ok := r.catalog.Item(key); ok {
			armor += item.Armor
		}
	}
	e.Player.ArmorClass = armor
}

// HandleQuestUpdate applies a player-driven quest transition: accept,
// abandon, or claim the reward for a completed quest.
func (r *Room) HandleQuestUpdate(e *Entity, key, status string) {
	quest, ok := r.catalog.Quest(key)
	if !ok {
		return
	}
	state, tracked := e.Player.Quests[key]

	switch status {
	case "active":
		if tracked {
			return
		}
		e.Player.Quests[key] = database.QuestState{Status: "active"}
		r.notify(e, "info", fmt.Sprintf("Quest accepted: %s", quest.Name))

	case "abandoned":
		if !tracked || state.Status == "rewarded" {
			return
		}
		delete(e.Player.Quests, key)
		r.notify(e, "info", fmt.Sprintf("Quest abandoned: %s", quest.Name))

	case "rewarded":
		if !tracked || state.Status != "complete" {
			return
		}
		state.Status = "rewarded"
		e.Player.Quests[key] = state
		e.Player.Experience += quest.RewardExp
		e.Player.Gold += quest.RewardGold
		r.notify(e, "info",
			fmt.Sprintf("Quest reward: +%d exp, +%d gold", quest.RewardExp, quest.RewardGold))
		r.checkLevelUp(e)
	}
}

// takeFromInventory removes qty of a stack, clearing hotbar bindings when the
// stack empties.
func (r *Room) takeFromInventory(e *Entity, key string, qty int) {
	e.Player.Inventory[key] -= qty
	if e.Player.Inventory[key] <= 0 {
		delete(e.Player.Inventory, key)
		for digit, bound := range e.Player.Hotbar {
			if bound == key {
				delete(e.Player.Hotbar, digit)
			}
		}
	}
}

// notify sends a one-line server message to the player.
func (r *Room) notify(e *Entity, kind, message string) {
	r.sendTo(e.SessionID, protocol.ServerMessageMsg{
		Type:    protocol.TypeServerMessage,
		Kind:    kind,
		Message: message,
		Date:    r.serverTime.UnixMilli(),
	})
}
