package sim

import "testing"

func TestBuyItem(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")
	e.Player.Gold = 25

	r.HandleBuyItem(e, "potion", 2)
	if e.Player.Gold != 5 {
		t.Errorf("Expected 5 gold left, got %d", e.Player.Gold)
	}
	if e.Player.Inventory["potion"] != 5 {
		t.Errorf("Expected 5 potions, got %d", e.Player.Inventory["potion"])
	}

	// A third potion is unaffordable.
	r.HandleBuyItem(e, "potion", 1)
	if e.Player.Gold != 5 || e.Player.Inventory["potion"] != 5 {
		t.Error("Unaffordable purchase must not change anything")
	}

	r.HandleBuyItem(e, "unobtainium", 1)
	if e.Player.Gold != 5 {
		t.Error("Unknown item must not be sold")
	}
}

func TestSellItem(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")
	e.Player.Gold = 0
	e.Player.Inventory["rat_tail"] = 4

	r.HandleSellItem(e, "rat_tail", 3)
	if e.Player.Gold != 3 { // value 2, half rate, x3
		t.Errorf("Expected 3 gold, got %d", e.Player.Gold)
	}
	if e.Player.Inventory["rat_tail"] != 1 {
		t.Errorf("Expected 1 rat tail left, got %d", e.Player.Inventory["rat_tail"])
	}

	// Selling more than owned is refused.
	r.HandleSellItem(e, "rat_tail", 5)
	if e.Player.Inventory["rat_tail"] != 1 {
		t.Error("Overselling must not change the stack")
	}
}

func TestSellingEmptiedStackClearsHotbar(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")
	// Slot 6 is bound to the potion stack of 3.

	r.HandleSellItem(e, "potion", 3)
	if _, bound := e.Player.Hotbar[6]; bound {
		t.Error("Hotbar binding should clear when the stack empties")
	}
}

func TestEquipAndUnequip(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")

	r.HandleEquipItem(e, "helm")
	if e.Player.Equipment["head"] != "helm" {
		t.Fatalf("Expected helm equipped, got %+v", e.Player.Equipment)
	}
	if e.Player.ArmorClass != 5 {
		t.Errorf("Expected armor 5, got %d", e.Player.ArmorClass)
	}

	r.HandleUnequipItem(e, "head")
	if _, worn := e.Player.Equipment["head"]; worn {
		t.Error("Slot should be empty after unequip")
	}
	if e.Player.ArmorClass != 0 {
		t.Errorf("Expected armor 0, got %d", e.Player.ArmorClass)
	}
	// The item itself never left the inventory.
	if e.Player.Inventory["helm"] != 1 {
		t.Errorf("Helm should stay in inventory, got %d", e.Player.Inventory["helm"])
	}
}

func TestEquipRules(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")

	// Potions have no slot.
	r.HandleEquipItem(e, "potion")
	if len(e.Player.Equipment) != 0 {
		t.Error("Unequippable item must not equip")
	}

	// An item the player doesn't own cannot be equipped.
	delete(e.Player.Inventory, "helm")
	r.HandleEquipItem(e, "helm")
	if len(e.Player.Equipment) != 0 {
		t.Error("Unowned item must not equip")
	}
}

func TestDropItem(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")

	r.HandleDropItem(e, "potion", 2)
	if e.Player.Inventory["potion"] != 1 {
		t.Errorf("Expected 1 potion left, got %d", e.Player.Inventory["potion"])
	}

	var drop *Entity
	for _, ent := range r.entities {
		if ent.Type == TypeItem {
			drop = ent
		}
	}
	if drop == nil {
		t.Fatal("Drop should spawn a ground item")
	}
	if drop.Item.Key != "potion" || drop.Item.Qty != 2 {
		t.Errorf("Ground item wrong: %+v", drop.Item)
	}
}

func TestUseItemDirect(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")
	e.Health = 60

	r.HandleUseItem(e, "potion")
	if e.Health != 85 {
		t.Errorf("Expected health 85, got %f", e.Health)
	}

	// Non-consumables cannot be used.
	r.HandleUseItem(e, "helm")
	if e.Player.Inventory["helm"] != 1 {
		t.Error("Using a non-consumable must not consume it")
	}
}
