package sim

import (
	"math"
	"testing"
	"time"

	"github.com/emberfall/emberfall/server/internal/leveling"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

func TestKillRewardsExactlyOnce(t *testing.T) {
	r := newTestRoom(t)
	e, _ := joinPlayer(t, r, 1, "Hero")
	rat := parkEnemy(r)

	r.applyDamage(rat, e, 1000)

	if !rat.Dead {
		t.Fatal("Lethal damage should kill")
	}
	if e.Player.Experience != 10 || e.Player.Gold != 2 {
		t.Errorf("Expected +10 exp +2 gold, got %d/%d", e.Player.Experience, e.Player.Gold)
	}

	// Hitting the corpse again pays nothing.
	r.applyDamage(rat, e, 1000)
	r.onEntityDeath(rat, e)
	if e.Player.Experience != 10 || e.Player.Gold != 2 {
		t.Errorf("Double rewards: got %d exp %d gold", e.Player.Experience, e.Player.Gold)
	}
}

func TestLevelUpOnKill(t *testing.T) {
	r := newTestRoom(t)
	e, sess := joinPlayer(t, r, 1, "Hero")
	rat := parkEnemy(r)

	e.Player.Experience = leveling.XPForLevel(2) - 5
	e.Health = 40

	r.applyDamage(rat, e, 1000)

	if e.Level != 2 {
		t.Fatalf("Expected level 2, got %d", e.Level)
	}
	if e.MaxHealth != 100+leveling.HealthPerLevel {
		t.Errorf("Max health should grow, got %f", e.MaxHealth)
	}
	if e.Health != e.MaxHealth || e.Mana != e.MaxMana {
		t.Error("Level up should refill vitals")
	}
	if e.Player.Points != leveling.PointsPerLevel {
		t.Errorf("Expected %d stat points, got %d", leveling.PointsPerLevel, e.Player.Points)
	}

	found := false
	for _, m := range serverMessages(sess) {
		if m == "You reached level 2!" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a level-up notification")
	}
}

func TestQuestProgressAndReward(t *testing.T) {
	r := newTestRoom(t)
	e, _ := joinPlayer(t, r, 1, "Hero")
	rat := parkEnemy(r)

	r.HandleQuestUpdate(e, "cull", "active")
	if e.Player.Quests["cull"].Status != "active" {
		t.Fatal("Quest should be active after accepting")
	}

	// First kill: progress.
	r.applyDamage(rat, e, 1000)
	if e.Player.Quests["cull"].Qty != 1 {
		t.Fatalf("Expected quest qty 1, got %d", e.Player.Quests["cull"].Qty)
	}

	// Reward before completion is refused.
	goldBefore := e.Player.Gold
	r.HandleQuestUpdate(e, "cull", "rewarded")
	if e.Player.Gold != goldBefore {
		t.Error("Incomplete quest must not pay out")
	}

	// Second kill completes it.
	rat2 := &Entity{}
	*rat2 = *rat
	rat2.SessionID = "npc-extra"
	rat2.Dead = false
	rat2.Health = 1
	r.entities[rat2.SessionID] = rat2
	r.applyDamage(rat2, e, 1000)

	if e.Player.Quests["cull"].Status != "complete" {
		t.Fatalf("Expected quest complete, got %+v", e.Player.Quests["cull"])
	}

	// Claim once; a second claim pays nothing.
	expBefore, goldBefore := e.Player.Experience, e.Player.Gold
	r.HandleQuestUpdate(e, "cull", "rewarded")
	if e.Player.Experience != expBefore+50 || e.Player.Gold != goldBefore+20 {
		t.Errorf("Reward wrong: %d exp %d gold", e.Player.Experience, e.Player.Gold)
	}
	expBefore, goldBefore = e.Player.Experience, e.Player.Gold
	r.HandleQuestUpdate(e, "cull", "rewarded")
	if e.Player.Experience != expBefore || e.Player.Gold != goldBefore {
		t.Error("Quest reward claimed twice")
	}
}

func TestLootDropsAtMostOneStack(t *testing.T) {
	r := newTestRoom(t)
	rat := parkEnemy(r)

	counts := map[string]int{}
	const kills = 2000
	for i := 0; i < kills; i++ {
		r.dropLoot(rat)

		dropped := 0
		for id, e := range r.entities {
			if e.Type != TypeItem {
				continue
			}
			dropped++
			counts[e.Item.Key]++
			r.removeEntity(id)
		}
		if dropped > 1 {
			t.Fatalf("One kill dropped %d stacks", dropped)
		}
	}

	// The 60/40 table should show in the long run.
	total := counts["rat_tail"] + counts["potion"]
	if total != kills {
		t.Fatalf("Every roll should drop with an all-positive table, got %d/%d", total, kills)
	}
	tailShare := float64(counts["rat_tail"]) / float64(total)
	if math.Abs(tailShare-0.6) > 0.05 {
		t.Errorf("Expected around 60%% rat tails, got %.1f%%", tailShare*100)
	}
}

func TestDespawnThenRespawn(t *testing.T) {
	r := newTestRoom(t)
	e, _ := joinPlayer(t, r, 1, "Hero")
	rat := parkEnemy(r)
	home := rat.spawnPoint

	r.applyDamage(rat, e, 1000)

	// The corpse lingers until the despawn delay (5s).
	r.Tick(testStart.Add(time.Second))
	if _, there := r.entities[rat.SessionID]; !there {
		t.Fatal("Corpse should linger before despawn")
	}

	r.Tick(testStart.Add(6 * time.Second))
	if _, there := r.entities[rat.SessionID]; there {
		t.Fatal("Corpse should despawn after the delay")
	}

	// The spawn point refills after the respawn delay (20s past despawn).
	r.Tick(testStart.Add(27 * time.Second))
	var respawned *Entity
	for _, ent := range r.entities {
		if ent.IsEnemy() {
			respawned = ent
		}
	}
	if respawned == nil {
		t.Fatal("Spawn point should refill")
	}
	if respawned.Dead || respawned.Health != respawned.MaxHealth {
		t.Error("Respawned enemy should be fresh")
	}
	if respawned.Pos != home {
		t.Errorf("Respawn should use the spawn point, got %+v", respawned.Pos)
	}
}

func TestPlayerDeathAndRevive(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, sess := joinPlayer(t, r, 1, "Hero")
	home := e.spawnPoint
	e.Pos = spatial.Vec3{X: 20, Z: 20}

	rat := findEnemy(t, r)
	r.applyDamage(e, rat, 1000)

	if !e.Dead || !e.Blocked {
		t.Fatal("Player should be dead and blocked")
	}
	found := false
	for _, m := range serverMessages(sess) {
		if m == "You died" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a death notification")
	}

	// Before the revive delay nothing happens.
	r.Tick(testStart.Add(10 * time.Second))
	if !e.Dead {
		t.Fatal("Revive fired early")
	}

	r.Tick(testStart.Add(21 * time.Second))
	if e.Dead {
		t.Fatal("Player should revive after the delay")
	}
	if e.Pos != home || e.Health != e.MaxHealth {
		t.Errorf("Revive should restore at spawn with full vitals, got %+v %f", e.Pos, e.Health)
	}
}

func TestGroundItemPickup(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)
	e, _ := joinPlayer(t, r, 1, "Hero")

	drop := r.spawnGroundItem("rat_tail", 2, e.Pos)
	r.Tick(testStart.Add(100 * time.Millisecond))

	if _, there := r.entities[drop.SessionID]; there {
		t.Error("Drop under the player should be collected")
	}
	if e.Player.Inventory["rat_tail"] != 2 {
		t.Errorf("Expected 2 rat tails, got %d", e.Player.Inventory["rat_tail"])
	}
}

func TestGroundItemExpires(t *testing.T) {
	r := newTestRoom(t)
	parkEnemy(r)

	drop := r.spawnGroundItem("rat_tail", 1, spatial.Vec3{X: -40, Z: -40})
	r.Tick(testStart.Add(time.Minute))
	if _, there := r.entities[drop.SessionID]; !there {
		t.Fatal("Drop should survive before its expiry")
	}

	r.Tick(testStart.Add(3 * time.Minute))
	if _, there := r.entities[drop.SessionID]; there {
		t.Error("Unclaimed drop should expire")
	}
}

// serverMessages extracts the message lines sent to a session.
func serverMessages(f *fakeSession) []string {
	var out []string
	for _, m := range messagesOfType[protocol.ServerMessageMsg](f) {
		out = append(out, m.Message)
	}
	return out
}
