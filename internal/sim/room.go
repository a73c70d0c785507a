package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/emberfall/emberfall/server/internal/config"
	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/nav"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/spatial"
)

// graceWindow shields a freshly joined player from aggro scans.
const graceWindow = 5 * time.Second

// ErrAlreadyJoined is returned when a character already has a live session.
var ErrAlreadyJoined = errors.New("character already in the room")

// Session is the transport-facing side of one connected client. Send must be
// safe to call from the room goroutine and never block the simulation.
type Session interface {
	Send(v any)
	Close()
}

// Room is one authoritative location instance. All entity state belongs to
// the room goroutine; the network layer reaches it only through Enqueue.
type Room struct {
	key     string
	loc     *content.Location
	catalog *content.Catalog
	cfg     *config.ServerConfig
	store   *database.Store // nil in tests

	mesh     *nav.Mesh
	movement *Movement
	sched    *Scheduler
	rng      *rand.Rand
	rep      *replicator

	entities map[string]*Entity
	clients  map[string]Session

	commands chan func(*Room)
	stop     chan struct{}
	done     chan struct{}

	serverTime time.Time
	lastFlush  time.Time
	nextID     int

	// onTeleport moves a session to another room; set by the room manager.
	onTeleport func(sessionID, locationKey string)
}

// NewRoom builds a room for a location with its initial enemy population.
// The rng seed is explicit so tests can run deterministic simulations.
func NewRoom(loc *content.Location, mesh *nav.Mesh, catalog *content.Catalog,
	cfg *config.ServerConfig, store *database.Store, seed int64, start time.Time) *Room {

	r := &Room{
		key:        loc.Key,
		loc:        loc,
		catalog:    catalog,
		cfg:        cfg,
		store:      store,
		mesh:       mesh,
		movement:   NewMovement(mesh),
		sched:      NewScheduler(start),
		rng:        rand.New(rand.NewSource(seed)),
		rep:        newReplicator(),
		entities:   make(map[string]*Entity),
		clients:    make(map[string]Session),
		commands:   make(chan func(*Room), 256),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		serverTime: start,
		lastFlush:  start,
	}

	for i := range loc.Spawners {
		spawn := &loc.Spawners[i]
		for n := 0; n < spawn.Count; n++ {
			r.spawnEnemy(spawn, spatial.Jitter(r.rng, r.mesh.RandomRegion(r.rng), 1.0))
		}
	}

	return r
}

// Key returns the location key this room serves.
func (r *Room) Key() string { return r.key }

// SetTeleportHandler installs the cross-room transfer hook.
func (r *Room) SetTeleportHandler(fn func(sessionID, locationKey string)) {
	r.onTeleport = fn
}

// Run drives the room until Stop: queued commands are applied between ticks,
// and every tick interval the simulation advances and patches go out.
func (r *Room) Run() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Simulation.PatchInterval())
	defer ticker.Stop()

	logger.Info("Room started", "location", r.key, "enemies", len(r.entities))

	for {
		select {
		case fn := <-r.commands:
			fn(r)
		case now := <-ticker.C:
			r.Tick(now)
		case <-r.stop:
			r.drainCommands()
			r.flush(true)
			logger.Info("Room stopped", "location", r.key)
			return
		}
	}
}

// Stop shuts the room down, flushing every connected character first.
func (r *Room) Stop() {
	close(r.stop)
	<-r.done
}

// Enqueue hands a closure to the room goroutine. The network layer uses this
// for joins, leaves, and message handling.
func (r *Room) Enqueue(fn func(*Room)) {
	select {
	case r.commands <- fn:
	case <-r.stop:
	}
}

func (r *Room) drainCommands() {
	for {
		select {
		case fn := <-r.commands:
			fn(r)
		default:
			return
		}
	}
}

// Tick advances the simulation to now: due events fire, enemies think,
// deferred casts retry, vitals regenerate, and the state diff is broadcast.
func (r *Room) Tick(now time.Time) {
	r.serverTime = now
	r.sched.Advance(now)

	for _, e := range r.entities {
		switch {
		case e.IsEnemy():
			if e.brain != nil {
				e.brain.Update(r)
			}
		case e.IsPlayer():
			r.tryPendingCast(e)
			r.collectNearbyDrops(e)
		}
	}

	r.regenerate()

	if r.cfg.Persistence.FlushIntervalSeconds > 0 &&
		now.Sub(r.lastFlush) >= time.Duration(r.cfg.Persistence.FlushIntervalSeconds)*time.Second {
		r.lastFlush = now
		r.flush(false)
	}

	if ops := r.rep.diff(r.entities); len(ops) > 0 {
		r.broadcast(protocol.PatchMsg{
			Type:       protocol.TypePatch,
			ServerTime: now.UnixMilli(),
			Ops:        ops,
		})
	}
}

// regenerate applies per-tick health and mana regen to living entities.
func (r *Room) regenerate() {
	for _, e := range r.entities {
		if e.Dead || e.Type == TypeItem {
			continue
		}
		if e.Health < e.MaxHealth {
			e.Health += e.RegenHealth
		}
		if e.Mana < e.MaxMana {
			e.Mana += e.RegenMana
		}
		e.NormalizeVitals()
	}
}

// Join adds a character's session to the room: at most one live session per
// character, enforced by the deterministic session id. Runs on the room
// goroutine; the caller enqueues it.
func (r *Room) Join(sess Session, char *database.Character,
	inventory map[string]int, abilities []string) (string, error) {

	sessionID := fmt.Sprintf("player-%d", char.ID)
	if _, taken := r.entities[sessionID]; taken {
		return "", ErrAlreadyJoined
	}

	race, ok := r.catalog.Race(char.Race)
	if !ok {
		return "", fmt.Errorf("unknown race %q", char.Race)
	}

	e := NewPlayerEntity(sessionID, char, race, inventory, abilities)
	e.graceUntil = r.serverTime.Add(graceWindow)
	r.recomputeArmor(e)
	r.entities[sessionID] = e
	r.clients[sessionID] = sess

	if r.store != nil {
		if err := r.store.SetOnline(char.ID, true); err != nil {
			logger.Error("Failed to set online flag", "character", char.ID, "error", err)
		}
	}

	sess.Send(protocol.WelcomeMsg{
		Type:        protocol.TypeWelcome,
		SessionID:   sessionID,
		LocationKey: r.key,
		ServerTime:  r.serverTime.UnixMilli(),
		Entities:    snapshot(r.entities),
	})

	logger.Info("Player joined", "location", r.key, "name", char.Name, "session", sessionID)
	return sessionID, nil
}

// Leave persists the character and removes the session and its entity. Runs
// on the room goroutine.
func (r *Room) Leave(sessionID string) {
	e, ok := r.entities[sessionID]
	if !ok || !e.IsPlayer() {
		delete(r.clients, sessionID)
		return
	}

	r.persistPlayer(e, true)
	if r.store != nil {
		if err := r.store.SetOnline(e.Player.CharacterID, false); err != nil {
			logger.Error("Failed to clear online flag", "character", e.Player.CharacterID, "error", err)
		}
	}

	r.removeEntity(sessionID)
	delete(r.clients, sessionID)
	logger.Info("Player left", "location", r.key, "name", e.Name, "session", sessionID)
}

// HandleMessage decodes and dispatches one client message. Runs on the room
// goroutine.
func (r *Room) HandleMessage(sessionID string, data []byte) {
	e, ok := r.entities[sessionID]
	if !ok || !e.IsPlayer() {
		return
	}

	base, err := protocol.DecodeBase(data)
	if err != nil {
		logger.Debug("Undecodable message", "session", sessionID, "error", err)
		return
	}

	switch base.Type {
	case protocol.TypeMove:
		var msg protocol.MoveMsg
		if decode(data, &msg, sessionID) {
			r.handleMove(e, msg)
		}
	case protocol.TypeCastAbility:
		var msg protocol.CastAbilityMsg
		if decode(data, &msg, sessionID) {
			r.HandleCast(e, msg.Digit, msg.TargetID)
		}
	case protocol.TypeTeleport:
		var msg protocol.TeleportMsg
		if decode(data, &msg, sessionID) {
			r.handleTeleport(e, msg.LocationKey)
		}
	case protocol.TypeChat:
		var msg protocol.ChatMsg
		if decode(data, &msg, sessionID) {
			r.handleChat(e, msg.Message)
		}
	case protocol.TypeQuestUpdate:
		var msg protocol.QuestUpdateMsg
		if decode(data, &msg, sessionID) {
			r.HandleQuestUpdate(e, msg.Key, msg.Status)
		}
	case protocol.TypeBuyItem:
		var msg protocol.ItemMsg
		if decode(data, &msg, sessionID) {
			r.HandleBuyItem(e, msg.Key, msg.Qty)
		}
	case protocol.TypeSellItem:
		var msg protocol.ItemMsg
		if decode(data, &msg, sessionID) {
			r.HandleSellItem(e, msg.Key, msg.Qty)
		}
	case protocol.TypeUseItem:
		var msg protocol.ItemMsg
		if decode(data, &msg, sessionID) {
			r.HandleUseItem(e, msg.Key)
		}
	case protocol.TypeDropItem:
		var msg protocol.ItemMsg
		if decode(data, &msg, sessionID) {
			r.HandleDropItem(e, msg.Key, msg.Qty)
		}
	case protocol.TypeEquipItem:
		var msg protocol.EquipMsg
		if decode(data, &msg, sessionID) {
			r.HandleEquipItem(e, msg.Key)
		}
	case protocol.TypeUnequipItem:
		var msg protocol.EquipMsg
		if decode(data, &msg, sessionID) {
			r.HandleUnequipItem(e, msg.Slot)
		}
	default:
		logger.Debug("Unknown message type", "session", sessionID, "type", base.Type)
	}
}

// handleMove applies one movement sample. Any fresh input interrupts a cast
// wind-up and cancels a deferred move-then-cast.
func (r *Room) handleMove(e *Entity, msg protocol.MoveMsg) {
	if msg.H != 0 || msg.V != 0 {
		if e.casting {
			r.CancelCast(e)
		}
		e.pendingDigit = 0
		e.pendingTarget = ""
		e.waypoints = nil
	}
	r.movement.ProcessInput(e, msg.H, msg.V, msg.Seq)
}

// handleTeleport validates the destination and hands the session to the room
// manager for the transfer.
func (r *Room) handleTeleport(e *Entity, locationKey string) {
	if locationKey == r.key {
		return
	}
	if _, ok := r.catalog.Location(locationKey); !ok {
		r.sendTo(e.SessionID, protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "info",
			Message: "Unknown destination",
			Date:    r.serverTime.UnixMilli(),
		})
		return
	}
	if r.onTeleport == nil {
		return
	}

	r.sendTo(e.SessionID, protocol.TeleportConfirmMsg{
		Type:        protocol.TypeTeleportConfirm,
		LocationKey: locationKey,
	})
	r.onTeleport(e.SessionID, locationKey)
}

// handleChat relays a chat line to the whole room.
func (r *Room) handleChat(e *Entity, message string) {
	if message == "" {
		return
	}
	r.broadcast(protocol.ServerMessageMsg{
		Type:    protocol.TypeServerMessage,
		Kind:    "chat",
		Message: fmt.Sprintf("%s: %s", e.Name, message),
		Date:    r.serverTime.UnixMilli(),
	})
}

// spawnEnemy instantiates one enemy for a spawner at the given point.
func (r *Room) spawnEnemy(spawn *content.SpawnDef, pos spatial.Vec3) {
	race, ok := r.catalog.Race(spawn.Race)
	if !ok {
		logger.Error("Spawner references unknown race", "location", r.key, "race", spawn.Race)
		return
	}

	r.nextID++
	id := fmt.Sprintf("npc-%d", r.nextID)
	r.entities[id] = NewEnemyEntity(id, race, spawn, pos)
}

// removeEntity drops an entity and every event scheduled against it.
func (r *Room) removeEntity(id string) {
	delete(r.entities, id)
	r.sched.CancelEntity(id)
}

// persistPlayer writes a player's character row back to the store. Async
// writes happen off the room goroutine on a row built while on it.
func (r *Room) persistPlayer(e *Entity, wait bool) {
	if r.store == nil {
		return
	}
	row := r.buildCharacterRow(e)
	inventory := copyIntMap(e.Player.Inventory)
	characterID := e.Player.CharacterID

	save := func() {
		if err := r.store.SaveCharacter(row); err != nil {
			logger.Error("Failed to save character", "character", characterID, "error", err)
			return
		}
		if err := r.store.SaveInventory(characterID, inventory); err != nil {
			logger.Error("Failed to save inventory", "character", characterID, "error", err)
		}
	}

	if wait {
		save()
	} else {
		go save()
	}
}

// buildCharacterRow snapshots a player entity into a character row.
func (r *Room) buildCharacterRow(e *Entity) *database.Character {
	p := e.Player
	return &database.Character{
		ID:         p.CharacterID,
		AccountID:  p.AccountID,
		Name:       e.Name,
		Race:       e.Race,
		Location:   r.key,
		X:          e.Pos.X,
		Y:          e.Pos.Y,
		Z:          e.Pos.Z,
		Rot:        e.Rot,
		Level:      e.Level,
		Experience: p.Experience,
		Health:     e.Health,
		MaxHealth:  e.MaxHealth,
		Mana:       e.Mana,
		MaxMana:    e.MaxMana,
		Strength:   p.Strength,
		Endurance:  p.Endurance,
		Agility:    p.Agility,
		Intelligence: p.Intelligence,
		Wisdom:     p.Wisdom,
		Points:     p.Points,
		Gold:       p.Gold,
		Hotbar:     copyHotbar(p.Hotbar),
		Quests:     copyQuests(p.Quests),
		Equipment:  copyStringMap(p.Equipment),
	}
}

// flush persists every connected player. The shutdown flush is synchronous so
// the process does not exit with writes in flight, and it marks everyone
// offline since no Leave will run for them.
func (r *Room) flush(wait bool) {
	for _, e := range r.entities {
		if !e.IsPlayer() {
			continue
		}
		r.persistPlayer(e, wait)
		if wait && r.store != nil {
			if err := r.store.SetOnline(e.Player.CharacterID, false); err != nil {
				logger.Error("Failed to clear online flag",
					"character", e.Player.CharacterID, "error", err)
			}
		}
	}
}

// sendTo delivers a message to one session, if connected.
func (r *Room) sendTo(sessionID string, v any) {
	if sess, ok := r.clients[sessionID]; ok {
		sess.Send(v)
	}
}

// broadcast delivers a message to every connected session.
func (r *Room) broadcast(v any) {
	for _, sess := range r.clients {
		sess.Send(v)
	}
}

// decode unmarshals a typed message, logging failures.
func decode(data []byte, v any, sessionID string) bool {
	if err := json.Unmarshal(data, v); err != nil {
		logger.Debug("Malformed message payload", "session", sessionID, "error", err)
		return false
	}
	return true
}
