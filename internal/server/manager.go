package server

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/emberfall/emberfall/server/internal/config"
	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/nav"
	"github.com/emberfall/emberfall/server/internal/sim"
)

// DefaultLocation is where characters without a valid location spawn.
const DefaultLocation = "greenfields"

// session ties a live connection to its character.
type session struct {
	client      *Client
	characterID int64
}

// RoomManager owns every running room and moves sessions between them. Rooms
// start lazily on first demand and run until server shutdown.
type RoomManager struct {
	cfg     *config.ServerConfig
	catalog *content.Catalog
	store   *database.Store

	mu       sync.Mutex
	rooms    map[string]*sim.Room
	sessions map[string]*session
}

// NewRoomManager creates an empty manager.
func NewRoomManager(cfg *config.ServerConfig, catalog *content.Catalog, store *database.Store) *RoomManager {
	return &RoomManager{
		cfg:      cfg,
		catalog:  catalog,
		store:    store,
		rooms:    make(map[string]*sim.Room),
		sessions: make(map[string]*session),
	}
}

// Room returns the running room for a location, starting it on first use.
func (m *RoomManager) Room(key string) (*sim.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[key]; ok {
		return room, nil
	}

	loc, ok := m.catalog.Location(key)
	if !ok {
		return nil, fmt.Errorf("unknown location %q", key)
	}

	mesh, err := nav.Load(filepath.Join(m.cfg.Data.Dir, "meshes", loc.MeshFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load mesh for %s: %w", key, err)
	}

	room := sim.NewRoom(loc, mesh, m.catalog, m.cfg, m.store, time.Now().UnixNano(), time.Now())
	room.SetTeleportHandler(func(sessionID, locationKey string) {
		m.teleport(room, sessionID, locationKey)
	})
	m.rooms[key] = room
	go room.Run()

	return room, nil
}

// JoinCharacter loads a character's persistent state and places its session
// in the room for its saved location. Blocks until the room accepts or
// rejects the join.
func (m *RoomManager) JoinCharacter(client *Client, char *database.Character) error {
	inventory, err := m.store.LoadInventory(char.ID)
	if err != nil {
		return err
	}
	abilities, err := m.store.LoadAbilities(char.ID)
	if err != nil {
		return err
	}

	locationKey := char.Location
	if _, ok := m.catalog.Location(locationKey); !ok {
		locationKey = DefaultLocation
	}
	room, err := m.Room(locationKey)
	if err != nil {
		return err
	}

	type joinResult struct {
		sessionID string
		err       error
	}
	resultCh := make(chan joinResult, 1)
	room.Enqueue(func(r *sim.Room) {
		sessionID, err := r.Join(client, char, inventory, abilities)
		resultCh <- joinResult{sessionID: sessionID, err: err}
	})

	result := <-resultCh
	if result.err != nil {
		return result.err
	}

	client.SetSession(room, result.sessionID)
	m.mu.Lock()
	m.sessions[result.sessionID] = &session{client: client, characterID: char.ID}
	m.mu.Unlock()
	return nil
}

// Disconnect removes a session from its room and forgets the connection.
func (m *RoomManager) Disconnect(client *Client) {
	room, sessionID := client.Session()
	if room == nil {
		return
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	room.Enqueue(func(r *sim.Room) {
		r.Leave(sessionID)
	})
}

// teleport runs on the source room's goroutine: it removes the session there,
// then re-homes the character asynchronously so the source room never blocks
// on the destination.
func (m *RoomManager) teleport(from *sim.Room, sessionID, locationKey string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	from.Leave(sessionID)

	go func() {
		char, err := m.store.GetCharacterByID(sess.characterID)
		if err != nil {
			logger.Error("Teleport failed to reload character",
				"character", sess.characterID, "error", err)
			sess.client.Close()
			return
		}

		loc, ok := m.catalog.Location(locationKey)
		if !ok {
			sess.client.Close()
			return
		}
		char.Location = locationKey
		char.X, char.Y, char.Z = loc.SpawnPoint.X, loc.SpawnPoint.Y, loc.SpawnPoint.Z
		char.Rot = 0
		if err := m.store.SaveCharacter(char); err != nil {
			logger.Error("Teleport failed to save character",
				"character", char.ID, "error", err)
		}

		if err := m.JoinCharacter(sess.client, char); err != nil {
			logger.Error("Teleport failed to join destination",
				"character", char.ID, "location", locationKey, "error", err)
			sess.client.Close()
		}
	}()
}

// StopAll shuts every room down, flushing connected characters.
func (m *RoomManager) StopAll() {
	m.mu.Lock()
	rooms := make([]*sim.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.rooms = make(map[string]*sim.Room)
	m.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
		logger.Info("Room shut down", "location", room.Key())
	}
}
