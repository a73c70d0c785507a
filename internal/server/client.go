// Package server hosts the network edge: the HTTP auth endpoints, the
// WebSocket upgrade path, per-connection clients, and the room manager that
// routes every session into an authoritative room.
package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/sim"
)

// Client wraps one WebSocket connection. Writes are serialized with a mutex
// because the room goroutine and the HTTP layer both send on it.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	room      *sim.Room
	sessionID string
	closed    bool
}

// NewClient creates a client around an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send encodes v as JSON and writes it as one text message. Send never
// blocks the simulation on a slow reader beyond the socket buffer; a write
// error closes the connection and the read loop tears the session down.
func (c *Client) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode outbound message", "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.Close()
	}
}

// Close shuts the socket down once.
func (c *Client) Close() {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if !already {
		c.conn.Close()
	}
}

// ReadMessage blocks for the next client message.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// RemoteAddr returns the remote address as a string.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// SetSession records which room and session this connection belongs to.
// Teleports retarget it mid-connection.
func (c *Client) SetSession(room *sim.Room, sessionID string) {
	c.mu.Lock()
	c.room = room
	c.sessionID = sessionID
	c.mu.Unlock()
}

// Session returns the current room and session id.
func (c *Client) Session() (*sim.Room, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.sessionID
}
