package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberfall/emberfall/server/internal/config"
	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/protocol"
	"github.com/emberfall/emberfall/server/internal/sim"
)

// joinTimeout bounds how long a fresh connection may take to authenticate.
const joinTimeout = 10 * time.Second

// Server is the HTTP and WebSocket front end.
type Server struct {
	cfg     *config.ServerConfig
	catalog *content.Catalog
	store   *database.Store
	manager *RoomManager

	httpServer *http.Server
}

// NewServer wires the front end to its room manager.
func NewServer(cfg *config.ServerConfig, catalog *content.Catalog, store *database.Store) *Server {
	return &Server{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		manager: NewRoomManager(cfg, catalog, store),
	}
}

// Manager returns the room manager, for shutdown.
func (s *Server) Manager() *RoomManager {
	return s.manager
}

// Start binds the listener and serves until Shutdown. Blocks.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/characters", s.handleCharacters)
	mux.HandleFunc("/api/characters/create", s.handleCreateCharacter)

	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTP.Address,
		Handler: mux,
	}

	logger.Info("Server listening", "address", s.cfg.HTTP.Address)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, then stops every room.
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	s.manager.StopAll()
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	if s.cfg.WebSocket.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)
	}

	go s.handleConnection(NewClient(conn), getRealIP(r))
}

// handleConnection authenticates the join handshake and then pumps client
// messages into the session's current room until the socket drops.
func (s *Server) handleConnection(client *Client, clientIP string) {
	defer client.Close()

	char, err := s.authenticate(client)
	if err != nil {
		logger.Info("Join rejected", "client_ip", clientIP, "error", err)
		client.Send(protocol.ServerMessageMsg{
			Type:    protocol.TypeServerMessage,
			Kind:    "info",
			Message: err.Error(),
			Date:    time.Now().UnixMilli(),
		})
		return
	}

	if err := s.manager.JoinCharacter(client, char); err != nil {
		logger.Info("Join failed", "character", char.ID, "error", err)
		return
	}
	defer s.manager.Disconnect(client)

	for {
		data, err := client.ReadMessage()
		if err != nil {
			return
		}
		room, sessionID := client.Session()
		if room == nil {
			continue
		}
		room.Enqueue(func(r *sim.Room) {
			r.HandleMessage(sessionID, data)
		})
	}
}

// authenticate reads the join request and resolves it to a character the
// token's account owns. A character that is already online is refused: one
// live session per character.
func (s *Server) authenticate(client *Client) (*database.Character, error) {
	client.conn.SetReadDeadline(time.Now().Add(joinTimeout))
	defer client.conn.SetReadDeadline(time.Time{})

	data, err := client.ReadMessage()
	if err != nil {
		return nil, errors.New("no join request")
	}

	var req protocol.JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.New("malformed join request")
	}

	account, err := s.store.ValidateToken(req.Token)
	if err != nil {
		return nil, errors.New("invalid session token")
	}

	char, err := s.store.GetCharacterByID(req.CharacterID)
	if err != nil {
		return nil, errors.New("unknown character")
	}
	if char.AccountID != account.ID {
		return nil, errors.New("character does not belong to this account")
	}
	if char.Online {
		return nil, errors.New("character already has a live session")
	}

	return char, nil
}

// getRealIP extracts the client IP, honoring reverse-proxy headers.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
