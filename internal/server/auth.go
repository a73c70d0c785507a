package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/logger"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token      string              `json:"token"`
	Characters []characterSummary  `json:"characters"`
}

type characterSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Race     string `json:"race"`
	Level    int    `json:"level"`
	Location string `json:"location"`
}

type createCharacterRequest struct {
	Name string `json:"name"`
	Race string `json:"race"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRegister creates an account and immediately logs it in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request"})
		return
	}

	if _, err := s.store.CreateAccount(req.Username, req.Password); err != nil {
		if errors.Is(err, database.ErrAccountExists) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "username already taken"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	logger.Info("Account created", "username", req.Username)

	s.issueSession(w, req.Username, req.Password)
}

// handleLogin validates credentials and returns a session token plus the
// account's character list.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request"})
		return
	}

	s.issueSession(w, req.Username, req.Password)
}

func (s *Server) issueSession(w http.ResponseWriter, username, password string) {
	account, err := s.store.Login(username, password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid username or password"})
			return
		}
		logger.Error("Login failed", "username", username, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	chars, err := s.store.GetCharactersByAccount(account.ID)
	if err != nil {
		logger.Error("Failed to list characters", "account", account.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:      account.SessionToken,
		Characters: summarize(chars),
	})
}

// handleCharacters lists the characters on the token's account.
func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, ok := s.accountFromRequest(w, r)
	if !ok {
		return
	}

	chars, err := s.store.GetCharactersByAccount(account.ID)
	if err != nil {
		logger.Error("Failed to list characters", "account", account.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, summarize(chars))
}

// handleCreateCharacter creates a character of a playable race, with vitals
// seeded from the race table and position from the default location.
func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, ok := s.accountFromRequest(w, r)
	if !ok {
		return
	}

	var req createCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name cannot be empty"})
		return
	}
	race, okRace := s.catalog.Race(req.Race)
	if !okRace {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown race"})
		return
	}

	char, err := s.store.CreateCharacter(account.ID, name, race.Key, DefaultLocation,
		race.BaseHealth, race.BaseMana)
	if err != nil {
		if errors.Is(err, database.ErrCharacterExists) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "character name already taken"})
			return
		}
		logger.Error("Failed to create character", "account", account.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if loc, okLoc := s.catalog.Location(DefaultLocation); okLoc {
		char.X, char.Y, char.Z = loc.SpawnPoint.X, loc.SpawnPoint.Y, loc.SpawnPoint.Z
		if err := s.store.SaveCharacter(char); err != nil {
			logger.Error("Failed to place new character", "character", char.ID, "error", err)
		}
	}

	logger.Info("Character created", "account", account.ID, "name", name, "race", race.Key)
	writeJSON(w, http.StatusOK, characterSummary{
		ID:       char.ID,
		Name:     char.Name,
		Race:     char.Race,
		Level:    char.Level,
		Location: char.Location,
	})
}

// accountFromRequest resolves the bearer token to an account, writing the
// error response itself on failure.
func (s *Server) accountFromRequest(w http.ResponseWriter, r *http.Request) (*database.Account, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	account, err := s.store.ValidateToken(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
		return nil, false
	}
	return account, true
}

func summarize(chars []*database.Character) []characterSummary {
	out := make([]characterSummary, 0, len(chars))
	for _, c := range chars {
		out = append(out, characterSummary{
			ID:       c.ID,
			Name:     c.Name,
			Race:     c.Race,
			Level:    c.Level,
			Location: c.Location,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}
