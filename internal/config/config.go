// Package config loads server-wide configuration from YAML.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	HTTP        HTTPConfig        `yaml:"http"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Simulation  SimulationConfig  `yaml:"simulation"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Database    DatabaseConfig    `yaml:"database"`
	Data        DataConfig        `yaml:"data"`
}

// HTTPConfig holds the HTTP/WebSocket listen settings.
type HTTPConfig struct {
	// Address is the host:port the HTTP and WebSocket server binds to.
	Address string `yaml:"address"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// SimulationConfig holds tick and combat timing settings.
type SimulationConfig struct {
	// PatchIntervalMS is the simulation tick and patch broadcast interval.
	PatchIntervalMS int `yaml:"patch_interval_ms"`

	// GlobalCooldownMS is the shared cooldown applied after any ability cast.
	GlobalCooldownMS int `yaml:"global_cooldown_ms"`

	// DespawnDelayMS is how long a dead enemy stays visible before removal.
	DespawnDelayMS int `yaml:"despawn_delay_ms"`

	// RespawnDelayMS is how long after despawn an enemy spawn point refills.
	RespawnDelayMS int `yaml:"respawn_delay_ms"`
}

// PersistenceConfig holds the character flush settings.
type PersistenceConfig struct {
	// FlushIntervalSeconds is how often connected players are written back
	// to the character store. 0 disables the periodic flush.
	FlushIntervalSeconds int `yaml:"flush_interval_seconds"`
}

// DatabaseConfig selects the character store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// Path is the sqlite database file (sqlite driver only).
	Path string `yaml:"path"`

	// DSN is the postgres connection string (postgres driver only).
	DSN string `yaml:"dsn"`
}

// DataConfig holds content catalog file locations.
type DataConfig struct {
	// Dir is the directory holding the YAML content tables and meshes.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a ServerConfig with workable defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{},
			MaxMessageSize: 4096,
		},
		Simulation: SimulationConfig{
			PatchIntervalMS:  100,
			GlobalCooldownMS: 500,
			DespawnDelayMS:   5000,
			RespawnDelayMS:   20000,
		},
		Persistence: PersistenceConfig{
			FlushIntervalSeconds: 60,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/emberfall.db",
		},
		Data: DataConfig{
			Dir: "data",
		},
	}
}

// LoadConfig loads server configuration from a YAML file.
// A missing file yields the defaults; a malformed file returns the defaults
// along with the parse error.
func LoadConfig(path string) (*ServerConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), err
	}

	return cfg, nil
}

// PatchInterval returns the tick interval as a duration.
func (c *SimulationConfig) PatchInterval() time.Duration {
	if c.PatchIntervalMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PatchIntervalMS) * time.Millisecond
}

// GlobalCooldown returns the shared post-cast cooldown as a duration.
func (c *SimulationConfig) GlobalCooldown() time.Duration {
	if c.GlobalCooldownMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.GlobalCooldownMS) * time.Millisecond
}

// DespawnDelay returns the dead-entity removal delay as a duration.
func (c *SimulationConfig) DespawnDelay() time.Duration {
	if c.DespawnDelayMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DespawnDelayMS) * time.Millisecond
}

// RespawnDelay returns the enemy respawn delay as a duration.
func (c *SimulationConfig) RespawnDelay() time.Duration {
	if c.RespawnDelayMS <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.RespawnDelayMS) * time.Millisecond
}

// IsOriginAllowed checks if the given origin may open a WebSocket connection.
// Returns true when AllowedOrigins contains "*" or the exact origin, or when
// the list is empty and the origin matches the request host (same-origin).
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
