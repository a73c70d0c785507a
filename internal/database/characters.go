package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCharacterNotFound is returned when a character lookup fails.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterExists is returned when creating a duplicate character name.
var ErrCharacterExists = errors.New("character name already taken")

// QuestState is the persisted status and progress of one quest.
type QuestState struct {
	Status string `json:"status"` // "active", "complete", "rewarded"
	Qty    int    `json:"qty"`
}

// Character is one persisted character row.
type Character struct {
	ID           int64
	AccountID    int64
	Name         string
	Race         string
	Location     string
	X, Y, Z, Rot float64
	Level        int
	Experience   int
	Health       float64
	MaxHealth    float64
	Mana         float64
	MaxMana      float64
	Strength     int
	Endurance    int
	Agility      int
	Intelligence int
	Wisdom       int
	Points       int
	Gold         int
	Hotbar       map[int]string        // slot digit → ability or item key
	Quests       map[string]QuestState // quest key → state
	Equipment    map[string]string     // slot → item key
	Online       bool
	LastPlayed   *time.Time
}

const characterColumns = `id, account_id, name, race, location, x, y, z, rot,
	level, experience, health, max_health, mana, max_mana,
	strength, endurance, agility, intelligence, wisdom, points, gold,
	hotbar, quests, equipment, online, last_played`

// CreateCharacter creates a character for an account with starting vitals
// taken from the caller (usually the race's base values).
func (s *Store) CreateCharacter(accountID int64, name, race, location string, health, mana float64) (*Character, error) {
	query := s.dialect.Rebind(`INSERT INTO characters
		(account_id, name, race, location, health, max_health, mana, max_mana)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.Exec(query, accountID, name, race, location, health, health, mana, mana)
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return nil, ErrCharacterExists
		}
		return nil, fmt.Errorf("failed to create character: %w", err)
	}

	return s.GetCharacterByName(name)
}

// GetCharacterByID looks up a character by row id.
func (s *Store) GetCharacterByID(id int64) (*Character, error) {
	query := s.dialect.Rebind("SELECT " + characterColumns + " FROM characters WHERE id = ?")
	return scanCharacter(s.db.QueryRow(query, id))
}

// GetCharacterByName looks up a character by name.
func (s *Store) GetCharacterByName(name string) (*Character, error) {
	query := s.dialect.Rebind("SELECT " + characterColumns + " FROM characters WHERE name = ?")
	return scanCharacter(s.db.QueryRow(query, name))
}

// GetCharactersByAccount lists every character belonging to an account.
func (s *Store) GetCharactersByAccount(accountID int64) ([]*Character, error) {
	query := s.dialect.Rebind("SELECT " + characterColumns + " FROM characters WHERE account_id = ?")
	rows, err := s.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var chars []*Character
	for rows.Next() {
		c, err := scanCharacterRows(rows)
		if err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// SaveCharacter writes the full character row back. Last write wins; the
// at-most-one-session invariant keeps concurrent rooms off the same row.
func (s *Store) SaveCharacter(c *Character) error {
	hotbar, err := json.Marshal(c.Hotbar)
	if err != nil {
		return fmt.Errorf("failed to encode hotbar: %w", err)
	}
	quests, err := json.Marshal(c.Quests)
	if err != nil {
		return fmt.Errorf("failed to encode quests: %w", err)
	}
	equipment, err := json.Marshal(c.Equipment)
	if err != nil {
		return fmt.Errorf("failed to encode equipment: %w", err)
	}

	query := s.dialect.Rebind(`UPDATE characters SET
		race = ?, location = ?, x = ?, y = ?, z = ?, rot = ?,
		level = ?, experience = ?, health = ?, max_health = ?, mana = ?, max_mana = ?,
		strength = ?, endurance = ?, agility = ?, intelligence = ?, wisdom = ?,
		points = ?, gold = ?, hotbar = ?, quests = ?, equipment = ?, last_played = ?
		WHERE id = ?`)
	_, err = s.db.Exec(query,
		c.Race, c.Location, c.X, c.Y, c.Z, c.Rot,
		c.Level, c.Experience, c.Health, c.MaxHealth, c.Mana, c.MaxMana,
		c.Strength, c.Endurance, c.Agility, c.Intelligence, c.Wisdom,
		c.Points, c.Gold, string(hotbar), string(quests), string(equipment), time.Now(),
		c.ID)
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	return nil
}

// SetOnline flips the online flag for a character. Join sets it, leave and
// room dispose clear it.
func (s *Store) SetOnline(characterID int64, online bool) error {
	flag := 0
	if online {
		flag = 1
	}
	query := s.dialect.Rebind("UPDATE characters SET online = ? WHERE id = ?")
	if _, err := s.db.Exec(query, flag, characterID); err != nil {
		return fmt.Errorf("failed to set online flag: %w", err)
	}
	return nil
}

// ClearAllOnline resets the online flag for every character. Run at startup
// to recover from an unclean shutdown.
func (s *Store) ClearAllOnline() error {
	if _, err := s.db.Exec("UPDATE characters SET online = 0"); err != nil {
		return fmt.Errorf("failed to clear online flags: %w", err)
	}
	return nil
}

// LoadInventory returns the character's item stacks keyed by item key.
func (s *Store) LoadInventory(characterID int64) (map[string]int, error) {
	query := s.dialect.Rebind("SELECT item_key, qty FROM inventory WHERE character_id = ?")
	rows, err := s.db.Query(query, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	defer rows.Close()

	inv := make(map[string]int)
	for rows.Next() {
		var key string
		var qty int
		if err := rows.Scan(&key, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		inv[key] = qty
	}
	return inv, rows.Err()
}

// SaveInventory replaces the character's inventory rows in one transaction.
func (s *Store) SaveInventory(characterID int64, inventory map[string]int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin inventory save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.dialect.Rebind("DELETE FROM inventory WHERE character_id = ?"), characterID); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", err)
	}

	insert := s.dialect.Rebind("INSERT INTO inventory (character_id, item_key, qty) VALUES (?, ?, ?)")
	for key, qty := range inventory {
		if qty <= 0 {
			continue
		}
		if _, err := tx.Exec(insert, characterID, key, qty); err != nil {
			return fmt.Errorf("failed to insert inventory row: %w", err)
		}
	}

	return tx.Commit()
}

// LoadAbilities returns the set of learned ability keys.
func (s *Store) LoadAbilities(characterID int64) ([]string, error) {
	query := s.dialect.Rebind("SELECT ability_key FROM abilities WHERE character_id = ?")
	rows, err := s.db.Query(query, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load abilities: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan ability row: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SaveAbilities replaces the character's learned-ability rows.
func (s *Store) SaveAbilities(characterID int64, keys []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ability save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.dialect.Rebind("DELETE FROM abilities WHERE character_id = ?"), characterID); err != nil {
		return fmt.Errorf("failed to clear abilities: %w", err)
	}

	insert := s.dialect.Rebind("INSERT INTO abilities (character_id, ability_key) VALUES (?, ?)")
	for _, key := range keys {
		if _, err := tx.Exec(insert, characterID, key); err != nil {
			return fmt.Errorf("failed to insert ability row: %w", err)
		}
	}

	return tx.Commit()
}

// scanCharacter reads one character from a single-row query.
func scanCharacter(row *sql.Row) (*Character, error) {
	var c Character
	var hotbar, quests, equipment string
	var online int
	var lastPlayed sql.NullTime

	err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Race, &c.Location,
		&c.X, &c.Y, &c.Z, &c.Rot,
		&c.Level, &c.Experience, &c.Health, &c.MaxHealth, &c.Mana, &c.MaxMana,
		&c.Strength, &c.Endurance, &c.Agility, &c.Intelligence, &c.Wisdom,
		&c.Points, &c.Gold, &hotbar, &quests, &equipment, &online, &lastPlayed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to scan character: %w", err)
	}

	return decodeCharacter(&c, hotbar, quests, equipment, online, lastPlayed)
}

// scanCharacterRows reads one character from a multi-row query.
func scanCharacterRows(rows *sql.Rows) (*Character, error) {
	var c Character
	var hotbar, quests, equipment string
	var online int
	var lastPlayed sql.NullTime

	err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Race, &c.Location,
		&c.X, &c.Y, &c.Z, &c.Rot,
		&c.Level, &c.Experience, &c.Health, &c.MaxHealth, &c.Mana, &c.MaxMana,
		&c.Strength, &c.Endurance, &c.Agility, &c.Intelligence, &c.Wisdom,
		&c.Points, &c.Gold, &hotbar, &quests, &equipment, &online, &lastPlayed)
	if err != nil {
		return nil, fmt.Errorf("failed to scan character: %w", err)
	}

	return decodeCharacter(&c, hotbar, quests, equipment, online, lastPlayed)
}

// decodeCharacter fills the JSON-encoded columns and flags.
func decodeCharacter(c *Character, hotbar, quests, equipment string, online int, lastPlayed sql.NullTime) (*Character, error) {
	c.Online = online != 0
	if lastPlayed.Valid {
		c.LastPlayed = &lastPlayed.Time
	}

	c.Hotbar = make(map[int]string)
	if hotbar != "" {
		if err := json.Unmarshal([]byte(hotbar), &c.Hotbar); err != nil {
			return nil, fmt.Errorf("failed to decode hotbar: %w", err)
		}
	}
	c.Quests = make(map[string]QuestState)
	if quests != "" {
		if err := json.Unmarshal([]byte(quests), &c.Quests); err != nil {
			return nil, fmt.Errorf("failed to decode quests: %w", err)
		}
	}
	c.Equipment = make(map[string]string)
	if equipment != "" {
		if err := json.Unmarshal([]byte(equipment), &c.Equipment); err != nil {
			return nil, fmt.Errorf("failed to decode equipment: %w", err)
		}
	}

	return c, nil
}
