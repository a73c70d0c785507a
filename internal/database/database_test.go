package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(DialectSQLite, dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestAccount(t *testing.T, s *Store) *Account {
	t.Helper()

	account, err := s.CreateAccount("tester", "secret")
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

func TestCreateAccount(t *testing.T) {
	s := setupTestDB(t)

	account := createTestAccount(t, s)
	if account.ID == 0 {
		t.Error("Account should get a row id")
	}
	if account.Username != "tester" {
		t.Errorf("Expected username tester, got %s", account.Username)
	}
	if account.PasswordHash == "secret" {
		t.Error("Password must never be stored in the clear")
	}
}

func TestCreateAccountValidation(t *testing.T) {
	s := setupTestDB(t)

	if _, err := s.CreateAccount("", "secret"); err == nil {
		t.Error("Empty username should be rejected")
	}
	if _, err := s.CreateAccount("tester", "abc"); err == nil {
		t.Error("Short password should be rejected")
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	s := setupTestDB(t)
	createTestAccount(t, s)

	_, err := s.CreateAccount("tester", "othersecret")
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("Expected ErrAccountExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	s := setupTestDB(t)
	createTestAccount(t, s)

	account, err := s.Login("tester", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if account.SessionToken == "" {
		t.Error("Login should issue a session token")
	}

	// Each login rotates the token.
	again, err := s.Login("tester", "secret")
	if err != nil {
		t.Fatalf("Second login failed: %v", err)
	}
	if again.SessionToken == account.SessionToken {
		t.Error("Login should issue a fresh token")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	s := setupTestDB(t)
	createTestAccount(t, s)

	if _, err := s.Login("tester", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := s.Login("nobody", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	s := setupTestDB(t)
	createTestAccount(t, s)

	account, err := s.Login("tester", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	got, err := s.ValidateToken(account.SessionToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("Token resolved to account %d, want %d", got.ID, account.ID)
	}

	if _, err := s.ValidateToken(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Empty token should be invalid, got %v", err)
	}
	if _, err := s.ValidateToken("deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Unknown token should be invalid, got %v", err)
	}
}

func TestCreateCharacter(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)

	char, err := s.CreateCharacter(account.ID, "Arden", "human", "greenfields", 100, 50)
	if err != nil {
		t.Fatalf("CreateCharacter failed: %v", err)
	}
	if char.ID == 0 || char.AccountID != account.ID {
		t.Errorf("Character row wrong: id %d account %d", char.ID, char.AccountID)
	}
	if char.Level != 1 || char.Health != 100 || char.MaxMana != 50 {
		t.Errorf("Starting stats wrong: %+v", char)
	}
	if char.Hotbar == nil || char.Quests == nil || char.Equipment == nil {
		t.Error("JSON columns should decode to empty maps")
	}

	_, err = s.CreateCharacter(account.ID, "Arden", "elf", "greenfields", 90, 70)
	if !errors.Is(err, ErrCharacterExists) {
		t.Errorf("Expected ErrCharacterExists, got %v", err)
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	s := setupTestDB(t)

	if _, err := s.GetCharacterByID(42); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("Expected ErrCharacterNotFound, got %v", err)
	}
	if _, err := s.GetCharacterByName("Nobody"); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("Expected ErrCharacterNotFound, got %v", err)
	}
}

func TestGetCharactersByAccount(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)

	for _, name := range []string{"Arden", "Brina"} {
		if _, err := s.CreateCharacter(account.ID, name, "human", "greenfields", 100, 50); err != nil {
			t.Fatalf("CreateCharacter failed: %v", err)
		}
	}

	chars, err := s.GetCharactersByAccount(account.ID)
	if err != nil {
		t.Fatalf("GetCharactersByAccount failed: %v", err)
	}
	if len(chars) != 2 {
		t.Fatalf("Expected 2 characters, got %d", len(chars))
	}
}

func TestSaveCharacterRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)

	char, err := s.CreateCharacter(account.ID, "Arden", "human", "greenfields", 100, 50)
	if err != nil {
		t.Fatalf("CreateCharacter failed: %v", err)
	}

	char.Location = "ember_depths"
	char.X, char.Y, char.Z, char.Rot = 3.5, 0, -7.25, 90
	char.Level = 4
	char.Experience = 1200
	char.Health, char.MaxHealth = 80, 130
	char.Gold = 77
	char.Points = 6
	char.Hotbar = map[int]string{1: "slash", 6: "health_potion"}
	char.Quests = map[string]QuestState{"rat_problem": {Status: "active", Qty: 3}}
	char.Equipment = map[string]string{"chest": "leather_vest"}

	if err := s.SaveCharacter(char); err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}

	got, err := s.GetCharacterByID(char.ID)
	if err != nil {
		t.Fatalf("GetCharacterByID failed: %v", err)
	}
	if got.Location != "ember_depths" || got.Z != -7.25 || got.Rot != 90 {
		t.Errorf("Position not persisted: %+v", got)
	}
	if got.Level != 4 || got.Experience != 1200 || got.Gold != 77 || got.Points != 6 {
		t.Errorf("Progression not persisted: %+v", got)
	}
	if got.Hotbar[1] != "slash" || got.Hotbar[6] != "health_potion" {
		t.Errorf("Hotbar not persisted: %+v", got.Hotbar)
	}
	if q := got.Quests["rat_problem"]; q.Status != "active" || q.Qty != 3 {
		t.Errorf("Quests not persisted: %+v", got.Quests)
	}
	if got.Equipment["chest"] != "leather_vest" {
		t.Errorf("Equipment not persisted: %+v", got.Equipment)
	}
	if got.LastPlayed == nil {
		t.Error("SaveCharacter should stamp last_played")
	}
}

func TestOnlineFlags(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)

	a, _ := s.CreateCharacter(account.ID, "Arden", "human", "greenfields", 100, 50)
	b, _ := s.CreateCharacter(account.ID, "Brina", "elf", "greenfields", 90, 70)

	if err := s.SetOnline(a.ID, true); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}
	got, _ := s.GetCharacterByID(a.ID)
	if !got.Online {
		t.Error("Character should be flagged online")
	}

	if err := s.ClearAllOnline(); err != nil {
		t.Fatalf("ClearAllOnline failed: %v", err)
	}
	for _, id := range []int64{a.ID, b.ID} {
		got, _ := s.GetCharacterByID(id)
		if got.Online {
			t.Errorf("Character %d still online after reset", id)
		}
	}
}

func TestInventoryRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)
	char, _ := s.CreateCharacter(account.ID, "Arden", "human", "greenfields", 100, 50)

	inv := map[string]int{"health_potion": 3, "rat_tail": 7, "spent": 0}
	if err := s.SaveInventory(char.ID, inv); err != nil {
		t.Fatalf("SaveInventory failed: %v", err)
	}

	got, err := s.LoadInventory(char.ID)
	if err != nil {
		t.Fatalf("LoadInventory failed: %v", err)
	}
	if got["health_potion"] != 3 || got["rat_tail"] != 7 {
		t.Errorf("Inventory wrong: %+v", got)
	}
	if _, there := got["spent"]; there {
		t.Error("Empty stacks must not be persisted")
	}

	// A save replaces the old rows rather than merging.
	if err := s.SaveInventory(char.ID, map[string]int{"rat_tail": 1}); err != nil {
		t.Fatalf("SaveInventory failed: %v", err)
	}
	got, _ = s.LoadInventory(char.ID)
	if len(got) != 1 || got["rat_tail"] != 1 {
		t.Errorf("Inventory save should replace, got %+v", got)
	}
}

func TestAbilitiesRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	account := createTestAccount(t, s)
	char, _ := s.CreateCharacter(account.ID, "Arden", "human", "greenfields", 100, 50)

	if err := s.SaveAbilities(char.ID, []string{"slash", "firebolt"}); err != nil {
		t.Fatalf("SaveAbilities failed: %v", err)
	}

	got, err := s.LoadAbilities(char.ID)
	if err != nil {
		t.Fatalf("LoadAbilities failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 abilities, got %v", got)
	}
	learned := map[string]bool{}
	for _, key := range got {
		learned[key] = true
	}
	if !learned["slash"] || !learned["firebolt"] {
		t.Errorf("Abilities wrong: %v", got)
	}
}
