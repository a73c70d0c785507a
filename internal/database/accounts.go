package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost factor (12 is a good balance of security and performance)
const bcryptCost = 12

// tokenTTL is how long a session token stays valid after login.
const tokenTTL = 24 * time.Hour

// ErrAccountNotFound is returned when an account lookup fails.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when trying to create a duplicate account.
var ErrAccountExists = errors.New("account already exists")

// ErrInvalidCredentials is returned when login credentials are incorrect.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidToken is returned when a session token is unknown or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// Account represents a player account.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	SessionToken string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// CreateAccount creates a new account with a bcrypt-hashed password.
func (s *Store) CreateAccount(username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	if len(password) < 4 {
		return nil, errors.New("password must be at least 4 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := s.dialect.Rebind("INSERT INTO accounts (username, password_hash) VALUES (?, ?)")
	result, err := s.db.Exec(query, username, string(hash))
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	var id int64
	if s.dialect.DriverName() == "postgres" {
		row := s.db.QueryRow(s.dialect.Rebind("SELECT id FROM accounts WHERE username = ?"), username)
		if err := row.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to get account ID: %w", err)
		}
	} else {
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get account ID: %w", err)
		}
	}

	return &Account{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}, nil
}

// Login validates the credentials and, when correct, issues a fresh session
// token. Returns ErrInvalidCredentials when the username or password is wrong.
func (s *Store) Login(username, password string) (*Account, error) {
	account, err := s.GetAccountByUsername(username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	query := s.dialect.Rebind(
		"UPDATE accounts SET session_token = ?, token_expires = ?, last_login = ? WHERE id = ?")
	expires := time.Now().Add(tokenTTL)
	if _, err := s.db.Exec(query, token, expires, time.Now(), account.ID); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}

	account.SessionToken = token
	return account, nil
}

// ValidateToken returns the account for a live session token, or
// ErrInvalidToken when the token is unknown or expired.
func (s *Store) ValidateToken(token string) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	query := s.dialect.Rebind(
		"SELECT id, username, password_hash, session_token, token_expires, created_at, last_login FROM accounts WHERE session_token = ?")
	row := s.db.QueryRow(query, token)

	var account Account
	var expires sql.NullTime
	var lastLogin sql.NullTime
	err := row.Scan(&account.ID, &account.Username, &account.PasswordHash,
		&account.SessionToken, &expires, &account.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if !expires.Valid || time.Now().After(expires.Time) {
		return nil, ErrInvalidToken
	}
	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}

	return &account, nil
}

// GetAccountByUsername looks up an account by username.
func (s *Store) GetAccountByUsername(username string) (*Account, error) {
	query := s.dialect.Rebind(
		"SELECT id, username, password_hash, session_token, created_at, last_login FROM accounts WHERE username = ?")
	row := s.db.QueryRow(query, strings.TrimSpace(username))

	var account Account
	var lastLogin sql.NullTime
	err := row.Scan(&account.ID, &account.Username, &account.PasswordHash,
		&account.SessionToken, &account.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if lastLogin.Valid {
		account.LastLogin = &lastLogin.Time
	}

	return &account, nil
}

// generateToken produces a 32-byte random hex session token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
