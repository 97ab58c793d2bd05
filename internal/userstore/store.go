// Package userstore is a small in memory credential store used by the CLI
// serve command. Passwords are kept as bcrypt hashes.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-jwtauth"
)

var (
	ErrNoEmptyString             = errors.New("userstore: empty string not allowed")
	ErrMismatchedHashAndPassword = errors.New("userstore: password does not match hash")
	ErrDuplicateUser             = errors.New("userstore: user already exists")
)

// User is a stored account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// ToMap satisfies auth.Identity. The password hash is never exposed.
func (u *User) ToMap() map[string]any {
	return map[string]any{
		"user_id":  u.ID,
		"username": u.Username,
	}
}

// Store keeps users by username.
type Store struct {
	mu    sync.RWMutex
	users map[string]*User
	cost  int
}

// New returns an empty store hashing with cost. A cost of 0 uses
// bcrypt.DefaultCost.
func New(cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{users: map[string]*User{}, cost: cost}
}

// Add hashes password and stores a new user with a random id.
func (s *Store) Add(username, password string) (*User, error) {
	if username == "" {
		return nil, ErrNoEmptyString
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrDuplicateUser
	}

	user := &User{ID: uuid.NewString(), Username: username, PasswordHash: hash}
	s.users[username] = user
	return user, nil
}

// VerifyCredentials satisfies auth.CredentialVerifier.
func (s *Store) VerifyCredentials(_ context.Context, creds auth.Credentials) (auth.Identity, error) {
	username, password := creds.String("username"), creds.String("password")
	if username == "" || password == "" {
		return nil, auth.AuthenticationFailed("Missing username or password.")
	}

	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, auth.AuthenticationFailed("User not found.")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, auth.AuthenticationFailed("Password is incorrect.")
		}
		return nil, err
	}

	return user, nil
}

// RetrieveIdentity satisfies auth.IdentityRetriever, subject is the user id.
func (s *Store) RetrieveIdentity(_ context.Context, subject string) (auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ID == subject {
			return user, nil
		}
	}
	return nil, auth.AuthenticationFailed("User not found.")
}

// LoadFile reads "username:password" lines. Blank lines and lines starting
// with # are skipped.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		username, password, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("userstore: %s:%d: expected username:password", path, i+1)
		}
		if _, err := s.Add(strings.TrimSpace(username), strings.TrimSpace(password)); err != nil {
			return fmt.Errorf("userstore: %s:%d: %w", path, i+1, err)
		}
	}
	return nil
}

func (s *Store) hashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
