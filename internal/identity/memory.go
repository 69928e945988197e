package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zeng7cd/go-api-boilerplate/internal/hash"
)

var ErrAlreadyExists = errors.New("user already exists")

// MemoryStore is a mutex-guarded Store for the demo composition root and
// tests. Email lookup is case-insensitive.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

// Add inserts u, generating an id when empty. The email must be unused.
func (s *MemoryStore) Add(u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	key := strings.ToLower(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return User{}, ErrAlreadyExists
	}
	if _, ok := s.byID[u.ID]; ok {
		return User{}, ErrAlreadyExists
	}

	s.byID[u.ID] = u
	s.byEmail[key] = u.ID
	return u, nil
}

// AddWithPassword bcrypts password and inserts the user.
func (s *MemoryStore) AddWithPassword(u User, password string) (User, error) {
	hashed, err := hash.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = hashed
	return s.Add(u)
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, strings.ToLower(u.Email))
	return nil
}
