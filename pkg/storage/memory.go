package storage

import (
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. Suitable for
// development and tests; production deployments replace it behind the same
// interface.
type MemoryStore struct {
	mu          sync.RWMutex
	byUsername  map[string]*User
	byEmail     map[string]string // email -> username
	byPublicKey map[string]string // public key -> username
	denylist    map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUsername:  make(map[string]*User),
		byEmail:     make(map[string]string),
		byPublicKey: make(map[string]string),
		denylist:    make(map[string]bool),
	}
}

// CreateUser registers a new user, enforcing username, email, and public
// key uniqueness.
func (s *MemoryStore) CreateUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return ErrUserExists
	}
	if user.Email != "" {
		if _, exists := s.byEmail[user.Email]; exists {
			return ErrEmailInUse
		}
	}
	if _, exists := s.byPublicKey[user.PublicKey]; exists {
		return ErrPublicKeyInUse
	}

	stored := *user
	if stored.Status == "" {
		stored.Status = StatusActive
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.byUsername[stored.Username] = &stored
	if stored.Email != "" {
		s.byEmail[stored.Email] = stored.Username
	}
	s.byPublicKey[stored.PublicKey] = stored.Username

	// Reflect defaults back to the caller.
	*user = stored
	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.byUsername[username]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

// GetUserByPublicKey retrieves a user by public key encoding.
func (s *MemoryStore) GetUserByPublicKey(pk string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, exists := s.byPublicKey[pk]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *s.byUsername[username]
	return &userCopy, nil
}

// UpdateUserStatus updates a user's status.
func (s *MemoryStore) UpdateUserStatus(username string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.byUsername[username]
	if !exists {
		return ErrUserNotFound
	}

	user.Status = status
	return nil
}

// ListUsers returns all users.
func (s *MemoryStore) ListUsers() ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.byUsername))
	for _, user := range s.byUsername {
		users = append(users, *user)
	}
	return users, nil
}

// AddToDenylist bans a public key.
func (s *MemoryStore) AddToDenylist(pk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.denylist[pk] = true
	return nil
}

// IsInDenylist checks whether a public key is banned.
func (s *MemoryStore) IsInDenylist(pk string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.denylist[pk], nil
}

// RemoveFromDenylist unbans a public key.
func (s *MemoryStore) RemoveFromDenylist(pk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.denylist, pk)
	return nil
}

// ListDenylist returns all banned public keys.
func (s *MemoryStore) ListDenylist() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pks := make([]string, 0, len(s.denylist))
	for pk := range s.denylist {
		pks = append(pks, pk)
	}
	return pks, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping() error {
	return nil
}

// Stats returns storage counters for monitoring.
func (s *MemoryStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"users":    len(s.byUsername),
		"denylist": len(s.denylist),
	}
}
