// Package replay implements the verifier-side freshness boundary. The proof
// protocol itself has no intrinsic expiry — verification accepts any
// algebraically correct proof, however old, and accepts the same proof twice.
// This package supplies the mandatory deployment policy on top: a bounded
// staleness window plus tracking of consumed (public key, message) pairs
// within that window.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/i-dipanshu/secure-files-sub000/pkg/authmsg"
)

var (
	// ErrStaleProof indicates a message timestamp outside the allowed window.
	ErrStaleProof = errors.New("proof is stale")

	// ErrReplayedProof indicates a (public key, message) pair seen before.
	ErrReplayedProof = errors.New("proof was already used")

	// ErrIdentityMismatch indicates a message bound to a different identity
	// than the one being authenticated.
	ErrIdentityMismatch = errors.New("message identity mismatch")
)

// Store tracks consumed proofs. Seen atomically tests and marks a
// (public key, message) pair; it returns true when the pair was already
// present. Entries only need to live as long as the staleness window.
type Store interface {
	Seen(publicKey, message string) bool
	Cleanup()
}

// Policy is the freshness/replay decision applied before cryptographic
// verification. MaxAge bounds how old an embedded timestamp may be; MaxSkew
// bounds how far in the future it may sit (clock drift allowance).
type Policy struct {
	MaxAge  time.Duration
	MaxSkew time.Duration
	Store   Store
}

// NewPolicy returns a policy with the given window backed by store.
func NewPolicy(maxAge, maxSkew time.Duration, store Store) *Policy {
	return &Policy{MaxAge: maxAge, MaxSkew: maxSkew, Store: store}
}

// Check validates the message bound into a proof: it must name the claimed
// identity, carry a timestamp within [now-MaxAge, now+MaxSkew], and must not
// have been consumed before for the same public key. A nil error consumes
// the message.
func (p *Policy) Check(identity, publicKey string, message []byte, now time.Time) error {
	msgIdentity, ts, err := authmsg.Parse(message)
	if err != nil {
		return err
	}
	if msgIdentity != identity {
		return ErrIdentityMismatch
	}

	issued := time.Unix(ts, 0)
	if now.Sub(issued) > p.MaxAge {
		return ErrStaleProof
	}
	if issued.Sub(now) > p.MaxSkew {
		return ErrStaleProof
	}

	if p.Store != nil && p.Store.Seen(publicKey, string(message)) {
		return ErrReplayedProof
	}
	return nil
}

// InMemoryStore tracks consumed proofs in a TTL map. Suitable for
// single-instance deployments; multi-instance deployments should share a
// RedisStore instead.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]int64 // key -> expiry unix time
	ttl     time.Duration
}

// NewInMemoryStore creates an in-memory store whose entries expire after
// ttl, with a background cleanup sweep every minute.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	store := &InMemoryStore{
		entries: make(map[string]int64),
		ttl:     ttl,
	}

	go store.cleanupLoop()

	return store
}

// Seen tests and marks a (public key, message) pair.
func (s *InMemoryStore) Seen(publicKey, message string) bool {
	key := entryKey(publicKey, message)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return true
	}

	s.entries[key] = time.Now().Add(s.ttl).Unix()
	return false
}

// Cleanup removes expired entries.
func (s *InMemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	for key, expiry := range s.entries {
		if expiry <= now {
			delete(s.entries, key)
		}
	}
}

// Size returns the current number of tracked entries.
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.Cleanup()
	}
}

// entryKey hashes the pair so arbitrarily long messages cost a fixed-size
// map key.
func entryKey(publicKey, message string) string {
	h := sha256.New()
	h.Write([]byte(publicKey))
	h.Write([]byte{0})
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// NoOpStore disables replay tracking. Useful in tests and in deployments
// that delegate replay protection elsewhere.
type NoOpStore struct{}

// NewNoOpStore creates a store that never reports a replay.
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Seen always returns false.
func (s *NoOpStore) Seen(publicKey, message string) bool {
	return false
}

// Cleanup does nothing.
func (s *NoOpStore) Cleanup() {}

// RedisClient is the subset of a Redis client the RedisStore needs.
type RedisClient interface {
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	Ping() error
}

// RedisStore tracks consumed proofs in Redis, for deployments with more
// than one verifier instance.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store with the given entry TTL.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Seen tests and marks via SETNX. On Redis errors it fails open: losing
// replay protection briefly beats rejecting all logins.
func (s *RedisStore) Seen(publicKey, message string) bool {
	key := "zkauth:replay:" + entryKey(publicKey, message)

	wasSet, err := s.client.SetNX(key, "1", s.ttl)
	if err != nil {
		return false
	}
	return !wasSet
}

// Cleanup is a no-op; Redis expires entries via TTL.
func (s *RedisStore) Cleanup() {}
