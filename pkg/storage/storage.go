// Package storage defines the persistence interfaces for registered users
// and banned public keys, with an in-memory reference implementation.
package storage

import (
	"errors"
	"time"
)

// User is a registered identity. The server only ever holds the public
// point; the private scalar never leaves the client.
type User struct {
	ID        string    `json:"id" db:"id"`                 // UUID
	Username  string    `json:"username" db:"username"`     // unique identity
	Email     string    `json:"email" db:"email"`           // unique contact address
	PublicKey string    `json:"public_key" db:"public_key"` // uncompressed hex point
	Status    string    `json:"status" db:"status"`         // active|banned
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StatusActive is the status of a user allowed to authenticate.
const StatusActive = "active"

// UserStore persists registered users.
type UserStore interface {
	// CreateUser registers a new user. Username, email, and public key
	// must each be unique.
	CreateUser(user *User) error

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(username string) (*User, error)

	// GetUserByPublicKey retrieves a user by public key encoding.
	GetUserByPublicKey(pk string) (*User, error)

	// UpdateUserStatus updates a user's status.
	UpdateUserStatus(username string, status string) error

	// ListUsers returns all users.
	ListUsers() ([]User, error)
}

// DenylistStore tracks banned public keys.
type DenylistStore interface {
	// AddToDenylist bans a public key.
	AddToDenylist(pk string) error

	// IsInDenylist checks whether a public key is banned.
	IsInDenylist(pk string) (bool, error)

	// RemoveFromDenylist unbans a public key.
	RemoveFromDenylist(pk string) error

	// ListDenylist returns all banned public keys.
	ListDenylist() ([]string, error)
}

// Store combines the storage interfaces behind one connection.
type Store interface {
	UserStore
	DenylistStore

	// Close releases the underlying resources.
	Close() error

	// Ping checks storage health.
	Ping() error
}

var (
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates the username is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrEmailInUse indicates the email is already registered.
	ErrEmailInUse = errors.New("email already in use")

	// ErrPublicKeyInUse indicates the public key is already registered.
	ErrPublicKeyInUse = errors.New("public key already in use")
)
