package store

import (
	"errors"
	"time"

	"learnai/pkg/domain"
)

var (
	// ErrDuplicateEmail indicates a user with the same (lower-cased) email exists.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence operations for users, profiles, sessions and uploads.
// Getters report a missing record with ok=false and a nil error.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateMembership(userID string, tier domain.Membership) (bool, error)

	// profiles
	SaveProfile(domain.Profile) error
	GetProfile(userID string) (domain.Profile, bool, error)

	// sessions
	CreateSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	ListSessionsByUser(userID string) ([]domain.Session, error)
	AppendSessionMessages(sessionID string, msgs ...domain.Message) error

	// uploaded files
	SaveUploadedFile(domain.UploadedFile) error
	ListFilesBySession(sessionID string) ([]domain.UploadedFile, error)
}

// TokenStore issues and resolves bearer tokens for authenticated users.
type TokenStore interface {
	NewToken(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	RevokeToken(token string) error
}

// TokenRevoker tracks revoked token ids until they expire.
type TokenRevoker interface {
	Revoke(tokenID string, ttl time.Duration) error
	IsRevoked(tokenID string) (bool, error)
}
