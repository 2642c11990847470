package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"learnai/internal/sessionlock"
	"learnai/internal/util"
	"learnai/pkg/ai"
	"learnai/pkg/auth"
	"learnai/pkg/domain"
	"learnai/pkg/storage"
	"learnai/pkg/store"
)

// Config holds the collaborators of the core application.
type Config struct {
	Store     store.Store
	Tokens    store.TokenStore
	Generator ai.ChatGenerator

	// Objects archives uploaded blobs. Optional.
	Objects storage.ObjectStore
	// Locker serializes chat turns per session. A private one is created when nil.
	Locker  *sessionlock.Locker
	Now     func() time.Time
}

// App implements the tutoring backend use cases on top of its collaborators.
type App struct {
	store     store.Store
	tokens    store.TokenStore
	generator ai.ChatGenerator
	objects   storage.ObjectStore
	locks     *sessionlock.Locker
	now       func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token store required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("chat generator required")
	}
	if cfg.Locker == nil {
		cfg.Locker = sessionlock.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:     cfg.Store,
		tokens:    cfg.Tokens,
		generator: cfg.Generator,
		objects:   cfg.Objects,
		locks:     cfg.Locker,
		now:       cfg.Now,
	}, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPasswordHash is checked for unknown emails so both login failure
// paths cost one key derivation.
func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("learnai-dummy-password")
	})
	return dummyHash
}

// SignUp registers a user with the free tier and issues an access token.
func (a *App) SignUp(email, password, name string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	_, exists, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Membership:   domain.MembershipFree,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, "", ErrEmailAlreadyExists
		}
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.NewToken(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues an access token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		auth.CheckPassword(password, dummyPasswordHash())
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.tokens.NewToken(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Logout revokes an access token.
func (a *App) Logout(token string) error {
	return a.tokens.RevokeToken(token)
}

// UserFromToken resolves the user owning a valid access token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.tokens.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// GetUser returns a user by id.
func (a *App) GetUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}
