package store

import (
	"slices"
	"sort"
	"sync"

	"learnai/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local runs
// without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User      // key: user ID
	email    map[string]string           // email -> user ID
	profiles map[string][]domain.Profile // user ID -> history, current last
	sessions map[string]domain.Session
	files    []domain.UploadedFile
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		profiles: make(map[string][]domain.Profile),
		sessions: make(map[string]domain.Session),
	}
}

func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	u.Membership = u.Membership.Normalize()
	if _, exists := m.email[u.Email]; exists {
		return ErrDuplicateEmail
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[normalizeEmail(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UpdateMembership(userID string, tier domain.Membership) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	u.Membership = tier
	m.users[userID] = u
	return true, nil
}

// SaveProfile appends the profile as the user's current one.
func (m *MemoryStore) SaveProfile(p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[p.UserID]; !ok {
		return ErrNotFound
	}
	m.profiles[p.UserID] = append(m.profiles[p.UserID], cloneProfile(p))
	return nil
}

func (m *MemoryStore) GetProfile(userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.profiles[userID]
	if len(history) == 0 {
		return domain.Profile{}, false, nil
	}
	return cloneProfile(history[len(history)-1]), true, nil
}

func (m *MemoryStore) CreateSession(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Messages = slices.Clone(nonNil(s.Messages))
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, false, nil
	}
	s.Messages = slices.Clone(s.Messages)
	return s, true, nil
}

// ListSessionsByUser returns sessions newest first.
func (m *MemoryStore) ListSessionsByUser(userID string) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Session, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.Messages = slices.Clone(s.Messages)
			res = append(res, s)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].StartedAt.Equal(res[j].StartedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].StartedAt.After(res[j].StartedAt)
	})
	return res, nil
}

func (m *MemoryStore) AppendSessionMessages(sessionID string, msgs ...domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Messages = append(slices.Clone(s.Messages), msgs...)
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) SaveUploadedFile(f domain.UploadedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, f)
	return nil
}

// ListFilesBySession returns files in upload order.
func (m *MemoryStore) ListFilesBySession(sessionID string) ([]domain.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UploadedFile, 0)
	for _, f := range m.files {
		if f.SessionID == sessionID {
			res = append(res, f)
		}
	}
	return res, nil
}

func cloneProfile(p domain.Profile) domain.Profile {
	p.CognitiveProfile.All = slices.Clone(p.CognitiveProfile.All)
	p.Motivation = slices.Clone(nonNil(p.Motivation))
	p.Challenges = slices.Clone(nonNil(p.Challenges))
	p.Goals = slices.Clone(nonNil(p.Goals))
	return p
}
