package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"nidar/preorder/internal/models"
)

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// SessionManager loads, mutates and saves sessions one request at a time per session id.
type SessionManager struct {
	store         SessionStore
	sampleDefault bool
	newID         func() string

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewSessionManager(store SessionStore, sampleDefault bool) *SessionManager {
	return &SessionManager{
		store:         store,
		sampleDefault: sampleDefault,
		newID:         func() string { return uuid.New().String() },
		locks:         make(map[string]*sessionLock),
	}
}

func (m *SessionManager) Store() SessionStore {
	return m.store
}

// lock serializes work on one session id and returns the unlock func.
func (m *SessionManager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Load returns the session or, for an empty or unknown id, a new unsaved one.
func (m *SessionManager) Load(ctx context.Context, id string) (*models.Session, error) {
	if id != "" {
		s, err := m.store.Get(ctx, id)
		if err == nil {
			s.Form.Normalize()
			return s, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	return models.NewSession(m.newID(), m.sampleDefault), nil
}

// acquire returns the session for id holding the lock of the id it ends up with. The id is
// resolved first, so requests without a session never share a lock.
func (m *SessionManager) acquire(ctx context.Context, id string) (*models.Session, func(), error) {
	if id == "" {
		s := models.NewSession(m.newID(), m.sampleDefault)
		return s, m.lock(s.ID), nil
	}

	unlock := m.lock(id)
	s, err := m.Load(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if s.ID != id {
		// unknown id, s is new and its id is not known to any other request yet
		unlock()
		unlock = m.lock(s.ID)
	}
	return s, unlock, nil
}

// WithSession runs fn under the session's lock and saves the session afterwards, whatever fn
// returned. Flow operations leave the session untouched when they fail. An empty or unknown id
// gets a fresh session with a server-generated id; callers must re-issue the cookie from the
// result.
func (m *SessionManager) WithSession(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	s, unlock, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fnErr := fn(s)

	s.UpdatedAt = time.Now()
	if err := m.store.Save(ctx, s); err != nil {
		return s, err
	}
	return s, fnErr
}
