package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
	"nidar/preorder/internal/utils"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps sessions for a limited time. Implementations return copies:
// mutating a loaded session has no effect until it is saved.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Pinger is a store backed by a server that can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemorySessionStore is the single-instance store used when Redis is unavailable.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// StartJanitor evicts expired sessions every interval until Close.
func (m *MemorySessionStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.evictExpired(); n > 0 {
					log.Debug().Int("evicted", n).Msg("🧹 Sessions: expired sessions evicted")
				}
			}
		}
	}()
}

func (m *MemorySessionStore) evictExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	evicted := 0
	for id, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, id)
			evicted++
		}
	}
	return evicted
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if ok && m.now().After(entry.expires) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var s models.Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	m.entries[s.ID] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *MemorySessionStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

const sessionKeyPrefix = "session:"

// RedisSessionStore shares sessions between instances; every save refreshes the TTL.
type RedisSessionStore struct {
	redis *utils.RedisClient
	ttl   time.Duration
}

func NewRedisSessionStore(redisUtil *utils.RedisClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: redisUtil, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.redis.GetJSON(ctx, sessionKeyPrefix+id, &s); err != nil {
		if errors.Is(err, utils.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *models.Session) error {
	if err := r.redis.Set(ctx, sessionKeyPrefix+s.ID, s, r.ttl); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.redis.Delete(ctx, sessionKeyPrefix+id)
}

func (r *RedisSessionStore) Count(ctx context.Context) (int, error) {
	return r.redis.CountKeys(ctx, sessionKeyPrefix+"*")
}

func (r *RedisSessionStore) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx)
}
