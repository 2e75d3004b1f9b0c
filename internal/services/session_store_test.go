package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidar/preorder/internal/models"
)

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	ctx := context.Background()

	s := models.NewSession("abc", true)
	require.NoError(t, s.Form.AddItem("burger-classic"))
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.True(t, got.SampleMode)
	assert.Equal(t, 1, got.Form.Quantity("burger-classic"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, models.NewSession("abc", false)))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, got.Form.AddItem("burger-classic"))
	got.View = models.ViewOrder

	again, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, models.ViewHome, again.View)
	assert.Zero(t, again.Form.Quantity("burger-classic"))
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.NewSession("old", false)))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, models.NewSession("new", false)))

	now = now.Add(45 * time.Second)
	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, "new")
	assert.NoError(t, err)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.evictExpired())
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemorySessionStoreSaveRefreshesTTL(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	s := models.NewSession("abc", false)
	require.NoError(t, store.Save(ctx, s))
	now = now.Add(50 * time.Second)
	require.NoError(t, store.Save(ctx, s))
	now = now.Add(50 * time.Second)

	_, err := store.Get(ctx, "abc")
	assert.NoError(t, err)
}

func TestMemorySessionStoreCloseIsIdempotent(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	store.StartJanitor(time.Millisecond)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSessionManagerIssuesNewIDForUnknownSession(t *testing.T) {
	store := NewMemorySessionStore(time.Hour)
	sessions := NewSessionManager(store, true)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "forged-id", func(*models.Session) error { return nil })
	require.NoError(t, err)
	assert.NotEqual(t, "forged-id", s.ID)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.SampleMode, "new sessions start with the configured sample default")

	_, err = store.Get(ctx, "forged-id")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, s.ID)
	assert.NoError(t, err)
}

func TestSessionManagerSavesEvenWhenFnFails(t *testing.T) {
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		s.View = models.ViewOrder
		return nil
	})
	require.NoError(t, err)

	s, err = sessions.WithSession(ctx, s.ID, func(s *models.Session) error {
		return ErrInvalidTransition
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NotNil(t, s)
	assert.Equal(t, models.ViewOrder, s.View)
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestSessionManagerSerializesPerSession(t *testing.T) {
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		s.View = models.ViewOrder
		return nil
	})
	require.NoError(t, err)
	id := s.ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.WithSession(ctx, id, func(s *models.Session) error {
				return s.Form.AddItem("burger-classic")
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err = sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 20, s.Form.Quantity("burger-classic"))

	sessions.mu.Lock()
	assert.Empty(t, sessions.locks)
	sessions.mu.Unlock()
}

func TestSessionManagerNewSessionsDoNotShareALock(t *testing.T) {
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	inside := make(chan string)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
			inside <- s.ID
			<-release
			return nil
		})
		assert.NoError(t, err)
	}()
	firstID := <-inside

	sessions.mu.Lock()
	_, lockedByID := sessions.locks[firstID]
	_, lockedByEmpty := sessions.locks[""]
	sessions.mu.Unlock()
	assert.True(t, lockedByID, "the minted id is locked")
	assert.False(t, lockedByEmpty)

	second := make(chan string, 1)
	go func() {
		s, err := sessions.WithSession(ctx, "", func(*models.Session) error { return nil })
		if assert.NoError(t, err) {
			second <- s.ID
		}
	}()
	select {
	case id := <-second:
		assert.NotEqual(t, firstID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("a request without a session waited for another one")
	}

	close(release)
	<-done
	sessions.mu.Lock()
	assert.Empty(t, sessions.locks)
	sessions.mu.Unlock()
}

func TestSessionManagerLocksReplacementForUnknownID(t *testing.T) {
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	sessions.newID = func() string { return "minted" }
	ctx := context.Background()

	_, err := sessions.WithSession(ctx, "forged-id", func(s *models.Session) error {
		assert.Equal(t, "minted", s.ID)
		sessions.mu.Lock()
		defer sessions.mu.Unlock()
		assert.Contains(t, sessions.locks, "minted")
		assert.NotContains(t, sessions.locks, "forged-id")
		return nil
	})
	require.NoError(t, err)

	sessions.mu.Lock()
	assert.Empty(t, sessions.locks)
	sessions.mu.Unlock()
}
