// Package session keeps the server-side login sessions referenced by
// issued tokens.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/traced_shop/auth-service/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// CleanupInterval is how often MemoryStore drops expired sessions.
const CleanupInterval = time.Minute

type Store interface {
	Save(ctx context.Context, s *domain.Session) error
	// Get returns ErrSessionNotFound for unknown and expired sessions.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewMemoryStore starts a background cleanup; call Close to stop it.
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(CleanupInterval)
}

// newMemoryStore runs no cleanup loop when interval is not positive.
func newMemoryStore(interval time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions:    make(map[string]*domain.Session),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if interval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(interval)
	}
	return m
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expire()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *MemoryStore) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, k)
		}
	}
}

// Close stops the background cleanup and waits for it to finish.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	m.wg.Wait()
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, s *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *s

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.Expired(m.now()) {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
