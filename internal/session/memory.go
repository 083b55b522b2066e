package session

import (
	"context"
	"sync"
	"time"

	"github.com/starford/sitepanel/internal/apperr"
)

// Memory is a process-local Store. Sessions do not survive a restart.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]Record
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Record), now: time.Now}
}

func (m *Memory) Create(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[r.ID]; ok {
		return apperr.ErrConflict
	}
	m.sessions[r.ID] = *cloneRecord(r)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok || r.Expired(m.now()) {
		return nil, apperr.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *Memory) Touch(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.ExpiresAt = expiresAt
	m.sessions[id] = r
	return nil
}

func (m *Memory) UpdateCookies(_ context.Context, id string, cookies []StoredCookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[id]
	if !ok {
		return apperr.ErrNotFound
	}
	r.Cookies = append([]StoredCookie(nil), cookies...)
	m.sessions[id] = r
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.sessions {
		if r.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
