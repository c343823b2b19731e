// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore implements [SessionStore] in process memory.
//
// It serves single-instance development setups without Redis and tests that
// need to move the clock. Expired records are dropped lazily on access and
// by [MemorySessionStore.Sweep].
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	byUser   map[string]map[string]struct{}
	now      func() time.Time
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

// NewMemorySessionStore creates an empty store. A nil clock uses time.Now.
func NewMemorySessionStore(clock func() time.Time) *MemorySessionStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		byUser:   make(map[string]map[string]struct{}),
		now:      clock,
	}
}

// Get returns a copy of the record so callers cannot mutate shared state.
func (store *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !store.now().Before(entry.expiresAt) {
		store.removeLocked(id, entry.session.UserID)
		return nil, ErrSessionNotFound
	}

	session := entry.session
	return &session, nil
}

func (store *MemorySessionStore) Set(_ context.Context, session *Session, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.sessions[session.ID] = memorySession{session: *session, expiresAt: store.now().Add(ttl)}

	ids, ok := store.byUser[session.UserID]
	if !ok {
		ids = make(map[string]struct{})
		store.byUser[session.UserID] = ids
	}
	ids[session.ID] = struct{}{}
	return nil
}

func (store *MemorySessionStore) Refresh(_ context.Context, session *Session, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.sessions[session.ID]
	if !ok {
		return ErrSessionNotFound
	}
	now := store.now()
	if !now.Before(entry.expiresAt) {
		store.removeLocked(session.ID, entry.session.UserID)
		return ErrSessionNotFound
	}

	store.sessions[session.ID] = memorySession{session: *session, expiresAt: now.Add(ttl)}
	return nil
}

func (store *MemorySessionStore) Destroy(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if entry, ok := store.sessions[id]; ok {
		store.removeLocked(id, entry.session.UserID)
	}
	return nil
}

func (store *MemorySessionStore) DestroyUser(_ context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for id := range store.byUser[userID] {
		delete(store.sessions, id)
	}
	delete(store.byUser, userID)
	return nil
}

// Sweep drops every expired record and returns how many were removed.
func (store *MemorySessionStore) Sweep() int {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	removed := 0
	for id, entry := range store.sessions {
		if !now.Before(entry.expiresAt) {
			store.removeLocked(id, entry.session.UserID)
			removed++
		}
	}
	return removed
}

func (store *MemorySessionStore) removeLocked(id, userID string) {
	delete(store.sessions, id)
	if ids, ok := store.byUser[userID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(store.byUser, userID)
		}
	}
}
