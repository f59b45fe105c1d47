// STSERVER - SM2/SM3 Secure Channel Negotiation Server
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of STSERVER.
//
// STSERVER is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// STSERVER is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with STSERVER. If not, see <https://www.gnu.org/licenses/>.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/stserver/internal/apperrors"
)

// MemoryStore is an in-process Store used in tests and as a local
// development fallback. It is never consulted across process restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[[40]byte]memEntry
	ttl     time.Duration
}

type memEntry struct {
	session *Session
	expires time.Time
}

// NewMemoryStore constructs a MemoryStore with the given TTL (<= 0 falls
// back to 60 seconds, matching RedisStore's default).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryStore{entries: make(map[[40]byte]memEntry), ttl: ttl}
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[s.Token] = memEntry{session: s, expires: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token [40]byte) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, apperrors.New(apperrors.KindSessionNotFound, "no session for token")
	}
	return entry.session, nil
}
