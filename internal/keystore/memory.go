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

package keystore

import (
	"context"
	"sync"

	"github.com/sage-x-project/stserver/internal/apperrors"
)

// MemoryStore is an in-process Store used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*AppClientKey
	apps    map[int64]*App
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*AppClientKey),
		apps:    make(map[int64]*App),
	}
}

func (m *MemoryStore) PutClient(k *AppClientKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[k.SerialID] = k
}

func (m *MemoryStore) PutApp(a *App) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[a.ID] = a
}

func (m *MemoryStore) GetClient(_ context.Context, serial string) (*AppClientKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.clients[serial]
	if !ok {
		return nil, apperrors.New(apperrors.KindMySQLNoData, "no client for serial")
	}
	return k, nil
}

func (m *MemoryStore) GetApp(_ context.Context, appID int64) (*App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.apps[appID]
	if !ok {
		return nil, apperrors.New(apperrors.KindMySQLNoData, "no app for id")
	}
	return a, nil
}
