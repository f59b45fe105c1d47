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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	var token [40]byte
	token[39] = 0x01
	sess := &Session{Token: token, RandomA: []byte("a")}

	require.NoError(t, store.Put(context.Background(), sess))

	got, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, sess.RandomA, got.RandomA)
}

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	var token [40]byte
	_, err := store.Get(context.Background(), token)
	require.Error(t, err)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	var token [40]byte
	require.NoError(t, store.Put(context.Background(), &Session{Token: token}))
	time.Sleep(5 * time.Millisecond)
	_, err := store.Get(context.Background(), token)
	require.Error(t, err)
}
