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
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sage-x-project/stserver/internal/apperrors"
)

// RedisStore persists Session values as JSON under their 40-byte token,
// keyed by its hex encoding, with a default TTL of 60 seconds.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore against an already-configured client.
// ttl <= 0 falls back to the 60-second default, roughly one handshake's
// worth of lifetime.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return apperrors.Wrap(apperrors.KindSerialize, err)
	}
	if err := s.client.Set(ctx, tokenKey(sess.Token), b, s.ttl).Err(); err != nil {
		return apperrors.FromRedis(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token [40]byte) (*Session, error) {
	b, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.New(apperrors.KindSessionNotFound, "no session for token")
		}
		return nil, apperrors.FromRedis(err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, apperrors.Wrap(apperrors.KindSerialize, err)
	}
	return &sess, nil
}

func tokenKey(token [40]byte) string {
	const prefix = "stserver:session:"
	buf := make([]byte, len(prefix)+len(token)*2)
	copy(buf, prefix)
	const hextable = "0123456789abcdef"
	j := len(prefix)
	for _, b := range token {
		buf[j] = hextable[b>>4]
		buf[j+1] = hextable[b&0x0f]
		j += 2
	}
	return string(buf)
}
