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
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sage-x-project/stserver/internal/apperrors"
)

// MySQLStore queries the stserver.app_client_key and stserver.app tables
// directly on every handshake; rows are small and the pool absorbs the
// round trips, so no cache layer sits in front.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore wraps an already-open *sql.DB. The caller owns its
// lifecycle (including connection pool limits and lazy-open semantics).
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) GetClient(ctx context.Context, serial string) (*AppClientKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT app_id, client_type, serialid, pubkey, prikey FROM stserver.app_client_key WHERE serialid = ?`,
		serial,
	)
	var k AppClientKey
	if err := row.Scan(&k.AppID, &k.ClientType, &k.SerialID, &k.PubKey, &k.PriKeyPEM); err != nil {
		return nil, apperrors.FromMySQL(err)
	}
	return &k, nil
}

func (s *MySQLStore) GetApp(ctx context.Context, appID int64) (*App, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, certs FROM stserver.app WHERE id = ?`,
		appID,
	)
	var a App
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Certs); err != nil {
		return nil, apperrors.FromMySQL(err)
	}
	return &a, nil
}
