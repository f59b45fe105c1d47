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

import "context"

// Store looks up client keys and application certificate chains.
// GetClient and GetApp return apperrors with Kind MYSQL_NO_DATA when the
// row does not exist, distinguishing that case from a backend failure.
type Store interface {
	GetClient(ctx context.Context, serial string) (*AppClientKey, error)
	GetApp(ctx context.Context, appID int64) (*App, error)
}
