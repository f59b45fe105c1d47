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

// Package keystore looks up per-serial client private keys and
// application certificate chains, backed by MySQL or an in-memory map.
package keystore

// AppClientKey mirrors stserver.app_client_key: the per-serial client
// identity and the SM2 private key (PEM) bound to it.
type AppClientKey struct {
	AppID      int64
	ClientType string
	SerialID   string
	PubKey     []byte
	PriKeyPEM  []byte
}

// App mirrors stserver.app: the application record and its PKCS#12
// certificate bundle (DER, containing one private key and an N>=1 chain).
type App struct {
	ID          int64
	Name        string
	Description string
	Certs       []byte
}
