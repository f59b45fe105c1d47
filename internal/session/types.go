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

// Package session defines the per-handshake Session record and the
// SessionStore contract, plus Redis-backed and in-memory implementations.
package session

// Session is the central per-handshake entity, created once at the end of
// message-1 processing and mutated exactly once, during message-2
// processing, at which point EncryptKey becomes defined.
type Session struct {
	Token        [40]byte `json:"token"`
	RandomA      []byte   `json:"random_a"`
	ClientMAC    []byte   `json:"client_mac"`
	RandomB      []byte   `json:"random_b"`
	RandomD      []byte   `json:"random_d,omitempty"`
	RandomCert   []byte   `json:"random_cert"`
	PrivateKey   []byte   `json:"prikey"`
	RequestHash  []byte   `json:"request_hash"`
	PreMasterKey []byte   `json:"pre_master_key,omitempty"`
	EncryptKey   []byte   `json:"encrypt_key,omitempty"`
}
