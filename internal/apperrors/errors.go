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

// Package apperrors defines the closed set of error kinds produced by the
// handshake pipeline and centralizes conversion from backend/driver errors.
package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of handshake failure categories.
type Kind string

const (
	KindDataInvalid              Kind = "DATA_INVALID"
	KindDataPack                 Kind = "DATA_PACK"
	KindDataType                 Kind = "DATA_TYPE"
	KindDataUnpackOldDataNoMatch Kind = "DATA_UNPACK_OLDDATA_NOMATCH"
	KindSM2                      Kind = "SM2"
	KindPKCS12                   Kind = "PKCS12"
	KindMySQL                    Kind = "MYSQL"
	KindMySQLNoData              Kind = "MYSQL_NO_DATA"
	KindRedis                    Kind = "REDIS"
	KindSessionNotFound          Kind = "SESSION_NOT_FOUND"
	KindSerialize                Kind = "SERIALIZE"
	KindIO                       Kind = "IO"
	KindUTF8                     Kind = "UTF8"
)

// Error is the application-level error carried through the handshake.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

// ToVec serializes the error to the byte payload carried in a type-0
// error-carrier frame: a one-byte kind tag followed by the UTF-8 message.
func (e *Error) ToVec() []byte {
	tag := kindTag(e.Kind)
	out := make([]byte, 0, len(e.Msg)+1)
	out = append(out, tag)
	out = append(out, []byte(e.Msg)...)
	return out
}

func kindTag(k Kind) byte {
	switch k {
	case KindDataInvalid:
		return 1
	case KindDataPack:
		return 2
	case KindDataType:
		return 3
	case KindDataUnpackOldDataNoMatch:
		return 4
	case KindSM2:
		return 5
	case KindPKCS12:
		return 6
	case KindMySQL:
		return 7
	case KindMySQLNoData:
		return 8
	case KindRedis:
		return 9
	case KindSessionNotFound:
		return 12
	case KindSerialize:
		return 13
	case KindIO:
		return 14
	case KindUTF8:
		return 15
	default:
		return 0
	}
}

// FromMySQL converts a database/sql error into the taxonomy above,
// distinguishing "no such row" (MYSQL_NO_DATA) from transport/driver
// failures (MYSQL), so callers can tell an absent client from a broken
// backend.
func FromMySQL(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return New(KindMySQLNoData, "no matching row")
	}
	return Wrap(KindMySQL, err)
}

// FromRedis converts a redis client error into the taxonomy above.
func FromRedis(err error) *Error {
	if err == nil {
		return nil
	}
	return Wrap(KindRedis, err)
}

// As reports whether err is an *Error of the given kind.
func As(err error, kind Kind) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == kind
}
