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

package kdf

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/emmansun/gmsm/sm3"
	"github.com/stretchr/testify/require"
)

func sm3sum(b []byte) []byte {
	sum := sm3.Sum(b)
	return sum[:]
}

func md5sum(b []byte) []byte {
	sum := md5.Sum(b)
	return sum[:]
}

func TestPrfConformanceVector(t *testing.T) {
	secret := []byte{1, 2, 3, 4, 5, 6, 7, 2, 34, 54, 65, 17, 15, 17, 78, 52}
	seed := []byte{1, 3, 5, 7, 9, 2, 3, 4, 6, 8, 0, 9}

	got := Prf(secret, "master_secret", seed, 32)
	want, err := hex.DecodeString("cf79ba4d7f87339aa986f5a1ea58486842f83e44aa4dfa1e7b3ab85e826b150e")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestPrfOutputLength(t *testing.T) {
	secret := []byte("some arbitrary secret material")
	for _, n := range []int{1, 16, 32, 48, 100} {
		out := Prf(secret, "label", []byte("seed"), n)
		require.Len(t, out, n)
	}
}

func TestMD5HMACKnownVectors(t *testing.T) {
	// RFC 2202 section 2 test cases 1, 2 and 6.
	tests := []struct {
		key  []byte
		data []byte
		want string
	}{
		{bytes.Repeat([]byte{0x0b}, 16), []byte("Hi There"), "9294727a3638bb1c13f48ef8158bfc9d"},
		{[]byte("Jefe"), []byte("what do ya want for nothing?"), "750c783e6ab0b503eaa86e310a5db738"},
		{bytes.Repeat([]byte{0xaa}, 80), []byte("Test Using Larger Than Block-Size Key - Hash Key First"),
			"6b1ab7fe4bd7bf8f0b62e6ce61b9d0cd"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, hex.EncodeToString(MD5HMAC(tt.data, tt.key)))
	}
}

func TestSM3HMACLongKeyPreHash(t *testing.T) {
	data := []byte("seed material")
	longKey := bytes.Repeat([]byte{0x5a}, 100)
	shortKey := sm3sum(longKey)

	require.Equal(t, SM3HMAC(data, shortKey), SM3HMAC(data, longKey))
	require.Len(t, SM3HMAC(data, longKey), 32)
}

func TestMD5HMACLongKeyPreHash(t *testing.T) {
	data := []byte("seed material")
	longKey := bytes.Repeat([]byte{0xa5}, 100)
	shortKey := md5sum(longKey)

	require.Equal(t, MD5HMAC(data, shortKey), MD5HMAC(data, longKey))
	require.Len(t, MD5HMAC(data, longKey), 16)
}

func TestChangeSeedLengthAndAsymmetry(t *testing.T) {
	a := []byte("alpha")
	b := []byte("beta")
	cs := ChangeSeed(a, b)
	require.Len(t, cs, 32)
	require.NotEqual(t, cs, ChangeSeed(b, a))
}

func TestKeyLength(t *testing.T) {
	out := Key([]byte("a non-empty seed"))
	require.Len(t, out, 48)
}
