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

// Package kdf implements the seed-mixing and PRF key-derivation pipeline
// the handshake uses to turn per-side randoms into a symmetric session key.
// Every function here is a pure transform over byte slices.
package kdf

import (
	"crypto/hmac"
	"crypto/md5"

	"github.com/emmansun/gmsm/sm3"
)

const hmacBlockSize = 64

// SM3HMAC computes HMAC-SM3(k, x) with the standard 64-byte block length,
// pre-hashing k with SM3 when it is longer than the block size.
func SM3HMAC(x, k []byte) []byte {
	if len(k) > hmacBlockSize {
		sum := sm3.Sum(k)
		k = sum[:]
	}
	mac := hmac.New(sm3.New, k)
	mac.Write(x)
	return mac.Sum(nil)
}

// MD5HMAC computes HMAC-MD5(k, x) with the standard 64-byte block length,
// pre-hashing k with MD5 when it is longer than the block size.
func MD5HMAC(x, k []byte) []byte {
	if len(k) > hmacBlockSize {
		sum := md5.Sum(k)
		k = sum[:]
	}
	mac := hmac.New(md5.New, k)
	mac.Write(x)
	return mac.Sum(nil)
}

// ChangeSeed mixes two byte strings into a 32-byte seed:
// md5(sm3(a)) ‖ md5(sm3(b)).
func ChangeSeed(a, b []byte) []byte {
	ha := sm3.Sum(a)
	hb := sm3.Sum(b)
	ma := md5.Sum(ha[:])
	mb := md5.Sum(hb[:])
	out := make([]byte, 0, 32)
	out = append(out, ma[:]...)
	out = append(out, mb[:]...)
	return out
}

// Key expands seed into 48 bytes via a three-stage chained SM3 hash: the
// first 32 bytes are an AES-256 key, the last 16 are the IV.
func Key(seed []byte) []byte {
	a := sm3.Sum(seed)
	bIn := append(append([]byte{}, a[:16]...), seed...)
	b := sm3.Sum(bIn)
	cIn := append(append([]byte{}, b[:16]...), seed...)
	c := sm3.Sum(cIn)

	out := make([]byte, 0, 48)
	out = append(out, a[:16]...)
	out = append(out, b[:16]...)
	out = append(out, c[:16]...)
	return out
}

// hashFunc is either SM3HMAC or MD5HMAC, used to parameterize P_hash.
type hashFunc func(x, k []byte) []byte

// pHash is the TLS-1.0-style iterative expansion:
//
//	A[0] = seed
//	A[i] = H(A[i-1], secret)
//	out  = H(A[1] ‖ seed, secret) ‖ H(A[2] ‖ seed, secret) ‖ ...
//
// accumulated until it reaches at least n bytes, then truncated.
func pHash(secret, seed []byte, n int, h hashFunc) []byte {
	out := make([]byte, 0, n+32)
	a := seed
	for len(out) < n {
		a = h(a, secret)
		segIn := append(append([]byte{}, a...), seed...)
		out = append(out, h(segIn, secret)...)
	}
	return out[:n]
}

// Prf is the TLS-1.0-style dual-hash PRF: splits secret into two
// (possibly overlapping, if len(secret) is odd) halves, runs MD5-HMAC-based
// P_hash over one half and SM3-HMAC-based P_hash over the other against the
// same label‖seed, and XORs the two expansions together.
func Prf(secret []byte, label string, seed []byte, length int) []byte {
	half := (len(secret) + 1) / 2
	s1 := secret[:half]
	s2 := secret[len(secret)-half:]

	ls := make([]byte, 0, len(label)+len(seed))
	ls = append(ls, []byte(label)...)
	ls = append(ls, seed...)

	pMD5 := pHash(s1, ls, length, MD5HMAC)
	pSM3 := pHash(s2, ls, length, SM3HMAC)

	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = pMD5[i] ^ pSM3[i]
	}
	return out
}
