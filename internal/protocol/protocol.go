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

// Package protocol implements the two-round-trip handshake state machine:
// tunnel_first establishes server identity and seeds a Session, tunnel_second
// derives the symmetric session key from both sides' randoms. Only the
// transitions are persisted, via SessionStore; there is no in-memory
// long-lived state machine object.
package protocol

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/sage-x-project/stserver/internal/apperrors"
	"github.com/sage-x-project/stserver/internal/kdf"
	"github.com/sage-x-project/stserver/internal/keystore"
	"github.com/sage-x-project/stserver/internal/session"
	"github.com/sage-x-project/stserver/internal/sm"
)

const (
	serialLen    = 32
	tokenHashLen = 32
	tokenRandLen = 8
)

// Clock and CertIndex are injected so handshake tests can pin the
// nondeterministic inputs (the current time and the cert-chain
// selection).
type Clock func() time.Time

type CertIndex func(n int) int

// RandomFunc produces n cryptographically strong random bytes; tests
// stub it with fixed values.
type RandomFunc func(n int) ([]byte, error)

// Handshake binds the KeyStore and SessionStore collaborators plus the
// PKCS#12 bundle password to the tunnel_first/tunnel_second operations.
type Handshake struct {
	Keys     keystore.Store
	Sessions session.Store
	Password string

	Now      Clock
	CertPick CertIndex
	Random   RandomFunc
}

// NewHandshake builds a Handshake with production defaults for Now,
// CertPick and Random (wall clock, crypto/rand-uniform cert selection,
// crypto/rand random bytes).
func NewHandshake(keys keystore.Store, sessions session.Store, password string) *Handshake {
	return &Handshake{
		Keys:     keys,
		Sessions: sessions,
		Password: password,
		Now:      time.Now,
		CertPick: uniformIndex,
		Random:   sm.ClientRandom,
	}
}

func uniformIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// TunnelFirst processes message 1: it authenticates the client's serial
// identifier, decrypts the client's random/mac under the client's SM2
// private key, selects a certificate from the application's chain, signs
// random_b‖chosen_cert under the same per-serial key, and persists a
// fresh Session indexed by a newly generated token.
//
// m1 is the raw message-1 cleartext body, already unwrapped by the codec.
func (h *Handshake) TunnelFirst(ctx context.Context, m1 []byte) (body []byte, token [40]byte, err error) {
	requestHash := sm.SM3(m1)

	if len(m1) < serialLen {
		return nil, token, apperrors.New(apperrors.KindDataInvalid, "message 1 shorter than the serial field")
	}
	serial := string(m1[:serialLen])
	ciphertext := m1[serialLen:]

	client, err := h.Keys.GetClient(ctx, serial)
	if err != nil {
		return nil, token, err
	}

	clientPriv, err := sm.ParsePrivateKeyPEM(client.PriKeyPEM)
	if err != nil {
		return nil, token, err
	}

	payload, err := sm.Decrypt(ciphertext, clientPriv)
	if err != nil {
		return nil, token, err
	}
	if len(payload) < 32 {
		return nil, token, apperrors.New(apperrors.KindDataInvalid, "decrypted message 1 payload shorter than random_a")
	}
	randomA := payload[:32]
	clientMAC := payload[32:]

	token, err = h.newToken()
	if err != nil {
		return nil, token, err
	}
	randomB, err := h.Random(32)
	if err != nil {
		return nil, token, err
	}

	app, err := h.Keys.GetApp(ctx, client.AppID)
	if err != nil {
		return nil, token, err
	}

	serverPrivDER, err := sm.PKCS12PrivateKey(app.Certs, h.Password)
	if err != nil {
		return nil, token, err
	}
	chosenCert, err := sm.PKCS12RandomCert(app.Certs, h.Password, h.CertPick)
	if err != nil {
		return nil, token, err
	}

	sess := &session.Session{
		Token:       token,
		RandomA:     randomA,
		RandomB:     randomB,
		ClientMAC:   clientMAC,
		PrivateKey:  serverPrivDER,
		RequestHash: requestHash,
		RandomCert:  chosenCert,
	}
	if err := h.Sessions.Put(ctx, sess); err != nil {
		return nil, token, err
	}

	toSign := append(append([]byte{}, randomB...), chosenCert...)
	sig, err := sm.Sign(toSign, clientPriv)
	if err != nil {
		return nil, token, err
	}

	body = make([]byte, 0, len(sig)+len(randomB)+len(chosenCert))
	body = append(body, sig...)
	body = append(body, randomB...)
	body = append(body, chosenCert...)
	return body, token, nil
}

// TunnelSecond processes message 2: it decrypts random_d under the
// session's server private key, derives pre_master_key/master_key/
// encrypt_key through the chained PRF, persists the mutated Session, and
// returns the reply body sm3(M1) ‖ sm3(M2_content) plus the key the
// Dispatcher must use to encrypt the reply frame.
func (h *Handshake) TunnelSecond(ctx context.Context, token [40]byte, content []byte) (body []byte, encryptKey []byte, err error) {
	sess, err := h.Sessions.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	serverPriv, err := sm.ParsePrivateKey(sess.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	randomD, err := sm.Decrypt(content, serverPriv)
	if err != nil {
		return nil, nil, err
	}
	hash2 := sm.SM3(content)

	randomC := kdf.ChangeSeed(sess.RandomA, sess.ClientMAC)
	pmk := kdf.Prf(sess.RandomCert, "master_secret", concat(randomC, sess.RandomB), 32)
	mk := kdf.Prf(pmk, "master_secret1", concat(randomD, sess.RandomB), 32)
	k1 := kdf.Prf(mk, "key_extension", concat(randomD, sess.RandomB), 32)
	encryptKey = kdf.Key(k1)

	sess.RandomD = randomD
	sess.PreMasterKey = pmk
	sess.EncryptKey = encryptKey
	if err := h.Sessions.Put(ctx, sess); err != nil {
		return nil, nil, err
	}

	body = append(append([]byte{}, sess.RequestHash...), hash2...)
	return body, encryptKey, nil
}

func (h *Handshake) newToken() ([40]byte, error) {
	var token [40]byte
	ts := h.Now().UTC().Format(time.RFC3339Nano)
	hash := sm.SM3([]byte(ts))
	copy(token[:tokenHashLen], hash[:tokenHashLen])

	rnd, err := h.Random(tokenRandLen)
	if err != nil {
		return token, err
	}
	copy(token[tokenHashLen:], rnd)
	return token, nil
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
