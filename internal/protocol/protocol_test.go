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

package protocol

import (
	"context"
	"crypto/rand"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	pkcs12 "github.com/emmansun/go-pkcs12"
	"github.com/emmansun/gmsm/sm2"
	"github.com/emmansun/gmsm/smx509"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/stserver/internal/apperrors"
	"github.com/sage-x-project/stserver/internal/kdf"
	"github.com/sage-x-project/stserver/internal/keystore"
	"github.com/sage-x-project/stserver/internal/session"
	"github.com/sage-x-project/stserver/internal/sm"
)

const testPassword = "123456"

type fixture struct {
	serial       string
	clientPriv   *sm2.PrivateKey
	clientPEM    []byte
	appID        int64
	serverBundle []byte
	certDER      []byte
	keys         *keystore.MemoryStore
	sessions     *session.MemoryStore
	hs           *Handshake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clientPriv, err := sm2.GenerateKey(rand.Reader)
	require.NoError(t, err)
	clientDER, err := smx509.MarshalPKCS8PrivateKey(clientPriv)
	require.NoError(t, err)
	clientPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: clientDER})

	serverPriv, err := sm2.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tmpl := &smx509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "stserver test cert"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	certDER, err := smx509.CreateCertificate(rand.Reader, tmpl, tmpl, &serverPriv.PublicKey, serverPriv)
	require.NoError(t, err)
	cert, err := smx509.ParseCertificate(certDER)
	require.NoError(t, err)

	bundle, err := pkcs12.LegacyDES.Encode(serverPriv, cert, nil, testPassword)
	require.NoError(t, err)

	keys := keystore.NewMemoryStore()
	serial := "01234567890123456789012345678901"
	keys.PutClient(&keystore.AppClientKey{AppID: 7, SerialID: serial, PriKeyPEM: clientPEM})
	keys.PutApp(&keystore.App{ID: 7, Certs: bundle})

	sessions := session.NewMemoryStore(time.Minute)
	hs := NewHandshake(keys, sessions, testPassword)

	return &fixture{
		serial:       serial,
		clientPriv:   clientPriv,
		clientPEM:    clientPEM,
		appID:        7,
		serverBundle: bundle,
		certDER:      cert.Raw,
		keys:         keys,
		sessions:     sessions,
		hs:           hs,
	}
}

func TestTunnelFirstHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Pin the nondeterministic inputs so the reply layout is checkable.
	f.hs.Random = func(n int) ([]byte, error) {
		out := make([]byte, n)
		for i := range out {
			out[i] = 0x02
		}
		return out, nil
	}
	f.hs.CertPick = func(int) int { return 0 }

	randomA := make([]byte, 32)
	for i := range randomA {
		randomA[i] = 0x01
	}
	clientMAC := make([]byte, 16)
	for i := range clientMAC {
		clientMAC[i] = 0xAA
	}
	payload := append(append([]byte{}, randomA...), clientMAC...)

	ct, err := sm.Encrypt(payload, &f.clientPriv.PublicKey)
	require.NoError(t, err)

	m1 := append([]byte(f.serial), ct...)

	body, token, err := f.hs.TunnelFirst(ctx, m1)
	require.NoError(t, err)
	require.NotZero(t, token)

	sess, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	require.Equal(t, randomA, sess.RandomA)
	require.Equal(t, clientMAC, sess.ClientMAC)
	require.Equal(t, sm.SM3(m1), sess.RequestHash)
	require.Equal(t, f.certDER, sess.RandomCert)

	// body = sig ‖ random_b(32) ‖ chosen_cert, with random_b pinned to 0x02*32
	// and the signature made under the client's per-serial key.
	require.Greater(t, len(body), 32+len(f.certDER))
	wantRandomB := make([]byte, 32)
	for i := range wantRandomB {
		wantRandomB[i] = 0x02
	}
	gotCert := body[len(body)-len(f.certDER):]
	gotRandomB := body[len(body)-len(f.certDER)-32 : len(body)-len(f.certDER)]
	sig := body[:len(body)-len(f.certDER)-32]
	require.Equal(t, f.certDER, gotCert)
	require.Equal(t, wantRandomB, gotRandomB)

	toSign := append(append([]byte{}, wantRandomB...), f.certDER...)
	require.True(t, sm.Verify(toSign, sig, &f.clientPriv.PublicKey))
}

func TestTunnelFirstUnknownSerial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknownSerial := "99999999999999999999999999999999"
	m1 := append([]byte(unknownSerial), make([]byte, 10)...)

	_, _, err := f.hs.TunnelFirst(ctx, m1)
	require.Error(t, err)
	require.True(t, apperrors.As(err, apperrors.KindMySQLNoData))
}

func TestTunnelFirstTruncatedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.hs.TunnelFirst(ctx, []byte("too short"))
	require.Error(t, err)
	require.True(t, apperrors.As(err, apperrors.KindDataInvalid))
}

func runFirst(t *testing.T, f *fixture) ([40]byte, []byte) {
	t.Helper()
	ctx := context.Background()

	randomA := make([]byte, 32)
	for i := range randomA {
		randomA[i] = 0x01
	}
	clientMAC := make([]byte, 16)
	for i := range clientMAC {
		clientMAC[i] = 0xAA
	}
	payload := append(append([]byte{}, randomA...), clientMAC...)
	ct, err := sm.Encrypt(payload, &f.clientPriv.PublicKey)
	require.NoError(t, err)
	m1 := append([]byte(f.serial), ct...)

	_, token, err := f.hs.TunnelFirst(ctx, m1)
	require.NoError(t, err)
	return token, m1
}

func TestTunnelSecondHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, m1 := runFirst(t, f)

	sess, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)

	serverPriv, err := sm.ParsePrivateKey(sess.PrivateKey)
	require.NoError(t, err)

	randomD := make([]byte, 16)
	for i := range randomD {
		randomD[i] = 0x03
	}
	content, err := sm.Encrypt(randomD, &serverPriv.PublicKey)
	require.NoError(t, err)

	body, encryptKey, err := f.hs.TunnelSecond(ctx, token, content)
	require.NoError(t, err)
	require.Len(t, encryptKey, 48)

	wantHash1 := sm.SM3(m1)
	wantHash2 := sm.SM3(content)
	require.Equal(t, append(append([]byte{}, wantHash1...), wantHash2...), body)

	randomC := kdf.ChangeSeed(sess.RandomA, sess.ClientMAC)
	pmk := kdf.Prf(sess.RandomCert, "master_secret", append(append([]byte{}, randomC...), sess.RandomB...), 32)
	mk := kdf.Prf(pmk, "master_secret1", append(append([]byte{}, randomD...), sess.RandomB...), 32)
	k1 := kdf.Prf(mk, "key_extension", append(append([]byte{}, randomD...), sess.RandomB...), 32)
	wantKey := kdf.Key(k1)
	require.Equal(t, wantKey, encryptKey)
}

func TestTunnelSecondUnknownToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var token [40]byte
	token[0] = 0xFF

	_, _, err := f.hs.TunnelSecond(ctx, token, []byte("whatever"))
	require.Error(t, err)
	require.True(t, apperrors.As(err, apperrors.KindSessionNotFound))
}

func TestTunnelSecondReplayIsIdempotentOnRequestHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token, _ := runFirst(t, f)

	sess, err := f.sessions.Get(ctx, token)
	require.NoError(t, err)
	serverPriv, err := sm.ParsePrivateKey(sess.PrivateKey)
	require.NoError(t, err)

	randomD := make([]byte, 16)
	for i := range randomD {
		randomD[i] = 0x03
	}
	content, err := sm.Encrypt(randomD, &serverPriv.PublicKey)
	require.NoError(t, err)

	body1, _, err := f.hs.TunnelSecond(ctx, token, content)
	require.NoError(t, err)
	body2, _, err := f.hs.TunnelSecond(ctx, token, content)
	require.NoError(t, err)

	require.Equal(t, body1[:32], body2[:32], "request_hash half is frozen from message 1")
}
