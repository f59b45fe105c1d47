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

// Package sm wraps the SM2/SM3/MD5 primitives and the PKCS#12 extraction
// helpers the handshake is parameterized over. It holds no state; every
// function is a pure transform or a thin CSPRNG call.
package sm

import (
	"crypto/ecdsa"
	"crypto/md5"
	"crypto/rand"
	"encoding/pem"
	"errors"

	pkcs12 "github.com/emmansun/go-pkcs12"
	"github.com/emmansun/gmsm/sm2"
	"github.com/emmansun/gmsm/sm3"
	"github.com/emmansun/gmsm/smx509"

	"github.com/sage-x-project/stserver/internal/apperrors"
)

// MD5 returns the 16-byte MD5 digest of x.
func MD5(x []byte) []byte {
	sum := md5.Sum(x)
	return sum[:]
}

// SM3 returns the 32-byte SM3 digest of x.
func SM3(x []byte) []byte {
	sum := sm3.Sum(x)
	return sum[:]
}

// ClientRandom returns n cryptographically strong random bytes.
func ClientRandom(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindIO, err)
	}
	return buf, nil
}

// ParsePrivateKey parses a DER-encoded PKCS#8 SM2 private key.
func ParsePrivateKey(der []byte) (*sm2.PrivateKey, error) {
	key, err := smx509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSM2, err)
	}
	sk, ok := key.(*sm2.PrivateKey)
	if !ok {
		return nil, apperrors.New(apperrors.KindSM2, "key is not an SM2 private key")
	}
	return sk, nil
}

// ParsePrivateKeyPEM parses a PEM-wrapped SM2 private key, as stored in
// AppClientKey.PriKeyPEM.
func ParsePrivateKeyPEM(pemBytes []byte) (*sm2.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, apperrors.New(apperrors.KindSM2, "invalid PEM block")
	}
	return ParsePrivateKey(block.Bytes)
}

// PublicKeyFromPrivate derives the SM2 public key from a private key.
func PublicKeyFromPrivate(priv *sm2.PrivateKey) *ecdsa.PublicKey {
	return &priv.PublicKey
}

// Encrypt encrypts pt under the given SM2 public key.
func Encrypt(pt []byte, pub *ecdsa.PublicKey) ([]byte, error) {
	ct, err := sm2.Encrypt(rand.Reader, pub, pt, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSM2, err)
	}
	return ct, nil
}

// Decrypt decrypts ct under the given SM2 private key.
func Decrypt(ct []byte, priv *sm2.PrivateKey) ([]byte, error) {
	pt, err := sm2.Decrypt(priv, ct)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSM2, err)
	}
	return pt, nil
}

// Sign produces an SM2 signature over msg.
func Sign(msg []byte, priv *sm2.PrivateKey) ([]byte, error) {
	sig, err := priv.Sign(rand.Reader, msg, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSM2, err)
	}
	return sig, nil
}

// Verify checks an SM2 signature over msg.
func Verify(msg, sig []byte, pub *ecdsa.PublicKey) bool {
	return sm2.VerifyASN1(pub, msg, sig)
}

var errEmptyBundle = errors.New("pkcs12 bundle contains no certificates")

// PKCS12RandomCert decodes bundle with password and returns a uniformly
// chosen DER-encoded certificate from the decoded chain, selected by idx
// (the caller supplies the randomness source so the selection is testable).
func PKCS12RandomCert(bundle []byte, password string, idx func(n int) int) ([]byte, error) {
	certs, err := decodeChain(bundle, password)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, apperrors.Wrap(apperrors.KindPKCS12, errEmptyBundle)
	}
	i := idx(len(certs))
	if i < 0 || i >= len(certs) {
		i = 0
	}
	return certs[i].Raw, nil
}

// PKCS12PrivateKey decodes bundle with password and returns the DER
// (PKCS#8) encoding of its private key.
func PKCS12PrivateKey(bundle []byte, password string) ([]byte, error) {
	priv, _, err := pkcs12.Decode(bundle, password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPKCS12, err)
	}
	der, err := smx509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPKCS12, err)
	}
	return der, nil
}

func decodeChain(bundle []byte, password string) ([]*smx509.Certificate, error) {
	_, cert, caCerts, err := pkcs12.DecodeChain(bundle, password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindPKCS12, err)
	}
	chain := make([]*smx509.Certificate, 0, 1+len(caCerts))
	if cert != nil {
		chain = append(chain, cert)
	}
	chain = append(chain, caCerts...)
	return chain, nil
}

// ParsePublicKey extracts the SM2 public key embedded in a DER certificate.
func ParsePublicKey(der []byte) (*ecdsa.PublicKey, error) {
	cert, err := smx509.ParseCertificate(der)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindSM2, err)
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok || !sm2.IsSM2PublicKey(pub) {
		return nil, apperrors.New(apperrors.KindSM2, "certificate does not carry an SM2 public key")
	}
	return pub, nil
}
