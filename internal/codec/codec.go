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

// Package codec frames and unframes the outer wire envelope: a 40-byte
// token, a one-byte data-type tag, an AES-256-CBC ciphertext, and a trailing
// SM3-HMAC integrity tag over everything that precedes it.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/sage-x-project/stserver/internal/apperrors"
	"github.com/sage-x-project/stserver/internal/kdf"
)

const (
	// TokenLen is the fixed width of the frame's correlation token.
	TokenLen = 40
	// TagLen is the fixed width of the trailing SM3-HMAC integrity tag.
	TagLen = 32
	// HeaderLen is token + data_type + content_len: the number of leading
	// bytes a stream transport must buffer before it can learn a frame's
	// total length (HeaderLen + content_len + TagLen).
	HeaderLen = TokenLen + 1 + 4
	// KeyLen is the width of a 48-byte encrypt_key: 32-byte AES key ‖ 16-byte IV.
	KeyLen = 48
	// MaxContentLen bounds a frame's declared ciphertext length. Handshake
	// payloads are at most a few KB (signature + cert chain); anything past
	// this is a corrupt or hostile header, rejected before allocation.
	MaxContentLen = 1 << 20
)

// DataTypeFirst, DataTypeSecond and DataTypeApplication are the three
// frame tags the dispatcher recognizes.
const (
	DataTypeFirst       byte = 1
	DataTypeSecond      byte = 2
	DataTypeApplication byte = 0
)

// zeroKey is the sentinel symmetric key used for data_type == 1 frames,
// which carry no outer encryption.
var zeroKey = make([]byte, KeyLen)

// DataEntry is the decoded envelope, ephemeral per request.
type DataEntry struct {
	Token        [TokenLen]byte
	DataType     byte
	SymmetricKey []byte
	Content      []byte
}

// CommonPack produces a frame whose CommonUnpack inverse yields equivalent
// fields. symmetricKey must be 48 bytes (32-byte AES-256 key ‖ 16-byte IV),
// or nil/empty for data_type == 1 (no outer encryption, zero-key tag).
func CommonPack(content, symmetricKey []byte, dataType byte, token [TokenLen]byte) ([]byte, error) {
	key := symmetricKey
	var ciphertext []byte
	var err error
	if dataType == DataTypeFirst {
		key = zeroKey
		ciphertext = content
	} else {
		if len(symmetricKey) != KeyLen {
			return nil, apperrors.New(apperrors.KindDataPack, "symmetric key must be 48 bytes")
		}
		ciphertext, err = aesCBCEncrypt(content, symmetricKey[:32], symmetricKey[32:48])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDataPack, err)
		}
	}

	if len(ciphertext) > MaxContentLen {
		return nil, apperrors.New(apperrors.KindDataPack, "content exceeds maximum frame size")
	}

	frame := make([]byte, 0, HeaderLen+len(ciphertext)+TagLen)
	frame = append(frame, token[:]...)
	frame = append(frame, dataType)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ciphertext)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, ciphertext...)

	tag := kdf.SM3HMAC(frame, key)
	frame = append(frame, tag...)
	return frame, nil
}

// FrameLen returns the total byte length of the frame whose HeaderLen-byte
// header has already been read, i.e. HeaderLen + content_len + TagLen.
// Stream transports (cmd/stserverd's TCP listener) use this to know how
// many more bytes to read before calling CommonUnpack.
func FrameLen(header []byte) (int, error) {
	if len(header) < HeaderLen {
		return 0, apperrors.New(apperrors.KindDataInvalid, "short frame header")
	}
	contentLen := binary.BigEndian.Uint32(header[TokenLen+1 : HeaderLen])
	if contentLen > MaxContentLen {
		return 0, apperrors.New(apperrors.KindDataInvalid, "declared content length exceeds maximum frame size")
	}
	return HeaderLen + int(contentLen) + TagLen, nil
}

// CommonUnpack parses a packed frame, selecting the integrity/decryption
// key per the rule: data_type 1 uses the zero-key sentinel and passes
// content through uninterpreted; data_type 2 and 0 use the 48-byte key that
// lookupKey returns for the frame's token and data_type.
func CommonUnpack(raw []byte, lookupKey func(token [TokenLen]byte, dataType byte) ([]byte, error)) (*DataEntry, error) {
	if len(raw) < HeaderLen+TagLen {
		return nil, apperrors.New(apperrors.KindDataInvalid, "frame too short")
	}

	var token [TokenLen]byte
	copy(token[:], raw[0:TokenLen])
	dataType := raw[TokenLen]
	contentLen := binary.BigEndian.Uint32(raw[TokenLen+1 : HeaderLen])
	if contentLen > MaxContentLen {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "declared content length exceeds maximum frame size")
	}

	cl := int(contentLen)
	body := raw[HeaderLen:]
	if len(body) < cl+TagLen {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "frame shorter than declared content length")
	}

	ciphertext := body[:cl]
	tag := body[cl : cl+TagLen]
	signed := raw[:HeaderLen+cl]

	var key []byte
	var err error
	if dataType == DataTypeFirst {
		key = zeroKey
	} else {
		key, err = lookupKey(token, dataType)
		if err != nil {
			return nil, err
		}
		if len(key) != KeyLen {
			return nil, apperrors.New(apperrors.KindDataInvalid, "resolved symmetric key must be 48 bytes")
		}
	}

	expectedTag := kdf.SM3HMAC(signed, key)
	if !hmacEqual(expectedTag, tag) {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "integrity tag mismatch")
	}

	var content []byte
	if dataType == DataTypeFirst {
		content = ciphertext
	} else {
		content, err = aesCBCDecrypt(ciphertext, key[:32], key[32:48])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindDataUnpackOldDataNoMatch, err)
		}
	}

	return &DataEntry{
		Token:        token,
		DataType:     dataType,
		SymmetricKey: key,
		Content:      content,
	}, nil
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

func aesCBCEncrypt(pt, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(pt, aes.BlockSize)
	ct := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ct, padded)
	return ct, nil
}

func aesCBCDecrypt(ct, key, iv []byte) ([]byte, error) {
	if len(ct) == 0 {
		return nil, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ct)%aes.BlockSize != 0 {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "ciphertext not block-aligned")
	}
	pt := make([]byte, len(ct))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(pt, ct)
	return pkcs7Unpad(pt)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(append([]byte{}, b...), pad...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "empty padded block")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > len(b) || padLen > aes.BlockSize {
		return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "invalid padding")
	}
	for _, v := range b[len(b)-padLen:] {
		if int(v) != padLen {
			return nil, apperrors.New(apperrors.KindDataUnpackOldDataNoMatch, "invalid padding")
		}
	}
	return b[:len(b)-padLen], nil
}
