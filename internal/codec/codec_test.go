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

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedKeyLookup(key []byte) func(token [TokenLen]byte, dataType byte) ([]byte, error) {
	return func(_ [TokenLen]byte, _ byte) ([]byte, error) {
		return key, nil
	}
}

func sampleToken() [TokenLen]byte {
	var tok [TokenLen]byte
	for i := range tok {
		tok[i] = byte(i)
	}
	return tok
}

func TestCommonPackUnpackRoundTrip_Type2(t *testing.T) {
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i * 7)
	}
	token := sampleToken()
	content := []byte("hello handshake message two")

	frame, err := CommonPack(content, key, DataTypeSecond, token)
	require.NoError(t, err)

	entry, err := CommonUnpack(frame, fixedKeyLookup(key))
	require.NoError(t, err)
	require.Equal(t, token, entry.Token)
	require.Equal(t, DataTypeSecond, entry.DataType)
	require.Equal(t, content, entry.Content)
}

func TestCommonPackUnpackRoundTrip_Type1(t *testing.T) {
	token := sampleToken()
	content := []byte("serial0123456789012345678901234ciphertext-blob")

	frame, err := CommonPack(content, nil, DataTypeFirst, token)
	require.NoError(t, err)

	entry, err := CommonUnpack(frame, func([TokenLen]byte, byte) ([]byte, error) {
		t.Fatal("lookupKey must not be called for data_type 1")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, content, entry.Content)
}

func TestCommonUnpackTamperDetection(t *testing.T) {
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i * 3)
	}
	token := sampleToken()
	frame, err := CommonPack([]byte("application payload"), key, DataTypeApplication, token)
	require.NoError(t, err)

	for i := TokenLen; i < len(frame); i++ {
		tampered := append([]byte{}, frame...)
		tampered[i] ^= 0xFF
		_, err := CommonUnpack(tampered, fixedKeyLookup(key))
		require.Error(t, err, "byte %d should invalidate the frame", i)
	}
}

func TestCommonUnpackRejectsShortFrame(t *testing.T) {
	_, err := CommonUnpack([]byte{1, 2, 3}, fixedKeyLookup(nil))
	require.Error(t, err)
}

func TestFrameLenMatchesActualFrame(t *testing.T) {
	key := make([]byte, KeyLen)
	token := sampleToken()
	frame, err := CommonPack([]byte("some application content"), key, DataTypeApplication, token)
	require.NoError(t, err)

	n, err := FrameLen(frame[:HeaderLen])
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
}

func TestFrameLenRejectsShortHeader(t *testing.T) {
	_, err := FrameLen([]byte{1, 2, 3})
	require.Error(t, err)
}
