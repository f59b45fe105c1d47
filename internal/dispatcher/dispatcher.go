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

// Package dispatcher is the single per-datagram entry point: it decodes
// the wire envelope, dispatches by data_type to the protocol state
// machine, and re-encodes the result. It is stateless; all cross-message
// state lives in the SessionStore the Handshake was built against.
package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/stserver/internal/apperrors"
	"github.com/sage-x-project/stserver/internal/codec"
	"github.com/sage-x-project/stserver/internal/logger"
	"github.com/sage-x-project/stserver/internal/metrics"
	"github.com/sage-x-project/stserver/internal/protocol"
	"github.com/sage-x-project/stserver/internal/session"
)

// Sentinel replies: sentinelUnpackFailure answers any request frame that
// cannot be decoded, and sentinelPackFailure is emitted when a reply frame
// cannot be packed, so the peer still gets one diagnosable byte.
var (
	sentinelUnpackFailure = []byte{10}
	sentinelPackFailure   = []byte{11}
)

// Dispatcher wires a Handshake state machine to the wire codec, with
// structured logging and Prometheus metrics around every request.
type Dispatcher struct {
	Handshake *protocol.Handshake
	Sessions  session.Store
	Logger    logger.Logger
}

// New builds a Dispatcher over an already-constructed Handshake.
func New(h *protocol.Handshake, sessions session.Store, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{Handshake: h, Sessions: sessions, Logger: log}
}

// Handle decodes raw, dispatches by data_type, and returns the packed
// reply frame. Protocol-level failures are carried as a type-0 error
// frame in the reply bytes; a request frame that cannot be decoded, and a
// reply frame that cannot be packed, degrade to a one-byte sentinel.
func (d *Dispatcher) Handle(ctx context.Context, remoteAddr string, raw []byte) []byte {
	start := time.Now()
	log := d.Logger.WithFields(
		logger.String("request_id", uuid.NewString()),
		logger.String("remote", remoteAddr))

	entry, err := codec.CommonUnpack(raw, d.lookupKey(ctx))
	if err != nil {
		log.Warn("frame decode failed", logger.Error(err))
		metrics.HandshakeRequests.WithLabelValues("unknown", "decode_error").Inc()
		return sentinelUnpackFailure
	}

	dataTypeLabel := dataTypeName(entry.DataType)
	reply, outcome := d.dispatch(ctx, entry)
	metrics.HandshakeRequests.WithLabelValues(dataTypeLabel, outcome).Inc()
	metrics.HandshakeDuration.WithLabelValues(dataTypeLabel).Observe(time.Since(start).Seconds())

	log.Info("request handled",
		logger.String("data_type", dataTypeLabel),
		logger.String("outcome", outcome),
		logger.Duration("latency", time.Since(start)))

	return reply
}

// dispatch routes a decoded entry by data_type and packs the reply frame.
// Success and protocol-error paths both return a well-formed frame; only
// a pack failure itself falls back to the sentinel byte.
func (d *Dispatcher) dispatch(ctx context.Context, entry *codec.DataEntry) ([]byte, string) {
	switch entry.DataType {
	case codec.DataTypeFirst:
		return d.handleFirst(ctx, entry)
	case codec.DataTypeSecond:
		return d.handleSecond(ctx, entry)
	default:
		return d.errorFrame(entry, apperrors.New(apperrors.KindDataType, "unrecognized data_type")), "no_op"
	}
}

func (d *Dispatcher) handleFirst(ctx context.Context, entry *codec.DataEntry) ([]byte, string) {
	body, token, err := d.Handshake.TunnelFirst(ctx, entry.Content)
	if err != nil {
		return d.errorFrame(entry, err), "error"
	}
	metrics.SessionsActive.Inc()

	frame, err := codec.CommonPack(body, nil, codec.DataTypeFirst, token)
	if err != nil {
		return sentinelPackFailure, "pack_error"
	}
	return frame, "success"
}

func (d *Dispatcher) handleSecond(ctx context.Context, entry *codec.DataEntry) ([]byte, string) {
	body, encryptKey, err := d.Handshake.TunnelSecond(ctx, entry.Token, entry.Content)
	if err != nil {
		return d.errorFrame(entry, err), "error"
	}
	metrics.SessionsActive.Dec()

	frame, err := codec.CommonPack(body, encryptKey, codec.DataTypeSecond, entry.Token)
	if err != nil {
		return sentinelPackFailure, "pack_error"
	}
	return frame, "success"
}

// errorFrame carries a handshake failure as a type-0 frame, keyed by the
// entry's already-resolved symmetric key (the zero-key sentinel for
// messages 1 and 2, the session's encrypt_key for data_type 0).
func (d *Dispatcher) errorFrame(entry *codec.DataEntry, handshakeErr error) []byte {
	var payload []byte
	if ae, ok := handshakeErr.(*apperrors.Error); ok {
		payload = ae.ToVec()
	} else {
		payload = apperrors.Wrap(apperrors.KindIO, handshakeErr).ToVec()
	}

	frame, err := codec.CommonPack(payload, entry.SymmetricKey, codec.DataTypeApplication, entry.Token)
	if err != nil {
		return sentinelPackFailure
	}
	return frame
}

// zeroEnvelopeKey is the 48-byte sentinel used for the client's message-2
// request envelope: encrypt_key is the output of processing that very
// message, so it cannot also be the key that opens it. Only data_type 0
// (post-handshake application/error frames) looks up the session's real
// encrypt_key.
var zeroEnvelopeKey = make([]byte, codec.KeyLen)

// lookupKey resolves the symmetric key CommonUnpack needs for data_type 2
// and 0 frames.
func (d *Dispatcher) lookupKey(ctx context.Context) func(token [codec.TokenLen]byte, dataType byte) ([]byte, error) {
	return func(token [codec.TokenLen]byte, dataType byte) ([]byte, error) {
		if dataType == codec.DataTypeSecond {
			return zeroEnvelopeKey, nil
		}
		sess, err := d.Sessions.Get(ctx, token)
		if err != nil {
			metrics.BackendErrors.WithLabelValues("session", "lookup").Inc()
			return nil, err
		}
		return sess.EncryptKey, nil
	}
}

func dataTypeName(dt byte) string {
	switch dt {
	case codec.DataTypeFirst:
		return "first"
	case codec.DataTypeSecond:
		return "second"
	case codec.DataTypeApplication:
		return "application"
	default:
		return "unknown"
	}
}
