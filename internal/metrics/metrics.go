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

// Package metrics exposes Prometheus counters and histograms for the
// handshake dispatcher. All metrics share one registry and namespace so a
// single /metrics endpoint can serve them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stserver"

// Registry is the collector registry every metric in this package is
// registered against; Handler serves exactly this registry's families.
var Registry = prometheus.NewRegistry()

var (
	// HandshakeRequests counts dispatched frames by data_type and outcome
	// (success, error, no_op, pack_error, decode_error).
	HandshakeRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "requests_total",
			Help:      "Total number of dispatched frames by data type and outcome",
		},
		[]string{"data_type", "outcome"},
	)

	// HandshakeDuration tracks end-to-end Handle latency per data type.
	HandshakeDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Dispatcher Handle latency in seconds, by data type",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"data_type"},
	)

	// SessionsActive tracks sessions created by tunnel_first that have not
	// yet completed tunnel_second.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of handshakes awaiting message 2",
		},
	)

	// BackendErrors counts KeyStore/SessionStore failures by backend and
	// error kind.
	BackendErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Total backend failures by store and error kind",
		},
		[]string{"store", "kind"},
	)
)

// Handler returns the HTTP handler serving this package's registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
