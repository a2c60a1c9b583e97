/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics implements prometheus metrics and exposes the metrics HTTP listener
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace      = "wikiserv"
	buildSubsystem       = "build"
	frontendSubsystem    = "frontend"
	compressionSubsystem = "compression"
	sseSubsystem         = "sse"
	loginSubsystem       = "login"
)

// Default histogram buckets used by wikiserv
var (
	defaultBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}
)

// BuildInfo is a Gauge representing the binary build information of the running server instance
var BuildInfo *prometheus.GaugeVec

// FrontendRequestStatus is a Counter of front end requests that have been processed with their status
var FrontendRequestStatus *prometheus.CounterVec

// FrontendRequestDuration is a histogram that tracks the time it takes to process a request
var FrontendRequestDuration *prometheus.HistogramVec

// FrontendRequestWrittenBytes is a Counter of body bytes written for front end requests
var FrontendRequestWrittenBytes *prometheus.CounterVec

// FrontendMaxConnections is a Gauge representing the max number of active concurrent connections in the server
var FrontendMaxConnections prometheus.Gauge

// FrontendActiveConnections is a Gauge representing the number of active connections in the server
var FrontendActiveConnections prometheus.Gauge

// FrontendConnectionAccepted is a counter representing the total number of connections accepted
var FrontendConnectionAccepted prometheus.Counter

// FrontendConnectionFailed is a counter for the total number of connections failed to accept
var FrontendConnectionFailed prometheus.Counter

// CompressionResponses is a Counter of responses by negotiated content encoding
var CompressionResponses *prometheus.CounterVec

// SSEActiveChannels is a Gauge of currently open event stream channels
var SSEActiveChannels prometheus.Gauge

// LoginAttempts is a Counter of completed login exchanges by result
var LoginAttempts *prometheus.CounterVec

// LoginPendingExchanges is a Gauge of login exchanges waiting for their second step
var LoginPendingExchanges prometheus.Gauge

func init() {

	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: buildSubsystem,
			Name:      "info",
			Help: "A metric with a constant '1' value labeled by version," +
				"revision, and goversion from which wikiserv was built.",
		},
		[]string{"goversion", "revision", "version"},
	)

	FrontendRequestStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_total",
			Help:      "Count of front end requests handled by wikiserv",
		},
		[]string{"method", "http_status"},
	)

	FrontendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_duration_seconds",
			Help:      "Histogram of front end request durations handled by wikiserv",
			Buckets:   defaultBuckets,
		},
		[]string{"method", "http_status"},
	)

	FrontendRequestWrittenBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "written_bytes_total",
			Help:      "Count of body bytes written in front end requests, before compression",
		},
		[]string{"method", "http_status"})

	FrontendMaxConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "max_connections",
			Help:      "wikiserv max number of active connections.",
		},
	)

	FrontendActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "active_connections",
			Help:      "wikiserv number of active connections.",
		},
	)

	FrontendConnectionAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "accepted_connections_total",
			Help:      "wikiserv total number of accepted connections.",
		},
	)

	FrontendConnectionFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "failed_connections_total",
			Help:      "wikiserv total number of connections that failed to accept.",
		},
	)

	CompressionResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: compressionSubsystem,
			Name:      "responses_total",
			Help:      "Count of responses by negotiated content encoding method.",
		},
		[]string{"method"},
	)

	SSEActiveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: sseSubsystem,
			Name:      "active_channels",
			Help:      "Number of open server-sent event channels.",
		},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: loginSubsystem,
			Name:      "attempts_total",
			Help:      "Count of finished login exchanges by result.",
		},
		[]string{"result"},
	)

	LoginPendingExchanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: loginSubsystem,
			Name:      "pending_exchanges",
			Help:      "Number of login exchanges awaiting their final step.",
		},
	)

	// Register Metrics
	prometheus.MustRegister(BuildInfo)
	prometheus.MustRegister(FrontendRequestStatus)
	prometheus.MustRegister(FrontendRequestDuration)
	prometheus.MustRegister(FrontendRequestWrittenBytes)
	prometheus.MustRegister(FrontendMaxConnections)
	prometheus.MustRegister(FrontendActiveConnections)
	prometheus.MustRegister(FrontendConnectionAccepted)
	prometheus.MustRegister(FrontendConnectionFailed)
	prometheus.MustRegister(CompressionResponses)
	prometheus.MustRegister(SSEActiveChannels)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(LoginPendingExchanges)
}

// Handler returns the http handler for the listener
func Handler() http.Handler {
	return promhttp.Handler()
}
