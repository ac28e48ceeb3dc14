// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoresOpened tracks store_provision/store_open calls by outcome.
	StoresOpened = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "stores_opened_total",
			Help:      "Total number of stores provisioned or opened",
		},
		[]string{"op", "status"}, // op: provision/open, status: success/failure
	)

	// StoresClosed tracks store_close/store_rekey calls.
	StoresClosed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "stores_closed_total",
			Help:      "Total number of stores closed or rekeyed",
		},
		[]string{"op", "status"}, // op: close/rekey, status: success/failure
	)

	// SessionsStarted tracks session_start calls.
	SessionsStarted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "sessions_started_total",
			Help:      "Total number of sessions started",
		},
		[]string{"status"},
	)

	// SessionsActive tracks currently open session handles.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "sessions_active",
			Help:      "Number of currently open session handles",
		},
	)

	// SessionsClosed tracks session_close calls by commit outcome.
	SessionsClosed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions closed",
		},
		[]string{"commit"}, // "true"/"false", or "outstanding" when a close is refused
	)

	// ScansBorrowed tracks scan_next borrow attempts, including
	// the Busy outcome when a cursor is already in flight.
	ScansBorrowed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "scans_borrowed_total",
			Help:      "Total number of scan cursor borrow attempts",
		},
		[]string{"status"}, // success/busy
	)

	// HandleOperationDuration is a histogram for handle-manager operation
	// durations; no code in this module observes it.
	HandleOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "operation_duration_seconds",
			Help:      "Handle-manager operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to 1.6s
		},
		[]string{"operation"},
	)

	// CallbacksResolved tracks handle.Callback outcomes: an async task that
	// calls Resolve/Reject is "resolved", one that only reaches Finalize
	// without having done so is "dropped" (delivered as Unexpected).
	CallbacksResolved = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handles",
			Name:      "callbacks_resolved_total",
			Help:      "Total number of async callbacks resolved, by outcome",
		},
		[]string{"outcome"}, // resolved/dropped
	)
)
