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
	// AEADOperations tracks AEAD encrypt/decrypt calls by algorithm.
	AEADOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "aead_operations_total",
			Help:      "Total number of AEAD encrypt/decrypt operations",
		},
		[]string{"operation", "algorithm"}, // encrypt/decrypt, A128GCM/A256GCM/A128CBC-HS256/A256CBC-HS512/A128KW/A256KW
	)

	// AEADErrors tracks AEAD failures by kind.
	AEADErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "aead_errors_total",
			Help:      "Total number of AEAD operation failures",
		},
		[]string{"operation", "algorithm", "kind"}, // kind: aead.Kind.String(), e.g. InvalidKeyData/InvalidNonce/Encryption
	)

	// AEADOperationDuration tracks AEAD operation durations.
	AEADOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "aead_operation_duration_seconds",
			Help:      "AEAD operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 163ms
		},
		[]string{"operation", "algorithm"},
	)
)
