// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics instruments the AEAD suite and the handle manager with
// Prometheus counters, gauges, and histograms, following the teacher's
// promauto-registered-collector convention.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// namespace prefixes every metric this package registers, e.g.
// "sage_vault_crypto_aead_operations_total".
const namespace = "sage_vault"

// Registry is the collector registry every metric in this package attaches
// to via promauto.With. It is a dedicated prometheus.NewRegistry(), not the
// process-wide default registerer; Handler serves it.
var Registry = prometheus.NewRegistry()
