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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BeaconsSent tracks outgoing discovery beacons
	BeaconsSent = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "beacons_sent_total",
			Help:      "Total number of discovery beacons broadcast",
		},
	)

	// BeaconsReceived tracks incoming discovery beacons
	BeaconsReceived = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "beacons_received_total",
			Help:      "Total number of discovery beacons received",
		},
	)

	// PeersKnown tracks the size of the peer table
	PeersKnown = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "peers_known",
			Help:      "Number of peers currently in the peer table",
		},
	)

	// PeersLost tracks peers dropped from the table for exceeding the liveness TTL
	PeersLost = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "peers_lost_total",
			Help:      "Total number of peers removed for missing the liveness TTL",
		},
	)

	// BindFailures tracks UDP socket bind failures
	BindFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "bind_failures_total",
			Help:      "Total number of discovery socket bind failures",
		},
	)
)
