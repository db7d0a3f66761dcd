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
	// DeltaInstructions tracks copy/insert instructions emitted by the matcher
	DeltaInstructions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "instructions_total",
			Help:      "Total number of delta instructions emitted",
		},
		[]string{"kind"}, // copy, insert
	)

	// DeltaBytesSaved tracks bytes a delta transfer avoided sending versus a full copy
	DeltaBytesSaved = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "bytes_saved_total",
			Help:      "Total bytes saved by sending copy instructions instead of literal data",
		},
	)

	// SignaturesComputed tracks block signatures generated while signing a base file
	SignaturesComputed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "signatures_computed_total",
			Help:      "Total number of block signatures computed",
		},
	)

	// ReconstructionDuration tracks the time spent rebuilding a file from delta instructions
	ReconstructionDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "reconstruction_duration_seconds",
			Help:      "Time spent reconstructing a file from delta instructions",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
	)
)
