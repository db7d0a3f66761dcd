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
	"sync"
	"time"
)

// MetricsCollector aggregates in-process timing and counter data that is
// cheaper to sample from than walking the Prometheus registry.
type MetricsCollector struct {
	mu sync.RWMutex

	// Counters
	HandshakeCount     int64
	HandshakeSuccesses int64
	HandshakeFailures  int64
	TransfersStarted   int64
	TransfersCompleted int64
	TransfersFailed    int64
	ConflictsDetected  int64
	BytesSent          int64
	BytesReceived      int64

	// Timing metrics (in microseconds)
	HandshakeTimes    []int64
	TransferTimes     []int64
	DeltaSigningTimes []int64
	ReconstructTimes  []int64

	// Start time for uptime calculation
	startTime time.Time

	// Configuration
	maxTimingSamples int
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime:        time.Now(),
		maxTimingSamples: 1000, // Keep last 1000 samples for each timing metric
	}
}

// RecordHandshake records a handshake attempt
func (mc *MetricsCollector) RecordHandshake(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.HandshakeCount++
	if success {
		mc.HandshakeSuccesses++
	} else {
		mc.HandshakeFailures++
	}
	mc.recordTiming(&mc.HandshakeTimes, duration)
}

// RecordTransfer records a completed or failed file transfer
func (mc *MetricsCollector) RecordTransfer(success bool, bytesMoved int64, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.TransfersStarted++
	if success {
		mc.TransfersCompleted++
		mc.BytesSent += bytesMoved
	} else {
		mc.TransfersFailed++
	}
	mc.recordTiming(&mc.TransferTimes, duration)
}

// RecordConflict records a conflict detected while applying a remote change
func (mc *MetricsCollector) RecordConflict() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.ConflictsDetected++
}

// RecordDeltaSigning records time spent computing block signatures for a base file
func (mc *MetricsCollector) RecordDeltaSigning(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.recordTiming(&mc.DeltaSigningTimes, duration)
}

// RecordReconstruction records time spent applying delta instructions to rebuild a file
func (mc *MetricsCollector) RecordReconstruction(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.recordTiming(&mc.ReconstructTimes, duration)
}

// recordTiming records a timing sample
func (mc *MetricsCollector) recordTiming(timings *[]int64, duration time.Duration) {
	microseconds := duration.Microseconds()
	*timings = append(*timings, microseconds)

	// Keep only last N samples
	if len(*timings) > mc.maxTimingSamples {
		*timings = (*timings)[len(*timings)-mc.maxTimingSamples:]
	}
}

// GetSnapshot returns a snapshot of current metrics
func (mc *MetricsCollector) GetSnapshot() *MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return &MetricsSnapshot{
		Timestamp:          time.Now(),
		Uptime:             time.Since(mc.startTime),
		HandshakeCount:     mc.HandshakeCount,
		HandshakeSuccesses: mc.HandshakeSuccesses,
		HandshakeFailures:  mc.HandshakeFailures,
		TransfersStarted:   mc.TransfersStarted,
		TransfersCompleted: mc.TransfersCompleted,
		TransfersFailed:    mc.TransfersFailed,
		ConflictsDetected:  mc.ConflictsDetected,
		BytesSent:          mc.BytesSent,
		BytesReceived:      mc.BytesReceived,
		AvgHandshakeTime:   calculateAverage(mc.HandshakeTimes),
		AvgTransferTime:    calculateAverage(mc.TransferTimes),
		P95HandshakeTime:   calculatePercentile(mc.HandshakeTimes, 95),
		P95TransferTime:    calculatePercentile(mc.TransferTimes, 95),
	}
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.HandshakeCount = 0
	mc.HandshakeSuccesses = 0
	mc.HandshakeFailures = 0
	mc.TransfersStarted = 0
	mc.TransfersCompleted = 0
	mc.TransfersFailed = 0
	mc.ConflictsDetected = 0
	mc.BytesSent = 0
	mc.BytesReceived = 0

	mc.HandshakeTimes = nil
	mc.TransferTimes = nil
	mc.DeltaSigningTimes = nil
	mc.ReconstructTimes = nil

	mc.startTime = time.Now()
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	// Counters
	HandshakeCount     int64
	HandshakeSuccesses int64
	HandshakeFailures  int64
	TransfersStarted   int64
	TransfersCompleted int64
	TransfersFailed    int64
	ConflictsDetected  int64
	BytesSent          int64
	BytesReceived      int64

	// Timing averages (microseconds)
	AvgHandshakeTime float64
	AvgTransferTime  float64

	// 95th percentile timings (microseconds)
	P95HandshakeTime int64
	P95TransferTime  int64
}

// GetHandshakeSuccessRate returns the handshake success rate as a percentage
func (ms *MetricsSnapshot) GetHandshakeSuccessRate() float64 {
	if ms.HandshakeCount == 0 {
		return 0
	}
	return float64(ms.HandshakeSuccesses) / float64(ms.HandshakeCount) * 100
}

// GetTransferSuccessRate returns the transfer success rate as a percentage
func (ms *MetricsSnapshot) GetTransferSuccessRate() float64 {
	if ms.TransfersStarted == 0 {
		return 0
	}
	return float64(ms.TransfersCompleted) / float64(ms.TransfersStarted) * 100
}

// Helper functions

func calculateAverage(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func calculatePercentile(values []int64, percentile int) int64 {
	if len(values) == 0 {
		return 0
	}

	index := len(values) * percentile / 100
	if index >= len(values) {
		index = len(values) - 1
	}

	// Create a copy and sort (simple bubble sort for small datasets)
	sorted := make([]int64, len(values))
	copy(sorted, values)

	for i := 0; i < len(sorted)-1; i++ {
		for j := 0; j < len(sorted)-i-1; j++ {
			if sorted[j] > sorted[j+1] {
				sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
			}
		}
	}

	return sorted[index]
}

// Global metrics collector instance
var globalCollector = NewMetricsCollector()

// GetGlobalCollector returns the global metrics collector
func GetGlobalCollector() *MetricsCollector {
	return globalCollector
}
