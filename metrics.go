package kvstore

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-kvstore/internal/obs"
)

// LatencyBuckets defines the command-latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a server.
type Metrics struct {
	// Command counters
	CommandsProcessed atomic.Uint64 // Total commands dispatched
	CommandErrors     atomic.Uint64 // Commands that returned a -ERR reply

	// Keyspace counters
	KeyspaceHits       atomic.Uint64 // GETs (or lookups) that found a live key
	KeyspaceMisses     atomic.Uint64 // GETs that found nothing
	KeyspaceExpirations atomic.Uint64 // Keys removed by lazy expiry

	// Replication counters
	BytesPropagated atomic.Uint64 // Bytes of write commands forwarded to replicas
	ReplicaAcks     atomic.Uint64 // REPLCONF ACK messages received
	WaitSatisfied   atomic.Uint64 // WAIT calls that reached their target before timeout
	WaitTimedOut    atomic.Uint64 // WAIT calls that hit their timeout first

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative command latency in nanoseconds
	OpCount        atomic.Uint64 // Total timed operations (for average latency)

	// Latency histogram buckets (cumulative counts); bucket[i] holds the
	// count of operations with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Server lifecycle
	StartTime atomic.Int64 // Server start timestamp (UnixNano)
	StopTime  atomic.Int64 // Server stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one dispatched command and its processing latency.
func (m *Metrics) RecordCommand(latencyNs uint64, success bool) {
	m.CommandsProcessed.Add(1)
	if !success {
		m.CommandErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordKeyspaceHit records a lookup that found a live key.
func (m *Metrics) RecordKeyspaceHit() {
	m.KeyspaceHits.Add(1)
}

// RecordKeyspaceMiss records a lookup that found nothing.
func (m *Metrics) RecordKeyspaceMiss() {
	m.KeyspaceMisses.Add(1)
}

// RecordKeyspaceExpiration records a key removed by lazy expiry.
func (m *Metrics) RecordKeyspaceExpiration() {
	m.KeyspaceExpirations.Add(1)
}

// RecordPropagation records bytes of a write command forwarded to replicas.
func (m *Metrics) RecordPropagation(bytes uint64) {
	m.BytesPropagated.Add(bytes)
}

// RecordReplicaAck records one REPLCONF ACK received from a replica.
func (m *Metrics) RecordReplicaAck() {
	m.ReplicaAcks.Add(1)
}

// RecordWaitOutcome records whether a WAIT call reached its target replica
// count before its timeout elapsed.
func (m *Metrics) RecordWaitOutcome(satisfied bool) {
	if satisfied {
		m.WaitSatisfied.Add(1)
	} else {
		m.WaitTimedOut.Add(1)
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the server as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	CommandsProcessed uint64
	CommandErrors     uint64

	KeyspaceHits        uint64
	KeyspaceMisses      uint64
	KeyspaceExpirations uint64

	BytesPropagated uint64
	ReplicaAcks     uint64
	WaitSatisfied   uint64
	WaitTimedOut    uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CommandsPerSecond float64
	ErrorRate         float64 // Percentage of commands that returned -ERR
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CommandsProcessed:   m.CommandsProcessed.Load(),
		CommandErrors:       m.CommandErrors.Load(),
		KeyspaceHits:        m.KeyspaceHits.Load(),
		KeyspaceMisses:      m.KeyspaceMisses.Load(),
		KeyspaceExpirations: m.KeyspaceExpirations.Load(),
		BytesPropagated:     m.BytesPropagated.Load(),
		ReplicaAcks:         m.ReplicaAcks.Load(),
		WaitSatisfied:       m.WaitSatisfied.Load(),
		WaitTimedOut:        m.WaitTimedOut.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.CommandsPerSecond = float64(snap.CommandsProcessed) / uptimeSeconds
	}

	if snap.CommandsProcessed > 0 {
		snap.ErrorRate = float64(snap.CommandErrors) / float64(snap.CommandsProcessed) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.CommandsProcessed.Store(0)
	m.CommandErrors.Store(0)
	m.KeyspaceHits.Store(0)
	m.KeyspaceMisses.Store(0)
	m.KeyspaceExpirations.Store(0)
	m.BytesPropagated.Store(0)
	m.ReplicaAcks.Store(0)
	m.WaitSatisfied.Store(0)
	m.WaitTimedOut.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, matching the shape of calls
// the event loop and replication engine make as they process traffic. It is
// a type alias for internal/obs.Observer so that internal packages can
// accept one without importing this package.
type Observer = obs.Observer

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver = obs.NoOpObserver

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(latencyNs uint64, success bool) {
	o.metrics.RecordCommand(latencyNs, success)
}

func (o *MetricsObserver) ObserveKeyspaceLookup(hit bool) {
	if hit {
		o.metrics.RecordKeyspaceHit()
	} else {
		o.metrics.RecordKeyspaceMiss()
	}
}

func (o *MetricsObserver) ObserveKeyspaceExpiration() {
	o.metrics.RecordKeyspaceExpiration()
}

func (o *MetricsObserver) ObservePropagation(bytes uint64) {
	o.metrics.RecordPropagation(bytes)
}

func (o *MetricsObserver) ObserveReplicaAck() {
	o.metrics.RecordReplicaAck()
}

func (o *MetricsObserver) ObserveWaitOutcome(satisfied bool) {
	o.metrics.RecordWaitOutcome(satisfied)
}

// Compile-time interface checks.
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
