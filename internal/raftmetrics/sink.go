// Package raftmetrics declares the Metrics boundary from spec §6 ("core ->
// observer: counter/histogram sink; may be a no-op") and a concrete
// Prometheus-backed implementation, since the teacher never wires metrics but
// the rest of the retrieval pack (cuemby-warren's pkg/metrics) does, against
// github.com/prometheus/client_golang.
package raftmetrics

import "time"

// Sink is the observer boundary the engine reports through. Every method
// must be safe to call without holding the engine's lock and must never
// block or panic on a misconfigured collector.
type Sink interface {
	ElectionStarted()
	ElectionWon()
	HeartbeatSent()
	CommitAdvanced(index uint64)
	ApplyLatency(d time.Duration)
}

// Noop satisfies Sink by discarding everything; it is the default when a
// caller doesn't supply one, matching spec §6's "may be a no-op".
type Noop struct{}

func (Noop) ElectionStarted()          {}
func (Noop) ElectionWon()              {}
func (Noop) HeartbeatSent()            {}
func (Noop) CommitAdvanced(uint64)     {}
func (Noop) ApplyLatency(time.Duration) {}
