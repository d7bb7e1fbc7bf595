package raftmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink is a concrete Sink implementation (cmd/raftnode does not
// construct one; the engine falls back to its default sink there), grounded on the pack's cuemby-warren health/metrics package conventions:
// a small set of package-owned collectors registered once at construction.
type PrometheusSink struct {
	electionsStarted prometheus.Counter
	electionsWon     prometheus.Counter
	heartbeatsSent   prometheus.Counter
	commits          prometheus.Counter
	applyLatency     prometheus.Histogram
}

// NewPrometheusSink builds a Sink and registers its collectors against reg.
// Passing prometheus.DefaultRegisterer matches the common case of a single
// process-wide registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		electionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raftkit",
			Name:      "elections_started_total",
			Help:      "Number of elections this node has started as a candidate.",
		}),
		electionsWon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raftkit",
			Name:      "elections_won_total",
			Help:      "Number of elections this node has won.",
		}),
		heartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raftkit",
			Name:      "heartbeats_sent_total",
			Help:      "Number of heartbeat AppendEntries rounds sent as leader.",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raftkit",
			Name:      "commits_total",
			Help:      "Number of times commit_index advanced.",
		}),
		applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "raftkit",
			Name:      "apply_latency_seconds",
			Help:      "Latency of a single StateMachine.Apply call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(s.electionsStarted, s.electionsWon, s.heartbeatsSent, s.commits, s.applyLatency)
	return s
}

func (s *PrometheusSink) ElectionStarted()      { s.electionsStarted.Inc() }
func (s *PrometheusSink) ElectionWon()          { s.electionsWon.Inc() }
func (s *PrometheusSink) HeartbeatSent()        { s.heartbeatsSent.Inc() }
func (s *PrometheusSink) CommitAdvanced(uint64) { s.commits.Inc() }
func (s *PrometheusSink) ApplyLatency(d time.Duration) {
	s.applyLatency.Observe(d.Seconds())
}
