// Package persist implements the durable persistence contract (spec §4.3):
// term, vote, log entries, and snapshots, each required to survive an
// arbitrary crash between any two contract calls. It generalizes the
// teacher's free-standing WriteTerm/ReadTerm/WriteLogs/ReadLogs functions
// (internal/node/node.go) into a struct satisfying the full contract,
// including snapshot save/load and compaction, which the teacher never
// needed.
package persist

import (
	"errors"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// ErrPersistenceCorrupt is fatal: a node that observes it at startup must
// stop rather than run with a possibly-inconsistent log (spec §4.3, §7).
var ErrPersistenceCorrupt = errors.New("persistence: on-disk state is corrupt")

// ErrNotFound is returned by GetLogEntry for an index that isn't present.
var ErrNotFound = errors.New("persistence: log entry not found")

// Persistence is the durable storage boundary the engine is built against.
// Implementations must make save_current_term, save_voted_for, and
// append_log_entry durable (flushed) before returning success, since the
// engine relies on that to satisfy I7 (persist before responding) without
// itself knowing anything about files, fsync, or database transactions.
type Persistence interface {
	SaveCurrentTerm(t raftpb.Term) error
	LoadCurrentTerm() (raftpb.Term, error)

	// SaveVotedFor persists the vote cast in the current term. ClearVotedFor
	// resets it, which the engine calls whenever it adopts a new term.
	SaveVotedFor(n raftpb.NodeID) error
	ClearVotedFor() error
	LoadVotedFor() (n raftpb.NodeID, ok bool, err error)

	// AppendLogEntry requires e.Index == LastLogIndex()+1; it is the only way
	// new entries enter the log (truncation never re-adds an index that was
	// removed without going back through Append).
	AppendLogEntry(e raftpb.Entry) error

	// TruncateLog removes every entry with index >= fromIndex. Only legal for
	// a follower resolving a conflict (I4: a leader never calls this on its
	// own log).
	TruncateLog(fromIndex raftpb.LogIndex) error

	GetLogEntry(i raftpb.LogIndex) (raftpb.Entry, error)
	GetLogEntries(lo, hi raftpb.LogIndex) ([]raftpb.Entry, error)
	LastLogIndex() (raftpb.LogIndex, error)

	SaveSnapshot(s raftpb.Snapshot) error
	LoadSnapshot() (raftpb.Snapshot, bool, error)

	// DeleteLogEntriesBefore compacts the log: entries with index < i are
	// dropped. Only legal for indices at or below the latest saved
	// snapshot's LastIncludedIndex.
	DeleteLogEntriesBefore(i raftpb.LogIndex) error

	Close() error
}
