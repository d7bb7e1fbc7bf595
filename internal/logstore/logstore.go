// Package logstore implements the indexed sequence of log entries plus
// latest-snapshot metadata described in spec §4.5: a logical append-only log
// layered over a persist.Persistence implementation, adding the lookups the
// engine needs (last term, range reads, conflict checks) without duplicating
// the durability concern persist.Persistence already owns.
package logstore

import (
	"github.com/btmorr/raftkit/internal/persist"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// Store is the log-and-snapshot abstraction the engine is built against.
type Store struct {
	p persist.Persistence
}

// Open rebuilds a Store from whatever persist.Persistence already has on
// disk: the latest snapshot plus the persisted log suffix (spec §4.5
// "rebuilds from the latest snapshot plus the persisted log suffix").
func Open(p persist.Persistence) *Store {
	return &Store{p: p}
}

// Append durably appends e. e.Index must equal LastIndex()+1.
func (s *Store) Append(e raftpb.Entry) error {
	return s.p.AppendLogEntry(e)
}

// Truncate removes every entry at or after fromIndex. Only legal for a
// follower resolving a conflict (I4).
func (s *Store) Truncate(fromIndex raftpb.LogIndex) error {
	return s.p.TruncateLog(fromIndex)
}

// Get returns the entry at index i, or ErrNotFound if it has been compacted
// away or never existed.
func (s *Store) Get(i raftpb.LogIndex) (raftpb.Entry, error) {
	return s.p.GetLogEntry(i)
}

// Range returns entries with index in [lo, hi], skipping any indices that
// have been compacted behind the snapshot.
func (s *Store) Range(lo, hi raftpb.LogIndex) ([]raftpb.Entry, error) {
	return s.p.GetLogEntries(lo, hi)
}

// LastIndex returns the index of the last log entry, or the snapshot's
// LastIncludedIndex if the log is currently empty.
func (s *Store) LastIndex() (raftpb.LogIndex, error) {
	return s.p.LastLogIndex()
}

// LastTerm returns the term of the last log entry, falling back to the
// snapshot's LastIncludedTerm when the log holds no entries past it, and to 0
// for a brand-new node.
func (s *Store) LastTerm() (raftpb.Term, error) {
	idx, err := s.LastIndex()
	if err != nil {
		return 0, err
	}
	if idx == 0 {
		snap, ok, err := s.p.LoadSnapshot()
		if err != nil {
			return 0, err
		}
		if ok {
			return snap.LastIncludedTerm, nil
		}
		return 0, nil
	}
	e, err := s.Get(idx)
	if err == persist.ErrNotFound {
		// idx equals the snapshot boundary exactly.
		snap, ok, serr := s.p.LoadSnapshot()
		if serr != nil {
			return 0, serr
		}
		if ok && snap.LastIncludedIndex == idx {
			return snap.LastIncludedTerm, nil
		}
		return 0, persist.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return e.Term, nil
}

// TermAt returns the term of the entry at index i, treating i==0 as term 0
// and i==the snapshot boundary as the snapshot's LastIncludedTerm.
func (s *Store) TermAt(i raftpb.LogIndex) (raftpb.Term, bool, error) {
	if i == 0 {
		return 0, true, nil
	}
	e, err := s.Get(i)
	if err == nil {
		return e.Term, true, nil
	}
	if err != persist.ErrNotFound {
		return 0, false, err
	}
	snap, ok, serr := s.p.LoadSnapshot()
	if serr != nil {
		return 0, false, serr
	}
	if ok && snap.LastIncludedIndex == i {
		return snap.LastIncludedTerm, true, nil
	}
	return 0, false, nil
}

// InstallSnapshot finalizes snap as the latest snapshot and retains or
// discards the log suffix per spec §4.6.6: if the existing log still has an
// entry at (snap.LastIncludedIndex, snap.LastIncludedTerm), that suffix is
// kept; otherwise the entire log is discarded (handled by
// persist.SaveSnapshot, which always trims everything at or below the
// boundary — the caller is responsible for truncating the remainder when the
// term at the boundary doesn't match, by calling Truncate first).
func (s *Store) InstallSnapshot(snap raftpb.Snapshot) error {
	return s.p.SaveSnapshot(snap)
}

// Snapshot returns the latest snapshot, if any.
func (s *Store) Snapshot() (raftpb.Snapshot, bool, error) {
	return s.p.LoadSnapshot()
}

// Compact discards entries below i, once they are known to be covered by a
// saved snapshot.
func (s *Store) Compact(i raftpb.LogIndex) error {
	return s.p.DeleteLogEntriesBefore(i)
}
