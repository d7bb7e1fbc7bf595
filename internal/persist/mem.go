package persist

import (
	"sync"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// MemPersistence is an in-memory Persistence implementation with no durability
// at all, used by engine and netsim tests that want a fast, crash-oblivious
// stand-in for FileProtoPersistence/BoltPersistence.
type MemPersistence struct {
	mu sync.RWMutex

	term     raftpb.Term
	votedFor raftpb.NodeID
	hasVote  bool

	entries   []raftpb.Entry
	baseIndex raftpb.LogIndex

	snapshot    raftpb.Snapshot
	hasSnapshot bool
}

func NewMemPersistence() *MemPersistence { return &MemPersistence{} }

func (m *MemPersistence) SaveCurrentTerm(t raftpb.Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term = t
	return nil
}

func (m *MemPersistence) LoadCurrentTerm() (raftpb.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.term, nil
}

func (m *MemPersistence) SaveVotedFor(n raftpb.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votedFor, m.hasVote = n, true
	return nil
}

func (m *MemPersistence) ClearVotedFor() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votedFor, m.hasVote = "", false
	return nil
}

func (m *MemPersistence) LoadVotedFor() (raftpb.NodeID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.votedFor, m.hasVote, nil
}

func (m *MemPersistence) AppendLogEntry(e raftpb.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := m.baseIndex + raftpb.LogIndex(len(m.entries)) + 1
	if e.Index != want {
		return ErrPersistenceCorrupt
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemPersistence) TruncateLog(fromIndex raftpb.LogIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fromIndex <= m.baseIndex {
		m.entries = nil
		return nil
	}
	offset := int(fromIndex - m.baseIndex - 1)
	if offset < len(m.entries) {
		m.entries = m.entries[:offset]
	}
	return nil
}

func (m *MemPersistence) GetLogEntry(i raftpb.LogIndex) (raftpb.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i <= m.baseIndex {
		return raftpb.Entry{}, ErrNotFound
	}
	offset := int(i - m.baseIndex - 1)
	if offset < 0 || offset >= len(m.entries) {
		return raftpb.Entry{}, ErrNotFound
	}
	return m.entries[offset], nil
}

func (m *MemPersistence) GetLogEntries(lo, hi raftpb.LogIndex) ([]raftpb.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []raftpb.Entry
	for i := lo; i <= hi; i++ {
		if i <= m.baseIndex {
			continue
		}
		offset := int(i - m.baseIndex - 1)
		if offset < 0 || offset >= len(m.entries) {
			continue
		}
		out = append(out, m.entries[offset])
	}
	return out, nil
}

func (m *MemPersistence) LastLogIndex() (raftpb.LogIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseIndex + raftpb.LogIndex(len(m.entries)), nil
}

func (m *MemPersistence) SaveSnapshot(s raftpb.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot, m.hasSnapshot = s, true
	if s.LastIncludedIndex > m.baseIndex {
		offset := int(s.LastIncludedIndex - m.baseIndex)
		if offset >= len(m.entries) {
			m.entries = nil
		} else {
			m.entries = append([]raftpb.Entry(nil), m.entries[offset:]...)
		}
		m.baseIndex = s.LastIncludedIndex
	}
	return nil
}

func (m *MemPersistence) LoadSnapshot() (raftpb.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot, m.hasSnapshot, nil
}

func (m *MemPersistence) DeleteLogEntriesBefore(i raftpb.LogIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i <= m.baseIndex {
		return nil
	}
	offset := int(i - m.baseIndex - 1)
	if offset >= len(m.entries) {
		m.entries = nil
	} else if offset > 0 {
		m.entries = append([]raftpb.Entry(nil), m.entries[offset:]...)
	}
	m.baseIndex = i - 1
	return nil
}

func (m *MemPersistence) Close() error { return nil }
