package persist

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// FileProtoPersistence is a flat-file, protobuf-encoded Persistence
// implementation, directly generalizing the teacher's WriteTerm/ReadTerm and
// WriteLogs/ReadLogs free functions (internal/node/node.go) into a struct
// that owns the full contract of §4.3, including snapshots and compaction.
//
// Every mutating call writes a full replacement file and calls f.Sync()
// before returning, which is the fencing mechanism I7 requires: the engine
// can rely on a returned nil error meaning the write actually reached disk.
type FileProtoPersistence struct {
	mu sync.RWMutex

	termFile     string
	logFile      string
	snapshotFile string

	term     raftpb.Term
	votedFor raftpb.NodeID
	hasVote  bool

	// entries holds the log suffix not yet compacted behind a snapshot.
	// entries[i] has index = baseIndex + 1 + i, where baseIndex is the latest
	// snapshot's LastIncludedIndex (or 0 with no snapshot).
	entries   []raftpb.Entry
	baseIndex raftpb.LogIndex

	snapshot   raftpb.Snapshot
	hasSnapshot bool
}

// Open loads (or initializes) a FileProtoPersistence rooted at dataDir,
// mirroring NewNodeConfig's dataDir/term, dataDir/raftlog layout.
func Open(dataDir string) (*FileProtoPersistence, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	p := &FileProtoPersistence{
		termFile:     filepath.Join(dataDir, "term"),
		logFile:      filepath.Join(dataDir, "raftlog"),
		snapshotFile: filepath.Join(dataDir, "snapshot"),
	}
	if err := p.loadTerm(); err != nil {
		return nil, err
	}
	if err := p.loadLog(); err != nil {
		return nil, err
	}
	if err := p.loadSnapshotFile(); err != nil {
		return nil, err
	}
	log.Info().
		Uint64("term", uint64(p.term)).
		Int("nLogs", len(p.entries)).
		Bool("hasSnapshot", p.hasSnapshot).
		Msg("persistence loaded")
	return p, nil
}

func (p *FileProtoPersistence) loadTerm() error {
	record := &raftpb.TermRecordPB{}
	if err := readPB(p.termFile, record); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrPersistenceCorrupt
	}
	p.term = raftpb.Term(record.Term)
	p.hasVote = record.HasVote
	p.votedFor = raftpb.NodeID(record.VotedFor)
	return nil
}

func (p *FileProtoPersistence) loadLog() error {
	store := &raftpb.LogStorePB{}
	if err := readPB(p.logFile, store); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrPersistenceCorrupt
	}
	p.entries = raftpb.EntriesFromPB(store.Entries)
	return nil
}

func (p *FileProtoPersistence) loadSnapshotFile() error {
	snap := &raftpb.SnapshotPB{}
	if err := readPB(p.snapshotFile, snap); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ErrPersistenceCorrupt
	}
	p.snapshot = raftpb.SnapshotFromPB(snap)
	p.hasSnapshot = true
	p.baseIndex = p.snapshot.LastIncludedIndex
	return nil
}

func (p *FileProtoPersistence) SaveCurrentTerm(t raftpb.Term) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.term = t
	return p.flushTerm()
}

func (p *FileProtoPersistence) LoadCurrentTerm() (raftpb.Term, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.term, nil
}

func (p *FileProtoPersistence) SaveVotedFor(n raftpb.NodeID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.votedFor = n
	p.hasVote = true
	return p.flushTerm()
}

func (p *FileProtoPersistence) ClearVotedFor() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.votedFor = ""
	p.hasVote = false
	return p.flushTerm()
}

func (p *FileProtoPersistence) LoadVotedFor() (raftpb.NodeID, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.votedFor, p.hasVote, nil
}

func (p *FileProtoPersistence) flushTerm() error {
	record := &raftpb.TermRecordPB{
		Term:     int64(p.term),
		VotedFor: string(p.votedFor),
		HasVote:  p.hasVote,
	}
	return writePB(p.termFile, record)
}

func (p *FileProtoPersistence) AppendLogEntry(e raftpb.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	want := p.baseIndex + raftpb.LogIndex(len(p.entries)) + 1
	if e.Index != want {
		return ErrPersistenceCorrupt
	}
	p.entries = append(p.entries, e)
	if err := p.flushLog(); err != nil {
		p.entries = p.entries[:len(p.entries)-1]
		return err
	}
	return nil
}

func (p *FileProtoPersistence) TruncateLog(fromIndex raftpb.LogIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fromIndex <= p.baseIndex {
		p.entries = nil
	} else {
		offset := int(fromIndex - p.baseIndex - 1)
		if offset < 0 {
			offset = 0
		}
		if offset < len(p.entries) {
			p.entries = p.entries[:offset]
		}
	}
	return p.flushLog()
}

func (p *FileProtoPersistence) flushLog() error {
	store := &raftpb.LogStorePB{Entries: raftpb.EntriesToPB(p.entries)}
	return writePB(p.logFile, store)
}

func (p *FileProtoPersistence) GetLogEntry(i raftpb.LogIndex) (raftpb.Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i <= p.baseIndex {
		return raftpb.Entry{}, ErrNotFound
	}
	offset := int(i - p.baseIndex - 1)
	if offset < 0 || offset >= len(p.entries) {
		return raftpb.Entry{}, ErrNotFound
	}
	return p.entries[offset], nil
}

func (p *FileProtoPersistence) GetLogEntries(lo, hi raftpb.LogIndex) ([]raftpb.Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if hi < lo {
		return nil, nil
	}
	var out []raftpb.Entry
	for i := lo; i <= hi; i++ {
		if i <= p.baseIndex {
			continue
		}
		offset := int(i - p.baseIndex - 1)
		if offset < 0 || offset >= len(p.entries) {
			continue
		}
		out = append(out, p.entries[offset])
	}
	return out, nil
}

func (p *FileProtoPersistence) LastLogIndex() (raftpb.LogIndex, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.baseIndex + raftpb.LogIndex(len(p.entries)), nil
}

func (p *FileProtoPersistence) SaveSnapshot(s raftpb.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writePB(p.snapshotFile, raftpb.SnapshotToPB(s)); err != nil {
		return err
	}
	p.snapshot = s
	p.hasSnapshot = true
	// Drop any log entries the snapshot already covers.
	if s.LastIncludedIndex > p.baseIndex {
		offset := int(s.LastIncludedIndex - p.baseIndex)
		if offset >= len(p.entries) {
			p.entries = nil
		} else {
			p.entries = append([]raftpb.Entry(nil), p.entries[offset:]...)
		}
		p.baseIndex = s.LastIncludedIndex
		if err := p.flushLog(); err != nil {
			return err
		}
	}
	return nil
}

func (p *FileProtoPersistence) LoadSnapshot() (raftpb.Snapshot, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.hasSnapshot, nil
}

func (p *FileProtoPersistence) DeleteLogEntriesBefore(i raftpb.LogIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i <= p.baseIndex {
		return nil
	}
	offset := int(i - p.baseIndex - 1)
	if offset >= len(p.entries) {
		p.entries = nil
	} else if offset > 0 {
		p.entries = append([]raftpb.Entry(nil), p.entries[offset:]...)
	}
	p.baseIndex = i - 1
	return p.flushLog()
}

func (p *FileProtoPersistence) Close() error { return nil }
