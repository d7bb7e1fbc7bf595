package persist

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// BoltPersistence is an embedded-KV-backed Persistence implementation,
// exercising the same dependency the rest of the pack uses hashicorp/raft's
// raft-boltdb store for (see DESIGN.md). Each bucket mirrors one concern of
// the contract: meta (term/vote), log (index -> LogRecordPB), snapshot
// (single latest blob).
type BoltPersistence struct {
	db *bolt.DB
}

var (
	bucketMeta     = []byte("meta")
	bucketLog      = []byte("log")
	bucketSnapshot = []byte("snapshot")

	keyTerm     = []byte("term")
	keyVotedFor = []byte("voted_for")
	keyHasVote  = []byte("has_vote")
	keySnapshot = []byte("snapshot")
)

// OpenBolt opens (creating if needed) a bbolt-backed store at path.
func OpenBolt(path string) (*BoltPersistence, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketLog, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltPersistence{db: db}, nil
}

func indexKey(i raftpb.LogIndex) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i))
	return buf
}

func (b *BoltPersistence) SaveCurrentTerm(t raftpb.Term) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(t))
		return tx.Bucket(bucketMeta).Put(keyTerm, buf)
	})
}

func (b *BoltPersistence) LoadCurrentTerm() (raftpb.Term, error) {
	var t raftpb.Term
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyTerm)
		if v == nil {
			return nil
		}
		t = raftpb.Term(binary.BigEndian.Uint64(v))
		return nil
	})
	return t, err
}

func (b *BoltPersistence) SaveVotedFor(n raftpb.NodeID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyVotedFor, []byte(n)); err != nil {
			return err
		}
		return meta.Put(keyHasVote, []byte{1})
	})
}

func (b *BoltPersistence) ClearVotedFor() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyHasVote, []byte{0})
	})
}

func (b *BoltPersistence) LoadVotedFor() (raftpb.NodeID, bool, error) {
	var id raftpb.NodeID
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		hv := meta.Get(keyHasVote)
		ok = len(hv) == 1 && hv[0] == 1
		if ok {
			id = raftpb.NodeID(meta.Get(keyVotedFor))
		}
		return nil
	})
	return id, ok, err
}

func (b *BoltPersistence) AppendLogEntry(e raftpb.Entry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		want := raftpb.LogIndex(1)
		if k, _ := tx.Bucket(bucketLog).Cursor().Last(); k != nil {
			want = raftpb.LogIndex(binary.BigEndian.Uint64(k)) + 1
		} else if v := tx.Bucket(bucketSnapshot).Get(keySnapshot); v != nil {
			m := &raftpb.SnapshotPB{}
			if err := raftpb.Unmarshal(v, m); err != nil {
				return err
			}
			want = raftpb.SnapshotFromPB(m).LastIncludedIndex + 1
		}
		if e.Index != want {
			return ErrPersistenceCorrupt
		}
		data, err := raftpb.Marshal(raftpb.EntryToPB(e))
		if err != nil {
			return err
		}
		return tx.Bucket(bucketLog).Put(indexKey(e.Index), data)
	})
}

func (b *BoltPersistence) TruncateLog(fromIndex raftpb.LogIndex) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, _ := c.Seek(indexKey(fromIndex)); k != nil; k, _ = c.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltPersistence) GetLogEntry(i raftpb.LogIndex) (raftpb.Entry, error) {
	var entry raftpb.Entry
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLog).Get(indexKey(i))
		if v == nil {
			return nil
		}
		m := &raftpb.LogRecordPB{}
		if err := raftpb.Unmarshal(v, m); err != nil {
			return err
		}
		entry = raftpb.EntryFromPB(m)
		found = true
		return nil
	})
	if err != nil {
		return raftpb.Entry{}, err
	}
	if !found {
		return raftpb.Entry{}, ErrNotFound
	}
	return entry, nil
}

func (b *BoltPersistence) GetLogEntries(lo, hi raftpb.LogIndex) ([]raftpb.Entry, error) {
	var out []raftpb.Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLog).Cursor()
		for k, v := c.Seek(indexKey(lo)); k != nil && binary.BigEndian.Uint64(k) <= uint64(hi); k, v = c.Next() {
			m := &raftpb.LogRecordPB{}
			if err := raftpb.Unmarshal(v, m); err != nil {
				return err
			}
			out = append(out, raftpb.EntryFromPB(m))
		}
		return nil
	})
	return out, err
}

func (b *BoltPersistence) LastLogIndex() (raftpb.LogIndex, error) {
	var last raftpb.LogIndex
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLog).Cursor()
		k, _ := c.Last()
		if k == nil {
			v := tx.Bucket(bucketSnapshot).Get(keySnapshot)
			if v == nil {
				return nil
			}
			m := &raftpb.SnapshotPB{}
			if err := raftpb.Unmarshal(v, m); err != nil {
				return err
			}
			last = raftpb.SnapshotFromPB(m).LastIncludedIndex
			return nil
		}
		last = raftpb.LogIndex(binary.BigEndian.Uint64(k))
		return nil
	})
	return last, err
}

func (b *BoltPersistence) SaveSnapshot(s raftpb.Snapshot) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := raftpb.Marshal(raftpb.SnapshotToPB(s))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketSnapshot).Put(keySnapshot, data); err != nil {
			return err
		}
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) <= uint64(s.LastIncludedIndex); k, _ = c.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltPersistence) LoadSnapshot() (raftpb.Snapshot, bool, error) {
	var snap raftpb.Snapshot
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshot).Get(keySnapshot)
		if v == nil {
			return nil
		}
		m := &raftpb.SnapshotPB{}
		if err := raftpb.Unmarshal(v, m); err != nil {
			return err
		}
		snap = raftpb.SnapshotFromPB(m)
		ok = true
		return nil
	})
	return snap, ok, err
}

func (b *BoltPersistence) DeleteLogEntriesBefore(i raftpb.LogIndex) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLog)
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) < uint64(i); k, _ = c.Next() {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltPersistence) Close() error { return b.db.Close() }
