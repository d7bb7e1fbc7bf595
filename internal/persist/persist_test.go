package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btmorr/raftkit/internal/raftpb"
)

func implementations(t *testing.T) map[string]Persistence {
	t.Helper()
	fp, err := Open(t.TempDir())
	require.NoError(t, err)
	bp, err := OpenBolt(t.TempDir() + "/bolt.db")
	require.NoError(t, err)
	return map[string]Persistence{
		"mem":       NewMemPersistence(),
		"fileproto": fp,
		"bolt":      bp,
	}
}

func TestPersistenceContract(t *testing.T) {
	for name, p := range implementations(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.SaveCurrentTerm(5))
			term, err := p.LoadCurrentTerm()
			require.NoError(t, err)
			require.Equal(t, raftpb.Term(5), term)

			require.NoError(t, p.SaveVotedFor("node-2"))
			id, ok, err := p.LoadVotedFor()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, raftpb.NodeID("node-2"), id)

			require.NoError(t, p.ClearVotedFor())
			_, ok, err = p.LoadVotedFor()
			require.NoError(t, err)
			require.False(t, ok)

			e1 := raftpb.Entry{Term: 1, Index: 1, Kind: raftpb.EntryCommand, Payload: []byte("a")}
			e2 := raftpb.Entry{Term: 1, Index: 2, Kind: raftpb.EntryCommand, Payload: []byte("b")}
			require.NoError(t, p.AppendLogEntry(e1))
			require.NoError(t, p.AppendLogEntry(e2))

			last, err := p.LastLogIndex()
			require.NoError(t, err)
			require.Equal(t, raftpb.LogIndex(2), last)

			got, err := p.GetLogEntry(1)
			require.NoError(t, err)
			require.Equal(t, e1.Payload, got.Payload)

			entries, err := p.GetLogEntries(1, 2)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			require.NoError(t, p.TruncateLog(2))
			last, err = p.LastLogIndex()
			require.NoError(t, err)
			require.Equal(t, raftpb.LogIndex(1), last)

			snap := raftpb.Snapshot{LastIncludedIndex: 1, LastIncludedTerm: 1, StateBytes: []byte("state")}
			require.NoError(t, p.SaveSnapshot(snap))
			loaded, ok, err := p.LoadSnapshot()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, snap.StateBytes, loaded.StateBytes)

			require.NoError(t, p.Close())
		})
	}
}

func TestAppendRejectsNonContiguousIndex(t *testing.T) {
	for name, p := range implementations(t) {
		p := p
		t.Run(name, func(t *testing.T) {
			err := p.AppendLogEntry(raftpb.Entry{Index: 5})
			require.Error(t, err)
			require.NoError(t, p.Close())
		})
	}
}
