package logstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btmorr/raftkit/internal/persist"
	"github.com/btmorr/raftkit/internal/raftpb"
)

func TestAppendAndRange(t *testing.T) {
	s := Open(persist.NewMemPersistence())
	require.NoError(t, s.Append(raftpb.Entry{Term: 1, Index: 1, Payload: []byte("a")}))
	require.NoError(t, s.Append(raftpb.Entry{Term: 1, Index: 2, Payload: []byte("b")}))
	require.NoError(t, s.Append(raftpb.Entry{Term: 2, Index: 3, Payload: []byte("c")}))

	last, err := s.LastIndex()
	require.NoError(t, err)
	require.Equal(t, raftpb.LogIndex(3), last)

	term, err := s.LastTerm()
	require.NoError(t, err)
	require.Equal(t, raftpb.Term(2), term)

	entries, err := s.Range(1, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestTermAtSnapshotBoundary(t *testing.T) {
	s := Open(persist.NewMemPersistence())
	require.NoError(t, s.Append(raftpb.Entry{Term: 1, Index: 1}))
	require.NoError(t, s.Append(raftpb.Entry{Term: 2, Index: 2}))
	require.NoError(t, s.InstallSnapshot(raftpb.Snapshot{LastIncludedIndex: 2, LastIncludedTerm: 2}))

	term, ok, err := s.TermAt(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, raftpb.Term(2), term)

	_, err = s.Get(1)
	require.Error(t, err)
}

func TestCompactDropsPrefix(t *testing.T) {
	s := Open(persist.NewMemPersistence())
	for i := raftpb.LogIndex(1); i <= 5; i++ {
		require.NoError(t, s.Append(raftpb.Entry{Term: 1, Index: i}))
	}
	require.NoError(t, s.Compact(4))
	_, err := s.Get(3)
	require.Error(t, err)
	_, err = s.Get(4)
	require.NoError(t, err)
}
