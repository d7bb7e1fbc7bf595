package netsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btmorr/raftkit/internal/raftpb"
)

func TestNetworkDeliversWithinLatency(t *testing.T) {
	net := New(1)
	net.Start()

	a := net.AddNode("a")
	b := net.AddNode("b")
	require.NoError(t, b.RegisterAppendEntriesHandler(func(req *raftpb.AppendEntriesRequestPB) *raftpb.AppendEntriesResponsePB {
		return &raftpb.AppendEntriesResponsePB{Term: req.Term, Success: true}
	}))
	require.NoError(t, b.Start())

	net.AddEdge("a", "b", 5*time.Millisecond, 1.0)

	res := a.SendAppendEntries("b", &raftpb.AppendEntriesRequestPB{Term: 1}, 100*time.Millisecond).Get()
	require.NoError(t, res.Err)
	require.True(t, res.Value.Success)
}

func TestNetworkDropsWithoutEdge(t *testing.T) {
	net := New(1)
	net.Start()
	a := net.AddNode("a")
	net.AddNode("b")

	res := a.SendRequestVote("b", &raftpb.RequestVoteRequestPB{Term: 1}, 10*time.Millisecond).Get()
	require.Error(t, res.Err)
}

func TestHasNodeHasEdge(t *testing.T) {
	net := New(1)
	net.AddNode("a")
	net.AddNode("b")
	require.True(t, net.HasNode("a"))
	require.False(t, net.HasNode("z"))

	net.AddEdge("a", "b", time.Millisecond, 1.0)
	require.True(t, net.HasEdge("a", "b"))
	require.False(t, net.HasEdge("b", "a"))

	e, ok := net.GetEdge("a", "b")
	require.True(t, ok)
	require.Equal(t, time.Millisecond, e.Latency)

	net.RemoveEdge("a", "b")
	require.False(t, net.HasEdge("a", "b"))
}

func TestReliabilityZeroAlwaysDrops(t *testing.T) {
	net := New(42)
	net.Start()
	a := net.AddNode("a")
	b := net.AddNode("b")
	require.NoError(t, b.RegisterRequestVoteHandler(func(req *raftpb.RequestVoteRequestPB) *raftpb.RequestVoteResponsePB {
		return &raftpb.RequestVoteResponsePB{Term: req.Term, VoteGranted: true}
	}))
	require.NoError(t, b.Start())
	net.AddEdge("a", "b", time.Millisecond, 0.0)

	res := a.SendRequestVote("b", &raftpb.RequestVoteRequestPB{Term: 1}, 50*time.Millisecond).Get()
	require.Error(t, res.Err)
}

func TestRemoveNodePartitions(t *testing.T) {
	net := New(1)
	net.Start()
	a := net.AddNode("a")
	net.AddNode("b")
	net.AddEdge("a", "b", time.Millisecond, 1.0)
	require.True(t, net.HasEdge("a", "b"))

	net.RemoveNode("b")
	res := a.SendAppendEntries("b", &raftpb.AppendEntriesRequestPB{Term: 1}, 50*time.Millisecond).Get()
	require.Error(t, res.Err)
}
