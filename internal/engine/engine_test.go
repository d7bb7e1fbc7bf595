package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btmorr/raftkit/internal/engine"
	"github.com/btmorr/raftkit/internal/logstore"
	"github.com/btmorr/raftkit/internal/netsim"
	"github.com/btmorr/raftkit/internal/persist"
	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/statemachine"
)

const (
	testElectionMin = 30 * time.Millisecond
	testElectionMax = 60 * time.Millisecond
	testHeartbeat   = 10 * time.Millisecond
	testRPCTimeout  = 50 * time.Millisecond
)

// buildCluster wires n engines over a fully-connected, reliable netsim
// Network, one KVStore and two MemPersistence instances (persistence and
// log) per node, and returns them
// alongside their node IDs, state machines (for asserting replication
// directly, since only the leader can serve ReadState), and the Network
// itself (so a test can add further nodes/edges mid-run). Callers must
// Stop() every engine.
func buildCluster(t *testing.T, n int) ([]*engine.Engine, []raftpb.NodeID, []*statemachine.KVStore, *netsim.Network) {
	t.Helper()

	net := netsim.New(1)
	net.Start()

	ids := make([]raftpb.NodeID, n)
	for i := 0; i < n; i++ {
		ids[i] = raftpb.NodeID(string(rune('1' + i)))
	}
	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			net.AddEdge(from, to, time.Millisecond, 1.0)
		}
	}

	engines := make([]*engine.Engine, n)
	kvs := make([]*statemachine.KVStore, n)
	for i, id := range ids {
		handle := net.AddNode(id)
		kv := statemachine.NewKVStore()
		kvs[i] = kv
		eng, err := engine.New(engine.Config{
			ID:                 id,
			Peers:              ids,
			Persistence:        persist.NewMemPersistence(),
			Log:                logstore.Open(persist.NewMemPersistence()),
			StateMachine:       kv,
			Client:             handle,
			ElectionTimeoutMin: testElectionMin,
			ElectionTimeoutMax: testElectionMax,
			HeartbeatInterval:  testHeartbeat,
			RPCTimeout:         testRPCTimeout,
		})
		require.NoError(t, err)
		require.NoError(t, eng.Start(handle))
		engines[i] = eng
	}

	return engines, ids, kvs, net
}

func stopAll(engines []*engine.Engine) {
	for _, e := range engines {
		_ = e.Stop()
	}
}

// waitForLeader polls until exactly one engine in engines reports IsLeader,
// driving CheckElectionTimeout on every poll so the test doesn't depend on
// the background timer's real-time jitter to make progress quickly.
func waitForLeader(t *testing.T, engines []*engine.Engine, timeout time.Duration) *engine.Engine {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, e := range engines {
			e.CheckElectionTimeout()
		}
		for _, e := range engines {
			if e.IsLeader() {
				return e
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no leader elected within timeout")
	return nil
}

// S1: a single-node cluster elects itself leader and serves reads/writes.
func TestSingleNodeBecomesLeaderAndServes(t *testing.T) {
	engines, _, kvs, _ := buildCluster(t, 1)
	defer stopAll(engines)

	leader := waitForLeader(t, engines, 2*time.Second)
	require.Equal(t, raftpb.Term(1), leader.CurrentTerm())

	cmd := statemachine.EncodeCommand(statemachine.ActionSet, "x", "1")
	res := leader.SubmitCommand(cmd, time.Second).Get()
	require.NoError(t, res.Err)

	v, ok := kvs[0].Get("x")
	require.True(t, ok)
	require.Equal(t, "1", v)

	state := leader.ReadState(time.Second).Get()
	require.NoError(t, state.Err)
	scratch := statemachine.NewKVStore()
	require.NoError(t, scratch.Restore(state.Value, 0))
	v, ok = scratch.Get("x")
	require.True(t, ok)
	require.Equal(t, "1", v)
}

// S2: a three-node cluster elects exactly one leader and replicates a
// command to every node's state machine in the same order.
func TestThreeNodeClusterElectsAndReplicates(t *testing.T) {
	engines, _, kvs, _ := buildCluster(t, 3)
	defer stopAll(engines)

	leader := waitForLeader(t, engines, 2*time.Second)

	leaderCount := 0
	for _, e := range engines {
		if e.IsLeader() {
			leaderCount++
		}
	}
	require.Equal(t, 1, leaderCount)

	cmd := statemachine.EncodeCommand(statemachine.ActionSet, "k", "v")
	res := leader.SubmitCommand(cmd, time.Second).Get()
	require.NoError(t, res.Err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, kv := range kvs {
			if v, ok := kv.Get("k"); !ok || v != "v" {
				allCaughtUp = false
				break
			}
		}
		if allCaughtUp {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("command did not replicate to all nodes in time")
}

// S6: growing a single-node cluster to two nodes through joint consensus
// commits both the joint and Cnew entries and brings the new node's state
// machine up to date. The new set {1,2} needs both members to agree, so this
// can only commit if the leader tracks next_index/match_index for a member it
// did not already know about and the new node adopts the configuration
// carried by a replicated EntryConfigChange entry -- without either fix this
// hangs until SubmitConfigurationChange's timeout.
func TestReconfigurationAddsNodeAndCatchesUp(t *testing.T) {
	engines, ids, kvs, net := buildCluster(t, 1)
	defer stopAll(engines)

	leader := waitForLeader(t, engines, 2*time.Second)

	before := statemachine.EncodeCommand(statemachine.ActionSet, "before", "1")
	res := leader.SubmitCommand(before, time.Second).Get()
	require.NoError(t, res.Err)

	newID := raftpb.NodeID("2")
	allIDs := append(append([]raftpb.NodeID(nil), ids...), newID)

	handle := net.AddNode(newID)
	for _, id := range ids {
		net.AddEdge(id, newID, time.Millisecond, 1.0)
		net.AddEdge(newID, id, time.Millisecond, 1.0)
	}

	newKV := statemachine.NewKVStore()
	newEngine, err := engine.New(engine.Config{
		ID:                 newID,
		Peers:              allIDs,
		Persistence:        persist.NewMemPersistence(),
		Log:                logstore.Open(persist.NewMemPersistence()),
		StateMachine:       newKV,
		Client:             handle,
		ElectionTimeoutMin: testElectionMin,
		ElectionTimeoutMax: testElectionMax,
		HeartbeatInterval:  testHeartbeat,
		RPCTimeout:         testRPCTimeout,
	})
	require.NoError(t, err)
	require.NoError(t, newEngine.Start(handle))
	defer newEngine.Stop()

	kvs = append(kvs, newKV)

	cfgRes := leader.SubmitConfigurationChange(allIDs, nil, 2*time.Second).Get()
	require.NoError(t, cfgRes.Err)
	require.Equal(t, raftpb.ConfigStable, cfgRes.Value.Kind)
	require.ElementsMatch(t, allIDs, cfgRes.Value.Nodes)

	after := statemachine.EncodeCommand(statemachine.ActionSet, "after", "2")
	res2 := leader.SubmitCommand(after, time.Second).Get()
	require.NoError(t, res2.Err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, kv := range kvs {
			if v, ok := kv.Get("after"); !ok || v != "2" {
				allCaughtUp = false
				break
			}
		}
		if allCaughtUp {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("new node did not catch up after reconfiguration")
}
