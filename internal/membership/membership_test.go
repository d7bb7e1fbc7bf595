package membership

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btmorr/raftkit/internal/raftpb"
)

func TestStableMajority(t *testing.T) {
	cfg := raftpb.Stable([]raftpb.NodeID{"1", "2", "3"})
	require.True(t, Majority(cfg, map[raftpb.NodeID]bool{"1": true, "2": true}))
	require.False(t, Majority(cfg, map[raftpb.NodeID]bool{"1": true}))
}

func TestJointMajorityNeedsBoth(t *testing.T) {
	cfg := raftpb.Joint([]raftpb.NodeID{"1", "2", "3"}, []raftpb.NodeID{"3", "4", "5"})
	// majority of old only
	require.False(t, Majority(cfg, map[raftpb.NodeID]bool{"1": true, "2": true}))
	// majority of both (3 counts for both)
	require.True(t, Majority(cfg, map[raftpb.NodeID]bool{"1": true, "2": true, "3": true, "4": true}))
}

func TestBeginAndCommitJoint(t *testing.T) {
	stable := raftpb.Stable([]raftpb.NodeID{"1", "2", "3"})
	joint := BeginJoint(stable, []raftpb.NodeID{"3", "4", "5"})
	require.Equal(t, raftpb.ConfigJoint, joint.Kind)
	require.ElementsMatch(t, []raftpb.NodeID{"1", "2", "3"}, joint.Old)
	require.ElementsMatch(t, []raftpb.NodeID{"3", "4", "5"}, joint.New)

	final := CommitJoint(joint)
	require.Equal(t, raftpb.ConfigStable, final.Kind)
	require.ElementsMatch(t, []raftpb.NodeID{"3", "4", "5"}, final.Nodes)
}

func TestNodesDedupesJoint(t *testing.T) {
	joint := raftpb.Joint([]raftpb.NodeID{"1", "2", "3"}, []raftpb.NodeID{"3", "4", "5"})
	require.ElementsMatch(t, []raftpb.NodeID{"1", "2", "3", "4", "5"}, Nodes(joint))
}

func TestIsMember(t *testing.T) {
	joint := raftpb.Joint([]raftpb.NodeID{"1", "2"}, []raftpb.NodeID{"2", "3"})
	require.True(t, IsMember("1", joint))
	require.True(t, IsMember("3", joint))
	require.False(t, IsMember("9", joint))
}
