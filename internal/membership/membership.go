// Package membership implements the cluster-membership state machine (spec
// §4.4): the active ClusterConfiguration and the majority test every other
// component (elections, commit advancement, read-index, the majority
// collector) consults. It is factored out of the engine the way the teacher
// never needed to, because the teacher has no reconfiguration support; its
// inline `(numNodes/2)+1` arithmetic in DoElection/SendAppend/commitRecords is
// generalized here into a joint-aware Majority.
package membership

import "github.com/btmorr/raftkit/internal/raftpb"

// Manager owns the single active ClusterConfiguration for a node.
type Manager struct {
	cfg raftpb.ClusterConfig
}

// NewManager constructs a Manager starting from a stable configuration.
func NewManager(nodes []raftpb.NodeID) *Manager {
	return &Manager{cfg: raftpb.Stable(nodes)}
}

// NewManagerFromConfig restores a Manager from a persisted configuration
// (e.g. the configuration embedded in the latest snapshot, or replayed from
// ConfigChange log entries).
func NewManagerFromConfig(cfg raftpb.ClusterConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Current returns the active configuration.
func (m *Manager) Current() raftpb.ClusterConfig { return m.cfg }

// Set installs cfg as the active configuration. The engine calls this the
// moment a joint-configuration entry is appended to the log — majority checks
// switch immediately upon append, not on commit (spec §4.4, §4.6.9).
func (m *Manager) Set(cfg raftpb.ClusterConfig) { m.cfg = cfg }

// IsMember reports whether n participates in cfg (in either half of a joint
// configuration).
func IsMember(n raftpb.NodeID, cfg raftpb.ClusterConfig) bool {
	switch cfg.Kind {
	case raftpb.ConfigStable:
		return contains(cfg.Nodes, n)
	case raftpb.ConfigJoint:
		return contains(cfg.Old, n) || contains(cfg.New, n)
	default:
		return false
	}
}

func contains(set []raftpb.NodeID, n raftpb.NodeID) bool {
	for _, x := range set {
		if x == n {
			return true
		}
	}
	return false
}

// Majority reports whether votes constitutes a majority of cfg. For a Stable
// configuration this is the usual |votes ∩ nodes| ≥ ⌊|nodes|/2⌋+1; for a
// Joint configuration both halves must independently clear that bar.
func Majority(cfg raftpb.ClusterConfig, votes map[raftpb.NodeID]bool) bool {
	switch cfg.Kind {
	case raftpb.ConfigStable:
		return majorityOf(cfg.Nodes, votes)
	case raftpb.ConfigJoint:
		return majorityOf(cfg.Old, votes) && majorityOf(cfg.New, votes)
	default:
		return false
	}
}

func majorityOf(set []raftpb.NodeID, votes map[raftpb.NodeID]bool) bool {
	need := len(set)/2 + 1
	count := 0
	for _, n := range set {
		if votes[n] {
			count++
		}
	}
	return count >= need
}

// BeginJoint produces the Cold,new joint configuration entry the leader
// appends to start a reconfiguration (spec §4.6.9 step 1).
func BeginJoint(current raftpb.ClusterConfig, newMembers []raftpb.NodeID) raftpb.ClusterConfig {
	var old []raftpb.NodeID
	switch current.Kind {
	case raftpb.ConfigStable:
		old = current.Nodes
	case raftpb.ConfigJoint:
		// a reconfiguration started while already joint finishes the current
		// New set before a fresh one begins; the caller is expected to have
		// committed Cnew first (engine enforces this serialization).
		old = current.New
	}
	return raftpb.Joint(old, newMembers)
}

// CommitJoint produces the Cnew stable configuration entry appended once the
// joint entry has committed (spec §4.6.9 step 3).
func CommitJoint(joint raftpb.ClusterConfig) raftpb.ClusterConfig {
	return raftpb.Stable(joint.New)
}

// Nodes returns every node referenced by cfg, deduplicated, regardless of
// phase — used by the engine to know which peers to send RPCs to during a
// joint phase (both old and new members keep participating until Cnew
// commits).
func Nodes(cfg raftpb.ClusterConfig) []raftpb.NodeID {
	switch cfg.Kind {
	case raftpb.ConfigStable:
		return append([]raftpb.NodeID(nil), cfg.Nodes...)
	case raftpb.ConfigJoint:
		seen := map[raftpb.NodeID]bool{}
		var out []raftpb.NodeID
		for _, n := range cfg.Old {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
		for _, n := range cfg.New {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}
