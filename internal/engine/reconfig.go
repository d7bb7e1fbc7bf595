package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/membership"
	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc"
)

var (
	errReconfigInProgress = raft.NewError(raft.ErrKindLogInconsistency, "engine: a reconfiguration is already in progress")
)

// SubmitConfigurationChange drives the joint-consensus reconfiguration of
// spec §4.6.9: append Cold,new (switching the majority rule the instant it is
// appended, not once committed), replicate it to commit under the joint rule,
// then append and commit Cnew, stepping this node down if it is no longer a
// member of the new configuration.
// addrs supplies transport addresses for any node in newMembers the leader's
// rpc.Client does not already know how to dial; entries for already-known
// nodes are ignored. May be nil when newMembers only removes nodes.
func (e *Engine) SubmitConfigurationChange(newMembers []raftpb.NodeID, addrs map[raftpb.NodeID]string, timeout time.Duration) *raft.Completion[raftpb.ClusterConfig] {
	p, out := raft.NewPromise[raftpb.ClusterConfig]()

	e.mu.Lock()
	if e.role != Leader {
		hint := e.leaderHint
		e.mu.Unlock()
		_ = p.SetError(raft.Wrap(raft.ErrKindNotLeader, ErrNotLeaderWithHint(hint)))
		return out
	}
	current := e.members.Current()
	if current.Kind == raftpb.ConfigJoint {
		e.mu.Unlock()
		_ = p.SetError(errReconfigInProgress)
		return out
	}

	joint := membership.BeginJoint(current, newMembers)
	jointPayload, merr := raftpb.Marshal(raftpb.ConfigToPB(joint))
	if merr != nil {
		e.mu.Unlock()
		_ = p.SetError(merr)
		return out
	}
	jointIndex, aerr := e.appendEntryLocked(raftpb.EntryConfigChange, jointPayload)
	if aerr != nil {
		e.mu.Unlock()
		_ = p.SetError(aerr)
		return out
	}
	e.members.Set(joint)
	e.trackNewMembersLocked(joint, addrs)
	jointPromise, jointDone := raft.NewPromise[[]byte]()
	e.pending[jointIndex] = &pendingCommand{promise: jointPromise}
	term := e.currentTerm
	e.mu.Unlock()

	log.Info().Uint64("index", uint64(jointIndex)).Msg("engine: appended joint configuration entry")
	e.replicateToAll()

	go e.finishReconfiguration(jointDone, joint, term, timeout, p, out)

	return out
}

func (e *Engine) finishReconfiguration(jointDone *raft.Completion[[]byte], joint raftpb.ClusterConfig, term raftpb.Term, timeout time.Duration, p *raft.Promise[raftpb.ClusterConfig], out *raft.Completion[raftpb.ClusterConfig]) {
	if res := raft.Within(jointDone, timeout).Get(); res.Err != nil {
		_ = p.SetError(res.Err)
		return
	}

	e.mu.Lock()
	if e.role != Leader || e.currentTerm != term {
		e.mu.Unlock()
		_ = p.SetError(raft.Wrap(raft.ErrKindLeadershipLost, ErrStaleTerm))
		return
	}
	stable := membership.CommitJoint(joint)
	stablePayload, merr := raftpb.Marshal(raftpb.ConfigToPB(stable))
	if merr != nil {
		e.mu.Unlock()
		_ = p.SetError(merr)
		return
	}
	stableIndex, aerr := e.appendEntryLocked(raftpb.EntryConfigChange, stablePayload)
	if aerr != nil {
		e.mu.Unlock()
		_ = p.SetError(aerr)
		return
	}
	e.members.Set(stable)
	e.trackNewMembersLocked(stable, nil)
	stablePromise, stableDone := raft.NewPromise[[]byte]()
	e.pending[stableIndex] = &pendingCommand{promise: stablePromise}
	selfID := e.cfg.ID
	e.mu.Unlock()

	log.Info().Uint64("index", uint64(stableIndex)).Msg("engine: appended stable configuration entry")
	e.replicateToAll()

	if res := raft.Within(stableDone, timeout).Get(); res.Err != nil {
		_ = p.SetError(res.Err)
		return
	}

	e.mu.Lock()
	stillMember := membership.IsMember(selfID, stable)
	if e.role == Leader && !stillMember {
		log.Info().Str("id", string(selfID)).Msg("engine: stepping down, no longer a member of the committed configuration")
		e.role = Follower
	}
	e.mu.Unlock()

	_ = p.SetValue(stable)
}

// trackNewMembersLocked extends nextIndex/matchIndex to cover every member of
// cfg this leader was not already replicating to, and registers any address
// addrs supplies for them. Without this, a node introduced by a joint or
// Cnew configuration never receives AppendEntries (replicateToAll only walks
// nextIndex) and can never count toward that configuration's half of the
// joint majority, so the reconfiguration entry would never commit.
func (e *Engine) trackNewMembersLocked(cfg raftpb.ClusterConfig, addrs map[raftpb.NodeID]string) {
	lastIndex, _ := e.cfg.Log.LastIndex()
	for _, id := range membership.Nodes(cfg) {
		if id == e.cfg.ID {
			continue
		}
		if _, tracked := e.nextIndex[id]; !tracked {
			e.nextIndex[id] = lastIndex + 1
			e.matchIndex[id] = 0
		}
	}
	if registrar, ok := e.cfg.Client.(rpc.AddressRegistrar); ok {
		for id, addr := range addrs {
			registrar.SetAddress(id, addr)
		}
	}
}

// decodeConfigEntry unmarshals an EntryConfigChange entry's payload back into
// a ClusterConfig. Its caller is the follower's AppendEntries path, which
// adopts the configuration carried by a replicated entry; the leader already
// called members.Set on append and does not decode its own entries.
func decodeConfigEntry(payload []byte) (raftpb.ClusterConfig, bool) {
	var pb raftpb.ClusterConfigPB
	if err := raftpb.Unmarshal(payload, &pb); err != nil {
		log.Error().Err(err).Msg("engine: failed to decode configuration change entry")
		return raftpb.ClusterConfig{}, false
	}
	return raftpb.ConfigFromPB(&pb), true
}
