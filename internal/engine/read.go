package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/membership"
	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// ReadState implements the read-index protocol of spec §4.6.8: a leader
// records its current commit_index as read_index, confirms leadership with a
// round of heartbeats in the current term, then waits for last_applied to
// catch up before returning a state machine snapshot. This is what lets reads
// stay linearizable without going through the log.
func (e *Engine) ReadState(timeout time.Duration) *raft.Completion[[]byte] {
	p, out := raft.NewPromise[[]byte]()

	e.mu.Lock()
	if e.role != Leader {
		hint := e.leaderHint
		e.mu.Unlock()
		_ = p.SetError(raft.Wrap(raft.ErrKindNotLeader, ErrNotLeaderWithHint(hint)))
		return out
	}
	readIndex := e.commitIndex
	term := e.currentTerm
	cfg := e.members.Current()
	id := e.cfg.ID
	client := e.cfg.Client
	rpcTimeout := e.cfg.RPCTimeout
	peers := peersExcludingSelf(membership.Nodes(cfg), id)
	e.mu.Unlock()

	if len(peers) == 0 {
		// single-node cluster: this node alone is already a majority.
		return e.awaitAppliedAndServe(readIndex, term, timeout, p, out)
	}

	lastIndex, _ := e.cfg.Log.LastIndex()
	futures := make(map[raftpb.NodeID]*raft.Completion[*raftpb.AppendEntriesResponsePB], len(peers))
	for _, peer := range peers {
		prevIndex := lastIndex
		prevTerm, _, _ := e.cfg.Log.TermAt(prevIndex)
		req := &raftpb.AppendEntriesRequestPB{
			Term:         int64(term),
			LeaderId:     string(id),
			PrevLogIndex: int64(prevIndex),
			PrevLogTerm:  int64(prevTerm),
			LeaderCommit: int64(readIndex),
		}
		futures[peer] = client.SendAppendEntries(peer, req, rpcTimeout)
	}

	done := raft.Collect(futures, func(results map[raftpb.NodeID]raft.Result[*raftpb.AppendEntriesResponsePB]) bool {
		tally := map[raftpb.NodeID]bool{id: true}
		for k, r := range results {
			if r.Ok() && r.Value.Success && raftpb.Term(r.Value.Term) == term {
				tally[k] = true
			}
		}
		return membership.Majority(cfg, tally)
	}, timeout)

	go func() {
		res := done.Get()

		e.mu.Lock()
		if e.role != Leader || e.currentTerm != term {
			e.mu.Unlock()
			_ = p.SetError(raft.Wrap(raft.ErrKindLeadershipLost, ErrStaleTerm))
			return
		}
		maxTerm := term
		tally := map[raftpb.NodeID]bool{id: true}
		if res.Ok() {
			for k, r := range res.Value {
				if !r.Ok() {
					continue
				}
				if raftpb.Term(r.Value.Term) > maxTerm {
					maxTerm = raftpb.Term(r.Value.Term)
				}
				if r.Value.Success && raftpb.Term(r.Value.Term) == term {
					tally[k] = true
				}
			}
		}
		if maxTerm > term {
			e.adoptTermLocked(maxTerm)
			e.mu.Unlock()
			_ = p.SetError(raft.Wrap(raft.ErrKindLeadershipLost, ErrStaleTerm))
			return
		}
		if !membership.Majority(cfg, tally) {
			e.mu.Unlock()
			_ = p.SetError(raft.Wrap(raft.ErrKindElectionFailed, ErrReadQuorumFailed))
			return
		}
		e.mu.Unlock()

		e.awaitAppliedAndServe(readIndex, term, timeout, p, out)
	}()

	return out
}

// awaitAppliedAndServe fulfils p with a state machine snapshot once
// last_applied >= readIndex: immediately if that already holds, otherwise by
// registering p in the pendingReads table the apply loop drains. It does not
// block. Safe to call synchronously for the single-node fast path.
func (e *Engine) awaitAppliedAndServe(readIndex raftpb.LogIndex, term raftpb.Term, timeout time.Duration, p *raft.Promise[[]byte], out *raft.Completion[[]byte]) *raft.Completion[[]byte] {
	e.mu.Lock()
	if e.role != Leader || e.currentTerm != term {
		e.mu.Unlock()
		_ = p.SetError(raft.Wrap(raft.ErrKindLeadershipLost, ErrStaleTerm))
		return out
	}
	if e.lastApplied >= readIndex {
		state, err := e.cfg.StateMachine.GetState()
		e.mu.Unlock()
		if err != nil {
			_ = p.SetError(err)
		} else {
			_ = p.SetValue(state)
		}
		return out
	}
	if e.pendingReads == nil {
		e.pendingReads = make(map[raftpb.LogIndex][]*raft.Promise[[]byte])
	}
	e.pendingReads[readIndex] = append(e.pendingReads[readIndex], p)
	e.mu.Unlock()

	// last_applied may never reach readIndex (e.g. the leader loses quorum
	// or is deposed before the apply loop catches up), so this waiter must
	// be failed and pruned from pendingReads on expiry rather than left to
	// settle whenever (if ever) a later applyReady happens to cross
	// readIndex -- otherwise Get() on the returned Completion blocks forever.
	go func() {
		if out.Wait(timeout) {
			return
		}
		log.Debug().Uint64("readIndex", uint64(readIndex)).Msg("engine: read-index wait timed out")
		e.mu.Lock()
		waiters := e.pendingReads[readIndex]
		for i, w := range waiters {
			if w == p {
				e.pendingReads[readIndex] = append(waiters[:i], waiters[i+1:]...)
				break
			}
		}
		if len(e.pendingReads[readIndex]) == 0 {
			delete(e.pendingReads, readIndex)
		}
		e.mu.Unlock()
		_ = p.SetError(raft.ErrTimeout)
	}()

	return out
}
