package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/membership"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// HandleAppendEntries answers an inbound AppendEntries RPC, implementing the
// follower logic of spec §4.6.3 step by step. It directly generalizes the
// teacher's HandleAppend + reconcileLogs + applyCommittedLogs, replacing the
// teacher's direct `n.Store.Set`/`n.Store.Delete` calls with nothing at all
// here -- applying to the state machine is exclusively the apply loop's job
// (apply.go), never the RPC handler's.
func (e *Engine) HandleAppendEntries(req *raftpb.AppendEntriesRequestPB) *raftpb.AppendEntriesResponsePB {
	e.mu.Lock()
	defer e.mu.Unlock()

	reqTerm := raftpb.Term(req.Term)

	// Step 1: stale leader.
	if reqTerm < e.currentTerm {
		return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
	}

	// Step 2: adopt term, persist, reset timer.
	if reqTerm > e.currentTerm {
		e.adoptTermLocked(reqTerm)
	} else if e.role != Follower {
		// A valid leader of our own term exists; Candidate/Leader steps down.
		e.role = Follower
	}
	e.leaderHint = raftpb.NodeID(req.LeaderId)
	e.resetElectionDeadlineLocked()

	prevIndex := raftpb.LogIndex(req.PrevLogIndex)
	prevTerm := raftpb.Term(req.PrevLogTerm)

	// Step 3: consistency check.
	actualTerm, present, err := e.cfg.Log.TermAt(prevIndex)
	if err != nil {
		log.Error().Err(err).Msg("engine: TermAt failed during AppendEntries consistency check")
		return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
	}
	if !present || actualTerm != prevTerm {
		resp := &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
		if idx, term, ok := e.conflictHintLocked(prevIndex); ok {
			resp.HasConflict = true
			resp.ConflictIndex = int64(idx)
			resp.ConflictTerm = int64(term)
		}
		return resp
	}

	// Step 4: reconcile and append.
	entries := raftpb.EntriesFromPB(req.Entries)
	for _, e2 := range entries {
		existingTerm, has, terr := e.cfg.Log.TermAt(e2.Index)
		if terr != nil {
			log.Error().Err(terr).Msg("engine: TermAt failed while reconciling AppendEntries")
			return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
		}
		if has && existingTerm == e2.Term {
			continue // already present, idempotent retry
		}
		if has {
			// I4 only forbids a leader from truncating its own log; a
			// follower resolving a conflict is exactly the legal case.
			if terr := e.cfg.Log.Truncate(e2.Index); terr != nil {
				log.Error().Err(terr).Msg("engine: truncate failed while reconciling AppendEntries")
				return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
			}
		}
		if terr := e.cfg.Log.Append(e2); terr != nil {
			log.Error().Err(terr).Msg("engine: append failed while reconciling AppendEntries")
			return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: false}
		}
		// Spec §4.4/§4.6.9: a configuration takes effect on append, not on
		// commit, at every node holding the entry -- not just the leader that
		// proposed it. Otherwise a follower (or a node that later wins an
		// election) keeps computing quorums against a stale configuration.
		if e2.Kind == raftpb.EntryConfigChange {
			if cfg, ok := decodeConfigEntry(e2.Payload); ok {
				e.members.Set(cfg)
			}
		}
	}

	lastNewIndex := prevIndex
	if len(entries) > 0 {
		lastNewIndex = entries[len(entries)-1].Index
	}

	// Step 5: advance commit_index.
	leaderCommit := raftpb.LogIndex(req.LeaderCommit)
	if leaderCommit > e.commitIndex {
		if leaderCommit < lastNewIndex {
			e.commitIndex = leaderCommit
		} else {
			e.commitIndex = lastNewIndex
		}
		e.signalApply()
	}

	return &raftpb.AppendEntriesResponsePB{Term: int64(e.currentTerm), Success: true, MatchIndex: int64(lastNewIndex)}
}

// conflictHintLocked builds the (conflict_index, conflict_term) hint of spec
// §4.6.3 step 3: conflict_term is the term of whatever entry currently
// occupies prevIndex (or the zero value if the follower's log is simply too
// short), and conflict_index is the first index of that term in the
// follower's own log.
func (e *Engine) conflictHintLocked(prevIndex raftpb.LogIndex) (raftpb.LogIndex, raftpb.Term, bool) {
	lastIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		return 0, 0, false
	}
	if prevIndex > lastIndex {
		return lastIndex + 1, 0, true
	}
	entry, err := e.cfg.Log.Get(prevIndex)
	if err != nil {
		// compacted away behind a snapshot: no useful hint, the leader will
		// fall back to the InstallSnapshot path on its next attempt.
		return 0, 0, false
	}
	term := entry.Term
	idx := prevIndex
	for idx > 0 {
		t, ok, terr := e.cfg.Log.TermAt(idx - 1)
		if terr != nil || !ok || t != term {
			break
		}
		idx--
	}
	return idx, term, true
}

// replicateToAll fans an AppendEntries (or InstallSnapshot, if the follower
// has fallen behind the log's retained prefix) out to every peer, mirroring
// the teacher's SendAppend but per-peer instead of fixed to the whole
// cluster, since next_index differs per follower.
func (e *Engine) replicateToAll() {
	e.mu.Lock()
	if e.role != Leader {
		e.mu.Unlock()
		return
	}
	peers := make([]raftpb.NodeID, 0, len(e.nextIndex))
	for p := range e.nextIndex {
		peers = append(peers, p)
	}
	if len(peers) == 0 {
		// No follower acks will arrive, so the leader's own log is the quorum.
		e.advanceCommitIndexLocked()
	}
	e.mu.Unlock()

	e.cfg.Metrics.HeartbeatSent()
	for _, p := range peers {
		p := p
		go e.replicateToPeer(p)
	}
}

// replicateToPeer sends one round of AppendEntries (or a snapshot chunk
// stream) to a single follower and applies its response.
func (e *Engine) replicateToPeer(peer raftpb.NodeID) {
	e.mu.Lock()
	if e.role != Leader {
		e.mu.Unlock()
		return
	}
	term := e.currentTerm
	next := e.nextIndex[peer]

	if snap, ok := e.needsSnapshotLocked(next); ok {
		client := e.cfg.Client
		id := e.cfg.ID
		timeout := e.cfg.RPCTimeout
		e.mu.Unlock()
		e.sendSnapshotToPeer(peer, snap, client, id, timeout, term)
		return
	}

	prevIndex := next - 1
	prevTerm, ok, err := e.cfg.Log.TermAt(prevIndex)
	if err != nil || !ok {
		// The entry backing prevIndex is gone (compacted); the next
		// heartbeat will re-evaluate and likely take the snapshot path.
		e.mu.Unlock()
		return
	}

	lastIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		e.mu.Unlock()
		return
	}
	var entries []raftpb.Entry
	if lastIndex >= next {
		entries, err = e.cfg.Log.Range(next, lastIndex)
		if err != nil {
			e.mu.Unlock()
			return
		}
	}
	leaderCommit := e.commitIndex
	client := e.cfg.Client
	id := e.cfg.ID
	timeout := e.cfg.RPCTimeout
	e.mu.Unlock()

	req := &raftpb.AppendEntriesRequestPB{
		Term:         int64(term),
		LeaderId:     string(id),
		PrevLogIndex: int64(prevIndex),
		PrevLogTerm:  int64(prevTerm),
		Entries:      raftpb.EntriesToPB(entries),
		LeaderCommit: int64(leaderCommit),
	}

	res := client.SendAppendEntries(peer, req, timeout).Get()
	if res.Err != nil {
		log.Debug().Err(res.Err).Str("peer", string(peer)).Msg("engine: AppendEntries RPC failed")
		return
	}
	e.handleAppendResponse(peer, term, res.Value)
}

func (e *Engine) handleAppendResponse(peer raftpb.NodeID, sentTerm raftpb.Term, resp *raftpb.AppendEntriesResponsePB) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.role != Leader || e.currentTerm != sentTerm {
		return // stale response from a round this node is no longer leading
	}

	respTerm := raftpb.Term(resp.Term)
	if respTerm > e.currentTerm {
		e.adoptTermLocked(respTerm)
		return
	}

	if resp.Success {
		matched := raftpb.LogIndex(resp.MatchIndex)
		if matched > e.matchIndex[peer] {
			e.matchIndex[peer] = matched
		}
		e.nextIndex[peer] = matched + 1
		e.advanceCommitIndexLocked()
		return
	}

	// Leader response handling on failure (spec §4.6.3): use the
	// conflict-index/conflict-term hint to skip straight past an entire
	// mismatched term instead of backing off one index at a time the way
	// the teacher's requestAppend does (`n.otherNodes[host].MatchIndex--`).
	if resp.HasConflict {
		if resp.ConflictTerm != 0 {
			if idx, found := e.lastIndexForTermLocked(raftpb.Term(resp.ConflictTerm)); found {
				e.nextIndex[peer] = idx + 1
				return
			}
		}
		e.nextIndex[peer] = raftpb.LogIndex(resp.ConflictIndex)
		return
	}
	if e.nextIndex[peer] > 1 {
		e.nextIndex[peer]--
	}
}

// lastIndexForTermLocked finds the highest index in this node's log whose
// term equals term, used to fast-forward a follower's next_index past an
// entire conflicting term at once.
func (e *Engine) lastIndexForTermLocked(term raftpb.Term) (raftpb.LogIndex, bool) {
	lastIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		return 0, false
	}
	for i := lastIndex; i > 0; i-- {
		t, ok, terr := e.cfg.Log.TermAt(i)
		if terr != nil || !ok {
			return 0, false
		}
		if t == term {
			return i, true
		}
		if t < term {
			break
		}
	}
	return 0, false
}

// advanceCommitIndexLocked implements spec §4.6.4: find the highest N >
// commit_index with a (joint-aware) majority of match_index >= N whose
// log[N].term equals the leader's current term (§4.6.5's NoOp-enabled
// indirect-commit rule -- prior-term entries are never committed directly).
func (e *Engine) advanceCommitIndexLocked() {
	lastIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		return
	}
	cfg := e.members.Current()
	for n := lastIndex; n > e.commitIndex; n-- {
		term, ok, err := e.cfg.Log.TermAt(n)
		if err != nil || !ok {
			continue
		}
		if term != e.currentTerm {
			// terms are non-decreasing with index; nothing lower can match
			// the current term either.
			break
		}
		votes := map[raftpb.NodeID]bool{e.cfg.ID: true}
		for peer, m := range e.matchIndex {
			if m >= n {
				votes[peer] = true
			}
		}
		if membership.Majority(cfg, votes) {
			e.commitIndex = n
			e.cfg.Metrics.CommitAdvanced(uint64(n))
			e.signalApply()
			break
		}
	}
}

// needsSnapshotLocked reports whether next has fallen behind the log's
// retained prefix, meaning the leader must switch to InstallSnapshot (spec
// §4.6.6: "When next_index[f] <= first-retained log index").
func (e *Engine) needsSnapshotLocked(next raftpb.LogIndex) (raftpb.Snapshot, bool) {
	snap, ok, err := e.cfg.Log.Snapshot()
	if err != nil || !ok {
		return raftpb.Snapshot{}, false
	}
	if next <= snap.LastIncludedIndex {
		return snap, true
	}
	return raftpb.Snapshot{}, false
}
