package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/membership"
	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// startElection generalizes the teacher's DoElection: increment term, vote
// for self, persist, broadcast RequestVote, and become leader on majority
// grant (spec §4.6.1, §4.6.2). Unlike DoElection's WaitGroup-based fan-out
// over a fixed numNodes, this uses the generic Majority Collector so the
// quorum rule stays joint-aware during a reconfiguration (spec §4.4, §8 P8).
func (e *Engine) startElection() {
	e.mu.Lock()
	if e.role == Leader {
		e.mu.Unlock()
		return
	}
	e.role = Candidate
	newTerm := e.currentTerm + 1
	e.currentTerm = newTerm
	e.votedFor = e.cfg.ID
	e.hasVoted = true
	if err := e.cfg.Persistence.SaveCurrentTerm(newTerm); err != nil {
		log.Error().Err(err).Msg("engine: failed to persist new term for election")
		e.mu.Unlock()
		return
	}
	if err := e.cfg.Persistence.SaveVotedFor(e.cfg.ID); err != nil {
		log.Error().Err(err).Msg("engine: failed to persist self-vote")
		e.mu.Unlock()
		return
	}
	e.resetElectionDeadlineLocked()

	cfg := e.members.Current()
	lastIndex, _ := e.cfg.Log.LastIndex()
	lastTerm, _ := e.cfg.Log.LastTerm()
	id := e.cfg.ID
	client := e.cfg.Client
	timeout := e.cfg.RPCTimeout
	e.mu.Unlock()

	e.cfg.Metrics.ElectionStarted()
	log.Info().Str("id", string(id)).Uint64("term", uint64(newTerm)).Msg("engine: becoming candidate")

	peers := peersExcludingSelf(membership.Nodes(cfg), id)
	req := &raftpb.RequestVoteRequestPB{
		Term:         int64(newTerm),
		CandidateId:  string(id),
		LastLogIndex: int64(lastIndex),
		LastLogTerm:  int64(lastTerm),
	}

	futures := make(map[raftpb.NodeID]*raft.Completion[*raftpb.RequestVoteResponsePB], len(peers))
	for _, p := range peers {
		futures[p] = client.SendRequestVote(p, req, timeout)
	}

	done := raft.Collect(futures, func(results map[raftpb.NodeID]raft.Result[*raftpb.RequestVoteResponsePB]) bool {
		tally := map[raftpb.NodeID]bool{id: true}
		for k, r := range results {
			if r.Ok() && r.Value.VoteGranted {
				tally[k] = true
			}
		}
		return membership.Majority(cfg, tally)
	}, timeout*4)

	res := done.Get()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.role != Candidate || e.currentTerm != newTerm {
		// stepped down, adopted a newer term, or already became leader while
		// this election round was in flight.
		return
	}

	tally := map[raftpb.NodeID]bool{id: true}
	maxTerm := newTerm
	if res.Ok() {
		for k, r := range res.Value {
			if !r.Ok() {
				continue
			}
			if r.Value.VoteGranted {
				tally[k] = true
			}
			if raftpb.Term(r.Value.Term) > maxTerm {
				maxTerm = raftpb.Term(r.Value.Term)
			}
		}
	}

	if maxTerm > newTerm {
		e.adoptTermLocked(maxTerm)
		return
	}
	if !membership.Majority(cfg, tally) {
		log.Info().Uint64("term", uint64(newTerm)).Msg("engine: election failed, awaiting next timeout")
		return
	}

	e.becomeLeaderLocked()
}

// becomeLeaderLocked performs the Candidate -> Leader transition (spec
// §4.6.1): initialise next_index/match_index for every peer, then append a
// NoOp entry in the new term before committing anything else (§4.6.2,
// §4.6.5 -- the I6 fix for Figure 8).
func (e *Engine) becomeLeaderLocked() {
	e.role = Leader
	e.leaderHint = e.cfg.ID
	log.Info().Uint64("term", uint64(e.currentTerm)).Str("id", string(e.cfg.ID)).Msg("engine: election succeeded, becoming leader")
	e.cfg.Metrics.ElectionWon()

	lastIndex, _ := e.cfg.Log.LastIndex()
	peers := membership.Nodes(e.members.Current())
	e.nextIndex = make(map[raftpb.NodeID]raftpb.LogIndex, len(peers))
	e.matchIndex = make(map[raftpb.NodeID]raftpb.LogIndex, len(peers))
	for _, p := range peers {
		if p == e.cfg.ID {
			continue
		}
		e.nextIndex[p] = lastIndex + 1
		e.matchIndex[p] = 0
	}
	e.pending = make(map[raftpb.LogIndex]*pendingCommand)
	e.pendingReads = make(map[raftpb.LogIndex][]*raft.Promise[[]byte])

	if _, err := e.appendEntryLocked(raftpb.EntryNoOp, nil); err != nil {
		log.Error().Err(err).Msg("engine: failed to append leadership NoOp entry")
	}
}

// HandleRequestVote answers an inbound RequestVote RPC, implementing the
// grant rule of spec §4.6.2, directly generalizing the teacher's HandleVote.
// Unlike HandleVote, there is no AllowVote grace-period suppression: the
// spec's grant rule (§4.6.2) names only term, vote, and log up-to-dateness as
// conditions, so the teacher's anti-disruption grace window is dropped here
// (pre-vote is explicitly out of scope per spec §9 Open Questions).
func (e *Engine) HandleRequestVote(req *raftpb.RequestVoteRequestPB) *raftpb.RequestVoteResponsePB {
	e.mu.Lock()
	defer e.mu.Unlock()

	reqTerm := raftpb.Term(req.Term)
	if reqTerm > e.currentTerm {
		e.adoptTermLocked(reqTerm)
	}

	grant := false
	if reqTerm >= e.currentTerm {
		candidate := raftpb.NodeID(req.CandidateId)
		alreadyVotedOther := e.hasVoted && e.votedFor != candidate
		upToDate := e.candidateLogUpToDateLocked(raftpb.LogIndex(req.LastLogIndex), raftpb.Term(req.LastLogTerm))
		if !alreadyVotedOther && upToDate {
			if err := e.cfg.Persistence.SaveVotedFor(candidate); err != nil {
				log.Error().Err(err).Msg("engine: failed to persist vote grant")
			} else {
				e.votedFor = candidate
				e.hasVoted = true
				grant = true
				e.resetElectionDeadlineLocked()
			}
		}
	}

	log.Debug().
		Str("candidate", req.CandidateId).
		Uint64("reqTerm", uint64(req.Term)).
		Bool("granted", grant).
		Msg("engine: RequestVote")

	return &raftpb.RequestVoteResponsePB{Term: int64(e.currentTerm), VoteGranted: grant}
}

// candidateLogUpToDateLocked implements the lexicographic comparison of spec
// §4.6.2(c): the candidate's (last_log_term, last_log_index) must be at
// least as up-to-date as the receiver's.
func (e *Engine) candidateLogUpToDateLocked(cIndex raftpb.LogIndex, cTerm raftpb.Term) bool {
	myIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		return false
	}
	myTerm, err := e.cfg.Log.LastTerm()
	if err != nil {
		return false
	}
	if cTerm != myTerm {
		return cTerm > myTerm
	}
	return cIndex >= myIndex
}
