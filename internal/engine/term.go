package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// adoptTermLocked adopts a higher term observed in an RPC request or
// response, clearing the vote and stepping down to Follower (spec §4.6.1:
// "Higher term observed -> Follower: adopt term, clear voted_for, persist").
// Must be called with mu held.
func (e *Engine) adoptTermLocked(term raftpb.Term) {
	if term <= e.currentTerm {
		return
	}
	e.currentTerm = term
	e.hasVoted = false
	e.votedFor = ""
	e.role = Follower
	if err := e.cfg.Persistence.SaveCurrentTerm(term); err != nil {
		log.Error().Err(err).Msg("engine: failed to persist adopted term")
	}
	if err := e.cfg.Persistence.ClearVotedFor(); err != nil {
		log.Error().Err(err).Msg("engine: failed to clear vote on term adoption")
	}
}

// appendEntryLocked appends a new entry authored by this node (leader) at
// the next available index, persisting it before returning (I7). Must be
// called with mu held and only while e.role == Leader (I4: a leader never
// truncates its own log, only appends).
func (e *Engine) appendEntryLocked(kind raftpb.EntryKind, payload []byte) (raftpb.LogIndex, error) {
	lastIndex, err := e.cfg.Log.LastIndex()
	if err != nil {
		return 0, err
	}
	entry := raftpb.Entry{
		Term:    e.currentTerm,
		Index:   lastIndex + 1,
		Kind:    kind,
		Payload: payload,
	}
	if err := e.cfg.Log.Append(entry); err != nil {
		return 0, err
	}
	return entry.Index, nil
}

func peersExcludingSelf(all []raftpb.NodeID, self raftpb.NodeID) []raftpb.NodeID {
	out := make([]raftpb.NodeID, 0, len(all))
	for _, n := range all {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}
