package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc"
)

// sendSnapshotToPeer streams snap to peer in fixed-size chunks (spec
// §4.6.6): the first chunk has offset 0, each subsequent chunk's offset is
// the cumulative byte count already sent, and the final chunk sets done.
// Called synchronously by replicateToPeer, on the per-peer goroutine that
// replicateToAll started, and never holds the engine lock across the network
// round trips.
func (e *Engine) sendSnapshotToPeer(peer raftpb.NodeID, snap raftpb.Snapshot, client rpc.Client, id raftpb.NodeID, timeout time.Duration, term raftpb.Term) {
	data := snap.StateBytes
	chunkSize := e.cfg.SnapshotChunkSize
	offset := 0

	for {
		end := offset + chunkSize
		done := false
		if end >= len(data) {
			end = len(data)
			done = true
		}

		req := &raftpb.InstallSnapshotRequestPB{
			Term:              int64(term),
			LeaderId:          string(id),
			LastIncludedIndex: int64(snap.LastIncludedIndex),
			LastIncludedTerm:  int64(snap.LastIncludedTerm),
			Offset:            int64(offset),
			Data:              append([]byte(nil), data[offset:end]...),
			Done:              done,
		}

		res := client.SendInstallSnapshot(peer, req, timeout).Get()
		if res.Err != nil {
			log.Debug().Err(res.Err).Str("peer", string(peer)).Msg("engine: InstallSnapshot chunk failed")
			return
		}

		respTerm := raftpb.Term(res.Value.Term)
		e.mu.Lock()
		if respTerm > e.currentTerm {
			e.adoptTermLocked(respTerm)
			e.mu.Unlock()
			return
		}
		if e.role != Leader || e.currentTerm != term {
			e.mu.Unlock()
			return
		}
		if done {
			if snap.LastIncludedIndex > e.matchIndex[peer] {
				e.matchIndex[peer] = snap.LastIncludedIndex
			}
			e.nextIndex[peer] = snap.LastIncludedIndex + 1
			e.advanceCommitIndexLocked()
		}
		e.mu.Unlock()

		if done {
			return
		}
		offset = end
	}
}

// HandleInstallSnapshot answers an inbound InstallSnapshot chunk, following
// spec §4.6.6 exactly: the first chunk (offset 0) opens a scratch buffer;
// each following chunk must carry the same metadata and an offset equal to
// bytes received so far, or the partial transfer is discarded; on done, the
// snapshot is finalized and the state machine reset from it.
func (e *Engine) HandleInstallSnapshot(req *raftpb.InstallSnapshotRequestPB) *raftpb.InstallSnapshotResponsePB {
	e.mu.Lock()
	defer e.mu.Unlock()

	reqTerm := raftpb.Term(req.Term)
	if reqTerm < e.currentTerm {
		return &raftpb.InstallSnapshotResponsePB{Term: int64(e.currentTerm)}
	}
	if reqTerm > e.currentTerm {
		e.adoptTermLocked(reqTerm)
	}
	e.leaderHint = raftpb.NodeID(req.LeaderId)
	e.resetElectionDeadlineLocked()

	lastIncludedIndex := raftpb.LogIndex(req.LastIncludedIndex)
	lastIncludedTerm := raftpb.Term(req.LastIncludedTerm)

	if req.Offset == 0 {
		e.inbound = &inboundSnapshot{
			term:              reqTerm,
			leaderID:          raftpb.NodeID(req.LeaderId),
			lastIncludedIndex: lastIncludedIndex,
			lastIncludedTerm:  lastIncludedTerm,
		}
	}

	if e.inbound == nil ||
		e.inbound.term != reqTerm ||
		e.inbound.leaderID != raftpb.NodeID(req.LeaderId) ||
		e.inbound.lastIncludedIndex != lastIncludedIndex ||
		e.inbound.lastIncludedTerm != lastIncludedTerm ||
		int64(len(e.inbound.buf)) != req.Offset {
		// metadata mismatch or out-of-order chunk: discard the partial
		// transfer and wait for the leader to restart from offset 0.
		log.Warn().Str("leader", req.LeaderId).Msg("engine: discarding partial snapshot transfer, chunk metadata mismatch")
		e.inbound = nil
		return &raftpb.InstallSnapshotResponsePB{Term: int64(e.currentTerm)}
	}

	e.inbound.buf = append(e.inbound.buf, req.Data...)

	if !req.Done {
		return &raftpb.InstallSnapshotResponsePB{Term: int64(e.currentTerm)}
	}

	snap := raftpb.Snapshot{
		LastIncludedIndex: lastIncludedIndex,
		LastIncludedTerm:  lastIncludedTerm,
		Configuration:     e.members.Current(),
		StateBytes:        e.inbound.buf,
	}
	e.inbound = nil

	if err := e.finalizeSnapshotLocked(snap); err != nil {
		log.Error().Err(err).Msg("engine: failed to finalize installed snapshot")
	}

	return &raftpb.InstallSnapshotResponsePB{Term: int64(e.currentTerm)}
}

// finalizeSnapshotLocked installs snap as the latest snapshot, retaining or
// discarding the log suffix per spec §4.6.6: "if existing log contains an
// entry with (last_included_index, last_included_term), retain the suffix;
// otherwise discard the log entirely. Reset state machine from snapshot."
func (e *Engine) finalizeSnapshotLocked(snap raftpb.Snapshot) error {
	term, ok, err := e.cfg.Log.TermAt(snap.LastIncludedIndex)
	if err != nil {
		return err
	}
	if !ok || term != snap.LastIncludedTerm {
		if err := e.cfg.Log.Truncate(0); err != nil {
			return err
		}
	}

	if err := e.cfg.Log.InstallSnapshot(snap); err != nil {
		return err
	}
	if err := e.cfg.Log.Compact(snap.LastIncludedIndex + 1); err != nil {
		return err
	}

	if err := e.cfg.StateMachine.Restore(snap.StateBytes, uint64(snap.LastIncludedIndex)); err != nil {
		return err
	}

	if snap.LastIncludedIndex > e.commitIndex {
		e.commitIndex = snap.LastIncludedIndex
	}
	e.lastApplied = snap.LastIncludedIndex
	return nil
}
