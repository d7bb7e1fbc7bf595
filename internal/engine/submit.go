package engine

import (
	"time"

	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// SubmitCommand appends payload as a new Command entry and returns a
// Completion that settles once the entry has been committed and applied to
// the state machine (spec §6 SubmitCommand). A non-leader fails fast with
// NotLeader and a best-effort hint, matching the teacher's immediate rejection
// in RequestAppend rather than queuing or forwarding the write.
func (e *Engine) SubmitCommand(payload []byte, timeout time.Duration) *raft.Completion[[]byte] {
	out := raft.Within(e.submitCommand(payload), timeout)
	return out
}

func (e *Engine) submitCommand(payload []byte) *raft.Completion[[]byte] {
	e.mu.Lock()
	if e.role != Leader {
		hint := e.leaderHint
		e.mu.Unlock()
		p, out := raft.NewPromise[[]byte]()
		_ = p.SetError(raft.Wrap(raft.ErrKindNotLeader, ErrNotLeaderWithHint(hint)))
		return out
	}

	index, err := e.appendEntryLocked(raftpb.EntryCommand, payload)
	if err != nil {
		e.mu.Unlock()
		p, out := raft.NewPromise[[]byte]()
		_ = p.SetError(err)
		return out
	}

	promise, completion := raft.NewPromise[[]byte]()
	e.pending[index] = &pendingCommand{promise: promise}
	e.mu.Unlock()

	e.replicateToAll()
	return completion
}
