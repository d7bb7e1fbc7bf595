package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/statemachine"
)

// applyLoop is the background task of spec §4.6.7: while last_applied <
// commit_index, apply log[last_applied+1] to the state machine and advance.
// It wakes on signalApply rather than polling, but also ticks periodically as
// a backstop in case a signal was dropped by the non-blocking send.
func (e *Engine) applyLoop() {
	defer e.wg.Done()
	backstop := time.NewTicker(20 * time.Millisecond)
	defer backstop.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-e.applyCh:
			e.applyReady()
		case <-backstop.C:
			e.applyReady()
		}
	}
}

// applyReady drains every committed-but-unapplied entry currently available,
// then releases any read-index waiters last_applied has now caught up to.
func (e *Engine) applyReady() {
	for {
		e.mu.Lock()
		if e.lastApplied >= e.commitIndex {
			e.mu.Unlock()
			return
		}
		index := e.lastApplied + 1
		entry, err := e.cfg.Log.Get(index)
		if err != nil {
			// compacted away by a racing InstallSnapshot: the snapshot already
			// advanced last_applied past this index, so just resync to it.
			if snap, ok, serr := e.cfg.Log.Snapshot(); serr == nil && ok && snap.LastIncludedIndex >= index {
				e.lastApplied = snap.LastIncludedIndex
				e.releaseReadWaitersLocked()
				e.mu.Unlock()
				continue
			}
			log.Error().Err(err).Uint64("index", uint64(index)).Msg("engine: apply loop could not load committed entry")
			e.mu.Unlock()
			return
		}
		pc := e.pending[index]
		delete(e.pending, index)
		e.mu.Unlock()

		start := time.Now()
		var result []byte
		var applyErr error
		if entry.Kind == raftpb.EntryCommand {
			result, applyErr = e.cfg.StateMachine.Apply(uint64(entry.Index), entry.Payload)
		}
		e.cfg.Metrics.ApplyLatency(time.Since(start))

		if applyErr == statemachine.ErrFatal {
			log.Error().Err(applyErr).Uint64("index", uint64(entry.Index)).Msg("engine: fatal state machine error, halting applies")
			if pc != nil {
				_ = pc.promise.SetError(applyErr)
			}
			return
		}

		e.mu.Lock()
		e.lastApplied = index
		e.releaseReadWaitersLocked()
		e.mu.Unlock()

		if pc != nil {
			if applyErr != nil {
				_ = pc.promise.SetError(applyErr)
			} else {
				_ = pc.promise.SetValue(result)
			}
		}
	}
}

// releaseReadWaitersLocked fulfils every pending read-index Completion whose
// read_index is now covered by last_applied (spec §4.6.8 step 4), each served
// with a fresh state machine snapshot. Must be called with mu held.
func (e *Engine) releaseReadWaitersLocked() {
	for idx, waiters := range e.pendingReads {
		if idx > e.lastApplied {
			continue
		}
		state, err := e.cfg.StateMachine.GetState()
		for _, p := range waiters {
			if err != nil {
				_ = p.SetError(err)
			} else {
				_ = p.SetValue(state)
			}
		}
		delete(e.pendingReads, idx)
	}
}
