package raft

import "sync"

// Executor is the host-provided scheduler that Completions post continuations
// onto (see Via). The engine's own background work (replication fan-out,
// read timeouts, reconfiguration) runs on plain goroutines, not through an
// Executor.
type Executor interface {
	// Add schedules work for execution. It returns ErrExecutorGone if the
	// executor has been closed.
	Add(work func()) error
}

// InlineExecutor runs work synchronously on the calling goroutine. It is the
// default executor for a Completion that has no Via call applied, matching
// folly's InlineExecutor semantics referenced by the spec.
type InlineExecutor struct{}

func (InlineExecutor) Add(work func()) error {
	work()
	return nil
}

// GoroutineExecutor spawns one goroutine per submitted unit of work, mirroring
// the unbounded `go func(){ ... }()` style the teacher uses throughout
// DoElection and SendAppend.
type GoroutineExecutor struct {
	mu     sync.Mutex
	closed bool
}

func NewGoroutineExecutor() *GoroutineExecutor {
	return &GoroutineExecutor{}
}

func (e *GoroutineExecutor) Add(work func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorGone
	}
	e.mu.Unlock()
	go work()
	return nil
}

// KeepAliveToken returns a release function the caller must invoke once it no
// longer needs the executor to stay alive. GoroutineExecutor has no pooled
// resources to keep alive, so the token is a no-op, but the method exists so
// callers coded against the Executor contract in §6 compile unchanged against
// a future pooled implementation.
func (e *GoroutineExecutor) KeepAliveToken() func() {
	return func() {}
}

// Close marks the executor as no longer accepting work. Already-scheduled
// goroutines run to completion.
func (e *GoroutineExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}
