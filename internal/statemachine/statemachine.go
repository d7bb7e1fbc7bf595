// Package statemachine defines the application state-machine contract (spec
// §4.9) and a reference implementation backed by
// github.com/hashicorp/go-immutable-radix, directly adapted from the
// teacher's internal/database package (imported by node.go as
// `db "github.com/btmorr/leifdb/internal/database"` but not itself present in
// the retrieval pack — this file reconstructs it against the same library,
// as KVStore, whose Apply handles both set and delete commands and whose Get
// reads a key).
package statemachine

import "errors"

// ErrBadCommand is returned by Apply for a single malformed entry; it fails
// only that entry's Completion, the commit still counts (spec §7).
var ErrBadCommand = errors.New("statemachine: bad command")

// ErrFatal signals corruption severe enough to halt applies entirely (spec
// §4.9, §7).
var ErrFatal = errors.New("statemachine: fatal")

// StateMachine is the application contract the engine drives from its apply
// loop (spec §4.9). Apply must be deterministic and side-effect-free on
// persistent storage — the log is the system's source of truth, not
// whatever the state machine keeps in memory.
type StateMachine interface {
	// Apply applies cmd (the payload of a committed Command entry) at index
	// and returns the command's result bytes. Returning ErrBadCommand fails
	// only this entry's completion; any other non-nil, non-ErrFatal error is
	// treated the same way. Returning ErrFatal halts the apply loop.
	Apply(index uint64, cmd []byte) ([]byte, error)

	// GetState captures enough state to restore from, used both for
	// snapshotting and for serving a linearizable read-index read (spec
	// §4.6.8).
	GetState() ([]byte, error)

	// Restore resets the state machine from state and sets last_applied to
	// lastAppliedIndex (the inverse of GetState).
	Restore(state []byte, lastAppliedIndex uint64) error
}
