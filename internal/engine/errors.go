package engine

import (
	"errors"
	"fmt"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// Sentinel errors for conditions the engine itself detects, following the
// teacher's package-scope var-block convention (internal/node/node.go:
// ErrNotLeaderRecv, ErrAppendFailed, ...). Errors that cross a Completion
// boundary are instead tagged with a raft.ErrorKind (see submit.go, read.go)
// so a caller can branch on the taxonomy from spec §7 without depending on
// this package's sentinels directly.
var (
	ErrAlreadyRunning   = errors.New("engine: already running")
	ErrNotRunning       = errors.New("engine: not running")
	ErrNoSuchPeer       = errors.New("engine: unknown peer")
	ErrStaleTerm        = errors.New("engine: stale term, dropping response")
	ErrNotCandidate     = errors.New("engine: not a candidate")
	ErrReadQuorumFailed = errors.New("engine: read-index quorum not confirmed")
)

// ErrNotLeaderWithHint builds the NotLeader(leader_hint?) error of spec §7,
// carrying whichever node this engine last believed to be leader, if any.
func ErrNotLeaderWithHint(hint raftpb.NodeID) error {
	if hint == "" {
		return errors.New("engine: not leader")
	}
	return fmt.Errorf("engine: not leader, hint=%s", hint)
}
