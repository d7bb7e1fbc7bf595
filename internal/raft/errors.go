package raft

import "errors"

// ErrorKind tags the failure carried by a Completion, mirroring the taxonomy in
// the protocol specification's error handling section.
type ErrorKind string

const (
	ErrKindNotLeader         ErrorKind = "not_leader"
	ErrKindLeadershipLost    ErrorKind = "leadership_lost"
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindElectionFailed    ErrorKind = "election_failed"
	ErrKindLogInconsistency  ErrorKind = "log_inconsistency"
	ErrKindBadCommand        ErrorKind = "bad_command"
	ErrKindPersistenceCorrupt ErrorKind = "persistence_corrupt"
	ErrKindNetworkUnreachable ErrorKind = "network_unreachable"
	ErrKindDisconnected      ErrorKind = "disconnected"
	ErrKindAlreadyFulfilled  ErrorKind = "already_fulfilled"
	ErrKindExecutorGone      ErrorKind = "executor_gone"
	ErrKindCancelled         ErrorKind = "cancelled"
)

// TaggedError carries an ErrorKind alongside the underlying error, so that a
// Completion's failure can be converted losslessly between the tag and a plain
// Go error.
type TaggedError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *TaggedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *TaggedError) Unwrap() error { return e.Err }

// NewError builds a TaggedError carrying the given kind and message.
func NewError(kind ErrorKind, msg string) *TaggedError {
	return &TaggedError{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an existing error without losing it.
func Wrap(kind ErrorKind, err error) *TaggedError {
	if err == nil {
		return nil
	}
	return &TaggedError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var te *TaggedError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

var (
	ErrAlreadyFulfilled = NewError(ErrKindAlreadyFulfilled, "completion already fulfilled")
	ErrExecutorGone     = NewError(ErrKindExecutorGone, "executor is no longer accepting work")
	ErrCancelled        = NewError(ErrKindCancelled, "completion was cancelled")
	ErrTimeout          = NewError(ErrKindTimeout, "completion timed out")
)
