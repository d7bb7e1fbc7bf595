package rpc

import "errors"

// ErrHandlerAlreadyRegistered is returned by Server.Register*Handler when a
// handler for that RPC kind has already been installed (spec §9 Open
// Questions: the source appears to allow only one handler per RPC kind; this
// module confirms that reading and rejects duplicates rather than silently
// overwriting).
var ErrHandlerAlreadyRegistered = errors.New("rpc: handler already registered for this RPC kind")

// ErrServerNotRunning is returned when an operation requires a started
// server.
var ErrServerNotRunning = errors.New("rpc: server is not running")
