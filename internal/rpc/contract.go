// Package rpc declares the abstract RPC Boundary (spec §4.8, §6): the
// engine talks to peers only through these two interfaces, never through a
// concrete transport. internal/rpc/grpctransport and internal/netsim are
// the two implementations this module ships.
package rpc

import (
	"time"

	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// Client is the sending side: the engine calls these to reach a peer, each
// returning a Completion typed by the RPC's response so the engine never
// blocks its own mutex on the network.
type Client interface {
	SendRequestVote(target raftpb.NodeID, req *raftpb.RequestVoteRequestPB, timeout time.Duration) *raft.Completion[*raftpb.RequestVoteResponsePB]
	SendAppendEntries(target raftpb.NodeID, req *raftpb.AppendEntriesRequestPB, timeout time.Duration) *raft.Completion[*raftpb.AppendEntriesResponsePB]
	SendInstallSnapshot(target raftpb.NodeID, req *raftpb.InstallSnapshotRequestPB, timeout time.Duration) *raft.Completion[*raftpb.InstallSnapshotResponsePB]
}

// AddressRegistrar is an optional capability a Client may implement:
// registering or updating a peer's dial target after construction, needed
// when a reconfiguration (spec §4.6.9) introduces a node the transport never
// had an address for. grpctransport.Client implements it; netsim.Node does
// not, since its edges are wired upfront by the test/caller instead.
type AddressRegistrar interface {
	SetAddress(id raftpb.NodeID, addr string)
}

// RequestVoteHandler answers an inbound RequestVote RPC.
type RequestVoteHandler func(req *raftpb.RequestVoteRequestPB) *raftpb.RequestVoteResponsePB

// AppendEntriesHandler answers an inbound AppendEntries RPC.
type AppendEntriesHandler func(req *raftpb.AppendEntriesRequestPB) *raftpb.AppendEntriesResponsePB

// InstallSnapshotHandler answers an inbound InstallSnapshot RPC.
type InstallSnapshotHandler func(req *raftpb.InstallSnapshotRequestPB) *raftpb.InstallSnapshotResponsePB

// Server is the receiving side. Per the spec's Open Questions (§9), only one
// handler may be registered per RPC kind; registering a second one is
// rejected with ErrHandlerAlreadyRegistered rather than silently replacing
// the first.
type Server interface {
	RegisterRequestVoteHandler(fn RequestVoteHandler) error
	RegisterAppendEntriesHandler(fn AppendEntriesHandler) error
	RegisterInstallSnapshotHandler(fn InstallSnapshotHandler) error

	Start() error
	Stop() error
	IsRunning() bool
}
