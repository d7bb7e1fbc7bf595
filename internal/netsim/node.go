package netsim

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc"
)

// Node is one simulated participant's connection handle: it implements both
// rpc.Client (sending as this node) and rpc.Server (receiving as this node),
// the same pair of contracts internal/rpc/grpctransport implements for real.
type Node struct {
	id     raftpb.NodeID
	net    *Network
	handle uuid.UUID

	mu                sync.Mutex
	running           bool
	onRequestVote     rpc.RequestVoteHandler
	onAppendEntries   rpc.AppendEntriesHandler
	onInstallSnapshot rpc.InstallSnapshotHandler
}

var _ rpc.Client = (*Node)(nil)
var _ rpc.Server = (*Node)(nil)

func (n *Node) RegisterRequestVoteHandler(fn rpc.RequestVoteHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onRequestVote != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	n.onRequestVote = fn
	return nil
}

func (n *Node) RegisterAppendEntriesHandler(fn rpc.AppendEntriesHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onAppendEntries != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	n.onAppendEntries = fn
	return nil
}

func (n *Node) RegisterInstallSnapshotHandler(fn rpc.InstallSnapshotHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onInstallSnapshot != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	n.onInstallSnapshot = fn
	return nil
}

func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = true
	return nil
}

func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = false
	return nil
}

func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Known limitation: each Send* call below schedules its own independent
// time.AfterFunc keyed only by that edge's latency, with no per-(source,
// dest) queue enforcing FIFO delivery. Two RPCs sent back-to-back on the same
// edge can therefore arrive out of send order if a later one is scheduled
// with a shorter effective delay. This does not threaten safety -- next_index
// bookkeeping (internal/engine/replication.go) tolerates and corrects
// out-of-order or duplicate AppendEntries responses -- but a test relying on
// strict send-order delivery over a single simulated edge cannot assume it.

// SendRequestVote routes req to target across the simulated network, honoring
// the target edge's latency and reliability.
func (n *Node) SendRequestVote(target raftpb.NodeID, req *raftpb.RequestVoteRequestPB, timeout time.Duration) *raft.Completion[*raftpb.RequestVoteResponsePB] {
	p, out := raft.NewPromise[*raftpb.RequestVoteResponsePB]()
	t, edge, ok := n.net.route(n.id, target)
	if !ok {
		_ = p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, rpc.ErrServerNotRunning))
		return out
	}
	if timeout > 0 && edge.Latency >= timeout {
		_ = p.SetError(raft.ErrTimeout)
		return out
	}
	time.AfterFunc(edge.Latency, func() {
		t.mu.Lock()
		handler := t.onRequestVote
		running := t.running
		t.mu.Unlock()
		if !running || handler == nil {
			_ = p.SetError(raft.Wrap(raft.ErrKindDisconnected, rpc.ErrServerNotRunning))
			return
		}
		_ = p.SetValue(handler(req))
	})
	return out
}

// SendAppendEntries routes req to target across the simulated network.
func (n *Node) SendAppendEntries(target raftpb.NodeID, req *raftpb.AppendEntriesRequestPB, timeout time.Duration) *raft.Completion[*raftpb.AppendEntriesResponsePB] {
	p, out := raft.NewPromise[*raftpb.AppendEntriesResponsePB]()
	t, edge, ok := n.net.route(n.id, target)
	if !ok {
		_ = p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, rpc.ErrServerNotRunning))
		return out
	}
	if timeout > 0 && edge.Latency >= timeout {
		_ = p.SetError(raft.ErrTimeout)
		return out
	}
	time.AfterFunc(edge.Latency, func() {
		t.mu.Lock()
		handler := t.onAppendEntries
		running := t.running
		t.mu.Unlock()
		if !running || handler == nil {
			_ = p.SetError(raft.Wrap(raft.ErrKindDisconnected, rpc.ErrServerNotRunning))
			return
		}
		_ = p.SetValue(handler(req))
	})
	return out
}

// SendInstallSnapshot routes req to target across the simulated network.
func (n *Node) SendInstallSnapshot(target raftpb.NodeID, req *raftpb.InstallSnapshotRequestPB, timeout time.Duration) *raft.Completion[*raftpb.InstallSnapshotResponsePB] {
	p, out := raft.NewPromise[*raftpb.InstallSnapshotResponsePB]()
	t, edge, ok := n.net.route(n.id, target)
	if !ok {
		_ = p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, rpc.ErrServerNotRunning))
		return out
	}
	if timeout > 0 && edge.Latency >= timeout {
		_ = p.SetError(raft.ErrTimeout)
		return out
	}
	time.AfterFunc(edge.Latency, func() {
		t.mu.Lock()
		handler := t.onInstallSnapshot
		running := t.running
		t.mu.Unlock()
		if !running || handler == nil {
			_ = p.SetError(raft.Wrap(raft.ErrKindDisconnected, rpc.ErrServerNotRunning))
			return
		}
		_ = p.SetValue(handler(req))
	})
	return out
}
