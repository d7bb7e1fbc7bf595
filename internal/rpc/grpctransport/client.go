package grpctransport

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/btmorr/raftkit/internal/raft"
	"github.com/btmorr/raftkit/internal/raftpb"
)

// Client implements rpc.Client over gRPC, generalizing the teacher's
// ForeignNode: where ForeignNode dials a single fixed peer and blocks the
// caller on grpc.Invoke, Client keeps a pool of lazily-dialed connections
// keyed by NodeID and launches every RPC on its own goroutine, fulfilling a
// raft.Promise so the engine's own goroutine is never blocked on the network
// (spec §5 concurrency model).
type Client struct {
	mu    sync.Mutex
	conns map[raftpb.NodeID]*grpc.ClientConn
	addrs map[raftpb.NodeID]string
}

// NewClient builds a Client that dials peer addresses as given by addrs.
// Connections are established lazily and cached, mirroring the teacher's
// dial-once-per-peer lifecycle.
func NewClient(addrs map[raftpb.NodeID]string) *Client {
	cp := make(map[raftpb.NodeID]string, len(addrs))
	for k, v := range addrs {
		cp[k] = v
	}
	return &Client{
		conns: make(map[raftpb.NodeID]*grpc.ClientConn),
		addrs: cp,
	}
}

// SetAddress registers or updates the dial target for a node, used when
// membership changes add a peer that wasn't known at construction time.
func (c *Client) SetAddress(id raftpb.NodeID, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.conns[id]; ok {
		old.Close()
		delete(c.conns, id)
	}
	c.addrs[id] = addr
}

func (c *Client) connFor(id raftpb.NodeID) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[id]; ok {
		return conn, nil
	}
	addr, ok := c.addrs[id]
	if !ok {
		return nil, raft.NewError(raft.ErrKindNetworkUnreachable, "grpctransport: no address for node "+string(id))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(legacyProtoCodec{})),
	)
	if err != nil {
		return nil, raft.Wrap(raft.ErrKindNetworkUnreachable, err)
	}
	c.conns[id] = conn
	return conn, nil
}

func (c *Client) SendRequestVote(target raftpb.NodeID, req *raftpb.RequestVoteRequestPB, timeout time.Duration) *raft.Completion[*raftpb.RequestVoteResponsePB] {
	p, comp := raft.NewPromise[*raftpb.RequestVoteResponsePB]()
	go func() {
		conn, err := c.connFor(target)
		if err != nil {
			p.SetError(err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out := new(raftpb.RequestVoteResponsePB)
		if err := conn.Invoke(ctx, "/"+serviceName+"/RequestVote", req, out); err != nil {
			log.Debug().Err(err).Str("target", string(target)).Msg("RequestVote RPC failed")
			p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, err))
			return
		}
		p.SetValue(out)
	}()
	return comp
}

func (c *Client) SendAppendEntries(target raftpb.NodeID, req *raftpb.AppendEntriesRequestPB, timeout time.Duration) *raft.Completion[*raftpb.AppendEntriesResponsePB] {
	p, comp := raft.NewPromise[*raftpb.AppendEntriesResponsePB]()
	go func() {
		conn, err := c.connFor(target)
		if err != nil {
			p.SetError(err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out := new(raftpb.AppendEntriesResponsePB)
		if err := conn.Invoke(ctx, "/"+serviceName+"/AppendEntries", req, out); err != nil {
			log.Debug().Err(err).Str("target", string(target)).Msg("AppendEntries RPC failed")
			p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, err))
			return
		}
		p.SetValue(out)
	}()
	return comp
}

func (c *Client) SendInstallSnapshot(target raftpb.NodeID, req *raftpb.InstallSnapshotRequestPB, timeout time.Duration) *raft.Completion[*raftpb.InstallSnapshotResponsePB] {
	p, comp := raft.NewPromise[*raftpb.InstallSnapshotResponsePB]()
	go func() {
		conn, err := c.connFor(target)
		if err != nil {
			p.SetError(err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out := new(raftpb.InstallSnapshotResponsePB)
		if err := conn.Invoke(ctx, "/"+serviceName+"/InstallSnapshot", req, out); err != nil {
			log.Debug().Err(err).Str("target", string(target)).Msg("InstallSnapshot RPC failed")
			p.SetError(raft.Wrap(raft.ErrKindNetworkUnreachable, err))
			return
		}
		p.SetValue(out)
	}()
	return comp
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, id)
	}
	return firstErr
}
