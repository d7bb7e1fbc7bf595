package grpctransport

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/btmorr/raftkit/internal/raftpb"
	"github.com/btmorr/raftkit/internal/rpc"
)

func init() {
	encoding.RegisterCodec(legacyProtoCodec{})
}

// Server implements rpc.Server over gRPC, directly generalizing the
// teacher's raftserver package: `StartRaftServer` constructs a *grpc.Server
// and registers one fixed handler; this Server instead lets the Node Facade
// register its own handlers at construction time, consistent with the
// trait-style collaborator boundary in spec §4.8.
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	grpcSrv  *grpc.Server
	running  bool

	onRequestVote     rpc.RequestVoteHandler
	onAppendEntries   rpc.AppendEntriesHandler
	onInstallSnapshot rpc.InstallSnapshotHandler
}

// NewServer constructs a Server bound to lis. Start must be called before any
// RPC is served.
func NewServer(lis net.Listener) *Server {
	return &Server{listener: lis}
}

func (s *Server) RegisterRequestVoteHandler(fn rpc.RequestVoteHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onRequestVote != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	s.onRequestVote = fn
	return nil
}

func (s *Server) RegisterAppendEntriesHandler(fn rpc.AppendEntriesHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onAppendEntries != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	s.onAppendEntries = fn
	return nil
}

func (s *Server) RegisterInstallSnapshotHandler(fn rpc.InstallSnapshotHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onInstallSnapshot != nil {
		return rpc.ErrHandlerAlreadyRegistered
	}
	s.onInstallSnapshot = fn
	return nil
}

// RequestVote satisfies rawServer, dispatching to whatever handler the Node
// Facade registered.
func (s *Server) RequestVote(ctx context.Context, req *raftpb.RequestVoteRequestPB) (*raftpb.RequestVoteResponsePB, error) {
	log.Debug().Msgf("Received vote request: %+v", req)
	s.mu.Lock()
	h := s.onRequestVote
	s.mu.Unlock()
	if h == nil {
		return &raftpb.RequestVoteResponsePB{}, nil
	}
	return h(req), nil
}

func (s *Server) AppendEntries(ctx context.Context, req *raftpb.AppendEntriesRequestPB) (*raftpb.AppendEntriesResponsePB, error) {
	log.Debug().Msgf("Received append request: %+v", req)
	s.mu.Lock()
	h := s.onAppendEntries
	s.mu.Unlock()
	if h == nil {
		return &raftpb.AppendEntriesResponsePB{}, nil
	}
	return h(req), nil
}

func (s *Server) InstallSnapshot(ctx context.Context, req *raftpb.InstallSnapshotRequestPB) (*raftpb.InstallSnapshotResponsePB, error) {
	log.Debug().Msgf("Received install-snapshot chunk: offset=%d done=%t", req.Offset, req.Done)
	s.mu.Lock()
	h := s.onInstallSnapshot
	s.mu.Unlock()
	if h == nil {
		return &raftpb.InstallSnapshotResponsePB{}, nil
	}
	return h(req), nil
}

// Start constructs the underlying *grpc.Server and begins serving in the
// background, mirroring StartRaftServer's `go func(){ s.Serve(lis) }()`.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	srv := grpc.NewServer(grpc.ForceServerCodec(legacyProtoCodec{}))
	srv.RegisterService(&serviceDesc, s)
	s.grpcSrv = srv
	s.running = true
	go func() {
		if err := srv.Serve(s.listener); err != nil {
			log.Error().Err(err).Msg("gRPC server stopped serving")
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.grpcSrv.GracefulStop()
	s.running = false
	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
