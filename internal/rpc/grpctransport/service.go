package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// rawServer is the low-level, grpc-shaped interface the hand-written
// ServiceDesc below dispatches onto. It exists so the generated-looking
// handler functions don't need to know about this module's Completion-based
// rpc.Server contract — *Server (server.go) implements it by calling whatever
// handler was registered.
type rawServer interface {
	RequestVote(ctx context.Context, req *raftpb.RequestVoteRequestPB) (*raftpb.RequestVoteResponsePB, error)
	AppendEntries(ctx context.Context, req *raftpb.AppendEntriesRequestPB) (*raftpb.AppendEntriesResponsePB, error)
	InstallSnapshot(ctx context.Context, req *raftpb.InstallSnapshotRequestPB) (*raftpb.InstallSnapshotResponsePB, error)
}

const serviceName = "raftkit.Raft"

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.RequestVoteRequestPB)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rawServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RequestVote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rawServer).RequestVote(ctx, req.(*raftpb.RequestVoteRequestPB))
	}
	return interceptor(ctx, in, info, handler)
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.AppendEntriesRequestPB)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rawServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rawServer).AppendEntries(ctx, req.(*raftpb.AppendEntriesRequestPB))
	}
	return interceptor(ctx, in, info, handler)
}

func installSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.InstallSnapshotRequestPB)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rawServer).InstallSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/InstallSnapshot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rawServer).InstallSnapshot(ctx, req.(*raftpb.InstallSnapshotRequestPB))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a raft.proto this retrieval pack doesn't include; the
// teacher's own `raft.RegisterRaftServer` is generated from exactly such a
// file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*rawServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
		{MethodName: "InstallSnapshot", Handler: installSnapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raftkit.proto",
}
