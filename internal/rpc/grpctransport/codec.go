package grpctransport

import (
	"github.com/btmorr/raftkit/internal/raftpb"
)

// legacyProtoCodec adapts grpc-go's encoding.Codec interface onto
// raftpb.Marshal/Unmarshal, which in turn call
// github.com/golang/protobuf/proto — the same legacy-but-supported proto API
// the teacher uses directly (`proto.Marshal(termRecord)` in node.go). gRPC's
// built-in "proto" codec requires the newer protoreflect-based
// google.golang.org/protobuf/proto.Message interface, which the
// hand-referenced raft.* message types (and this module's raftpb
// equivalents) do not implement; registering this codec under its own name
// and forcing both client and server onto it keeps the transport working
// against the teacher's actual message shape instead of silently requiring a
// rewrite of every message type.
type legacyProtoCodec struct{}

func (legacyProtoCodec) Name() string { return "raftproto" }

func (legacyProtoCodec) Marshal(v interface{}) ([]byte, error) {
	pm, ok := v.(protoMessage)
	if !ok {
		return nil, errNotProtoMessage
	}
	return raftpb.Marshal(pm)
}

func (legacyProtoCodec) Unmarshal(data []byte, v interface{}) error {
	pm, ok := v.(protoMessage)
	if !ok {
		return errNotProtoMessage
	}
	return raftpb.Unmarshal(data, pm)
}

// protoMessage is the minimal legacy proto.Message shape every raftpb wire
// type satisfies.
type protoMessage interface {
	Reset()
	String() string
	ProtoMessage()
}

var errNotProtoMessage = codecError("grpctransport: value does not implement proto.Message")

type codecError string

func (e codecError) Error() string { return string(e) }
