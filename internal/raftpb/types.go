// Package raftpb holds the data model shared by every other package in this
// module (spec §3) plus the wire-shaped protobuf messages the persistence
// layer and the gRPC transport encode, following the same
// "github.com/golang/protobuf/proto" convention the teacher uses for its
// TermRecord/LogStore/VoteRequest types.
package raftpb

// NodeID, Term, and LogIndex are opaque monotonic identifiers (spec §3).
type NodeID string

type Term uint64

type LogIndex uint64

// EntryKind distinguishes the three flavors of LogEntry payload.
type EntryKind int32

const (
	EntryCommand EntryKind = iota
	EntryNoOp
	EntryConfigChange
)

func (k EntryKind) String() string {
	switch k {
	case EntryCommand:
		return "Command"
	case EntryNoOp:
		return "NoOp"
	case EntryConfigChange:
		return "ConfigChange"
	default:
		return "Unknown"
	}
}

// Entry is the in-memory, immutable-once-persisted log record (spec §3).
// It is deliberately distinct from the wire-shaped LogRecord protobuf message
// below: Entry is what the engine and log store manipulate, LogRecord is what
// actually gets marshalled.
type Entry struct {
	Term    Term
	Index   LogIndex
	Kind    EntryKind
	Payload []byte
}

// ConfigKind distinguishes a Stable configuration from a Joint one (spec §3,
// §4.4).
type ConfigKind int32

const (
	ConfigStable ConfigKind = iota
	ConfigJoint
)

// ClusterConfig is either Stable{Nodes} or Joint{Old, New}; Joint's majority
// rule requires a majority of Old AND a majority of New (spec §3).
type ClusterConfig struct {
	Kind  ConfigKind
	Nodes []NodeID // populated when Kind == ConfigStable
	Old   []NodeID // populated when Kind == ConfigJoint
	New   []NodeID // populated when Kind == ConfigJoint
}

func Stable(nodes []NodeID) ClusterConfig {
	return ClusterConfig{Kind: ConfigStable, Nodes: append([]NodeID(nil), nodes...)}
}

func Joint(old, new []NodeID) ClusterConfig {
	return ClusterConfig{
		Kind: ConfigJoint,
		Old:  append([]NodeID(nil), old...),
		New:  append([]NodeID(nil), new...),
	}
}

// Snapshot is the latest compacted state for a node (spec §3). At most one
// latest snapshot exists per node; it replaces the log prefix at or below
// LastIncludedIndex.
type Snapshot struct {
	LastIncludedIndex LogIndex
	LastIncludedTerm  Term
	Configuration     ClusterConfig
	StateBytes        []byte
}
