package raftpb

// The types below are the wire-shaped protobuf messages exchanged over RPC
// and written to persistent storage. They follow the same hand-referenced
// shape the teacher's generated `raft.TermRecord` / `raft.LogStore` /
// `raft.VoteRequest` types have: plain structs with protobuf struct tags and
// the three methods (Reset, String, ProtoMessage) that satisfy the legacy
// proto.Message interface golang/protobuf still supports via reflection over
// those tags, so github.com/golang/protobuf/proto.Marshal/Unmarshal works on
// them exactly as `proto.Marshal(termRecord)` does in node.go.

// TermRecordPB persists current_term and voted_for (spec §4.3).
type TermRecordPB struct {
	Term     int64  `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	VotedFor string `protobuf:"bytes,2,opt,name=voted_for,proto3" json:"voted_for,omitempty"`
	HasVote  bool   `protobuf:"varint,3,opt,name=has_vote,proto3" json:"has_vote,omitempty"`
}

func (m *TermRecordPB) Reset()         { *m = TermRecordPB{} }
func (m *TermRecordPB) String() string { return protoString(m) }
func (*TermRecordPB) ProtoMessage()    {}

// LogRecordPB is the wire shape of a single Entry.
type LogRecordPB struct {
	Term    int64  `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	Index   int64  `protobuf:"varint,2,opt,name=index,proto3" json:"index,omitempty"`
	Kind    int32  `protobuf:"varint,3,opt,name=kind,proto3" json:"kind,omitempty"`
	Payload []byte `protobuf:"bytes,4,opt,name=payload,proto3" json:"payload,omitempty"`
}

func (m *LogRecordPB) Reset()         { *m = LogRecordPB{} }
func (m *LogRecordPB) String() string { return protoString(m) }
func (*LogRecordPB) ProtoMessage()    {}

// LogStorePB is the full persisted log, mirroring the teacher's
// `raft.LogStore{ Entries: [] }` shape.
type LogStorePB struct {
	Entries []*LogRecordPB `protobuf:"bytes,1,rep,name=entries,proto3" json:"entries,omitempty"`
}

func (m *LogStorePB) Reset()         { *m = LogStorePB{} }
func (m *LogStorePB) String() string { return protoString(m) }
func (*LogStorePB) ProtoMessage()    {}

// ClusterConfigPB is the wire shape of ClusterConfig.
type ClusterConfigPB struct {
	Kind  int32    `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Nodes []string `protobuf:"bytes,2,rep,name=nodes,proto3" json:"nodes,omitempty"`
	Old   []string `protobuf:"bytes,3,rep,name=old,proto3" json:"old,omitempty"`
	New   []string `protobuf:"bytes,4,rep,name=new,proto3" json:"new,omitempty"`
}

func (m *ClusterConfigPB) Reset()         { *m = ClusterConfigPB{} }
func (m *ClusterConfigPB) String() string { return protoString(m) }
func (*ClusterConfigPB) ProtoMessage()    {}

// SnapshotPB is the wire shape of Snapshot.
type SnapshotPB struct {
	LastIncludedIndex int64            `protobuf:"varint,1,opt,name=last_included_index,proto3" json:"last_included_index,omitempty"`
	LastIncludedTerm  int64            `protobuf:"varint,2,opt,name=last_included_term,proto3" json:"last_included_term,omitempty"`
	Configuration     *ClusterConfigPB `protobuf:"bytes,3,opt,name=configuration,proto3" json:"configuration,omitempty"`
	StateBytes        []byte           `protobuf:"bytes,4,opt,name=state_bytes,proto3" json:"state_bytes,omitempty"`
}

func (m *SnapshotPB) Reset()         { *m = SnapshotPB{} }
func (m *SnapshotPB) String() string { return protoString(m) }
func (*SnapshotPB) ProtoMessage()    {}

// RequestVote RPC (spec §6).

type RequestVoteRequestPB struct {
	Term         int64  `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	CandidateId  string `protobuf:"bytes,2,opt,name=candidate_id,proto3" json:"candidate_id,omitempty"`
	LastLogIndex int64  `protobuf:"varint,3,opt,name=last_log_index,proto3" json:"last_log_index,omitempty"`
	LastLogTerm  int64  `protobuf:"varint,4,opt,name=last_log_term,proto3" json:"last_log_term,omitempty"`
}

func (m *RequestVoteRequestPB) Reset()         { *m = RequestVoteRequestPB{} }
func (m *RequestVoteRequestPB) String() string { return protoString(m) }
func (*RequestVoteRequestPB) ProtoMessage()    {}

type RequestVoteResponsePB struct {
	Term        int64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	VoteGranted bool  `protobuf:"varint,2,opt,name=vote_granted,proto3" json:"vote_granted,omitempty"`
}

func (m *RequestVoteResponsePB) Reset()         { *m = RequestVoteResponsePB{} }
func (m *RequestVoteResponsePB) String() string { return protoString(m) }
func (*RequestVoteResponsePB) ProtoMessage()    {}

// AppendEntries RPC (spec §6, §4.6.3).

type AppendEntriesRequestPB struct {
	Term         int64          `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	LeaderId     string         `protobuf:"bytes,2,opt,name=leader_id,proto3" json:"leader_id,omitempty"`
	PrevLogIndex int64          `protobuf:"varint,3,opt,name=prev_log_index,proto3" json:"prev_log_index,omitempty"`
	PrevLogTerm  int64          `protobuf:"varint,4,opt,name=prev_log_term,proto3" json:"prev_log_term,omitempty"`
	Entries      []*LogRecordPB `protobuf:"bytes,5,rep,name=entries,proto3" json:"entries,omitempty"`
	LeaderCommit int64          `protobuf:"varint,6,opt,name=leader_commit,proto3" json:"leader_commit,omitempty"`
}

func (m *AppendEntriesRequestPB) Reset()         { *m = AppendEntriesRequestPB{} }
func (m *AppendEntriesRequestPB) String() string { return protoString(m) }
func (*AppendEntriesRequestPB) ProtoMessage()    {}

type AppendEntriesResponsePB struct {
	Term          int64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	Success       bool  `protobuf:"varint,2,opt,name=success,proto3" json:"success,omitempty"`
	MatchIndex    int64 `protobuf:"varint,3,opt,name=match_index,proto3" json:"match_index,omitempty"`
	ConflictIndex int64 `protobuf:"varint,4,opt,name=conflict_index,proto3" json:"conflict_index,omitempty"`
	ConflictTerm  int64 `protobuf:"varint,5,opt,name=conflict_term,proto3" json:"conflict_term,omitempty"`
	HasConflict   bool  `protobuf:"varint,6,opt,name=has_conflict,proto3" json:"has_conflict,omitempty"`
}

func (m *AppendEntriesResponsePB) Reset()         { *m = AppendEntriesResponsePB{} }
func (m *AppendEntriesResponsePB) String() string { return protoString(m) }
func (*AppendEntriesResponsePB) ProtoMessage()    {}

// InstallSnapshot RPC (spec §6, §4.6.6).

type InstallSnapshotRequestPB struct {
	Term              int64  `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	LeaderId          string `protobuf:"bytes,2,opt,name=leader_id,proto3" json:"leader_id,omitempty"`
	LastIncludedIndex int64  `protobuf:"varint,3,opt,name=last_included_index,proto3" json:"last_included_index,omitempty"`
	LastIncludedTerm  int64  `protobuf:"varint,4,opt,name=last_included_term,proto3" json:"last_included_term,omitempty"`
	Offset            int64  `protobuf:"varint,5,opt,name=offset,proto3" json:"offset,omitempty"`
	Data              []byte `protobuf:"bytes,6,opt,name=data,proto3" json:"data,omitempty"`
	Done              bool   `protobuf:"varint,7,opt,name=done,proto3" json:"done,omitempty"`
}

func (m *InstallSnapshotRequestPB) Reset()         { *m = InstallSnapshotRequestPB{} }
func (m *InstallSnapshotRequestPB) String() string { return protoString(m) }
func (*InstallSnapshotRequestPB) ProtoMessage()    {}

type InstallSnapshotResponsePB struct {
	Term int64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
}

func (m *InstallSnapshotResponsePB) Reset()         { *m = InstallSnapshotResponsePB{} }
func (m *InstallSnapshotResponsePB) String() string { return protoString(m) }
func (*InstallSnapshotResponsePB) ProtoMessage()    {}

func protoString(interface{}) string {
	return "raftpb.Message"
}
