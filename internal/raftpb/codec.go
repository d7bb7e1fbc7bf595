package raftpb

import (
	"github.com/golang/protobuf/proto" //lint:ignore SA1019 teacher's convention; legacy API matches the hand-referenced raft.* types
)

// ToPB / FromPB convert between the engine-facing domain types and their
// protobuf wire shape. Every conversion here is total and reversible, which
// is the only contract §6 places on the Serializer boundary.

func EntryToPB(e Entry) *LogRecordPB {
	return &LogRecordPB{
		Term:    int64(e.Term),
		Index:   int64(e.Index),
		Kind:    int32(e.Kind),
		Payload: append([]byte(nil), e.Payload...),
	}
}

func EntryFromPB(m *LogRecordPB) Entry {
	return Entry{
		Term:    Term(m.Term),
		Index:   LogIndex(m.Index),
		Kind:    EntryKind(m.Kind),
		Payload: append([]byte(nil), m.Payload...),
	}
}

func ConfigToPB(c ClusterConfig) *ClusterConfigPB {
	toStrings := func(ids []NodeID) []string {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = string(id)
		}
		return out
	}
	return &ClusterConfigPB{
		Kind:  int32(c.Kind),
		Nodes: toStrings(c.Nodes),
		Old:   toStrings(c.Old),
		New:   toStrings(c.New),
	}
}

func ConfigFromPB(m *ClusterConfigPB) ClusterConfig {
	toIDs := func(ss []string) []NodeID {
		out := make([]NodeID, len(ss))
		for i, s := range ss {
			out[i] = NodeID(s)
		}
		return out
	}
	return ClusterConfig{
		Kind:  ConfigKind(m.Kind),
		Nodes: toIDs(m.Nodes),
		Old:   toIDs(m.Old),
		New:   toIDs(m.New),
	}
}

func SnapshotToPB(s Snapshot) *SnapshotPB {
	return &SnapshotPB{
		LastIncludedIndex: int64(s.LastIncludedIndex),
		LastIncludedTerm:  int64(s.LastIncludedTerm),
		Configuration:     ConfigToPB(s.Configuration),
		StateBytes:        append([]byte(nil), s.StateBytes...),
	}
}

func SnapshotFromPB(m *SnapshotPB) Snapshot {
	var cfg ClusterConfig
	if m.Configuration != nil {
		cfg = ConfigFromPB(m.Configuration)
	}
	return Snapshot{
		LastIncludedIndex: LogIndex(m.LastIncludedIndex),
		LastIncludedTerm:  Term(m.LastIncludedTerm),
		Configuration:     cfg,
		StateBytes:        append([]byte(nil), m.StateBytes...),
	}
}

func EntriesToPB(entries []Entry) []*LogRecordPB {
	out := make([]*LogRecordPB, len(entries))
	for i, e := range entries {
		out[i] = EntryToPB(e)
	}
	return out
}

func EntriesFromPB(records []*LogRecordPB) []Entry {
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = EntryFromPB(r)
	}
	return out
}

// Marshal and Unmarshal are the generic `encode(T) -> bytes` / `decode(bytes)
// -> T` Serializer primitives from spec §6, implemented once here for every
// protobuf message this package declares, the same way the teacher calls
// proto.Marshal/proto.Unmarshal directly wherever it needs to persist a
// message.

func Marshal(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

func Unmarshal(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}
