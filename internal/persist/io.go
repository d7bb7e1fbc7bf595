package persist

import (
	"os"

	"github.com/golang/protobuf/proto"

	"github.com/btmorr/raftkit/internal/raftpb"
)

// writePB marshals m and writes it to filename, fsyncing before returning so
// that a successful return satisfies I7 (the caller may safely acknowledge
// whatever operation this write was fencing).
func writePB(filename string, m proto.Message) error {
	out, err := raftpb.Marshal(m)
	if err != nil {
		return err
	}
	tmp := filename + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// rename is atomic on POSIX filesystems, so a crash mid-write never
	// leaves `filename` itself partially written (spec §4.3 "atomic" save).
	return os.Rename(tmp, filename)
}

func readPB(filename string, m proto.Message) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return raftpb.Unmarshal(data, m)
}
