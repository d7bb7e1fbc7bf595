package statemachine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/rs/zerolog/log"
)

// Action distinguishes the two command kinds KVStore understands, mirroring
// the teacher's raft.LogRecord_SET / raft.LogRecord_DEL constants.
type Action byte

const (
	ActionSet Action = iota
	ActionDelete
)

// EncodeCommand produces the opaque payload bytes a caller passes to
// node.Node.SubmitCommand, which KVStore.Apply later decodes. The wire shape
// is deliberately tiny (action byte, length-prefixed key, length-prefixed
// value) since this is the reference state machine, not the wire format
// under test.
func EncodeCommand(action Action, key, value string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(action))
	writeLenPrefixed(&buf, key)
	writeLenPrefixed(&buf, value)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readLenPrefixed(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeCommand(cmd []byte) (Action, string, string, error) {
	r := bytes.NewReader(cmd)
	actionByte, err := r.ReadByte()
	if err != nil {
		return 0, "", "", ErrBadCommand
	}
	key, err := readLenPrefixed(r)
	if err != nil {
		return 0, "", "", ErrBadCommand
	}
	value, err := readLenPrefixed(r)
	if err != nil {
		return 0, "", "", ErrBadCommand
	}
	return Action(actionByte), key, value, nil
}

// KVStore is a radix-tree-backed key/value StateMachine, the reference
// implementation used by the engine tests and cmd/raftnode.
type KVStore struct {
	mu          sync.RWMutex
	tree        *iradix.Tree
	lastApplied uint64
}

func NewKVStore() *KVStore {
	return &KVStore{tree: iradix.New()}
}

// Apply decodes cmd and applies it to the radix tree, returning the new value
// bytes for a Set or an empty slice for a Delete.
func (k *KVStore) Apply(index uint64, cmd []byte) ([]byte, error) {
	action, key, value, err := decodeCommand(cmd)
	if err != nil {
		log.Warn().Uint64("index", index).Err(err).Msg("bad command, entry commit still counts")
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	switch action {
	case ActionSet:
		k.tree, _, _ = k.tree.Insert([]byte(key), value)
		k.lastApplied = index
		return []byte(value), nil
	case ActionDelete:
		k.tree, _, _ = k.tree.Delete([]byte(key))
		k.lastApplied = index
		return nil, nil
	default:
		return nil, ErrBadCommand
	}
}

// Get returns the value stored for key. Read-state callers use it on a
// scratch KVStore restored from the raw state bytes (spec §4.6.8 step 5).
func (k *KVStore) Get(key string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.tree.Get([]byte(key))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// GetState serializes the whole tree as a simple length-prefixed key/value
// stream.
func (k *KVStore) GetState() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var buf bytes.Buffer
	var count uint32
	iter := k.tree.Root().Iterator()
	type kv struct{ key, value string }
	var all []kv
	for {
		key, value, ok := iter.Next()
		if !ok {
			break
		}
		all = append(all, kv{key: string(key), value: value.(string)})
	}
	count = uint32(len(all))
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], count)
	buf.Write(countBuf[:])
	for _, e := range all {
		writeLenPrefixed(&buf, e.key)
		writeLenPrefixed(&buf, e.value)
	}
	var appliedBuf [8]byte
	binary.BigEndian.PutUint64(appliedBuf[:], k.lastApplied)
	return append(buf.Bytes(), appliedBuf[:]...), nil
}

// Restore rebuilds the tree from state, the inverse of GetState.
func (k *KVStore) Restore(state []byte, lastAppliedIndex uint64) error {
	if len(state) < 4 {
		return errors.New("statemachine: truncated snapshot")
	}
	count := binary.BigEndian.Uint32(state[:4])
	r := bytes.NewReader(state[4:])
	tree := iradix.New()
	for i := uint32(0); i < count; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return ErrFatal
		}
		value, err := readLenPrefixed(r)
		if err != nil {
			return ErrFatal
		}
		tree, _, _ = tree.Insert([]byte(key), value)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.tree = tree
	k.lastApplied = lastAppliedIndex
	return nil
}
