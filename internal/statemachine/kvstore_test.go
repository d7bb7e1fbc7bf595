package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplySetAndGet(t *testing.T) {
	kv := NewKVStore()
	_, err := kv.Apply(1, EncodeCommand(ActionSet, "x", "1"))
	require.NoError(t, err)
	v, ok := kv.Get("x")
	require.True(t, ok)
	require.Equal(t, "1", v)
}

func TestApplyDelete(t *testing.T) {
	kv := NewKVStore()
	_, err := kv.Apply(1, EncodeCommand(ActionSet, "x", "1"))
	require.NoError(t, err)
	_, err = kv.Apply(2, EncodeCommand(ActionDelete, "x", ""))
	require.NoError(t, err)
	_, ok := kv.Get("x")
	require.False(t, ok)
}

func TestApplyBadCommandDoesNotHaltMachine(t *testing.T) {
	kv := NewKVStore()
	_, err := kv.Apply(1, []byte{0xFF})
	require.ErrorIs(t, err, ErrBadCommand)
	_, err = kv.Apply(2, EncodeCommand(ActionSet, "y", "2"))
	require.NoError(t, err)
	v, ok := kv.Get("y")
	require.True(t, ok)
	require.Equal(t, "2", v)
}

func TestGetStateRestoreRoundTrip(t *testing.T) {
	kv := NewKVStore()
	_, err := kv.Apply(1, EncodeCommand(ActionSet, "a", "1"))
	require.NoError(t, err)
	_, err = kv.Apply(2, EncodeCommand(ActionSet, "b", "2"))
	require.NoError(t, err)

	state, err := kv.GetState()
	require.NoError(t, err)

	restored := NewKVStore()
	require.NoError(t, restored.Restore(state, 2))
	v, ok := restored.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)
	v, ok = restored.Get("b")
	require.True(t, ok)
	require.Equal(t, "2", v)
}
