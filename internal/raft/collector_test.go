package raft

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectMajoritySucceedsAndCancelsRest(t *testing.T) {
	futures := map[int]*Completion[string]{}
	promises := map[int]*Promise[string]{}
	for i := 0; i < 5; i++ {
		p, c := NewPromise[string]()
		futures[i] = c
		promises[i] = p
	}

	out := CollectMajority(futures, time.Second)
	require.NoError(t, promises[0].SetValue("a"))
	require.NoError(t, promises[1].SetValue("b"))
	require.NoError(t, promises[2].SetValue("c"))

	r := out.Get()
	require.NoError(t, r.Err)
	require.Len(t, r.Value, 3)

	for i := 3; i < 5; i++ {
		require.True(t, futures[i].IsReady(), "loser future should be cancelled")
	}
}

func TestCollectMajorityCountsFailuresToo(t *testing.T) {
	futures := map[int]*Completion[string]{}
	promises := map[int]*Promise[string]{}
	for i := 0; i < 3; i++ {
		p, c := NewPromise[string]()
		futures[i] = c
		promises[i] = p
	}
	out := CollectMajority(futures, time.Second)
	require.NoError(t, promises[0].SetError(errors.New("down")))
	require.NoError(t, promises[1].SetValue("ok"))

	r := out.Get()
	require.NoError(t, r.Err)
	require.Len(t, r.Value, 2)
}

func TestCollectAllWaitsForEveryone(t *testing.T) {
	futures := map[int]*Completion[int]{}
	promises := map[int]*Promise[int]{}
	for i := 0; i < 4; i++ {
		p, c := NewPromise[int]()
		futures[i] = c
		promises[i] = p
	}
	out := CollectAll(futures, time.Second)
	for i := 0; i < 4; i++ {
		require.NoError(t, promises[i].SetValue(i))
	}
	r := out.Get()
	require.NoError(t, r.Err)
	require.Len(t, r.Value, 4)
}

func TestCollectTimesOut(t *testing.T) {
	futures := map[int]*Completion[int]{}
	for i := 0; i < 3; i++ {
		_, c := NewPromise[int]()
		futures[i] = c
	}
	out := CollectMajority(futures, 20*time.Millisecond)
	r := out.Get()
	require.Error(t, r.Err)
	kind, ok := KindOf(r.Err)
	require.True(t, ok)
	require.Equal(t, ErrKindTimeout, kind)
}

func TestCollectJointMajorityNeedsBothHalves(t *testing.T) {
	oldMembers := []int{1, 2, 3}
	newMembers := []int{3, 4, 5}
	allIDs := []int{1, 2, 3, 4, 5}

	futures := map[int]*Completion[bool]{}
	promises := map[int]*Promise[bool]{}
	for _, id := range allIDs {
		p, c := NewPromise[bool]()
		futures[id] = c
		promises[id] = p
	}

	out := CollectJointMajority(oldMembers, newMembers, futures, time.Second)

	// majority of old {1,2} but nothing from new-only members: must not complete.
	require.NoError(t, promises[1].SetValue(true))
	require.NoError(t, promises[2].SetValue(true))
	require.False(t, out.Wait(50*time.Millisecond))

	// now satisfy new majority too ({3,4}) — 3 counts for both sets.
	require.NoError(t, promises[3].SetValue(true))
	require.NoError(t, promises[4].SetValue(true))

	r := out.Get()
	require.NoError(t, r.Err)
}
