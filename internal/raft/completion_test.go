package raft

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPromiseFulfilsCompletion(t *testing.T) {
	p, c := NewPromise[int]()
	require.False(t, c.IsReady())
	require.NoError(t, p.SetValue(42))
	require.True(t, c.IsReady())
	r := c.Get()
	require.NoError(t, r.Err)
	require.Equal(t, 42, r.Value)
}

func TestSetTwiceFailsAlreadyFulfilled(t *testing.T) {
	p, _ := NewPromise[int]()
	require.NoError(t, p.SetValue(1))
	require.ErrorIs(t, p.SetValue(2), ErrAlreadyFulfilled)
}

func TestFulfilledBeforeContinuationStillDelivers(t *testing.T) {
	p, c := NewPromise[int]()
	require.NoError(t, p.SetValue(7))

	out := ThenValue(c, func(v int) int { return v * 2 })
	r := out.Get()
	require.NoError(t, r.Err)
	require.Equal(t, 14, r.Value)
}

func TestThenValuePropagatesError(t *testing.T) {
	p, c := NewPromise[int]()
	boom := errors.New("boom")
	require.NoError(t, p.SetError(boom))

	out := ThenValue(c, func(v int) int { return v * 2 })
	r := out.Get()
	require.ErrorIs(t, r.Err, boom)
}

func TestThenComposeNeverNests(t *testing.T) {
	p, c := NewPromise[int]()
	out := ThenCompose(c, func(r Result[int]) *Completion[string] {
		ip, inner := NewPromise[string]()
		_ = ip.SetValue("flattened")
		return inner
	})
	require.NoError(t, p.SetValue(1))
	r := out.Get()
	require.NoError(t, r.Err)
	require.Equal(t, "flattened", r.Value)
}

func TestWithinOnAlreadyFulfilledReturnsOriginal(t *testing.T) {
	p, c := NewPromise[int]()
	require.NoError(t, p.SetValue(9))
	out := Within(c, time.Hour)
	require.True(t, out.IsReady())
	r := out.Get()
	require.NoError(t, r.Err)
	require.Equal(t, 9, r.Value)
}

func TestWithinTimesOutAndCancelsInner(t *testing.T) {
	_, c := NewPromise[int]()
	out := Within(c, 10*time.Millisecond)
	r := out.Get()
	require.Error(t, r.Err)
	kind, ok := KindOf(r.Err)
	require.True(t, ok)
	require.Equal(t, ErrKindTimeout, kind)
	require.ErrorIs(t, c.Get().Err, ErrCancelled)
}

func TestDelayPostponesDelivery(t *testing.T) {
	p, c := NewPromise[int]()
	require.NoError(t, p.SetValue(3))
	start := time.Now()
	out := Delay(c, 30*time.Millisecond)
	r := out.Get()
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Equal(t, 3, r.Value)
}

func TestWaitExpiresWithoutConsuming(t *testing.T) {
	p, c := NewPromise[int]()
	require.False(t, c.Wait(20*time.Millisecond))
	require.NoError(t, p.SetValue(5))
	require.True(t, c.Wait(time.Second))
	require.Equal(t, 5, c.Get().Value)
}

func TestCancelMarksPendingCompletionFailed(t *testing.T) {
	_, c := NewPromise[int]()
	c.Cancel()
	r := c.Get()
	require.ErrorIs(t, r.Err, ErrCancelled)
}

func TestViaAffectsOnlySubsequentContinuations(t *testing.T) {
	p, c := NewPromise[int]()
	var firstRanOn, secondRanOn string

	inlineExec := InlineExecutor{}
	c.Via(inlineExec)
	first := ThenValue(c, func(v int) int {
		firstRanOn = "inline"
		return v
	})

	goroutineExec := NewGoroutineExecutor()
	c.Via(goroutineExec)
	done := make(chan struct{})
	second := ThenValue(c, func(v int) int {
		secondRanOn = "goroutine"
		close(done)
		return v
	})

	require.NoError(t, p.SetValue(1))
	require.Equal(t, 1, first.Get().Value)
	<-done
	require.Equal(t, 1, second.Get().Value)
	require.Equal(t, "inline", firstRanOn)
	require.Equal(t, "goroutine", secondRanOn)
}
