package raft

import "time"

// Collect runs the supplied futures to completion according to satisfied,
// which is re-evaluated every time a new result arrives with the full
// results-so-far map. As soon as satisfied reports true, Collect cancels
// every future that has not yet settled (best effort: a future that was
// already fulfilled just has its result dropped) and fulfils the returned
// Completion with the results collected so far.
//
// This single routine backs collect_majority, collect_all, collect_any, and
// the joint-consensus variant from spec §4.2 — each is a different
// `satisfied` predicate over the same mechanics, keeping the "must not hold
// the engine lock while waiting" design note true in one place.
func Collect[K comparable, T any](futures map[K]*Completion[T], satisfied func(results map[K]Result[T]) bool, timeout time.Duration) *Completion[map[K]Result[T]] {
	p, out := NewPromise[map[K]Result[T]]()

	type arrival struct {
		key K
		res Result[T]
	}
	arrivals := make(chan arrival, len(futures))

	for k, f := range futures {
		k, f := k, f
		whenReady(f, func(r Result[T]) {
			select {
			case arrivals <- arrival{key: k, res: r}:
			default:
			}
		})
	}

	go func() {
		results := make(map[K]Result[T], len(futures))
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}
		for len(results) < len(futures) {
			select {
			case a := <-arrivals:
				results[a.key] = a.res
				if satisfied(results) {
					cancelRemaining(futures, results)
					_ = p.SetValue(results)
					return
				}
			case <-timeoutCh:
				cancelRemaining(futures, results)
				_ = p.SetError(ErrTimeout)
				return
			}
		}
		// every future reported in; satisfied never tripped (collect_all's
		// predicate is exactly this point) so fulfil with everything.
		_ = p.SetValue(results)
	}()

	return out
}

func cancelRemaining[K comparable, T any](futures map[K]*Completion[T], done map[K]Result[T]) {
	for k, f := range futures {
		if _, ok := done[k]; ok {
			continue
		}
		f.Cancel()
	}
}

// CollectMajority fulfils as soon as a strict majority (⌊n/2⌋+1) of futures
// have settled, counting both successes and failures toward the quorum, and
// cancels the rest.
func CollectMajority[K comparable, T any](futures map[K]*Completion[T], timeout time.Duration) *Completion[map[K]Result[T]] {
	need := len(futures)/2 + 1
	return Collect(futures, func(results map[K]Result[T]) bool {
		return len(results) >= need
	}, timeout)
}

// CollectAll waits for every future to settle.
func CollectAll[K comparable, T any](futures map[K]*Completion[T], timeout time.Duration) *Completion[map[K]Result[T]] {
	total := len(futures)
	return Collect(futures, func(results map[K]Result[T]) bool {
		return len(results) >= total
	}, timeout)
}

// CollectAny fulfils with the first future to settle.
func CollectAny[K comparable, T any](futures map[K]*Completion[T], timeout time.Duration) *Completion[map[K]Result[T]] {
	return Collect(futures, func(results map[K]Result[T]) bool {
		return len(results) >= 1
	}, timeout)
}

// JointMajority builds a `satisfied` predicate suitable for Collect that is
// true only once independent majorities of oldMembers and newMembers have
// both reported in — the quorum rule for joint-consensus decisions (spec
// §4.2, §4.6.9).
func JointMajority[K comparable, T any](oldMembers, newMembers []K) func(map[K]Result[T]) bool {
	oldNeed := len(oldMembers)/2 + 1
	newNeed := len(newMembers)/2 + 1
	return func(results map[K]Result[T]) bool {
		oldCount := 0
		for _, k := range oldMembers {
			if _, ok := results[k]; ok {
				oldCount++
			}
		}
		newCount := 0
		for _, k := range newMembers {
			if _, ok := results[k]; ok {
				newCount++
			}
		}
		return oldCount >= oldNeed && newCount >= newNeed
	}
}

// CollectJointMajority completes only once both the old and new member sets
// have independently reported a majority.
func CollectJointMajority[K comparable, T any](oldMembers, newMembers []K, futures map[K]*Completion[T], timeout time.Duration) *Completion[map[K]Result[T]] {
	return Collect(futures, JointMajority[K, T](oldMembers, newMembers), timeout)
}
