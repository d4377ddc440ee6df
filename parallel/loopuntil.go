// Package parallel contains the worker pool primitives the pipeline stages run on:
// bounded ForEach, order-preserving Map, work-stealing Loop and an
// order-independent Hasher.
package parallel

import (
	"sync"
	"sync/atomic"
)

// LoopStopper is an interface to check if the loop should stop.
type LoopStopper interface {

	// Load reports true if the loop should stop.
	Load() bool
}

// Loop represents the number of goroutines to run.
type Loop int

// LoopUntil starts 'l' goroutines that iterate until one of them stops the loop.
// Each goroutine takes the next unique index i starting from 0.
// The loop stops when any yield returns true. Indices already taken by other
// goroutines at that moment are still processed.
func (l Loop) LoopUntil(yield func(i uint32, ender LoopStopper) bool) {
	var (
		i     atomic.Uint32  // next index to hand out
		ender atomic.Bool    // signals stop
		wg    sync.WaitGroup // waits for all goroutines
	)
	workers := int(l)
	if workers < 1 {
		workers = 1
	}

	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !ender.Load() {
				current := i.Add(1) - 1
				if yield(current, &ender) {
					ender.Store(true)
					return
				}
			}
		}()
	}

	wg.Wait()
}

// Range processes every index in [0, length) exactly once on 'l' work-stealing
// goroutines. A body returning true stops handing out further indices.
func (l Loop) Range(length int, body func(i int) (stop bool)) {
	if length <= 0 {
		return
	}
	if int(l) > length {
		l = Loop(length)
	}
	l.LoopUntil(func(i uint32, _ LoopStopper) bool {
		if int(i) >= length {
			return true
		}
		return body(int(i))
	})
}
