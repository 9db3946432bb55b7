// Package memo provides a one-shot result cell for lazily computed values.
package memo

import (
	"sync"
	"sync/atomic"
)

// Cell caches the result of a single computation. The first call to Get runs
// the supplied function; every later call returns the stored value without
// re-running anything, including calls made concurrently from other
// goroutines while the first computation is still in flight.
type Cell[T any] struct {
	once sync.Once
	done atomic.Bool
	val  T
}

// Get returns the cached value, computing it via fn exactly once. A nil
// fn reads the cell without computing; an unset cell then yields the
// zero value.
func (c *Cell[T]) Get(fn func() T) T {
	if fn == nil {
		if c.done.Load() {
			return c.val
		}
		var zero T
		return zero
	}
	c.once.Do(func() {
		c.val = fn()
		c.done.Store(true)
	})
	return c.val
}

// Set stores v if nothing has been computed yet and reports whether it won.
// Used to seed a cell from a persistent cache before any computation runs.
func (c *Cell[T]) Set(v T) bool {
	won := false
	c.once.Do(func() {
		c.val = v
		c.done.Store(true)
		won = true
	})
	return won
}

// Done reports whether a value has been stored.
func (c *Cell[T]) Done() bool {
	return c.done.Load()
}
