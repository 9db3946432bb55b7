package memo

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell_ComputesOnce(t *testing.T) {
	var c Cell[int]
	calls := 0
	fn := func() int {
		calls++
		return 42
	}

	assert.Equal(t, 42, c.Get(fn))
	assert.Equal(t, 42, c.Get(fn))
	assert.Equal(t, 1, calls)
}

func TestCell_ConcurrentGet(t *testing.T) {
	var c Cell[string]
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := c.Get(func() string {
				calls.Add(1)
				return "value"
			})
			assert.Equal(t, "value", got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCell_SetWinsBeforeGet(t *testing.T) {
	var c Cell[int]
	assert.True(t, c.Set(7))
	assert.Equal(t, 7, c.Get(func() int {
		t.Fatal("compute must not run after Set")
		return 0
	}))
}

func TestCell_SetLosesAfterGet(t *testing.T) {
	var c Cell[int]
	c.Get(func() int { return 1 })
	assert.False(t, c.Set(2))
	assert.Equal(t, 1, c.Get(nil))
}

func TestCell_Done(t *testing.T) {
	var c Cell[int]
	assert.False(t, c.Done())
	c.Get(func() int { return 0 })
	assert.True(t, c.Done())
}

func TestCell_NilFuncReads(t *testing.T) {
	var c Cell[int]
	assert.Zero(t, c.Get(nil), "unset cell reads as zero")

	c.Set(9)
	assert.Equal(t, 9, c.Get(nil))
}
