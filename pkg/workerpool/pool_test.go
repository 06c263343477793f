package workerpool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSerializesSameKey(t *testing.T) {
	p := New(8)

	var active, overlaps int32
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = Task{
			Key: "1:42",
			Run: func() error {
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		}
	}

	errs := p.Do(tasks)

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlaps))
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestDoBoundsConcurrency(t *testing.T) {
	const limit = 3
	p := New(limit)

	var active, peak int32
	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = Task{
			Key: fmt.Sprintf("%d:1", i),
			Run: func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		}
	}

	p.Do(tasks)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
}

func TestDoReportsErrorsInOrder(t *testing.T) {
	p := New(2)

	boom := errors.New("boom")
	errs := p.Do([]Task{
		{Key: "a", Run: func() error { return nil }},
		{Key: "b", Run: func() error { return boom }},
		{Key: "c", Run: func() error { return nil }},
	})

	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[2])
}

func TestDoRecoversPanic(t *testing.T) {
	p := New(2)

	errs := p.Do([]Task{
		{Key: "a", Run: func() error { panic("kaboom") }},
	})

	require.Len(t, errs, 1)
	require.Error(t, errs[0])
	assert.Contains(t, errs[0].Error(), "kaboom")
}

func TestDoEmpty(t *testing.T) {
	p := New(0) // 非法上限回退到默认值

	errs := p.Do(nil)
	assert.Empty(t, errs)
}
