package allocpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/semver"
)

// The process pool is shared by every test here, so each test leaves it
// empty and released.

func TestMallocFree(t *testing.T) {
	p, err := Malloc(100)
	require.NoError(t, err)
	require.NotNil(t, p)

	b := unsafe.Slice((*byte)(p), 100)
	for i := range b {
		b[i] = byte(i)
	}
	assert.Equal(t, byte(99), b[99])

	Free(p)
	require.NoError(t, CheckEmpty())
}

func TestMallocTooLarge(t *testing.T) {
	_, err := Malloc(MaxSize + 1)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCrossGoroutineFree(t *testing.T) {
	ptrs := make(chan unsafe.Pointer, 64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(ptrs)
		a := Acquire()
		defer Release(a)
		for i := 0; i < 64; i++ {
			p, err := a.Alloc(64)
			if err != nil {
				panic(err)
			}
			ptrs <- p
		}
	}()
	go func() {
		defer wg.Done()
		a := Acquire()
		defer Release(a)
		for p := range ptrs {
			a.Dealloc(p)
		}
	}()
	wg.Wait()

	CleanupUnused()
	require.NoError(t, CheckEmpty())
	assert.True(t, AggregateStats().IsEmpty())
	assert.GreaterOrEqual(t, Instances(), 1)
}

func TestCheckEmptyReportsLeak(t *testing.T) {
	a := Acquire()
	p, err := a.Alloc(32)
	require.NoError(t, err)

	err = CheckEmpty()
	var leak *LeakError
	require.True(t, errors.As(err, &leak))
	assert.NotEmpty(t, leak.Leaks)

	a.Dealloc(p)
	Release(a)
	require.NoError(t, CheckEmpty())
}

func TestForEach(t *testing.T) {
	a := Acquire()
	Release(a)

	n := 0
	ForEach(func(_ *Allocator, s Stats) bool {
		assert.True(t, s.IsEmpty())
		n++
		return true
	})
	assert.Equal(t, Instances(), n)
}

func TestRunSweeperStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err := RunSweeper(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
}

func TestRunSweeperRejectsBadInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunSweeper(ctx, 0)
	assert.ErrorIs(t, err, ErrBadInterval)
	_, err = RunSweeper(ctx, -time.Millisecond)
	assert.ErrorIs(t, err, ErrBadInterval)
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.True(t, semver.IsValid(info.Version))
	assert.Contains(t, []string{"tagged", "boxed", "plain"}, info.Strategy)
	assert.Contains(t, info.Config, "allocpool "+info.Strategy)
}

func TestRequireVersion(t *testing.T) {
	assert.NoError(t, RequireVersion("v0.1.0"))
	assert.NoError(t, RequireVersion("v0.0.9"))
	assert.Error(t, RequireVersion("v1.0.0"))
	assert.Error(t, RequireVersion("1.0"))
}
