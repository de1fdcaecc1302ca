package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

type item struct {
	id    aba.Handle
	value int
}

func TestNewConstructsInPlace(t *testing.T) {
	var a Arena[item]

	h, p := a.New(func(it *item, h aba.Handle) {
		require.Zero(t, it.value, "slot memory must start zeroed")
		it.id = h
		it.value = 42
	})

	require.Equal(t, aba.Handle(1), h)
	assert.Same(t, p, a.Get(h))
	assert.Equal(t, h, p.id)
	assert.Equal(t, 42, p.value)
	assert.Equal(t, 1, a.Len())
	assert.Nil(t, a.Get(aba.Nil))
}

func TestHandlesStableAcrossChunks(t *testing.T) {
	var a Arena[item]
	ptrs := make(map[aba.Handle]*item)

	for i := 0; i < 3*chunkSize+5; i++ {
		h, p := a.New(func(it *item, h aba.Handle) { it.id = h })
		ptrs[h] = p
	}

	for h, p := range ptrs {
		require.Same(t, p, a.Get(h))
		require.Equal(t, h, p.id)
	}
}

func TestGetUnknownHandlePanics(t *testing.T) {
	var a Arena[item]
	a.New(nil)

	assert.Panics(t, func() { a.Get(aba.Handle(2)) })
	assert.Panics(t, func() { a.Get(aba.Handle(chunkSize * 10)) })
}

func TestConcurrentNew(t *testing.T) {
	const (
		goroutines = 8
		perG       = 500
	)
	var a Arena[item]

	var mu sync.Mutex
	seen := make(map[aba.Handle]bool)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				h, _ := a.New(func(it *item, h aba.Handle) { it.id = h })
				mu.Lock()
				seen[h] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perG)
	assert.Equal(t, goroutines*perG, a.Len())
	for h := range seen {
		assert.Equal(t, h, a.Get(h).id)
	}
}
