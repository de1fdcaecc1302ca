package stackdepot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func captureHere() uint64 {
	return Capture(0)
}

func TestCaptureDeduplicates(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var hashes []uint64
	for i := 0; i < 10; i++ {
		hashes = append(hashes, captureHere())
	}

	require.NotZero(t, hashes[0])
	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
	assert.Equal(t, 1, Len())
}

func TestFormatShowsCaller(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	st := Get(captureHere())
	require.NotNil(t, st)

	out := st.Format()
	assert.Contains(t, out, "stackdepot.captureHere()")
	assert.Contains(t, out, "stackdepot_test.go:")
}

func TestGetUnknown(t *testing.T) {
	assert.Nil(t, Get(0))
	assert.Nil(t, Get(0xdeadbeef))
	assert.Equal(t, "  <unknown>\n", (*StackTrace)(nil).Format())
}

func TestConcurrentCapture(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var wg sync.WaitGroup
	results := make([]uint64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = captureHere()
		}(i)
	}
	wg.Wait()

	for _, h := range results {
		assert.NotNil(t, Get(h))
	}
}
