package dedup_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexicore/dedup"
)

func TestDoCoalescesConcurrentCalls(t *testing.T) {
	g := dedup.New(0)
	var calls int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err, _ := g.Do("key", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "result", nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
	for _, r := range results {
		require.Equal(t, "result", r)
	}
}

func TestDoAllowsFreshCallAfterCompletion(t *testing.T) {
	g := dedup.New(0)
	var calls int64
	fn := func() (any, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	}
	_, _, _ = g.Do("key", fn)
	_, _, _ = g.Do("key", fn)
	require.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestKeyIsDeterministicAndPartSensitive(t *testing.T) {
	a := dedup.Key("trie", "corpus-1", "hash-1")
	b := dedup.Key("trie", "corpus-1", "hash-1")
	c := dedup.Key("trie", "corpus-1", "hash-2")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
