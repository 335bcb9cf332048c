package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDerivation(t *testing.T) {
	base := Key("do the thing", "some context", "fast")

	assert.Equal(t, base, Key("do the thing", "some context", "fast"), "key is deterministic")
	assert.NotEqual(t, base, Key("do the thing", "some context", "optimized"), "mode is part of the identity")
	assert.NotEqual(t, base, Key("do the thing ", "some context", "fast"), "no whitespace normalization")
	// Length prefixing prevents field-boundary collisions.
	assert.NotEqual(t, Key("ab", "c", "fast"), Key("a", "bc", "fast"))
}

func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("miss on unknown key", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, hit, err := s.Get(context.Background(), Key("nope", "", "fast"))
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("hit bookkeeping", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		key := Key("q", "c", "fast")
		require.NoError(t, s.Put(context.Background(), key, "rendered text"))

		first, hit, err := s.Get(context.Background(), key)
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, "rendered text", first.Rendered)
		assert.Equal(t, int64(1), first.HitCount)

		second, hit, err := s.Get(context.Background(), key)
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, first.Rendered, second.Rendered, "same entry both times")
		assert.Equal(t, int64(2), second.HitCount, "hit count after two hits is zero hits plus two")
		assert.False(t, second.LastAccess.Before(first.LastAccess))
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := Key(fmt.Sprintf("q%d", i%4), "", "fast")
				_ = s.Put(context.Background(), key, "text")
				entry, hit, err := s.Get(context.Background(), key)
				assert.NoError(t, err)
				if hit {
					// Entries are visible whole or not at all.
					assert.Equal(t, "text", entry.Rendered)
				}
			}(i)
		}
		wg.Wait()
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStoreLen(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(context.Background(), "k1", "a"))
	require.NoError(t, s.Put(context.Background(), "k1", "b"))
	require.NoError(t, s.Put(context.Background(), "k2", "c"))
	assert.Equal(t, 2, s.Len())
}
