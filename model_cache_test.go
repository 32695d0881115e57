package ribose

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rt.ribose")
	require.NoError(t, os.WriteFile(path, EncodeModel(buildRoundTripModel()), 0o644))
	return path
}

func TestModelCacheLoadCachesByPath(t *testing.T) {
	path := writeTempModel(t)
	cache, err := NewModelCache(NewConfig())
	require.NoError(t, err)

	m1, err := cache.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	m2, err := cache.Load(path)
	require.NoError(t, err)
	assert.Same(t, m1, m2, "a cached path returns the same *Model, not a fresh decode")
}

func TestModelCacheEvict(t *testing.T) {
	path := writeTempModel(t)
	cache, err := NewModelCache(NewConfig())
	require.NoError(t, err)

	_, err = cache.Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	cache.Evict(path)
	assert.Equal(t, 0, cache.Len())
}

// TestModelCacheConcurrentLoadSingleflight checks spec §5's "shared,
// read-mostly" Model note: concurrent first-loads of the same path
// collapse into a single decode and all callers see the same Model.
func TestModelCacheConcurrentLoadSingleflight(t *testing.T) {
	path := writeTempModel(t)
	cache, err := NewModelCache(NewConfig())
	require.NoError(t, err)

	const n = 8
	results := make([]*Model, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Load(path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}
