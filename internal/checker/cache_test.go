package checker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSaveAndLoad(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	res := OK(SourceFilesystem, map[string]any{"file_count": 3}, time.Millisecond)
	require.NoError(t, cache.Save(res))

	loaded, age, ok := cache.Load(SourceFilesystem)
	require.True(t, ok)
	assert.Equal(t, SourceFilesystem, loaded.Source)
	assert.True(t, loaded.Available)
	assert.EqualValues(t, 3, loaded.Facts["file_count"])
	assert.GreaterOrEqual(t, age, time.Duration(0))
}

func TestCacheIgnoresFailedResults(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	require.NoError(t, cache.Save(Failed(SourceDatabase, "down", time.Millisecond)))

	_, _, ok := cache.Load(SourceDatabase)
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	now := time.Now()
	cache.now = func() time.Time { return now }
	require.NoError(t, cache.Save(OK(SourceVCS, nil, 0)))

	cache.now = func() time.Time { return now.Add(30 * time.Minute) }
	_, age, ok := cache.Load(SourceVCS)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, age)

	cache.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, _, ok = cache.Load(SourceVCS)
	assert.False(t, ok, "entries past the TTL are stale")
}

func TestCacheMissingEntry(t *testing.T) {
	cache := NewCache(t.TempDir(), 0)
	_, _, ok := cache.Load(SourceDeployment)
	assert.False(t, ok)
}
