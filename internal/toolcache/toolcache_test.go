package toolcache

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDirThenFind(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/debian.exe", []byte("exe"), 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/nested/install.tar.gz", []byte("tar"), 0o644))

	cache, err := New(fs, "/toolcache", "X64")
	require.NoError(t, err)

	_, ok := cache.Find("Debian", "1.0.0")
	assert.False(t, ok)

	dir, err := cache.CacheDir("/src", "Debian", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/toolcache", "Debian", "1.0.0", "x64"), dir)

	found, ok := cache.Find("Debian", "1.0.0")
	require.True(t, ok)
	assert.Equal(t, dir, found)

	data, err := afero.ReadFile(fs, filepath.Join(found, "nested", "install.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, "tar", string(data))
}

func TestFindRequiresCompleteMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/toolcache/Alpine/1.0.3/x64", 0o755))

	cache, err := New(fs, "/toolcache", "")
	require.NoError(t, err)
	_, ok := cache.Find("Alpine", "1.0.3")
	assert.False(t, ok, "a directory without marker is an interrupted copy")
}

func TestVersionsAreNormalised(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/kali.exe", nil, 0o755))
	cache, err := New(fs, "/toolcache", "x64")
	require.NoError(t, err)

	_, err = cache.CacheDir("/src", "kali-linux", "1.0")
	require.NoError(t, err)
	_, ok := cache.Find("kali-linux", "1.0.0")
	assert.True(t, ok)

	_, err = cache.CacheDir("/src", "kali-linux", "not-a-version")
	assert.Error(t, err)
}
