package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r record) Expiry() time.Time {
	return r.ExpiresAt
}

func TestNewKey(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a := NewKey("eu-west-1", "https://myorg.awsapps.com/start", []string{"sso:account:access"})
		b := NewKey("eu-west-1", "https://myorg.awsapps.com/start", []string{"sso:account:access"})
		assert.Equal(t, a, b)
	})

	t.Run("canonicalizes scope order", func(t *testing.T) {
		a := NewKey("eu-west-1", "https://myorg.awsapps.com/start", []string{"a", "b", "c"})
		b := NewKey("eu-west-1", "https://myorg.awsapps.com/start", []string{"c", "a", "b"})
		assert.Equal(t, a, b)
	})

	t.Run("does not mutate the scopes argument", func(t *testing.T) {
		scopes := []string{"c", "a", "b"}
		NewKey("eu-west-1", "https://myorg.awsapps.com/start", scopes)
		assert.Equal(t, []string{"c", "a", "b"}, scopes)
	})

	t.Run("differs by start URL", func(t *testing.T) {
		a := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)
		b := NewKey("eu-west-1", "https://other.awsapps.com/start", nil)
		assert.NotEqual(t, a, b)
	})

	t.Run("differs by region", func(t *testing.T) {
		a := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)
		b := NewKey("us-east-1", "https://myorg.awsapps.com/start", nil)
		assert.NotEqual(t, a, b)
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		// Without terminators, ("ab", "c") and ("a", "bc") would collide.
		a := NewKey("ab", "c", nil)
		b := NewKey("a", "bc", nil)
		assert.NotEqual(t, a, b)
	})
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	in := record{Value: "hello", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	require.NoError(t, store.Store("token", key, in))

	var out record
	require.True(t, store.Load("token", key, &out))
	assert.Equal(t, in, out)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	var out record
	assert.False(t, store.Load("token", key, &out))
}

func TestStore_ExpiredRecordIsMissButRemains(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	expired := record{Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Store("token", key, expired))

	var out record
	assert.False(t, store.Load("token", key, &out))

	// The file stays on disk; other tools sharing the cache may want it.
	path := filepath.Join(dir, "token-"+string(key)+".json")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_RecordWithinExpiryBufferIsMiss(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	closeToExpiry := record{Value: "soon", ExpiresAt: time.Now().Add(30 * time.Second)}
	require.NoError(t, store.Store("token", key, closeToExpiry))

	var out record
	assert.False(t, store.Load("token", key, &out))
}

func TestStore_CorruptRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	path := filepath.Join(dir, "token-"+string(key)+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	var out record
	assert.False(t, store.Load("token", key, &out))
}

func TestStore_WriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	require.NoError(t, store.Store("token", key, record{Value: "one", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Store("token", key, record{Value: "two", ExpiresAt: time.Now().Add(time.Hour)}))

	// No temporary files left behind, and the record is complete JSON.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var out record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "two", out.Value)
}

func TestStore_CreatesDirectoryLazily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := NewStore(dir, nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	// Load on a store whose directory doesn't exist is a miss, not an error,
	// and must not create the directory.
	var out record
	assert.False(t, store.Load("token", key, &out))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Store("token", key, record{Value: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_EmptyDirDisablesCaching(t *testing.T) {
	store := NewStore("", nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	require.NoError(t, store.Store("token", key, record{Value: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	var out record
	assert.False(t, store.Load("token", key, &out))
}

func TestStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)
	key := NewKey("eu-west-1", "https://myorg.awsapps.com/start", nil)

	require.NoError(t, store.Store("token", key, record{Value: "x", ExpiresAt: time.Now().Add(time.Hour)}))

	info, err := os.Stat(filepath.Join(dir, "token-"+string(key)+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
