package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := []byte(strings.Repeat("k", 32))

	s, err := Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, s.SetString("hl/private_key", "0xdeadbeef"))
	require.NoError(t, s.SetString("hl/empty", ""))
	require.NoError(t, s.Close())

	ro, err := Open(OpenOptions{Path: dir, EncryptionKey: key, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	v, ok, err := ro.GetString(" hl/private_key ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xdeadbeef", v)

	v, ok, err = ro.GetString("hl/empty")
	require.NoError(t, err)
	assert.True(t, ok, "空值也算存在")
	assert.Empty(t, v)

	_, ok, err = ro.GetString("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrongKeyFails(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(OpenOptions{Path: dir, EncryptionKey: []byte(strings.Repeat("a", 32))})
	require.NoError(t, err)
	require.NoError(t, s.SetString("x", "y"))
	require.NoError(t, s.Close())

	_, err = Open(OpenOptions{Path: dir, EncryptionKey: []byte(strings.Repeat("b", 32))})
	assert.Error(t, err)
}

func TestKeysAndDelete(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []string{"env/A", "env/B", "other"} {
		require.NoError(t, s.SetString(k, "1"))
	}
	keys, err := s.Keys("env/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"env/A", "env/B"}, keys)

	require.NoError(t, s.Delete("env/A"))
	require.NoError(t, s.Delete("env/never"))
	_, ok, err := s.GetString("env/A")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.SetString("  ", "v"), ErrEmptyKey)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, _, err := s.GetString("a")
	assert.ErrorIs(t, err, ErrNotOpened)
	assert.NoError(t, s.Close())
}

func TestParseKey(t *testing.T) {
	raw := []byte(strings.Repeat("z", 32))

	b, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = ParseKey("0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Len(t, b, 32)

	b, err = ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	_, err = ParseKey("abcd")
	assert.Error(t, err)
	_, err = ParseKey("not a key!")
	assert.Error(t, err)
}
