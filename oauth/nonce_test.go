package oauth_test

import (
	"testing"

	"github.com/goliatone/go-authclient/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNonceStorePutTake(t *testing.T) {
	s, err := oauth.NewFileNonceStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put("the-nonce"))

	nonce, err := s.Take()
	require.NoError(t, err)
	assert.Equal(t, "the-nonce", nonce)

	// Single use: the second Take comes up empty.
	nonce, err = s.Take()
	require.NoError(t, err)
	assert.Empty(t, nonce)
}

func TestFileNonceStoreTakeWithoutPut(t *testing.T) {
	s, err := oauth.NewFileNonceStore(t.TempDir())
	require.NoError(t, err)

	nonce, err := s.Take()
	require.NoError(t, err)
	assert.Empty(t, nonce)
}

func TestFileNonceStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := oauth.NewFileNonceStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Put("persisted-nonce"))

	second, err := oauth.NewFileNonceStore(dir)
	require.NoError(t, err)

	nonce, err := second.Take()
	require.NoError(t, err)
	assert.Equal(t, "persisted-nonce", nonce)
}

func TestMemoryNonceStorePutTake(t *testing.T) {
	s := oauth.NewMemoryNonceStore()

	require.NoError(t, s.Put("the-nonce"))

	nonce, err := s.Take()
	require.NoError(t, err)
	assert.Equal(t, "the-nonce", nonce)

	nonce, err = s.Take()
	require.NoError(t, err)
	assert.Empty(t, nonce)
}
