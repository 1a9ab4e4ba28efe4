package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	authclient "github.com/goliatone/go-authclient"
	"github.com/goliatone/go-authclient/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://api.example.com"

func TestFileStoreReadWriteClear(t *testing.T) {
	dir := t.TempDir()

	s, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	token, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Write(ctx, "the-token"))

	token, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "the-token", token)

	require.NoError(t, s.Clear(ctx))

	token, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStoreOriginsAreIsolated(t *testing.T) {
	dir := t.TempDir()

	a, err := store.NewFileStore(dir, "https://one.example.com")
	require.NoError(t, err)
	defer a.Close()

	b, err := store.NewFileStore(dir, "https://two.example.com")
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Path(), b.Path())

	ctx := context.Background()
	require.NoError(t, a.Write(ctx, "token-one"))

	token, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, "persisted-token"))
	require.NoError(t, first.Close())

	second, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer second.Close()

	token, err := second.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted-token", token)
}

func TestFileStoreNotifiesOtherWritersOnly(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer a.Close()

	b, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer b.Close()

	var mu sync.Mutex
	var aChanges, bChanges []authclient.StorageChange

	cancelA, err := a.OnExternalChange(func(change authclient.StorageChange) {
		mu.Lock()
		defer mu.Unlock()
		aChanges = append(aChanges, change)
	})
	require.NoError(t, err)
	defer cancelA()

	cancelB, err := b.OnExternalChange(func(change authclient.StorageChange) {
		mu.Lock()
		defer mu.Unlock()
		bChanges = append(bChanges, change)
	})
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, a.Write(ctx, "token-from-a"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bChanges) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "token-from-a", bChanges[0].Token)
	assert.False(t, bChanges[0].Cleared)
	assert.Empty(t, aChanges, "a writer must not observe its own writes")
	mu.Unlock()

	token, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-from-a", token)
}

func TestFileStoreClearNotifiesAsCleared(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer a.Close()

	b, err := store.NewFileStore(dir, testOrigin)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Write(ctx, "the-token"))

	var mu sync.Mutex
	var changes []authclient.StorageChange
	cancel, err := b.OnExternalChange(func(change authclient.StorageChange) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change)
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, a.Clear(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, change := range changes {
			if change.Cleared {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryStoreBusFansOut(t *testing.T) {
	bus := store.NewBus()
	a := bus.NewStore()
	b := bus.NewStore()

	ctx := context.Background()

	var mu sync.Mutex
	var aChanges, bChanges []authclient.StorageChange

	cancelA, err := a.OnExternalChange(func(change authclient.StorageChange) {
		mu.Lock()
		defer mu.Unlock()
		aChanges = append(aChanges, change)
	})
	require.NoError(t, err)
	defer cancelA()

	cancelB, err := b.OnExternalChange(func(change authclient.StorageChange) {
		mu.Lock()
		defer mu.Unlock()
		bChanges = append(bChanges, change)
	})
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, a.Write(ctx, "shared-token"))

	token, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared-token", token)

	mu.Lock()
	require.Len(t, bChanges, 1)
	assert.Equal(t, "shared-token", bChanges[0].Token)
	assert.Empty(t, aChanges)
	mu.Unlock()
}
