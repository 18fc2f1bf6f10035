package keycache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/keycache"
)

func TestKeyringCacheRoundTrip(t *testing.T) {
	keyring.MockInit()

	cache := keycache.NewKeyringCache()

	require.NoError(t, cache.Remember("safe-uuid-1", "Aa1-_@#abcdEF"))

	password, err := cache.Lookup("safe-uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "Aa1-_@#abcdEF", password)

	require.NoError(t, cache.Forget("safe-uuid-1"))

	_, err = cache.Lookup("safe-uuid-1")
	var notFound skerrors.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "cached key", notFound.Kind)
}

func TestKeyringCacheForgetMissing(t *testing.T) {
	keyring.MockInit()

	cache := keycache.NewKeyringCache()

	err := cache.Forget("never-remembered")
	var notFound skerrors.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestKeyringCacheListIsEmpty(t *testing.T) {
	keyring.MockInit()

	cache := keycache.NewKeyringCache()
	require.NoError(t, cache.Remember("safe-uuid-1", "pw"))

	// The system keyring cannot be enumerated through go-keyring
	keys, err := cache.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
