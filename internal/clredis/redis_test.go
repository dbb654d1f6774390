package clredis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutClient(t *testing.T) {
	store := New(nil)
	assert.Equal(t, "memory", store.Backend())
	assert.Nil(t, NewClient("", 0))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "qr_tracking_a", "1", time.Hour))
	require.NoError(t, store.Set(ctx, "qr_tracking_b", "2", 0))
	require.NoError(t, store.Set(ctx, "qrcode_x", "3", time.Minute))

	v, err := store.Get(ctx, "qr_tracking_a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	count, err := store.CountPrefix(ctx, "qr_tracking_")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// expiration
	now = now.Add(2 * time.Hour)
	_, err = store.Get(ctx, "qr_tracking_a")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err = store.Get(ctx, "qr_tracking_b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	deleted, err := store.DeletePrefix(ctx, "qrcode_")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, store.Delete(ctx, "qr_tracking_b"))
	_, err = store.Get(ctx, "qr_tracking_b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCaptchaStore(t *testing.T) {
	cs := NewCaptchaStore(NewMemoryStore())
	require.NoError(t, cs.Set("id1", "42"))

	assert.False(t, cs.Verify("id1", "41", false))
	assert.True(t, cs.Verify("id1", "42", true))
	// effacé après vérification
	assert.False(t, cs.Verify("id1", "42", true))
	assert.False(t, cs.Verify("absent", "", false))
}
