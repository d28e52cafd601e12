package oauthstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poslink-core/internal/domain"
)

func TestMemoryStore_SaveAndConsumeOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	ctx := context.Background()

	state := &domain.AuthState{
		State:      "abc123",
		TenantID:   "tenant-1",
		Provider:   "shopify",
		MerchantID: "shop-1",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Consume(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, "shop-1", got.MerchantID)

	_, err = store.Consume(ctx, "abc123")
	assert.ErrorIs(t, err, domain.ErrAuthorizationExpired, "state is single use")
}

func TestMemoryStore_UnknownState(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()

	_, err := store.Consume(context.Background(), "never-saved")
	assert.ErrorIs(t, err, domain.ErrAuthorizationExpired)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Stop()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.AuthState{State: "shortlived"}))

	assert.Eventually(t, func() bool {
		_, err := store.Consume(ctx, "shortlived")
		return err != nil
	}, time.Second, 10*time.Millisecond, "state evicted after its TTL")
}
