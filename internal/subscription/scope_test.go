package subscription_test

import (
	"chatroom/backend/internal/storage"
	"chatroom/backend/internal/subscription"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CloseReleasesOnlyOwnedHandles(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	m := subscription.NewManager(store, nil)
	shared := subscription.Key{Kind: subscription.Directory}

	outer := m.NewScope()
	_, err := outer.Subscribe(ctx, shared, func(subscription.Event) {})
	require.NoError(t, err)

	room := m.NewScope()
	_, err = room.Subscribe(ctx, shared, func(subscription.Event) {})
	require.NoError(t, err)
	for _, kind := range []subscription.Kind{subscription.Messages, subscription.Presence, subscription.Typing} {
		_, err := room.Subscribe(ctx, subscription.Key{RoomID: "general", Kind: kind}, func(subscription.Event) {})
		require.NoError(t, err)
	}
	require.Equal(t, 3, room.Owned())

	// Act
	require.NoError(t, room.Close())

	// Assert
	assert.Equal(t, 1, m.Active())
	h, ok := m.Lookup(shared)
	require.True(t, ok)
	assert.True(t, h.Alive(), "handle joined by the room scope stays open")
	assert.Equal(t, 1, store.ActiveListeners())

	require.NoError(t, outer.Close())
	assert.Zero(t, store.ActiveListeners())
}

func TestScope_SubscribeAfterClose(t *testing.T) {
	m := subscription.NewManager(storage.NewMemoryStore(nil), nil)
	s := m.NewScope()
	require.NoError(t, s.Close())

	_, err := s.Subscribe(context.Background(), subscription.Key{RoomID: "general", Kind: subscription.Messages}, func(subscription.Event) {})
	assert.ErrorIs(t, err, subscription.ErrScopeClosed)
	assert.Zero(t, m.Active())
}
