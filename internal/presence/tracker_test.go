package presence_test

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/storage"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 8, 16, 9, 0, 0, 0, time.UTC)

func presenceDoc(uid string, online bool) models.DocumentSnapshot {
	return models.DocumentSnapshot{
		Path:   "chatrooms/general/presence/" + uid,
		ID:     uid,
		Exists: true,
		Data:   models.Document{"userId": uid, "isOnline": online, "lastSeenAt": now},
	}
}

func TestTracker_CountsOnlyOnlineUsers(t *testing.T) {
	// Arrange
	tracker := presence.NewTracker("general", decoder.New(nil))
	docs := []models.DocumentSnapshot{
		presenceDoc("alice", true),
		presenceDoc("bob", false),
		presenceDoc("carol", true),
		presenceDoc("dave", false),
		presenceDoc("erin", true),
	}

	// Act
	errs := tracker.Ingest(docs)

	// Assert
	assert.Empty(t, errs)
	state := tracker.State()
	assert.Equal(t, 3, state.Count)
	assert.Equal(t, []string{"alice", "carol", "erin"}, state.UserIDs)
	assert.True(t, tracker.IsOnline("carol"))
	assert.False(t, tracker.IsOnline("bob"))
}

func TestTracker_ResultReplacesPreviousSet(t *testing.T) {
	tracker := presence.NewTracker("general", decoder.New(nil))
	assert.False(t, tracker.Loaded())

	tracker.Ingest([]models.DocumentSnapshot{presenceDoc("alice", true), presenceDoc("bob", true)})
	tracker.Ingest([]models.DocumentSnapshot{presenceDoc("bob", true)})

	assert.True(t, tracker.Loaded())
	assert.Equal(t, []string{"bob"}, tracker.State().UserIDs)

	tracker.Ingest(nil)
	assert.Zero(t, tracker.Count())
	assert.True(t, tracker.Loaded(), "an empty result is still a result")
}

func TestTracker_SkipsEntriesWithoutIdentity(t *testing.T) {
	tracker := presence.NewTracker("general", decoder.New(nil))
	errs := tracker.Ingest([]models.DocumentSnapshot{
		{Exists: true, Data: models.Document{"isOnline": true}},
		presenceDoc("alice", true),
	})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], decoder.ErrMissingIdentity)
	assert.Equal(t, 1, tracker.Count())
}

func TestTracker_FedFromFilteredQuery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(func() time.Time { return now })
	writer := presence.NewWriter(store, func() time.Time { return now.Add(time.Minute) })
	tracker := presence.NewTracker("general", decoder.New(nil))

	_, err := store.SubscribeQuery(ctx, presence.OnlineQuery("general"), func(docs []models.DocumentSnapshot, err error) {
		require.NoError(t, err)
		tracker.Ingest(docs)
	})
	require.NoError(t, err)

	require.NoError(t, writer.SetOnline(ctx, "general", "alice", true))
	require.NoError(t, writer.SetOnline(ctx, "general", "bob", true))
	assert.Equal(t, 2, tracker.Count())

	require.NoError(t, writer.SetOnline(ctx, "general", "alice", false))
	assert.Equal(t, []string{"bob"}, tracker.State().UserIDs)
}

func TestWriter_LastSeenClock(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(func() time.Time { return now })
	local := now.Add(-time.Hour)
	writer := presence.NewWriter(store, func() time.Time { return local })

	require.NoError(t, writer.SetOnline(ctx, "general", "alice", true))
	require.NoError(t, writer.SetOnline(ctx, "general", "bob", false))

	writes := store.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, storage.ServerTimestamp, writes[0].Fields["lastSeenAt"], "online uses server time")
	assert.Equal(t, local, writes[1].Fields["lastSeenAt"], "offline uses local time")
	assert.True(t, writes[1].Merge)

	snap, _ := store.GetDocument(ctx, "chatrooms/general/presence/alice")
	assert.Equal(t, now, snap.Data["lastSeenAt"])
}

func TestWriter_FailureIsRemoteWrite(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	store.FailWrites(errors.New("denied"))

	err := presence.NewWriter(store, nil).SetOnline(context.Background(), "general", "alice", true)
	assert.True(t, apperr.IsRemoteWrite(err))
}
