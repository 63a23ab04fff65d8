package directory_test

import (
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/directory"
	"chatroom/backend/internal/messagelog"
	"chatroom/backend/internal/models"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 8, 16, 9, 0, 0, 0, time.UTC)

func room(id string, fields models.Document) models.DocumentSnapshot {
	return models.DocumentSnapshot{Path: "chatrooms/" + id, ID: id, Exists: true, Data: fields}
}

func msg(text string, at time.Time) models.Document {
	return models.Document{"message": text, "username": "u", "timestamp": at}
}

func TestDirectory_EmptyVersusLoading(t *testing.T) {
	d := directory.New(decoder.New(nil), "No recent messages")
	assert.Equal(t, directory.Loading, d.Status())

	d.Ingest(nil)

	assert.Equal(t, directory.Empty, d.Status())
	assert.Empty(t, d.View().Rooms)
}

func TestDirectory_FailureIsPersistentUntilNextSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		loaded    bool
		wantRooms int
	}{
		{name: "before first snapshot", loaded: false, wantRooms: 0},
		{name: "after a good snapshot", loaded: true, wantRooms: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := directory.New(decoder.New(nil), "No recent messages")
			if tt.loaded {
				d.Ingest([]models.DocumentSnapshot{room("general", nil)})
			}

			// Act
			d.Fail("Failed to fetch chatrooms.")

			// Assert
			view := d.View()
			assert.Equal(t, directory.Unavailable, view.Status, "distinct from loading")
			assert.Equal(t, "Failed to fetch chatrooms.", view.Error)
			assert.Len(t, view.Rooms, tt.wantRooms, "the last good list stays visible")

			d.Ingest([]models.DocumentSnapshot{room("general", nil), room("random", nil)})
			assert.Equal(t, directory.Ready, d.Status())
			assert.Empty(t, d.View().Error)
		})
	}
}

func TestDirectory_SortsByLatestMessageDescending(t *testing.T) {
	// Arrange
	d := directory.New(decoder.New(nil), "No recent messages")
	docs := []models.DocumentSnapshot{
		room("general", models.Document{
			"name":      "General",
			"message_1": msg("old", base),
			"message_2": msg("newest in general", base.Add(2*time.Minute)),
		}),
		room("random", models.Document{"message_1": msg("latest overall", base.Add(5*time.Minute))}),
		room("quiet", models.Document{"name": "Quiet"}),
	}

	// Act
	errs := d.Ingest(docs)

	// Assert
	assert.Empty(t, errs)
	view := d.View()
	assert.Equal(t, directory.Ready, view.Status)
	require.Len(t, view.Rooms, 3)

	assert.Equal(t, "random", view.Rooms[0].RoomID)
	assert.Equal(t, "random", view.Rooms[0].DisplayName, "display name defaults to the room id")
	assert.Equal(t, "general", view.Rooms[1].RoomID)
	assert.Equal(t, "General", view.Rooms[1].DisplayName)
	assert.Equal(t, "newest in general", view.Rooms[1].LastMessage)
	assert.True(t, base.Add(2*time.Minute).Equal(view.Rooms[1].LastMessageAt))

	assert.Equal(t, "quiet", view.Rooms[2].RoomID)
	assert.Equal(t, "No recent messages", view.Rooms[2].LastMessage)
	assert.False(t, view.Rooms[2].HasMessages)
}

func TestDirectory_RecomputesFullyOnEachSnapshot(t *testing.T) {
	d := directory.New(decoder.New(nil), "-")
	d.Ingest([]models.DocumentSnapshot{
		room("a", models.Document{"message_1": msg("a1", base.Add(time.Minute))}),
		room("b", models.Document{"message_1": msg("b1", base)}),
	})

	d.Ingest([]models.DocumentSnapshot{
		room("a", models.Document{"message_1": msg("a1", base.Add(time.Minute))}),
		room("b", models.Document{
			"message_1": msg("b1", base),
			"message_2": msg("b2", base.Add(time.Hour)),
		}),
	})

	view := d.View()
	require.Len(t, view.Rooms, 2)
	assert.Equal(t, "b", view.Rooms[0].RoomID)
	assert.Equal(t, "b2", view.Rooms[0].LastMessage)

	d.Ingest([]models.DocumentSnapshot{room("b", models.Document{})})
	_, found := d.Room("a")
	assert.False(t, found, "removed rooms disappear")
}

func TestDirectory_MalformedRoomEntriesAreRecovered(t *testing.T) {
	d := directory.New(decoder.New(nil), "-")
	errs := d.Ingest([]models.DocumentSnapshot{
		room("general", models.Document{
			"message_1": "garbage",
			"message_2": msg("fine", base),
		}),
	})

	assert.Len(t, errs, 1)
	r, ok := d.Room("general")
	require.True(t, ok)
	assert.Equal(t, "fine", r.LastMessage)
}

func TestDirectory_MalformedTimestampAgreesWithMessageLog(t *testing.T) {
	broken := models.Document{"message": "broken clock", "username": "u", "timestamp": "sometime"}
	tests := []struct {
		name       string
		snapshots  []models.Document
		wantLatest string
	}{
		{
			name:       "live write sorts last",
			snapshots:  []models.Document{{"message_1": msg("old", base)}, {"message_1": msg("old", base), "message_2": broken}},
			wantLatest: "broken clock",
		},
		{
			name:       "backfill sorts first",
			snapshots:  []models.Document{{"message_1": msg("old", base), "message_2": broken}},
			wantLatest: "old",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			now := base.Add(time.Hour)
			dec := decoder.New(func() time.Time { return now })
			d := directory.New(dec, "-")
			log := messagelog.New("general", dec)

			// Act
			for _, doc := range tt.snapshots {
				d.Ingest([]models.DocumentSnapshot{room("general", doc)})
				log.Ingest(doc)
			}
			now = now.Add(time.Hour)
			last := tt.snapshots[len(tt.snapshots)-1]
			d.Ingest([]models.DocumentSnapshot{room("general", last)})
			log.Ingest(last)

			// Assert
			r, ok := d.Room("general")
			require.True(t, ok)
			latest, ok := log.Last()
			require.True(t, ok)
			assert.Equal(t, tt.wantLatest, r.LastMessage)
			assert.Equal(t, latest.Text, r.LastMessage)
			assert.True(t, latest.SentAt.Equal(r.LastMessageAt), "redelivery does not move the pinned instant")
		})
	}
}

func TestView_StatusMarshalsAsText(t *testing.T) {
	raw, err := json.Marshal(directory.View{Status: directory.Empty})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"empty","rooms":null}`, string(raw))
}
