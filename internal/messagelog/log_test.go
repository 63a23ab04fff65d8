package messagelog_test

import (
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/messagelog"
	"chatroom/backend/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 8, 16, 9, 0, 0, 0, time.UTC)

func entry(text, user string, at time.Time) models.Document {
	return models.Document{"message": text, "username": user, "timestamp": at}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestLog_IngestIsIdempotent(t *testing.T) {
	// Arrange
	log := messagelog.New("general", decoder.New(nil))
	doc := models.Document{
		"name":        "General",
		"message_2_b": entry("two", "bob", baseTime.Add(2*time.Second)),
		"message_1_a": entry("one", "alice", baseTime.Add(time.Second)),
		"message_3_c": entry("three", "carol", baseTime.Add(3*time.Second)),
	}

	// Act
	log.Ingest(doc)
	first := log.Messages()
	log.Ingest(doc)
	second := log.Messages()

	// Assert
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"message_1_a", "message_2_b", "message_3_c"}, ids(second))
}

func TestLog_OrdersBySentAtThenID(t *testing.T) {
	log := messagelog.New("general", decoder.New(nil))
	log.Ingest(models.Document{
		"message_z": entry("late", "a", baseTime.Add(time.Minute)),
		"message_b": entry("tie-b", "a", baseTime),
		"message_a": entry("tie-a", "a", baseTime),
		"message_0": entry("early", "a", baseTime.Add(-time.Minute)),
	})

	assert.Equal(t, []string{"message_0", "message_a", "message_b", "message_z"}, ids(log.Messages()))
}

func TestLog_MalformedEntryDoesNotDropOthers(t *testing.T) {
	log := messagelog.New("general", decoder.New(nil))
	errs := log.Ingest(models.Document{
		"message_1": entry("ok", "alice", baseTime),
		"message_2": "not a map",
		"message_3": entry("also ok", "bob", baseTime.Add(time.Second)),
	})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], decoder.ErrMalformedEntry)
	assert.Equal(t, 2, log.Len())
}

func TestLog_SnapshotReplacesSequence(t *testing.T) {
	log := messagelog.New("general", decoder.New(nil))
	log.Ingest(models.Document{"message_1": entry("one", "a", baseTime)})
	log.Ingest(models.Document{"message_2": entry("two", "a", baseTime.Add(time.Second))})

	assert.Equal(t, []string{"message_2"}, ids(log.Messages()))
}

func TestLog_MalformedTimestampIsPinnedAcrossSnapshots(t *testing.T) {
	// Arrange
	now := baseTime.Add(time.Hour)
	log := messagelog.New("general", decoder.New(func() time.Time { return now }))
	log.Ingest(models.Document{"message_1": entry("one", "a", baseTime)})

	broken := models.Document{"message": "broken", "username": "b", "timestamp": "garbage"}
	doc := models.Document{
		"message_1": entry("one", "a", baseTime),
		"message_2": broken,
	}

	// Act
	log.Ingest(doc)
	now = now.Add(time.Hour)
	log.Ingest(doc)

	// Assert
	last, ok := log.Last()
	require.True(t, ok)
	assert.Equal(t, "message_2", last.ID)
	assert.Equal(t, baseTime.Add(time.Hour), last.SentAt, "live fallback keeps the time of first sight")
}

func TestLog_BackfillMalformedSortsFirst(t *testing.T) {
	log := messagelog.New("general", decoder.New(nil))
	log.Ingest(models.Document{
		"message_1": entry("one", "a", baseTime),
		"message_2": models.Document{"message": "broken", "timestamp": false},
	})

	assert.Equal(t, []string{"message_2", "message_1"}, ids(log.Messages()))
}

func TestLog_EmptyRoom(t *testing.T) {
	log := messagelog.New("general", decoder.New(nil))
	log.Ingest(models.Document{"name": "General"})

	_, ok := log.Last()
	assert.False(t, ok)
	assert.Empty(t, log.Messages())
	assert.Equal(t, "general", log.RoomID())
}
