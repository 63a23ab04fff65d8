// Package directory builds the room list: one summary per room document,
// newest activity first.
package directory

import (
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"fmt"
	"slices"
	"strings"
)

// Status distinguishes "nothing received yet" from "received, but no rooms".
// Unavailable means the stream failed; Rooms then holds the last good list.
type Status int

const (
	Loading Status = iota
	Empty
	Ready
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "loading":
		*s = Loading
	case "empty":
		*s = Empty
	case "ready":
		*s = Ready
	case "unavailable":
		*s = Unavailable
	default:
		return fmt.Errorf("directory: unknown status %q", b)
	}
	return nil
}

// View is the published directory state.
type View struct {
	Status Status               `json:"status"`
	Rooms  []models.RoomSummary `json:"rooms"`
	Error  string               `json:"error,omitempty"`
}

type Directory struct {
	dec         *decoder.Decoder
	placeholder string
	rooms       []models.RoomSummary
	loaded      bool
	failure     string

	// pins keeps malformed message timestamps stable across snapshots.
	pins decoder.Pins
}

// New creates a Loading directory. placeholder is shown as the last message of rooms without messages.
func New(dec *decoder.Decoder, placeholder string) *Directory {
	return &Directory{dec: dec, placeholder: placeholder, pins: make(decoder.Pins)}
}

// RoomsQuery is the collection watched by the directory.
func RoomsQuery() storage.Query {
	return storage.Query{Collection: config.RoomsCollection}
}

// Ingest recomputes every summary from docs and re-sorts the whole list.
// The first snapshot is decoded as backfill, later ones as live writes.
func (d *Directory) Ingest(docs []models.DocumentSnapshot) []error {
	ctx := decoder.Live
	if !d.loaded {
		ctx = decoder.Backfill
	}
	var errs []error
	rooms := make([]models.RoomSummary, 0, len(docs))
	for _, snap := range docs {
		summary, serrs := d.dec.Summary(snap, ctx, d.pins)
		errs = append(errs, serrs...)
		if summary.RoomID == "" {
			continue
		}
		if !summary.HasMessages {
			summary.LastMessage = d.placeholder
		}
		rooms = append(rooms, summary)
	}

	slices.SortFunc(rooms, func(a, b models.RoomSummary) int {
		if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
			return c
		}
		return strings.Compare(a.RoomID, b.RoomID)
	})

	d.rooms = rooms
	d.loaded = true
	d.failure = ""
	return errs
}

// Fail marks the directory unavailable until the next Ingest. message is shown to viewers.
func (d *Directory) Fail(message string) {
	d.failure = message
}

func (d *Directory) Status() Status {
	switch {
	case d.failure != "":
		return Unavailable
	case !d.loaded:
		return Loading
	case len(d.rooms) == 0:
		return Empty
	}
	return Ready
}

// View returns a copy of the current state.
func (d *Directory) View() View {
	return View{Status: d.Status(), Rooms: slices.Clone(d.rooms), Error: d.failure}
}

// Room returns the summary of one room.
func (d *Directory) Room(roomID string) (models.RoomSummary, bool) {
	for _, r := range d.rooms {
		if r.RoomID == roomID {
			return r, true
		}
	}
	return models.RoomSummary{}, false
}
