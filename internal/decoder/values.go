package decoder

import (
	"chatroom/backend/internal/models"
	"encoding/json"
	"math"
	"slices"
	"time"
)

// Context tells the decoder how the record was observed.
// A malformed timestamp on a fresh write defaults to now; during a
// historical backfill it defaults to the oldest representable instant.
type Context int

const (
	Live Context = iota
	Backfill
)

func (c Context) String() string {
	if c == Backfill {
		return "backfill"
	}
	return "live"
}

// Epoch is the default for a missing timestamp field.
var Epoch = time.Unix(0, 0).UTC()

// Oldest is the substitute for a malformed timestamp during backfill.
var Oldest = time.Time{}

// Fallback records which default, if any, replaced a timestamp.
type Fallback int

const (
	NoFallback Fallback = iota
	FallbackMissing
	FallbackMalformed
)

// Pins remembers the timestamp substituted for a malformed message on first
// sight, keyed by room and message id, so re-delivering the same document
// never moves it.
type Pins map[string]time.Time

// Apply replaces SentAt of malformed records with their pinned instant and
// pins the ones seen for the first time. records stay sorted. It reports
// whether any record moved.
func (p Pins) Apply(records []MessageRecord) bool {
	if p == nil {
		return false
	}
	moved := false
	for i := range records {
		rec := &records[i]
		if rec.SentAtFallback != FallbackMalformed {
			continue
		}
		key := rec.RoomID + "/" + rec.ID
		if pinned, ok := p[key]; ok {
			moved = moved || !pinned.Equal(rec.SentAt)
			rec.SentAt = pinned
		} else {
			p[key] = rec.SentAt
		}
	}
	if moved {
		slices.SortFunc(records, func(a, b MessageRecord) int {
			return models.CompareMessages(a.Message, b.Message)
		})
	}
	return moved
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case models.Document:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// parseTime accepts the timestamp shapes the store may hand back:
// time.Time, RFC3339 strings, unix seconds, or {seconds, nanoseconds} maps.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	case float64:
		return fromSeconds(t)
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int:
		return time.Unix(int64(t), 0).UTC(), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromSeconds(f)
	}
	if m, ok := asMap(v); ok {
		secs, ok := m["seconds"]
		if !ok {
			return time.Time{}, false
		}
		base, ok := parseTime(secs)
		if !ok {
			return time.Time{}, false
		}
		nanos := m["nanoseconds"]
		if nanos == nil {
			nanos = m["nanos"]
		}
		switch n := nanos.(type) {
		case float64:
			base = base.Add(time.Duration(n))
		case int64:
			base = base.Add(time.Duration(n))
		case int:
			base = base.Add(time.Duration(n))
		}
		return base, true
	}
	return time.Time{}, false
}

func fromSeconds(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(f)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
}
