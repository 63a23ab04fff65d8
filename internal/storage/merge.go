package storage

import (
	"chatroom/backend/internal/models"
	"encoding/json"
	"reflect"
	"time"
)

// applyWrite returns the document that results from writing fields onto current.
func applyWrite(current, fields models.Document, merge bool, now time.Time) models.Document {
	incoming := resolveSentinels(fields.Clone(), now)
	if !merge || current == nil {
		return incoming
	}
	out := current.Clone()
	mergeInto(out, incoming)
	return out
}

func mergeInto(dst, src models.Document) {
	for k, v := range src {
		sv, srcIsMap := toDocument(v)
		dv, dstIsMap := toDocument(dst[k])
		if srcIsMap && dstIsMap {
			mergeInto(dv, sv)
			dst[k] = dv
			continue
		}
		dst[k] = v
	}
}

func toDocument(v any) (models.Document, bool) {
	switch m := v.(type) {
	case models.Document:
		return m, true
	case map[string]any:
		return models.Document(m), true
	}
	return nil, false
}

func resolveSentinels(doc models.Document, now time.Time) models.Document {
	for k, v := range doc {
		if v == ServerTimestamp {
			doc[k] = now
			continue
		}
		if nested, ok := toDocument(v); ok {
			doc[k] = resolveSentinels(nested, now)
		}
	}
	return doc
}

// matches reports whether doc satisfies every equality filter of q.
// Filter values are normalized through JSON so 1 and 1.0 compare equal.
func matches(doc models.Document, where map[string]any) bool {
	for field, want := range where {
		if !reflect.DeepEqual(normalize(doc[field]), normalize(want)) {
			return false
		}
	}
	return true
}

func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
