package models

// Document is the raw key/value body of a remote document as delivered by the store.
// Values are whatever the store decoded: strings, bools, float64/int64 numbers,
// time.Time, nested Document/map[string]any, or nil.
type Document map[string]any

// DocumentSnapshot is a full point-in-time value of one watched document.
type DocumentSnapshot struct {
	// Path is the full document path, e.g. "chatrooms/general".
	Path string
	// ID is the last path segment (the document id).
	ID string
	// Exists is false when the document has never been written.
	Exists bool
	// Data is the complete current body. Nil when Exists is false.
	Data Document
}

// Clone returns a deep copy of the document so callers can mutate freely.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return Document(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
