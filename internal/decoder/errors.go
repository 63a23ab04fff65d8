package decoder

import "fmt"

// ErrorKind classifies why a remote entry could not be decoded at all.
type ErrorKind int

const (
	// MissingIdentity means the id of the record was absent.
	MissingIdentity ErrorKind = iota + 1
	// MalformedEntry means the entry was not a key/value map.
	MalformedEntry
)

func (k ErrorKind) String() string {
	switch k {
	case MissingIdentity:
		return "missing_identity"
	case MalformedEntry:
		return "malformed_entry"
	}
	return "unknown"
}

// DecodeError is returned for records that cannot be recovered with defaults.
// Callers log and skip the record; it is never shown to the user.
type DecodeError struct {
	Kind  ErrorKind
	Field string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode: " + e.Kind.String()
	}
	return fmt.Sprintf("decode %s: %s", e.Field, e.Kind)
}

// Is matches any DecodeError of the same Kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

var (
	ErrMissingIdentity = &DecodeError{Kind: MissingIdentity}
	ErrMalformedEntry  = &DecodeError{Kind: MalformedEntry}
)
