package layout

import "sync/atomic"

// FieldID identifies a field for the lifetime of the process. It is never
// persisted and never reused.
type FieldID uint64

var nextFieldID atomic.Uint64

// NextFieldID allocates a fresh FieldID. Safe for concurrent use.
func NextFieldID() FieldID {
	return FieldID(nextFieldID.Add(1) - 1)
}

// Field is one named, typed slot of a Class. It owns no memory.
type Field struct {
	ID   FieldID
	Name string
	Kind Kind
}

// Width is the number of bytes the field occupies.
func (f Field) Width() int {
	return f.Kind.Width
}
