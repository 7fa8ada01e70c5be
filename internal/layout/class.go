package layout

import (
	"fmt"

	"github.com/hpungsan/memclass/internal/errors"
)

// ClassID identifies a Class across save/load. It is a ULID string.
type ClassID string

// Class is an ordered sequence of fields overlaid on memory.
//
// size and offsets are derived from the field widths and are recomputed by
// relayout on every structural change, so they can never go stale.
type Class struct {
	ID   ClassID
	Name string

	fields  []Field
	offsets []int
	size    int
}

// NewClass returns an empty class with the given identity.
func NewClass(id ClassID, name string) *Class {
	return &Class{ID: id, Name: name}
}

// Size is the sum of all field widths.
func (c *Class) Size() int {
	return c.size
}

// Len is the number of fields.
func (c *Class) Len() int {
	return len(c.fields)
}

// Fields returns a copy of the field list in layout order.
func (c *Class) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// FieldAt returns the i-th field and its byte offset.
func (c *Class) FieldAt(i int) (Field, int) {
	return c.fields[i], c.offsets[i]
}

// Index returns the position of the field with the given id, or -1.
func (c *Class) Index(id FieldID) int {
	for i, f := range c.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Field returns the field with the given id and its offset.
func (c *Class) Field(id FieldID) (Field, int, bool) {
	i := c.Index(id)
	if i < 0 {
		return Field{}, 0, false
	}
	return c.fields[i], c.offsets[i], true
}

// Offset returns the byte offset of the field with the given id.
func (c *Class) Offset(id FieldID) (int, bool) {
	_, off, ok := c.Field(id)
	return off, ok
}

// AddField inserts a new field at pos and returns its id. A negative pos, or
// one at or past the end, appends.
func (c *Class) AddField(kind Kind, name string, pos int) (FieldID, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	f := Field{ID: NextFieldID(), Name: name, Kind: kind}
	if pos < 0 || pos >= len(c.fields) {
		c.fields = append(c.fields, f)
	} else {
		c.fields = append(c.fields, Field{})
		copy(c.fields[pos+1:], c.fields[pos:])
		c.fields[pos] = f
	}
	c.relayout()
	return f.ID, nil
}

// RemoveField deletes the field with the given id.
func (c *Class) RemoveField(id FieldID) error {
	i := c.Index(id)
	if i < 0 {
		return c.missing(id)
	}
	c.fields = append(c.fields[:i], c.fields[i+1:]...)
	c.relayout()
	return nil
}

// ChangeFieldKind replaces a field's kind, and with it its width.
func (c *Class) ChangeFieldKind(id FieldID, kind Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	i := c.Index(id)
	if i < 0 {
		return c.missing(id)
	}
	c.fields[i].Kind = kind
	c.relayout()
	return nil
}

// MoveField moves a field to pos. pos past the end moves it last.
func (c *Class) MoveField(id FieldID, pos int) error {
	i := c.Index(id)
	if i < 0 {
		return c.missing(id)
	}
	if pos < 0 || pos >= len(c.fields) {
		pos = len(c.fields) - 1
	}
	f := c.fields[i]
	c.fields = append(c.fields[:i], c.fields[i+1:]...)
	c.fields = append(c.fields, Field{})
	copy(c.fields[pos+1:], c.fields[pos:])
	c.fields[pos] = f
	c.relayout()
	return nil
}

// RenameField changes a field's name. Layout is unaffected.
func (c *Class) RenameField(id FieldID, name string) error {
	i := c.Index(id)
	if i < 0 {
		return c.missing(id)
	}
	c.fields[i].Name = name
	return nil
}

// relayout recomputes offsets and size from the field widths.
func (c *Class) relayout() {
	if cap(c.offsets) < len(c.fields) {
		c.offsets = make([]int, len(c.fields))
	}
	c.offsets = c.offsets[:len(c.fields)]
	off := 0
	for i, f := range c.fields {
		c.offsets[i] = off
		off += f.Width()
	}
	c.size = off
}

func (c *Class) missing(id FieldID) error {
	return errors.NewNotFound("field", fmt.Sprintf("%d in class %s", id, c.Name))
}
