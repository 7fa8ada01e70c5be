package layout

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/memclass/internal/errors"
)

// RefState is the observable state of a pointer field's target.
type RefState int

const (
	// RefNone is reported for kinds that are not pointers.
	RefNone RefState = iota
	RefValid
	RefBroken
)

// String implements fmt.Stringer.
func (s RefState) String() string {
	switch s {
	case RefValid:
		return "valid"
	case RefBroken:
		return "broken"
	}
	return ""
}

// Registry owns every Class. Pointer fields refer to classes by ClassID and
// are resolved through Lookup, so reference cycles never become ownership
// cycles and a deleted target simply stops resolving.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	classes map[ClassID]*Class
	order   []ClassID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[ClassID]*Class)}
}

// NewClassID generates a fresh ULID-based ClassID.
func NewClassID() ClassID {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ClassID(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// CreateClass adds an empty class and returns its id.
func (r *Registry) CreateClass(name string) ClassID {
	c := NewClass(NewClassID(), name)
	r.classes[c.ID] = c
	r.order = append(r.order, c.ID)
	return c.ID
}

// Adopt inserts a class that already has an identity, e.g. one read from a
// project file. Pointer fields elsewhere that target its id become valid.
func (r *Registry) Adopt(c *Class) error {
	if c.ID == "" {
		return errors.NewInvalidRequest("class id is required")
	}
	if _, ok := r.classes[c.ID]; ok {
		return errors.NewInvalidRequest("duplicate class id " + string(c.ID))
	}
	r.classes[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

// Lookup returns the class with the given id.
func (r *Registry) Lookup(id ClassID) (*Class, bool) {
	c, ok := r.classes[id]
	return c, ok
}

// Class is like Lookup but returns a NOT_FOUND error.
func (r *Registry) Class(id ClassID) (*Class, error) {
	if c, ok := r.classes[id]; ok {
		return c, nil
	}
	return nil, errors.NewNotFound("class", string(id))
}

// FindByName returns the first class whose normalized name matches.
func (r *Registry) FindByName(name string) (*Class, bool) {
	norm := NormalizeName(name)
	if norm == "" {
		return nil, false
	}
	for _, id := range r.order {
		if c := r.classes[id]; NormalizeName(c.Name) == norm {
			return c, true
		}
	}
	return nil, false
}

// Classes returns all classes in creation order.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.classes[id])
	}
	return out
}

// Len is the number of classes.
func (r *Registry) Len() int {
	return len(r.order)
}

// DeleteClass removes a class. Pointer fields in other classes that target
// it are left untouched and report RefBroken from then on.
func (r *Registry) DeleteClass(id ClassID) error {
	if _, ok := r.classes[id]; !ok {
		return errors.NewNotFound("class", string(id))
	}
	delete(r.classes, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// RenameClass changes a class's display name.
func (r *Registry) RenameClass(id ClassID, name string) error {
	c, err := r.Class(id)
	if err != nil {
		return err
	}
	c.Name = name
	return nil
}

// AddField inserts a field into a class. See Class.AddField.
func (r *Registry) AddField(id ClassID, kind Kind, name string, pos int) (FieldID, error) {
	c, err := r.Class(id)
	if err != nil {
		return 0, err
	}
	return c.AddField(kind, name, pos)
}

// RemoveField removes a field from a class.
func (r *Registry) RemoveField(id ClassID, fid FieldID) error {
	c, err := r.Class(id)
	if err != nil {
		return err
	}
	return c.RemoveField(fid)
}

// ChangeFieldKind changes a field's kind.
func (r *Registry) ChangeFieldKind(id ClassID, fid FieldID, kind Kind) error {
	c, err := r.Class(id)
	if err != nil {
		return err
	}
	return c.ChangeFieldKind(fid, kind)
}

// MoveField reorders a field within its class.
func (r *Registry) MoveField(id ClassID, fid FieldID, pos int) error {
	c, err := r.Class(id)
	if err != nil {
		return err
	}
	return c.MoveField(fid, pos)
}

// RenameField renames a field.
func (r *Registry) RenameField(id ClassID, fid FieldID, name string) error {
	c, err := r.Class(id)
	if err != nil {
		return err
	}
	return c.RenameField(fid, name)
}

// PointerState reports whether a pointer kind's target currently exists.
func (r *Registry) PointerState(k Kind) RefState {
	if k.Tag != TagPointer {
		return RefNone
	}
	if _, ok := r.classes[k.Target]; ok {
		return RefValid
	}
	return RefBroken
}

// BrokenRef names a pointer field whose target class is missing.
type BrokenRef struct {
	Class  ClassID
	Field  FieldID
	Target ClassID
}

// BrokenRefs lists every pointer field in the registry whose target is missing.
func (r *Registry) BrokenRefs() []BrokenRef {
	var out []BrokenRef
	for _, c := range r.Classes() {
		for _, f := range c.fields {
			if r.PointerState(f.Kind) == RefBroken {
				out = append(out, BrokenRef{Class: c.ID, Field: f.ID, Target: f.Kind.Target})
			}
		}
	}
	return out
}
