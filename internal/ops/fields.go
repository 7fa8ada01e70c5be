package ops

import (
	"github.com/hpungsan/memclass/internal/layout"
)

// FieldOutput is a class after a field operation, plus the affected field.
type FieldOutput struct {
	Class *ClassDetail `json:"class"`
	Field *FieldInfo   `json:"field,omitempty"`
}

func (s *Session) fieldOutputLocked(c *layout.Class, id layout.FieldID) *FieldOutput {
	out := &FieldOutput{Class: s.detailLocked(c)}
	if i := c.Index(id); i >= 0 {
		out.Field = &out.Class.Fields[i]
	}
	return out
}

// AddFieldInput contains parameters for AddField.
type AddFieldInput struct {
	Class    string
	Kind     string // e.g. "i32", "hex64", "ptr:Player"
	Name     string
	Position *int // default: append
}

// AddField inserts a field into a class.
func (s *Session) AddField(input AddFieldInput) (*FieldOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	kind, err := s.parseKindLocked(input.Kind)
	if err != nil {
		return nil, err
	}
	pos := -1
	if input.Position != nil {
		pos = *input.Position
	}
	id, err := c.AddField(kind, layout.CleanName(input.Name), pos)
	if err != nil {
		return nil, err
	}
	s.touch()
	return s.fieldOutputLocked(c, id), nil
}

// RemoveFieldInput contains parameters for RemoveField.
type RemoveFieldInput struct {
	Class string
	Field FieldRef
}

// RemoveField deletes a field. Later fields move down by its width.
func (s *Session) RemoveField(input RemoveFieldInput) (*FieldOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	f, _, err := fieldLocked(c, input.Field)
	if err != nil {
		return nil, err
	}
	if err := c.RemoveField(f.ID); err != nil {
		return nil, err
	}
	s.touch()
	return s.fieldOutputLocked(c, f.ID), nil
}

// SetFieldKindInput contains parameters for SetFieldKind.
type SetFieldKindInput struct {
	Class string
	Field FieldRef
	Kind  string
}

// SetFieldKind changes a field's kind. Later offsets follow the new width.
func (s *Session) SetFieldKind(input SetFieldKindInput) (*FieldOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	f, _, err := fieldLocked(c, input.Field)
	if err != nil {
		return nil, err
	}
	kind, err := s.parseKindLocked(input.Kind)
	if err != nil {
		return nil, err
	}
	if err := c.ChangeFieldKind(f.ID, kind); err != nil {
		return nil, err
	}
	s.touch()
	return s.fieldOutputLocked(c, f.ID), nil
}

// RenameFieldInput contains parameters for RenameField.
type RenameFieldInput struct {
	Class string
	Field FieldRef
	Name  string
}

// RenameField changes a field's name. Empty names are allowed.
func (s *Session) RenameField(input RenameFieldInput) (*FieldOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	f, _, err := fieldLocked(c, input.Field)
	if err != nil {
		return nil, err
	}
	if err := c.RenameField(f.ID, layout.CleanName(input.Name)); err != nil {
		return nil, err
	}
	s.touch()
	return s.fieldOutputLocked(c, f.ID), nil
}

// MoveFieldInput contains parameters for MoveField.
type MoveFieldInput struct {
	Class    string
	Field    FieldRef
	Position int // past the end moves the field last
}

// MoveField reorders a field within its class.
func (s *Session) MoveField(input MoveFieldInput) (*FieldOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	f, _, err := fieldLocked(c, input.Field)
	if err != nil {
		return nil, err
	}
	if err := c.MoveField(f.ID, input.Position); err != nil {
		return nil, err
	}
	s.touch()
	return s.fieldOutputLocked(c, f.ID), nil
}
