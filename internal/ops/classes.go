package ops

import (
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
)

// FieldInfo describes one field of a class layout.
type FieldInfo struct {
	Index      int    `json:"index"`
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Offset     int    `json:"offset"`
	Width      int    `json:"width"`
	Kind       string `json:"kind"`
	Target     string `json:"target,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Ref        string `json:"ref,omitempty"`
}

// ClassSummary is a class in list form.
type ClassSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int    `json:"size"`
	FieldCount int    `json:"field_count"`
	Active     bool   `json:"active"`
}

// ClassDetail is a class with its full layout.
type ClassDetail struct {
	ClassSummary
	Fields []FieldInfo `json:"fields"`
}

func fieldInfo(reg *layout.Registry, c *layout.Class, i int) FieldInfo {
	f, off := c.FieldAt(i)
	info := FieldInfo{
		Index:  i,
		ID:     uint64(f.ID),
		Name:   f.Name,
		Offset: off,
		Width:  f.Width(),
		Kind:   f.Kind.String(),
	}
	if f.Kind.Tag == layout.TagPointer {
		info.Target = string(f.Kind.Target)
		info.Ref = reg.PointerState(f.Kind).String()
		if t, ok := reg.Lookup(f.Kind.Target); ok {
			info.TargetName = t.Name
		}
	}
	return info
}

func (s *Session) summaryLocked(c *layout.Class) ClassSummary {
	return ClassSummary{
		ID:         string(c.ID),
		Name:       c.Name,
		Size:       c.Size(),
		FieldCount: c.Len(),
		Active:     c.ID == s.active,
	}
}

func (s *Session) detailLocked(c *layout.Class) *ClassDetail {
	d := &ClassDetail{ClassSummary: s.summaryLocked(c), Fields: make([]FieldInfo, c.Len())}
	for i := range d.Fields {
		d.Fields[i] = fieldInfo(s.reg, c, i)
	}
	return d
}

// CreateClassInput contains parameters for CreateClass.
type CreateClassInput struct {
	Name string // required
}

// CreateClass adds an empty class and makes it the active class.
func (s *Session) CreateClass(input CreateClassInput) (*ClassDetail, error) {
	name := layout.CleanName(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("class name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNameLocked(name, ""); err != nil {
		return nil, err
	}
	id := s.reg.CreateClass(name)
	s.active = id
	s.touch()
	s.log.WithField("class", id).Debug("class created")

	c, _ := s.reg.Lookup(id)
	return s.detailLocked(c), nil
}

// ListClassesOutput contains the result of ListClasses.
type ListClassesOutput struct {
	Items  []ClassSummary `json:"items"`
	Active string         `json:"active,omitempty"`
}

// ListClasses returns every class in creation order.
func (s *Session) ListClasses() *ListClassesOutput {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &ListClassesOutput{Items: []ClassSummary{}, Active: string(s.active)}
	for _, c := range s.reg.Classes() {
		out.Items = append(out.Items, s.summaryLocked(c))
	}
	return out
}

// GetClassInput contains parameters for GetClass.
type GetClassInput struct {
	Class string // id or name; empty for the active class
}

// GetClass returns a class with its layout.
func (s *Session) GetClass(input GetClassInput) (*ClassDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	return s.detailLocked(c), nil
}

// RenameClassInput contains parameters for RenameClass.
type RenameClassInput struct {
	Class string
	Name  string // required
}

// RenameClass changes a class's display name. Pointer fields follow the
// class by id, so nothing else changes.
func (s *Session) RenameClass(input RenameClassInput) (*ClassDetail, error) {
	name := layout.CleanName(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("class name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	if err := s.checkNameLocked(name, c.ID); err != nil {
		return nil, err
	}
	if err := s.reg.RenameClass(c.ID, name); err != nil {
		return nil, err
	}
	s.touch()
	return s.detailLocked(c), nil
}

// DeleteClassInput contains parameters for DeleteClass.
type DeleteClassInput struct {
	Class string
}

// DeleteClassOutput contains the result of DeleteClass.
type DeleteClassOutput struct {
	ID string `json:"id"`
	// BrokenFields is the number of pointer fields left without a target.
	BrokenFields int `json:"broken_fields"`
}

// DeleteClass removes a class. Pointer fields that targeted it become broken.
func (s *Session) DeleteClass(input DeleteClassInput) (*DeleteClassOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	if err := s.reg.DeleteClass(c.ID); err != nil {
		return nil, err
	}
	if s.active == c.ID {
		s.active = ""
	}
	s.touch()

	broken := 0
	for _, r := range s.reg.BrokenRefs() {
		if r.Target == c.ID {
			broken++
		}
	}
	s.log.WithField("class", c.ID).WithField("broken_fields", broken).Debug("class deleted")
	return &DeleteClassOutput{ID: string(c.ID), BrokenFields: broken}, nil
}
