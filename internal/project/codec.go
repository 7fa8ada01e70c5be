// Package project stores class registries as TOML project files.
package project

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
)

// Version is the only project format version this build reads and writes.
const Version = 1

// Extension is the required project file extension.
const Extension = ".mclass"

type document struct {
	Version *int64     `toml:"version"`
	Classes []classDoc `toml:"class"`
}

type classDoc struct {
	ID     string     `toml:"id"`
	Name   string     `toml:"name"`
	Fields []fieldDoc `toml:"field"`
}

type fieldDoc struct {
	Kind   string `toml:"kind"`
	Width  int    `toml:"width"`
	Signed bool   `toml:"signed,omitempty"`
	Target string `toml:"target,omitempty"`
	Name   string `toml:"name"`
}

// Store serializes every class of reg, in registry order.
func Store(reg *layout.Registry) ([]byte, error) {
	v := int64(Version)
	doc := document{Version: &v}
	for _, c := range reg.Classes() {
		cd := classDoc{ID: string(c.ID), Name: c.Name}
		for _, f := range c.Fields() {
			cd.Fields = append(cd.Fields, fieldDoc{
				Kind:   f.Kind.Tag.String(),
				Width:  f.Kind.Width,
				Signed: f.Kind.Tag == layout.TagInt && f.Kind.Signed,
				Target: string(f.Kind.Target),
				Name:   f.Name,
			})
		}
		doc.Classes = append(doc.Classes, cd)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode project: %w", err))
	}
	return buf.Bytes(), nil
}

// Load parses a project into a brand new registry. It fails closed: any
// malformed, unknown or inconsistent content is an error and no registry is
// returned. Pointer fields whose target is not in the file load as Broken.
func Load(data []byte) (*layout.Registry, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.NewProjectFormat(fmt.Sprintf("malformed project file: %v", err), err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.NewProjectFormat(fmt.Sprintf("unknown keys in project file: %s", strings.Join(keys, ", ")), nil)
	}
	if doc.Version == nil {
		return nil, errors.NewProjectFormat("project file has no version", nil)
	}
	if *doc.Version != Version {
		return nil, errors.NewUnsupportedVersion(*doc.Version)
	}

	reg := layout.NewRegistry()
	for i, cd := range doc.Classes {
		c, err := buildClass(i, cd)
		if err != nil {
			return nil, err
		}
		if err := reg.Adopt(c); err != nil {
			return nil, errors.NewProjectFormat(fmt.Sprintf("class %d: duplicate id %q", i, cd.ID), err)
		}
	}
	return reg, nil
}

func buildClass(i int, cd classDoc) (*layout.Class, error) {
	id := strings.TrimSpace(cd.ID)
	if id == "" {
		return nil, errors.NewProjectFormat(fmt.Sprintf("class %d has an empty id", i), nil)
	}
	c := layout.NewClass(layout.ClassID(id), cd.Name)
	for j, fd := range cd.Fields {
		kind, err := buildKind(fd)
		if err != nil {
			return nil, errors.NewProjectFormat(fmt.Sprintf("class %q field %d: %v", cd.Name, j, message(err)), err)
		}
		if _, err := c.AddField(kind, fd.Name, -1); err != nil {
			return nil, errors.NewProjectFormat(fmt.Sprintf("class %q field %d: %v", cd.Name, j, message(err)), err)
		}
	}
	return c, nil
}

func buildKind(fd fieldDoc) (layout.Kind, error) {
	tag, ok := layout.ParseTag(fd.Kind)
	if !ok {
		return layout.Kind{}, fmt.Errorf("unknown kind %q", fd.Kind)
	}
	switch tag {
	case layout.TagHex:
		return layout.Hex(fd.Width)
	case layout.TagInt:
		return layout.Int(fd.Width, fd.Signed)
	case layout.TagFloat:
		return layout.Float(fd.Width)
	default:
		return layout.Pointer(layout.ClassID(strings.TrimSpace(fd.Target)), fd.Width)
	}
}

func message(err error) string {
	if mErr, ok := errors.As(err); ok {
		return mErr.Message
	}
	return err.Error()
}
