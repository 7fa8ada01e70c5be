package inspect

import (
	stderrors "errors"
	"fmt"

	"github.com/hpungsan/memclass/internal/codec"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/resolve"
)

// MaxDepth bounds nested pointer expansion.
const MaxDepth = 8

// MaxFrames bounds the number of frames one expansion may build.
const MaxFrames = 4096

// FieldView is one decoded field of a frame. Read and decode failures stay
// on the field; they never abort the frame.
type FieldView struct {
	ID      layout.FieldID `json:"id"`
	Name    string         `json:"name"`
	Offset  int            `json:"offset"`
	Address string         `json:"address"`
	Kind    string         `json:"kind"`
	Width   int            `json:"width"`
	Value   string         `json:"value,omitempty"`
	Error   string         `json:"error,omitempty"`

	// Pointer fields only.
	Target     layout.ClassID `json:"target,omitempty"`
	TargetName string         `json:"target_name,omitempty"`
	Ref        string         `json:"ref,omitempty"`
	Pointee    *Frame         `json:"pointee,omitempty"`
	SeenAt     string         `json:"seen_at,omitempty"` // pointee already expanded elsewhere in this frame
	ExpandErr  string         `json:"expand_error,omitempty"`
}

// Frame is a class decoded at an address.
type Frame struct {
	ClassID   layout.ClassID `json:"class_id"`
	ClassName string         `json:"class_name"`
	Address   string         `json:"address"`
	Size      int            `json:"size"`
	Fields    []FieldView    `json:"fields"`
}

// Result is a resolved selection plus its frame.
type Result struct {
	Base  string        `json:"base"`
	Trace resolve.Trace `json:"trace,omitempty"`
	Frame *Frame        `json:"frame,omitempty"`
}

// Inspect resolves sel and decodes class at the resulting address, following
// pointer fields depth levels deep. A broken chain is returned as
// MEMORY_READ with the failing step and address in the details.
func (c *Context) Inspect(class *layout.Class, sel resolve.Selection, depth int) (*Result, error) {
	res := &Result{Base: codec.FormatAddress(sel.Base, c.ptrWidth)}
	addr, trace, err := sel.Resolve(c, c.ptrWidth, c.order)
	res.Trace = trace
	if err != nil {
		var ce *resolve.ChainError
		if stderrors.As(err, &ce) {
			return res, errors.NewChainFailed(ce.Step, ce.Address, ce.Err)
		}
		return res, err
	}
	res.Frame = c.Frame(class, addr, depth)
	return res, nil
}

// frameKey identifies one expanded frame.
type frameKey struct {
	class layout.ClassID
	addr  uint64
}

// expansion tracks the frames built by one top-level Frame call.
type expansion struct {
	seen   map[frameKey]bool
	frames int
}

// Frame decodes every field of class at addr. Pointer fields are expanded
// up to depth levels; a (class, address) pair is expanded once and later
// references to it carry SeenAt instead of a second copy.
func (c *Context) Frame(class *layout.Class, addr uint64, depth int) *Frame {
	if depth > MaxDepth {
		depth = MaxDepth
	}
	x := &expansion{seen: map[frameKey]bool{}}
	return c.frame(x, class, addr, depth)
}

func (c *Context) frame(x *expansion, class *layout.Class, addr uint64, depth int) *Frame {
	x.seen[frameKey{class.ID, addr}] = true
	x.frames++
	f := &Frame{
		ClassID:   class.ID,
		ClassName: class.Name,
		Address:   codec.FormatAddress(addr, c.ptrWidth),
		Size:      class.Size(),
		Fields:    make([]FieldView, 0, class.Len()),
	}
	for i := 0; i < class.Len(); i++ {
		field, off := class.FieldAt(i)
		f.Fields = append(f.Fields, c.field(x, field, addr+uint64(off), off, depth))
	}
	return f
}

func (c *Context) field(x *expansion, field layout.Field, addr uint64, off, depth int) FieldView {
	v := FieldView{
		ID:      field.ID,
		Name:    field.Name,
		Offset:  off,
		Address: codec.FormatAddress(addr, c.ptrWidth),
		Kind:    field.Kind.String(),
		Width:   field.Width(),
	}

	b, err := c.Read(addr, field.Width())
	if err == nil {
		v.Value, err = codec.Decode(field.Kind, b, c.order)
	}
	if err != nil {
		v.Error = message(err)
	}

	if field.Kind.Tag != layout.TagPointer {
		return v
	}
	v.Target = field.Kind.Target
	state := layout.RefBroken
	if c.reg != nil {
		state = c.reg.PointerState(field.Kind)
	}
	v.Ref = state.String()

	var target *layout.Class
	if c.reg != nil {
		if t, ok := c.reg.Lookup(field.Kind.Target); ok {
			target = t
			v.TargetName = t.Name
		}
	}
	if depth <= 0 {
		return v
	}
	if target == nil {
		v.ExpandErr = message(errors.NewDanglingReference(string(field.Kind.Target)))
		return v
	}
	if err != nil {
		return v
	}
	p := codec.ReadPointer(b, c.order)
	if p == 0 {
		return v
	}
	switch {
	case x.seen[frameKey{target.ID, p}]:
		v.SeenAt = codec.FormatAddress(p, c.ptrWidth)
	case x.frames >= MaxFrames:
		v.ExpandErr = message(errors.NewExpansionLimit(MaxFrames))
	default:
		v.Pointee = c.frame(x, target, p, depth-1)
	}
	return v
}

func message(err error) string {
	if mErr, ok := errors.As(err); ok {
		return fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message)
	}
	return err.Error()
}
