package ops

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/memclass/internal/codec"
	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/inspect"
	"github.com/hpungsan/memclass/internal/memory"
	"github.com/hpungsan/memclass/internal/project"
	"github.com/hpungsan/memclass/internal/resolve"
)

// SourceOutput describes the attached memory source.
type SourceOutput struct {
	Attached bool   `json:"attached"`
	Kind     string `json:"kind,omitempty"`
	PID      int    `json:"pid,omitempty"`
	Name     string `json:"name,omitempty"`
	Path     string `json:"path,omitempty"`
	Base     string `json:"base,omitempty"`
}

func (s *Session) sourceOutput() *SourceOutput {
	src, ok := s.mem.Source()
	if !ok {
		return &SourceOutput{}
	}
	out := &SourceOutput{Attached: true, Kind: src.Kind, PID: src.PID, Name: src.Name, Path: src.Path}
	if src.Kind == "dump" {
		out.Base = s.addr(src.Base)
	}
	return out
}

// SourceInfo reports the current memory source.
func (s *Session) SourceInfo() *SourceOutput {
	return s.sourceOutput()
}

// AttachInput contains parameters for Attach.
type AttachInput struct {
	PID int // required
}

// Attach replaces the memory source with a live process. The previous
// source is closed. The process is recorded in the recents list when a
// database is configured.
func (s *Session) Attach(ctx context.Context, input AttachInput) (*SourceOutput, error) {
	proc, err := memory.OpenProcess(input.PID)
	if err != nil {
		return nil, err
	}
	src := memory.Source{Kind: "process", PID: proc.PID(), Name: proc.Name()}
	if err := s.mem.Attach(proc, src); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"pid": src.PID, "name": src.Name}).Debug("attached to process")

	if s.db != nil {
		name := src.Name
		if name == "" {
			name = itoa(src.PID)
		}
		if err := db.TouchRecentProcess(ctx, s.db, name, src.PID, time.Now().Unix(), s.cfg.RecentLimit); err != nil {
			s.log.WithError(err).Warn("failed to record recent process")
		}
	}
	return s.sourceOutput(), nil
}

// AttachDumpInput contains parameters for AttachDump.
type AttachDumpInput struct {
	Path string // required; raw bytes of one memory region
	Base string // address of the first byte, default 0
}

// AttachDump replaces the memory source with a raw dump file mapped at Base.
// Writes go to the in-memory copy, never to the file.
func (s *Session) AttachDump(input AttachDumpInput) (*SourceOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("dump path is required")
	}
	var base uint64
	if strings.TrimSpace(input.Base) != "" {
		b, err := resolve.ParseBase(input.Base)
		if err != nil {
			return nil, err
		}
		base = b
	}
	if err := project.ValidateDumpPath(input.Path, s.cfg); err != nil {
		return nil, err
	}
	path := input.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	dump, err := memory.LoadDump(path, base, memory.MaxDumpSize)
	if err != nil {
		return nil, err
	}
	if err := s.mem.Attach(dump, memory.Source{Kind: "dump", Path: path, Base: base}); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"path": path, "base": codec.FormatAddress(base, s.cfg.PointerWidth)}).Debug("attached dump")
	return s.sourceOutput(), nil
}

// Detach drops the memory source. Reads fail until the next attach.
func (s *Session) Detach() (*SourceOutput, error) {
	if err := s.mem.Detach(); err != nil {
		return nil, err
	}
	s.log.Debug("detached")
	return s.sourceOutput(), nil
}

// SetSelectionInput contains parameters for SetSelection.
type SetSelectionInput struct {
	Class string // optional; changes the active class
	Base  string // required
	Chain string // e.g. "0x10*,0x8"
}

// SetSelection sets the base address, pointer chain and optionally the
// active class used when operations omit them.
func (s *Session) SetSelection(input SetSelectionInput) (*SelectionView, error) {
	if strings.TrimSpace(input.Base) == "" {
		return nil, errors.NewInvalidRequest("base address is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sel, err := s.selectionFrom(input.Base, input.Chain)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Class) != "" {
		c, err := s.classLocked(input.Class)
		if err != nil {
			return nil, err
		}
		s.active = c.ID
	}
	s.selection = sel
	v := s.selectionViewLocked()
	return &v, nil
}

// Selection returns the current selection.
func (s *Session) Selection() SelectionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionViewLocked()
}

// ResolveInput contains parameters for Resolve. An empty Base uses the
// session selection.
type ResolveInput struct {
	Base  string
	Chain string
}

// ResolveOutput contains the result of Resolve.
type ResolveOutput struct {
	Base    string    `json:"base"`
	Chain   string    `json:"chain,omitempty"`
	Address string    `json:"address"`
	Trace   []HopView `json:"trace"`
}

// Resolve walks a pointer chain. A failed dereference is returned as
// MEMORY_READ naming the step and address.
func (s *Session) Resolve(ctx context.Context, input ResolveInput) (*ResolveOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("resolve")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sel, err := s.selectionFrom(input.Base, input.Chain)
	if err != nil {
		return nil, err
	}
	addr, trace, err := sel.Resolve(s.mem, s.cfg.PointerWidth, s.cfg.Order())
	if err != nil {
		var ce *resolve.ChainError
		if stderrors.As(err, &ce) {
			return nil, errors.NewChainFailed(ce.Step, ce.Address, ce.Err)
		}
		return nil, err
	}
	return &ResolveOutput{
		Base:    s.addr(sel.Base),
		Chain:   resolve.FormatChain(sel.Steps),
		Address: s.addr(addr),
		Trace:   s.trace(trace),
	}, nil
}

// InspectInput contains parameters for Inspect. Empty Class and Base fall
// back to the session's active class and selection.
type InspectInput struct {
	Class string
	Base  string
	Chain string
	Depth int // nested pointer expansion, 0..inspect.MaxDepth
}

// InspectOutput contains the result of Inspect.
type InspectOutput struct {
	Base  string         `json:"base"`
	Chain string         `json:"chain,omitempty"`
	Trace []HopView      `json:"trace"`
	Frame *inspect.Frame `json:"frame"`
}

// Inspect resolves the selection and decodes a class there. Field read
// failures are reported per field; only a broken chain fails the call.
func (s *Session) Inspect(ctx context.Context, input InspectInput) (*InspectOutput, error) {
	if input.Depth < 0 || input.Depth > inspect.MaxDepth {
		return nil, errors.NewInvalidRequest("depth must be between 0 and " + itoa(inspect.MaxDepth))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("inspect")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	sel, err := s.selectionFrom(input.Base, input.Chain)
	if err != nil {
		return nil, err
	}
	ic, err := s.newContextLocked()
	if err != nil {
		return nil, err
	}
	res, err := ic.Inspect(c, sel, input.Depth)
	if err != nil {
		return nil, err
	}
	return &InspectOutput{
		Base:  res.Base,
		Chain: resolve.FormatChain(sel.Steps),
		Trace: s.trace(res.Trace),
		Frame: res.Frame,
	}, nil
}

// WriteFieldInput contains parameters for WriteField.
type WriteFieldInput struct {
	Class string
	Base  string
	Chain string
	Field FieldRef
	Value string // text in the field kind's syntax
}

// WriteFieldOutput contains the result of WriteField.
type WriteFieldOutput struct {
	Address string    `json:"address"`
	Field   FieldInfo `json:"field"`
	Value   string    `json:"value"`
}

// WriteField encodes Value for a field and writes it at the resolved
// selection. Invalid text fails before memory is touched.
func (s *Session) WriteField(ctx context.Context, input WriteFieldInput) (*WriteFieldOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	f, off, err := fieldLocked(c, input.Field)
	if err != nil {
		return nil, err
	}
	sel, err := s.selectionFrom(input.Base, input.Chain)
	if err != nil {
		return nil, err
	}
	if _, ok := s.mem.Source(); !ok {
		return nil, errors.NewNotAttached()
	}
	ic, err := s.newContextLocked()
	if err != nil {
		return nil, err
	}
	base, _, err := sel.Resolve(ic, s.cfg.PointerWidth, s.cfg.Order())
	if err != nil {
		var ce *resolve.ChainError
		if stderrors.As(err, &ce) {
			return nil, errors.NewChainFailed(ce.Step, ce.Address, ce.Err)
		}
		return nil, err
	}
	value, err := ic.WriteField(c, base, f.ID, input.Value)
	if err != nil {
		return nil, err
	}
	addr := base + uint64(off)
	s.log.WithFields(logrus.Fields{"address": s.addr(addr), "kind": f.Kind.String()}).Info("field written")
	return &WriteFieldOutput{
		Address: s.addr(addr),
		Field:   fieldInfo(s.reg, c, c.Index(f.ID)),
		Value:   value,
	}, nil
}
