package ops

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/memclass/internal/codec"
	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/inspect"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/memory"
	"github.com/hpungsan/memclass/internal/resolve"
)

// Session is the state of one memclass instance: the class registry, the
// current memory source, the selection being inspected and the project it
// belongs to. Every operation is safe for concurrent use; the CLI, the MCP
// server and the web UI all drive a Session.
type Session struct {
	cfg *config.Config
	db  *sql.DB // optional; recents and bookmarks need it
	log *logrus.Entry

	mem *memory.Handle

	mu          sync.Mutex
	reg         *layout.Registry
	active      layout.ClassID
	selection   resolve.Selection
	projectPath string
	// dummy is set while the project holds nothing worth saving.
	dummy bool
}

// NewSession returns a session with an empty dummy project and no memory
// source. database may be nil.
func NewSession(cfg *config.Config, database *sql.DB) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:   cfg,
		db:    database,
		log:   logflags.SessionLogger(),
		mem:   memory.NewHandle(),
		reg:   layout.NewRegistry(),
		dummy: true,
	}, nil
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Memory returns the shared memory handle.
func (s *Session) Memory() *memory.Handle { return s.mem }

// Close detaches any memory source.
func (s *Session) Close() error {
	return s.mem.Detach()
}

// touch marks the project as holding user work. Callers hold s.mu.
func (s *Session) touch() {
	s.dummy = false
}

// classLocked resolves a class reference: a class id, a class name, or ""
// for the active class. Callers hold s.mu.
func (s *Session) classLocked(ref string) (*layout.Class, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if s.active == "" {
			return nil, errors.NewInvalidRequest("class is required (no active class)")
		}
		return s.reg.Class(s.active)
	}
	if c, ok := s.reg.Lookup(layout.ClassID(ref)); ok {
		return c, nil
	}
	if c, ok := s.reg.FindByName(ref); ok {
		return c, nil
	}
	return nil, errors.NewNotFound("class", ref)
}

// FieldRef addresses a field of a class by position or by name. Exactly one
// must be set.
type FieldRef struct {
	Index *int
	Name  string
}

func (r FieldRef) validate() error {
	hasName := strings.TrimSpace(r.Name) != ""
	if r.Index != nil && hasName {
		return errors.NewInvalidRequest("specify either field index or field name, not both")
	}
	if r.Index == nil && !hasName {
		return errors.NewInvalidRequest("field index or field name is required")
	}
	return nil
}

// fieldLocked resolves r within c.
func fieldLocked(c *layout.Class, r FieldRef) (layout.Field, int, error) {
	if err := r.validate(); err != nil {
		return layout.Field{}, 0, err
	}
	if r.Index != nil {
		if *r.Index < 0 || *r.Index >= c.Len() {
			return layout.Field{}, 0, errors.NewNotFound("field", fmt.Sprintf("index %d in class %s", *r.Index, c.Name))
		}
		f, off := c.FieldAt(*r.Index)
		return f, off, nil
	}
	want := layout.NormalizeName(r.Name)
	for i := 0; i < c.Len(); i++ {
		f, off := c.FieldAt(i)
		if layout.NormalizeName(f.Name) == want {
			return f, off, nil
		}
	}
	return layout.Field{}, 0, errors.NewNotFound("field", fmt.Sprintf("%s in class %s", r.Name, c.Name))
}

// parseKindLocked parses kind syntax, resolving a pointer target given as a
// class name to its id.
func (s *Session) parseKindLocked(text string) (layout.Kind, error) {
	k, err := layout.ParseKind(text, s.cfg.PointerWidth)
	if err != nil {
		return layout.Kind{}, err
	}
	if k.Tag != layout.TagPointer {
		return k, nil
	}
	target, err := s.classLocked(string(k.Target))
	if err != nil {
		return layout.Kind{}, err
	}
	k.Target = target.ID
	return k, nil
}

// checkNameLocked rejects a class name already used by another class.
func (s *Session) checkNameLocked(name string, self layout.ClassID) error {
	if other, ok := s.reg.FindByName(name); ok && other.ID != self {
		return errors.NewNameAlreadyExists("class", name)
	}
	return nil
}

// selectionFrom builds a selection from text, falling back to the session's
// selection when base is empty. Callers hold s.mu.
func (s *Session) selectionFrom(base, chain string) (resolve.Selection, error) {
	if strings.TrimSpace(base) == "" {
		if strings.TrimSpace(chain) != "" {
			return resolve.Selection{}, errors.NewInvalidRequest("chain given without base address")
		}
		return s.selection, nil
	}
	b, err := resolve.ParseBase(base)
	if err != nil {
		return resolve.Selection{}, err
	}
	steps, err := resolve.ParseChain(chain)
	if err != nil {
		return resolve.Selection{}, err
	}
	return resolve.Selection{Base: b, Steps: steps}, nil
}

func (s *Session) newContextLocked() (*inspect.Context, error) {
	return inspect.NewContext(s.mem, s.reg, s.cfg.Order(), s.cfg.PointerWidth, s.cfg.PageCachePages)
}

func (s *Session) addr(a uint64) string {
	return codec.FormatAddress(a, s.cfg.PointerWidth)
}

// HopView is one step of a resolved chain.
type HopView struct {
	Step    int    `json:"step"`
	Address string `json:"address"`
	Value   string `json:"value,omitempty"`
	Deref   bool   `json:"dereference"`
}

func (s *Session) trace(t resolve.Trace) []HopView {
	out := make([]HopView, len(t))
	for i, h := range t {
		out[i] = HopView{Step: h.Step, Address: s.addr(h.Address), Deref: h.Deref}
		if h.Deref {
			out[i].Value = s.addr(h.Value)
		}
	}
	return out
}

// SelectionView is a selection in display form.
type SelectionView struct {
	Class     string `json:"class,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	Base      string `json:"base"`
	Chain     string `json:"chain,omitempty"`
}

func (s *Session) selectionViewLocked() SelectionView {
	v := SelectionView{
		Class: string(s.active),
		Base:  s.addr(s.selection.Base),
		Chain: resolve.FormatChain(s.selection.Steps),
	}
	if c, ok := s.reg.Lookup(s.active); ok {
		v.ClassName = c.Name
	}
	return v
}

func itoa(i int) string { return strconv.Itoa(i) }
