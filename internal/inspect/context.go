// Package inspect decodes classes against memory for one refresh.
//
// A Context is built for each refresh and dropped afterwards. Its reads go
// through an LRU of 4 KiB pages so that every field in a frame sees the
// same bytes of a page, and a span that failed once fails again without
// touching the backend.
package inspect

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/memory"
)

// PageSize is the granularity of the refresh cache.
const PageSize = 4096

// DefaultCachePages is used when NewContext is given a non-positive size.
const DefaultCachePages = 256

type pageKey uint64

// spanKey remembers a failed direct read.
type spanKey struct {
	addr uint64
	n    int
}

// pageEntry is a cached page. A nil data means the full page could not be
// read and reads inside it go to the backend directly.
type pageEntry struct {
	data []byte
}

// Context is the per-refresh view of memory.
type Context struct {
	mem      memory.ReadWriter
	reg      *layout.Registry
	order    binary.ByteOrder
	ptrWidth int
	cache    *lru.Cache
}

// NewContext builds a context over mem. reg is used to follow pointer fields
// and may be nil when only raw reads are needed.
func NewContext(mem memory.ReadWriter, reg *layout.Registry, order binary.ByteOrder, ptrWidth, cachePages int) (*Context, error) {
	if ptrWidth != 4 && ptrWidth != 8 {
		return nil, errors.NewInvalidRequest("pointer width must be 4 or 8")
	}
	if cachePages <= 0 {
		cachePages = DefaultCachePages
	}
	cache, err := lru.New(cachePages)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &Context{mem: mem, reg: reg, order: order, ptrWidth: ptrWidth, cache: cache}, nil
}

// Order returns the byte order used for decoding.
func (c *Context) Order() binary.ByteOrder { return c.order }

// PointerWidth returns the configured pointer width.
func (c *Context) PointerWidth() int { return c.ptrWidth }

// Read implements memory.Reader through the page cache.
func (c *Context) Read(addr uint64, n int) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	if addr+uint64(n)-1 < addr {
		return nil, errors.NewMemoryRead(addr, n, memory.ErrNotMapped)
	}
	if v, ok := c.cache.Get(spanKey{addr, n}); ok {
		return nil, v.(error)
	}

	out := make([]byte, 0, n)
	first := addr / PageSize
	last := (addr + uint64(n) - 1) / PageSize
	for p := first; p <= last; p++ {
		entry := c.page(p)
		if entry.data == nil {
			return c.direct(addr, n)
		}
		lo := uint64(0)
		if p == first {
			lo = addr - p*PageSize
		}
		hi := uint64(PageSize)
		if p == last {
			hi = addr + uint64(n) - p*PageSize
		}
		out = append(out, entry.data[lo:hi]...)
	}
	return out, nil
}

// page returns the cached page p, loading it on a miss.
func (c *Context) page(p uint64) pageEntry {
	if v, ok := c.cache.Get(pageKey(p)); ok {
		return v.(pageEntry)
	}
	data, err := c.mem.Read(p*PageSize, PageSize)
	if err != nil {
		data = nil
	}
	entry := pageEntry{data: data}
	c.cache.Add(pageKey(p), entry)
	return entry
}

// direct reads a span of a page that is not fully readable.
func (c *Context) direct(addr uint64, n int) ([]byte, error) {
	b, err := c.mem.Read(addr, n)
	if err != nil {
		c.cache.Add(spanKey{addr, n}, err)
		return nil, err
	}
	return b, nil
}

// Write stores b and drops every cached entry it touches.
func (c *Context) Write(addr uint64, b []byte) error {
	if err := c.mem.Write(addr, b); err != nil {
		return err
	}
	c.invalidate(addr, len(b))
	return nil
}

func (c *Context) invalidate(addr uint64, n int) {
	if n <= 0 {
		return
	}
	end := addr + uint64(n)
	for p := addr / PageSize; p <= (end-1)/PageSize; p++ {
		c.cache.Remove(pageKey(p))
	}
	for _, k := range c.cache.Keys() {
		if s, ok := k.(spanKey); ok && s.addr < end && addr < s.addr+uint64(s.n) {
			c.cache.Remove(k)
		}
	}
}
