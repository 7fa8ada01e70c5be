package memory

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/hpungsan/memclass/internal/errors"
)

type region struct {
	start    uint64
	data     []byte
	readOnly bool
}

func (r *region) end() uint64 {
	return r.start + uint64(len(r.data))
}

// Sparse is an in-memory address space made of non-overlapping regions.
// Accesses may span adjacent regions; any byte outside every region fails
// the whole access. Used for raw dumps and tests.
type Sparse struct {
	mu      sync.RWMutex
	regions []*region // sorted by start
	closed  bool
}

// NewSparse returns an empty address space.
func NewSparse() *Sparse {
	return &Sparse{}
}

// Map adds a writable region holding a copy of data at start.
func (s *Sparse) Map(start uint64, data []byte) error {
	return s.mapRegion(start, data, false)
}

// MapReadOnly adds a region that rejects writes.
func (s *Sparse) MapReadOnly(start uint64, data []byte) error {
	return s.mapRegion(start, data, true)
}

func (s *Sparse) mapRegion(start uint64, data []byte, readOnly bool) error {
	if len(data) == 0 {
		return errors.NewInvalidRequest("cannot map an empty region")
	}
	if overflows(start, len(data)) {
		return errors.NewInvalidRequest(fmt.Sprintf("region at 0x%X wraps the address space", start))
	}
	r := &region{start: start, data: append([]byte(nil), data...), readOnly: readOnly}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.regions {
		if r.start < o.end() && o.start < r.end() {
			return errors.NewInvalidRequest(fmt.Sprintf("region at 0x%X overlaps region at 0x%X", start, o.start))
		}
	}
	s.regions = append(s.regions, r)
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].start < s.regions[j].start })
	return nil
}

// find returns the region containing addr.
func (s *Sparse) find(addr uint64) *region {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].end() > addr })
	if i < len(s.regions) && s.regions[i].start <= addr {
		return s.regions[i]
	}
	return nil
}

// Read implements Reader.
func (s *Sparse) Read(addr uint64, n int) ([]byte, error) {
	if n < 0 || overflows(addr, n) {
		return nil, errors.NewMemoryRead(addr, n, ErrNotMapped)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.NewMemoryRead(addr, n, ErrNotAttached)
	}

	out := make([]byte, 0, n)
	cur := addr
	for len(out) < n {
		r := s.find(cur)
		if r == nil {
			return nil, errors.NewMemoryRead(addr, n, ErrNotMapped)
		}
		chunk := r.data[cur-r.start:]
		if rem := n - len(out); len(chunk) > rem {
			chunk = chunk[:rem]
		}
		out = append(out, chunk...)
		cur += uint64(len(chunk))
	}
	return out, nil
}

// Write implements ReadWriter. Nothing is written unless every byte is
// mapped and writable.
func (s *Sparse) Write(addr uint64, b []byte) error {
	if overflows(addr, len(b)) {
		return errors.NewMemoryWrite(addr, len(b), ErrNotMapped)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.NewMemoryWrite(addr, len(b), ErrNotAttached)
	}

	type span struct {
		r   *region
		off uint64
		n   int
	}
	var spans []span
	cur, done := addr, 0
	for done < len(b) {
		r := s.find(cur)
		if r == nil {
			return errors.NewMemoryWrite(addr, len(b), ErrNotMapped)
		}
		if r.readOnly {
			return errors.NewMemoryWrite(addr, len(b), ErrReadOnly)
		}
		n := int(r.end() - cur)
		if rem := len(b) - done; n > rem {
			n = rem
		}
		spans = append(spans, span{r, cur - r.start, n})
		cur += uint64(n)
		done += n
	}

	done = 0
	for _, sp := range spans {
		copy(sp.r.data[sp.off:], b[done:done+sp.n])
		done += sp.n
	}
	return nil
}

// Close makes every later access fail.
func (s *Sparse) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MaxDumpSize is the largest dump LoadDump accepts.
const MaxDumpSize = 1 << 30

// LoadDump maps the contents of a raw memory dump file at base. Only regular
// files of at most limit bytes are accepted; a non-positive limit means
// MaxDumpSize.
func LoadDump(path string, base uint64, limit int64) (*Sparse, error) {
	if limit <= 0 {
		limit = MaxDumpSize
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to stat dump: %w", err))
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewInvalidRequest("dump must be a regular file: " + path)
	}
	if info.Size() > limit {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("dump exceeds %d bytes", limit))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to open dump: %w", err))
	}
	defer f.Close()
	// The path may have been swapped between Lstat and Open.
	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		return nil, errors.NewInvalidRequest("dump must be a regular file: " + path)
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read dump: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("dump exceeds %d bytes", limit))
	}
	s := NewSparse()
	if err := s.Map(base, data); err != nil {
		return nil, err
	}
	return s, nil
}
