// Package memory is the boundary to the inspected address space.
//
// The core never assumes a read or write succeeds. Every backend reports
// failure as a MEMORY_READ / MEMORY_WRITE error, and "nothing attached" is
// just a backend on which every access fails.
package memory

import (
	stderrors "errors"

	"github.com/hpungsan/memclass/internal/errors"
)

// Reader reads raw bytes at an absolute address.
type Reader interface {
	// Read returns exactly n bytes starting at addr, or an error.
	Read(addr uint64, n int) ([]byte, error)
}

// ReadWriter adds targeted writes.
type ReadWriter interface {
	Reader
	// Write stores all of b at addr, or returns an error.
	Write(addr uint64, b []byte) error
}

// Accessor is a memory backend owned by a Handle.
type Accessor interface {
	ReadWriter
	// Close releases backend resources. Reads after Close fail.
	Close() error
}

// Sentinel causes wrapped by MEMORY_READ / MEMORY_WRITE errors.
var (
	ErrNotAttached   = stderrors.New("no memory source attached")
	ErrNotMapped     = stderrors.New("address not mapped")
	ErrReadOnly      = stderrors.New("region is read-only")
	ErrShortTransfer = stderrors.New("short transfer")
	ErrUnsupported   = stderrors.New("process memory access is not supported on this platform")
)

// Disabled is the backend used when nothing is attached: every access fails.
type Disabled struct{}

// Read always fails.
func (Disabled) Read(addr uint64, n int) ([]byte, error) {
	return nil, errors.NewMemoryRead(addr, n, ErrNotAttached)
}

// Write always fails.
func (Disabled) Write(addr uint64, b []byte) error {
	return errors.NewMemoryWrite(addr, len(b), ErrNotAttached)
}

// Close is a no-op.
func (Disabled) Close() error { return nil }

// Source describes what a Handle is attached to.
type Source struct {
	Kind string `json:"kind"` // "process" or "dump"
	PID  int    `json:"pid,omitempty"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
	Base uint64 `json:"base,omitempty"`
}

// overflows reports whether [addr, addr+n) wraps around the address space.
func overflows(addr uint64, n int) bool {
	return n > 0 && addr+uint64(n)-1 < addr
}
