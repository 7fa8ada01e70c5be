//go:build !linux

package memory

import (
	"github.com/hpungsan/memclass/internal/errors"
)

// Process is unavailable on this platform.
type Process struct{}

// OpenProcess always fails outside Linux.
func OpenProcess(pid int) (*Process, error) {
	return nil, errors.NewInvalidRequest(ErrUnsupported.Error())
}

// PID returns 0.
func (p *Process) PID() int { return 0 }

// Name returns "".
func (p *Process) Name() string { return "" }

// Read always fails.
func (p *Process) Read(addr uint64, n int) ([]byte, error) {
	return nil, errors.NewMemoryRead(addr, n, ErrUnsupported)
}

// Write always fails.
func (p *Process) Write(addr uint64, b []byte) error {
	return errors.NewMemoryWrite(addr, len(b), ErrUnsupported)
}

// Close is a no-op.
func (p *Process) Close() error { return nil }
