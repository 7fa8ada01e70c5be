//go:build linux

package memory

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/hpungsan/memclass/internal/errors"
)

// Process reads and writes another process's memory with
// process_vm_readv/process_vm_writev. Unmapped addresses fail with EFAULT
// immediately; nothing here can block on the target.
type Process struct {
	pid    int
	name   string
	closed atomic.Bool
}

// OpenProcess checks that pid exists and returns a backend for it.
// Permission to read is only checked by the first access (ptrace scope).
func OpenProcess(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid pid %d", pid))
	}
	if err := unix.Kill(pid, 0); err != nil && err != unix.EPERM {
		return nil, errors.NewNotFound("process", strconv.Itoa(pid))
	}
	return &Process{pid: pid, name: processName(pid)}, nil
}

// processName returns /proc/<pid>/comm, or "" if unreadable.
func processName(pid int) string {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// PID returns the target process id.
func (p *Process) PID() int { return p.pid }

// Name returns the target's command name.
func (p *Process) Name() string { return p.name }

// Read implements Reader.
func (p *Process) Read(addr uint64, n int) ([]byte, error) {
	if p.closed.Load() {
		return nil, errors.NewMemoryRead(addr, n, ErrNotAttached)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 || overflows(addr, n) || uint64(uintptr(addr)) != addr {
		return nil, errors.NewMemoryRead(addr, n, ErrNotMapped)
	}

	buf := make([]byte, n)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(n)
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: n}}

	got, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil {
		return nil, errors.NewMemoryRead(addr, n, err)
	}
	if got != n {
		return nil, errors.NewMemoryRead(addr, n, ErrShortTransfer)
	}
	return buf, nil
}

// Write implements ReadWriter.
func (p *Process) Write(addr uint64, b []byte) error {
	if p.closed.Load() {
		return errors.NewMemoryWrite(addr, len(b), ErrNotAttached)
	}
	if len(b) == 0 {
		return nil
	}
	if overflows(addr, len(b)) || uint64(uintptr(addr)) != addr {
		return errors.NewMemoryWrite(addr, len(b), ErrNotMapped)
	}

	local := []unix.Iovec{{Base: &b[0]}}
	local[0].SetLen(len(b))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(b)}}

	got, err := unix.ProcessVMWritev(p.pid, local, remote, 0)
	if err != nil {
		return errors.NewMemoryWrite(addr, len(b), err)
	}
	if got != len(b) {
		return errors.NewMemoryWrite(addr, len(b), ErrShortTransfer)
	}
	return nil
}

// Close makes every later access fail.
func (p *Process) Close() error {
	p.closed.Store(true)
	return nil
}
