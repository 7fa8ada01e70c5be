// Package resolve walks pointer chains from a base address.
package resolve

import (
	"encoding/binary"
	"fmt"

	"github.com/hpungsan/memclass/internal/codec"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/memory"
)

// Step adds Offset to the current address and, if Deref is set, replaces the
// current address with the pointer stored there.
type Step struct {
	Offset int64 `json:"offset"`
	Deref  bool  `json:"dereference"`
}

// Selection is a base address plus a chain of steps.
type Selection struct {
	Base  uint64 `json:"base"`
	Steps []Step `json:"steps,omitempty"`
}

// Hop records one step of a resolution for display.
type Hop struct {
	Step    int    `json:"step"`
	Address uint64 `json:"address"`         // after the offset was applied
	Value   uint64 `json:"value,omitempty"` // pointer read at Address, when Deref
	Deref   bool   `json:"dereference"`
}

// Trace is every intermediate address visited by Resolve.
type Trace []Hop

// ChainError reports the first step whose dereference failed.
type ChainError struct {
	// Step is the zero-based index of the failing step.
	Step int
	// Address is the address whose read failed.
	Address uint64
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain step %d: cannot dereference 0x%X: %v", e.Step, e.Address, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// Resolve applies steps to base and returns the final address. Offsets use
// wrapping uint64 arithmetic. The first failed read stops the walk; the
// partial trace is returned alongside the *ChainError.
func Resolve(r memory.Reader, base uint64, steps []Step, ptrWidth int, order binary.ByteOrder) (uint64, Trace, error) {
	if ptrWidth != 4 && ptrWidth != 8 {
		return 0, nil, errors.NewInvalidRequest(fmt.Sprintf("invalid pointer width %d", ptrWidth))
	}

	current := base
	trace := make(Trace, 0, len(steps))
	for i, st := range steps {
		current += uint64(st.Offset)
		hop := Hop{Step: i, Address: current, Deref: st.Deref}
		if st.Deref {
			b, err := r.Read(current, ptrWidth)
			if err != nil {
				return 0, trace, &ChainError{Step: i, Address: current, Err: err}
			}
			current = codec.ReadPointer(b, order)
			hop.Value = current
		}
		trace = append(trace, hop)
	}
	return current, trace, nil
}

// Resolve resolves the selection.
func (s Selection) Resolve(r memory.Reader, ptrWidth int, order binary.ByteOrder) (uint64, Trace, error) {
	return Resolve(r, s.Base, s.Steps, ptrWidth, order)
}

// String formats the selection as "<base> <chain>".
func (s Selection) String() string {
	if len(s.Steps) == 0 {
		return fmt.Sprintf("0x%X", s.Base)
	}
	return fmt.Sprintf("0x%X %s", s.Base, FormatChain(s.Steps))
}
