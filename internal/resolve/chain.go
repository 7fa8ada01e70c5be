package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/memclass/internal/errors"
)

// ParseChain parses "0x10*,0x8*,-0x20". A trailing '*' marks a dereference.
// Empty text is the empty chain.
func ParseChain(text string) ([]Step, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	parts := strings.Split(text, ",")
	steps := make([]Step, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		var st Step
		if strings.HasSuffix(p, "*") {
			st.Deref = true
			p = strings.TrimSpace(strings.TrimSuffix(p, "*"))
		}
		off, err := parseOffset(p)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("chain step %d: invalid offset %q", i, p))
		}
		st.Offset = off
		steps = append(steps, st)
	}
	return steps, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		if u > 1<<63 {
			return 0, strconv.ErrRange
		}
		return -int64(u), nil
	}
	if u > 1<<63-1 {
		return 0, strconv.ErrRange
	}
	return int64(u), nil
}

// FormatChain is the inverse of ParseChain.
func FormatChain(steps []Step) string {
	parts := make([]string, len(steps))
	for i, st := range steps {
		var s string
		if st.Offset < 0 {
			s = fmt.Sprintf("-0x%X", uint64(-st.Offset))
		} else {
			s = fmt.Sprintf("0x%X", st.Offset)
		}
		if st.Deref {
			s += "*"
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}

// ParseBase parses a base address (0x hex, 0o, 0b or decimal).
func ParseBase(text string) (uint64, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, errors.NewInvalidRequest("base address is required")
	}
	u, err := strconv.ParseUint(t, 0, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid base address %q", text))
	}
	return u, nil
}
