package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/memclass/internal/errors"
)

// Tag identifies the variant of a Kind.
type Tag int

const (
	TagHex Tag = iota + 1
	TagInt
	TagFloat
	TagPointer
)

// String returns the tag name used in project files.
func (t Tag) String() string {
	switch t {
	case TagHex:
		return "hex"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagPointer:
		return "ptr"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, bool) {
	switch s {
	case "hex":
		return TagHex, true
	case "int":
		return TagInt, true
	case "float":
		return TagFloat, true
	case "ptr":
		return TagPointer, true
	}
	return 0, false
}

// Kind is the declared type of a field. It is a closed variant: the zero
// value is invalid and every Kind is built by one of the constructors below.
type Kind struct {
	Tag    Tag
	Width  int
	Signed bool    // TagInt only
	Target ClassID // TagPointer only
}

// Hex returns a raw hex kind of w bytes.
func Hex(w int) (Kind, error) {
	if !intWidth(w) {
		return Kind{}, errors.NewInvalidRequest(fmt.Sprintf("hex width must be 1, 2, 4 or 8, got %d", w))
	}
	return Kind{Tag: TagHex, Width: w}, nil
}

// Int returns an integer kind of w bytes.
func Int(w int, signed bool) (Kind, error) {
	if !intWidth(w) {
		return Kind{}, errors.NewInvalidRequest(fmt.Sprintf("int width must be 1, 2, 4 or 8, got %d", w))
	}
	return Kind{Tag: TagInt, Width: w, Signed: signed}, nil
}

// Float returns an IEEE-754 kind of 4 or 8 bytes.
func Float(w int) (Kind, error) {
	if w != 4 && w != 8 {
		return Kind{}, errors.NewInvalidRequest(fmt.Sprintf("float width must be 4 or 8, got %d", w))
	}
	return Kind{Tag: TagFloat, Width: w}, nil
}

// Pointer returns a pointer to an instance of class target, w bytes wide.
func Pointer(target ClassID, w int) (Kind, error) {
	if w != 4 && w != 8 {
		return Kind{}, errors.NewInvalidRequest(fmt.Sprintf("pointer width must be 4 or 8, got %d", w))
	}
	if target == "" {
		return Kind{}, errors.NewInvalidRequest("pointer target class is required")
	}
	return Kind{Tag: TagPointer, Width: w, Target: target}, nil
}

// MustKind panics if err is non-nil. Intended for tests and constant kinds.
func MustKind(k Kind, err error) Kind {
	if err != nil {
		panic(err)
	}
	return k
}

// Validate reports whether k could have been produced by a constructor.
func (k Kind) Validate() error {
	var err error
	switch k.Tag {
	case TagHex:
		_, err = Hex(k.Width)
	case TagInt:
		_, err = Int(k.Width, k.Signed)
	case TagFloat:
		_, err = Float(k.Width)
	case TagPointer:
		_, err = Pointer(k.Target, k.Width)
	default:
		err = errors.NewInvalidRequest(fmt.Sprintf("unknown field kind %s", k.Tag))
	}
	return err
}

// String renders k in the short syntax accepted by ParseKind.
func (k Kind) String() string {
	switch k.Tag {
	case TagHex:
		return "hex" + strconv.Itoa(k.Width*8)
	case TagInt:
		if k.Signed {
			return "i" + strconv.Itoa(k.Width*8)
		}
		return "u" + strconv.Itoa(k.Width*8)
	case TagFloat:
		return "f" + strconv.Itoa(k.Width*8)
	case TagPointer:
		return "ptr:" + string(k.Target)
	}
	return "invalid"
}

// ParseKind parses the short syntax: hex8..hex64, i8..i64, u8..u64, f32, f64
// and ptr:<target>. The pointer target is returned verbatim; callers that
// accept class names resolve it before use.
func ParseKind(s string, pointerWidth int) (Kind, error) {
	raw := strings.TrimSpace(s)
	s = strings.ToLower(raw)

	if strings.HasPrefix(s, "ptr:") {
		return Pointer(ClassID(strings.TrimSpace(raw[len("ptr:"):])), pointerWidth)
	}

	bits := func(prefix string) (int, bool) {
		rest, ok := strings.CutPrefix(s, prefix)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n%8 != 0 {
			return 0, false
		}
		return n / 8, true
	}

	if w, ok := bits("hex"); ok {
		return Hex(w)
	}
	if w, ok := bits("i"); ok {
		return Int(w, true)
	}
	if w, ok := bits("u"); ok {
		return Int(w, false)
	}
	if w, ok := bits("f"); ok {
		return Float(w)
	}
	return Kind{}, errors.NewInvalidRequest(fmt.Sprintf("unknown field kind %q", s))
}

func intWidth(w int) bool {
	return w == 1 || w == 2 || w == 4 || w == 8
}
