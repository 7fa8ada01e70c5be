// Package codec converts between the raw bytes of a field and the text the
// user sees and types. Every function is pure; byte order is passed in.
package codec

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
)

// Decode renders the bytes of one field. len(b) must equal kind.Width.
func Decode(kind layout.Kind, b []byte, order binary.ByteOrder) (string, error) {
	if len(b) != kind.Width {
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s needs %d bytes, got %d", kind, kind.Width, len(b)))
	}

	switch kind.Tag {
	case layout.TagHex:
		return fmt.Sprintf("%0*X", 2*kind.Width, readUint(b, order)), nil
	case layout.TagInt:
		u := readUint(b, order)
		if kind.Signed {
			return strconv.FormatInt(signExtend(u, kind.Width), 10), nil
		}
		return strconv.FormatUint(u, 10), nil
	case layout.TagFloat:
		if kind.Width == 4 {
			return formatFloat(float64(math.Float32frombits(uint32(readUint(b, order)))), 32), nil
		}
		return formatFloat(math.Float64frombits(readUint(b, order)), 64), nil
	case layout.TagPointer:
		return FormatAddress(readUint(b, order), kind.Width), nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown field kind %s", kind.Tag))
}

// Encode parses user text into the bytes of one field.
func Encode(kind layout.Kind, text string, order binary.ByteOrder) ([]byte, error) {
	text = strings.TrimSpace(text)

	var u uint64
	switch kind.Tag {
	case layout.TagHex:
		digits := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
		if len(digits) != 2*kind.Width {
			return nil, errors.NewInvalidHex(text, 2*kind.Width)
		}
		v, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return nil, errors.NewInvalidHex(text, 2*kind.Width)
		}
		u = v
	case layout.TagInt:
		v, err := parseInt(text, kind)
		if err != nil {
			return nil, err
		}
		u = v
	case layout.TagFloat:
		bits := kind.Width * 8
		f, err := strconv.ParseFloat(text, bits)
		if err != nil {
			if stderrors.Is(err, strconv.ErrRange) {
				return nil, errors.NewOutOfRange(text, kind.String())
			}
			return nil, errors.NewInvalidNumber(text)
		}
		if kind.Width == 4 {
			u = uint64(math.Float32bits(float32(f)))
		} else {
			u = math.Float64bits(f)
		}
	case layout.TagPointer:
		v, err := ParseAddress(text, kind.Width)
		if err != nil {
			return nil, err
		}
		u = v
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown field kind %s", kind.Tag))
	}

	b := make([]byte, kind.Width)
	writeUint(b, u, order)
	return b, nil
}

// FormatAddress renders an address as 0x followed by 2*width uppercase hex digits.
func FormatAddress(addr uint64, width int) string {
	return fmt.Sprintf("0x%0*X", 2*width, addr)
}

// ParseAddress parses an unsigned integer of the given byte width. Go integer
// literal prefixes (0x, 0o, 0b) are honored; anything else is decimal.
func ParseAddress(text string, width int) (uint64, error) {
	text = strings.TrimSpace(text)
	v, err := strconv.ParseUint(text, 0, width*8)
	if err != nil {
		if stderrors.Is(err, strconv.ErrRange) {
			return 0, errors.NewOutOfRange(text, fmt.Sprintf("u%d", width*8))
		}
		return 0, errors.NewInvalidNumber(text)
	}
	return v, nil
}

func parseInt(text string, kind layout.Kind) (uint64, error) {
	bits := kind.Width * 8
	if kind.Signed {
		v, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return 0, numError(err, text, kind)
		}
		return uint64(v), nil
	}

	digits := strings.TrimPrefix(text, "+")
	if strings.HasPrefix(digits, "-") {
		if _, err := strconv.ParseInt(digits, 10, 64); err == nil || stderrors.Is(err, strconv.ErrRange) {
			return 0, errors.NewOutOfRange(text, kind.String())
		}
		return 0, errors.NewInvalidNumber(text)
	}
	v, err := strconv.ParseUint(digits, 10, bits)
	if err != nil {
		return 0, numError(err, text, kind)
	}
	return v, nil
}

func numError(err error, text string, kind layout.Kind) error {
	if stderrors.Is(err, strconv.ErrRange) {
		return errors.NewOutOfRange(text, kind.String())
	}
	return errors.NewInvalidNumber(text)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// readUint reads len(b) bytes (1, 2, 4 or 8) as an unsigned integer.
func readUint(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}

func writeUint(b []byte, u uint64, order binary.ByteOrder) {
	switch len(b) {
	case 1:
		b[0] = byte(u)
	case 2:
		order.PutUint16(b, uint16(u))
	case 4:
		order.PutUint32(b, uint32(u))
	case 8:
		order.PutUint64(b, u)
	}
}

func signExtend(u uint64, width int) int64 {
	shift := 64 - uint(width*8)
	return int64(u<<shift) >> shift
}

// ReadPointer decodes a pointer-width unsigned value. Used by the resolver.
func ReadPointer(b []byte, order binary.ByteOrder) uint64 {
	return readUint(b, order)
}
