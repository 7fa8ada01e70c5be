package inspect

import (
	"strconv"

	"github.com/hpungsan/memclass/internal/codec"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
)

// WriteField encodes text for field id of class at base and writes it. The
// value is re-read afterwards and returned in canonical form. Encode errors
// are returned without touching memory.
func (c *Context) WriteField(class *layout.Class, base uint64, id layout.FieldID, text string) (string, error) {
	field, off, ok := class.Field(id)
	if !ok {
		return "", errors.NewNotFound("field", strconv.FormatUint(uint64(id), 10))
	}

	b, err := codec.Encode(field.Kind, text, c.order)
	if err != nil {
		return "", err
	}
	addr := base + uint64(off)
	if err := c.Write(addr, b); err != nil {
		return "", err
	}

	got, err := c.Read(addr, len(b))
	if err != nil {
		return "", err
	}
	return codec.Decode(field.Kind, got, c.order)
}
