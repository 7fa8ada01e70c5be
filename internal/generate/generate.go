// Package generate renders classes as Go or C struct declarations.
//
// Layouts are packed: each field starts right after the previous one. The Go
// output keeps that layout by emitting any field that would be misaligned
// as a byte array annotated with its declared type.
package generate

import (
	"fmt"
	"go/format"
	"strings"
	"unicode"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
)

// Language selects the output syntax.
type Language string

const (
	Go Language = "go"
	C  Language = "c"
)

// ParseLanguage accepts "go" or "c" (case-insensitive).
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "", Go:
		return Go, nil
	case C:
		return C, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown language %q (want go or c)", s))
}

// Options controls the generated file.
type Options struct {
	// Package is the Go package clause. Defaults to "layout".
	Package string
	// ByteOrder is noted in the header comment.
	ByteOrder string
}

// Generate renders the given classes, or every class of reg when ids is empty.
func Generate(reg *layout.Registry, ids []layout.ClassID, lang Language, opts Options) (string, error) {
	var classes []*layout.Class
	if len(ids) == 0 {
		classes = reg.Classes()
	} else {
		for _, id := range ids {
			c, err := reg.Class(id)
			if err != nil {
				return "", err
			}
			classes = append(classes, c)
		}
	}

	switch lang {
	case Go:
		return generateGo(reg, classes, opts)
	case C:
		return generateC(reg, classes, opts), nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown language %q", lang))
}

func targetNote(reg *layout.Registry, k layout.Kind) string {
	if t, ok := reg.Lookup(k.Target); ok {
		return "-> " + commentText(t.Name)
	}
	return "-> missing class " + commentText(string(k.Target))
}

// commentText makes s safe inside a line comment or a C block comment.
func commentText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.ReplaceAll(s, "*/", "* /")
}

func generateGo(reg *layout.Registry, classes []*layout.Class, opts Options) (string, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = "layout"
	}

	var b strings.Builder
	b.WriteString("// Code generated by memclass. DO NOT EDIT.\n")
	if opts.ByteOrder != "" {
		fmt.Fprintf(&b, "// Byte order: %s.\n", opts.ByteOrder)
	}
	fmt.Fprintf(&b, "\npackage %s\n", pkg)

	typeNames := uniqueNames(len(classes), func(i int) string { return goIdent(classes[i].Name, "Class") })
	for ci, c := range classes {
		fmt.Fprintf(&b, "\n// %s is %d bytes, packed.\ntype %s struct {\n", typeNames[ci], c.Size(), typeNames[ci])
		fields := c.Fields()
		names := uniqueNames(len(fields), func(i int) string {
			_, off := c.FieldAt(i)
			return goIdent(fields[i].Name, fmt.Sprintf("Field%X", off))
		})
		for i, f := range fields {
			_, off := c.FieldAt(i)
			typ, note := goType(f.Kind, off)
			if f.Kind.Tag == layout.TagPointer {
				note = strings.TrimSpace(note + " " + targetNote(reg, f.Kind))
			}
			comment := fmt.Sprintf("0x%02X", off)
			if note != "" {
				comment += " " + note
			}
			fmt.Fprintf(&b, "\t%s %s // %s\n", names[i], typ, comment)
		}
		b.WriteString("}\n")
	}

	src, err := format.Source([]byte(b.String()))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("format generated source: %w", err))
	}
	return string(src), nil
}

// goType returns the Go type for k at offset off, plus an annotation when
// the field had to become a byte array.
func goType(k layout.Kind, off int) (string, string) {
	var typ string
	switch k.Tag {
	case layout.TagHex:
		return fmt.Sprintf("[%d]byte", k.Width), ""
	case layout.TagInt:
		if k.Signed {
			typ = fmt.Sprintf("int%d", k.Width*8)
		} else {
			typ = fmt.Sprintf("uint%d", k.Width*8)
		}
	case layout.TagFloat:
		typ = fmt.Sprintf("float%d", k.Width*8)
	case layout.TagPointer:
		typ = fmt.Sprintf("uint%d", k.Width*8)
	default:
		return fmt.Sprintf("[%d]byte", k.Width), ""
	}
	if off%k.Width != 0 {
		return fmt.Sprintf("[%d]byte", k.Width), "(" + typ + ", unaligned)"
	}
	return typ, ""
}

func generateC(reg *layout.Registry, classes []*layout.Class, opts Options) string {
	var b strings.Builder
	b.WriteString("/* Generated by memclass. */\n")
	if opts.ByteOrder != "" {
		fmt.Fprintf(&b, "/* Byte order: %s. */\n", opts.ByteOrder)
	}
	b.WriteString("#include <stdint.h>\n\n#pragma pack(push, 1)\n")

	typeNames := uniqueNames(len(classes), func(i int) string { return cIdent(classes[i].Name, "class") })
	for ci, c := range classes {
		fmt.Fprintf(&b, "\n/* %d bytes */\nstruct %s {\n", c.Size(), typeNames[ci])
		fields := c.Fields()
		names := uniqueNames(len(fields), func(i int) string {
			_, off := c.FieldAt(i)
			return cIdent(fields[i].Name, fmt.Sprintf("field_%x", off))
		})
		for i, f := range fields {
			_, off := c.FieldAt(i)
			decl := cDecl(f.Kind, names[i])
			comment := fmt.Sprintf("0x%02X", off)
			if f.Kind.Tag == layout.TagPointer {
				comment += " " + targetNote(reg, f.Kind)
			}
			fmt.Fprintf(&b, "    %s; /* %s */\n", decl, comment)
		}
		b.WriteString("};\n")
	}
	b.WriteString("\n#pragma pack(pop)\n")
	return b.String()
}

func cDecl(k layout.Kind, name string) string {
	switch k.Tag {
	case layout.TagInt:
		if k.Signed {
			return fmt.Sprintf("int%d_t %s", k.Width*8, name)
		}
		return fmt.Sprintf("uint%d_t %s", k.Width*8, name)
	case layout.TagFloat:
		if k.Width == 4 {
			return "float " + name
		}
		return "double " + name
	case layout.TagPointer:
		return fmt.Sprintf("uint%d_t %s", k.Width*8, name)
	}
	return fmt.Sprintf("uint8_t %s[%d]", name, k.Width)
}

// goIdent turns a display name into an exported Go identifier.
func goIdent(name, fallback string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return fallback
	}
	if !unicode.IsLetter([]rune(s)[0]) {
		s = "F" + s
	}
	return s
}

var cKeywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true, "continue": true,
	"default": true, "do": true, "double": true, "else": true, "enum": true, "extern": true,
	"float": true, "for": true, "goto": true, "if": true, "int": true, "long": true,
	"register": true, "return": true, "short": true, "signed": true, "sizeof": true, "static": true,
	"struct": true, "switch": true, "typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true,
}

// cIdent turns a display name into a C identifier.
func cIdent(name, fallback string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return fallback
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if cKeywords[s] {
		s += "_"
	}
	return s
}

// uniqueNames calls name for 0..n-1 and suffixes repeats with _2, _3, ...
func uniqueNames(n int, name func(int) string) []string {
	out := make([]string, n)
	seen := make(map[string]int)
	for i := 0; i < n; i++ {
		base := name(i)
		s := base
		for seen[s] > 0 {
			seen[base]++
			s = fmt.Sprintf("%s_%d", base, seen[base])
		}
		seen[s]++
		out[i] = s
	}
	return out
}
