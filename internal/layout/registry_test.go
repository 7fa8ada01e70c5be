package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memclass/internal/errors"
)

func TestRegistry_CreateAndLookup(t *testing.T) {
	r := NewRegistry()
	id := r.CreateClass("Player")

	c, ok := r.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "Player", c.Name)
	require.Equal(t, 0, c.Size())
	require.Equal(t, 1, r.Len())

	other := r.CreateClass("Enemy")
	require.NotEqual(t, id, other)

	classes := r.Classes()
	require.Len(t, classes, 2)
	require.Equal(t, id, classes[0].ID)
	require.Equal(t, other, classes[1].ID)
}

func TestRegistry_DeleteLeavesBrokenReferences(t *testing.T) {
	r := NewRegistry()
	a := r.CreateClass("A")
	b := r.CreateClass("B")

	ptr := MustKind(Pointer(b, 8))
	fid, err := r.AddField(a, ptr, "b", -1)
	require.NoError(t, err)
	require.Equal(t, RefValid, r.PointerState(ptr))

	require.NoError(t, r.DeleteClass(b))

	ca, err := r.Class(a)
	require.NoError(t, err)
	f, off, ok := ca.Field(fid)
	require.True(t, ok, "pointer field must survive target deletion")
	require.Equal(t, 0, off)
	require.Equal(t, ptr, f.Kind, "kind is retained")
	require.Equal(t, RefBroken, r.PointerState(f.Kind))
	require.Equal(t, 8, ca.Size())

	broken := r.BrokenRefs()
	require.Len(t, broken, 1)
	require.Equal(t, BrokenRef{Class: a, Field: fid, Target: b}, broken[0])

	// Recreating a class with the same identity repairs the reference.
	require.NoError(t, r.Adopt(NewClass(b, "B again")))
	require.Equal(t, RefValid, r.PointerState(f.Kind))
	require.Empty(t, r.BrokenRefs())
}

func TestRegistry_DeleteUnknown(t *testing.T) {
	r := NewRegistry()
	err := r.DeleteClass("nope")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistry_CyclicReferences(t *testing.T) {
	r := NewRegistry()
	a := r.CreateClass("A")
	b := r.CreateClass("B")
	_, err := r.AddField(a, MustKind(Pointer(b, 8)), "toB", -1)
	require.NoError(t, err)
	_, err = r.AddField(b, MustKind(Pointer(a, 8)), "toA", -1)
	require.NoError(t, err)
	_, err = r.AddField(a, MustKind(Pointer(a, 8)), "self", -1)
	require.NoError(t, err)

	for _, c := range r.Classes() {
		for _, f := range c.Fields() {
			require.Equal(t, RefValid, r.PointerState(f.Kind))
		}
	}
}

func TestRegistry_AdoptRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	id := r.CreateClass("A")
	err := r.Adopt(NewClass(id, "A2"))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Equal(t, 1, r.Len())

	err = r.Adopt(NewClass("", "anon"))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRegistry_FindByName(t *testing.T) {
	r := NewRegistry()
	id := r.CreateClass("Game  State")

	c, ok := r.FindByName("game state")
	require.True(t, ok)
	require.Equal(t, id, c.ID)

	_, ok = r.FindByName("   ")
	require.False(t, ok)
}

func TestRegistry_FieldOperationsOnMissingClass(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddField("missing", u8, "x", -1)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.True(t, errors.Is(r.RemoveField("missing", 0), errors.ErrNotFound))
	require.True(t, errors.Is(r.ChangeFieldKind("missing", 0, u8), errors.ErrNotFound))
	require.True(t, errors.Is(r.MoveField("missing", 0, 0), errors.ErrNotFound))
	require.True(t, errors.Is(r.RenameField("missing", 0, "y"), errors.ErrNotFound))
	require.True(t, errors.Is(r.RenameClass("missing", "y"), errors.ErrNotFound))
}

func TestRegistry_PointerStateOfNonPointer(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, RefNone, r.PointerState(i32))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Player", "player"},
		{"  Player  ", "player"},
		{"Game\t\n  State", "game state"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if got := CleanName("  Game   State "); got != "Game State" {
		t.Errorf("CleanName = %q, want %q", got, "Game State")
	}
}
