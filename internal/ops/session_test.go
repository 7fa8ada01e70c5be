package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/errors"
)

func TestNewSession_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PointerWidth = 3
	_, err := NewSession(cfg, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestClassRefs(t *testing.T) {
	s := newTestSession(t, false)

	_, err := s.GetClass(GetClassInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "no active class yet")

	created, err := s.CreateClass(CreateClassInput{Name: "  Local   Player "})
	require.NoError(t, err)
	require.Equal(t, "Local Player", created.Name)
	require.True(t, created.Active)

	byID, err := s.GetClass(GetClassInput{Class: created.ID})
	require.NoError(t, err)
	require.Equal(t, created.ID, byID.ID)

	byName, err := s.GetClass(GetClassInput{Class: "local player"})
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)

	_, err = s.GetClass(GetClassInput{Class: "nobody"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = s.CreateClass(CreateClassInput{Name: "   "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRenameClass(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.RenameClass(RenameClassInput{Class: "Player", Name: "ITEM"})
	require.True(t, errors.Is(err, errors.ErrNameAlreadyExists))

	out, err := s.RenameClass(RenameClassInput{Class: "Player", Name: "player"})
	require.NoError(t, err, "renaming to its own name with different case is allowed")
	require.Equal(t, "player", out.Name)

	_, err = s.RenameClass(RenameClassInput{Class: "Item", Name: "Loot"})
	require.NoError(t, err)
	p, err := s.GetClass(GetClassInput{Class: "player"})
	require.NoError(t, err)
	require.Equal(t, "Loot", p.Fields[1].TargetName, "pointers follow the class, not its name")
}

func TestFieldRef_Validation(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	tests := []struct {
		name string
		ref  FieldRef
		code errors.ErrorCode
	}{
		{"neither", FieldRef{}, errors.ErrInvalidRequest},
		{"both", FieldRef{Index: intPtr(0), Name: "health"}, errors.ErrInvalidRequest},
		{"index out of range", FieldRef{Index: intPtr(2)}, errors.ErrNotFound},
		{"negative index", FieldRef{Index: intPtr(-1)}, errors.ErrNotFound},
		{"unknown name", FieldRef{Name: "mana"}, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RenameField(RenameFieldInput{Class: "Player", Field: tt.ref, Name: "x"})
			require.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestFieldOperations_Relayout(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	// health i32 @0, item ptr @4 → health i64 @0, item @8
	out, err := s.SetFieldKind(SetFieldKindInput{Class: "Player", Field: FieldRef{Name: "HEALTH"}, Kind: "i64"})
	require.NoError(t, err)
	require.Equal(t, 16, out.Class.Size)
	require.Equal(t, 8, out.Class.Fields[1].Offset)

	out, err = s.AddField(AddFieldInput{Class: "Player", Kind: "f32", Name: "speed", Position: intPtr(0)})
	require.NoError(t, err)
	require.Equal(t, 0, out.Field.Offset)
	require.Equal(t, 4, out.Class.Fields[1].Offset)

	out, err = s.MoveField(MoveFieldInput{Class: "Player", Field: FieldRef{Name: "speed"}, Position: 99})
	require.NoError(t, err)
	require.Equal(t, 2, out.Field.Index)
	require.Equal(t, 16, out.Field.Offset)

	out, err = s.RenameField(RenameFieldInput{Class: "Player", Field: FieldRef{Index: intPtr(2)}, Name: " run  speed "})
	require.NoError(t, err)
	require.Equal(t, "run speed", out.Field.Name)

	out, err = s.RemoveField(RemoveFieldInput{Class: "Player", Field: FieldRef{Index: intPtr(0)}})
	require.NoError(t, err)
	require.Nil(t, out.Field)
	require.Equal(t, 12, out.Class.Size)
	require.Equal(t, "item", out.Class.Fields[0].Name)
	require.Equal(t, 0, out.Class.Fields[0].Offset)
}

func TestAddField_KindErrors(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.AddField(AddFieldInput{Class: "Player", Kind: "i24"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.AddField(AddFieldInput{Class: "Player", Kind: "ptr:Ghost"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	c, err := s.GetClass(GetClassInput{Class: "Player"})
	require.NoError(t, err)
	require.Len(t, c.Fields, 2, "failed adds leave the layout alone")
}

func TestSetSelection(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.SetSelection(SetSelectionInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = s.SetSelection(SetSelectionInput{Base: "0x10", Chain: "0x8*,zz"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	v, err := s.SetSelection(SetSelectionInput{Class: "Item", Base: "4096", Chain: "0x10*, -0x8"})
	require.NoError(t, err)
	require.Equal(t, "0x0000000000001000", v.Base)
	require.Equal(t, "0x10*,-0x8", v.Chain)
	require.Equal(t, "Item", v.ClassName)
	require.Equal(t, v, s.Selection())

	_, err = s.Resolve(t.Context(), ResolveInput{Chain: "0x8"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "chain without base")
}

func TestGenerate(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	out, err := s.Generate(GenerateInput{Classes: []string{"player"}, Language: "c"})
	require.NoError(t, err)
	require.Equal(t, "c", out.Language)
	require.Contains(t, out.Source, "struct Player {")
	require.Contains(t, out.Source, "uint64_t item; /* 0x04 -> Item */")
	require.NotContains(t, out.Source, "struct Item {")

	out, err = s.Generate(GenerateInput{Package: "game"})
	require.NoError(t, err)
	require.Contains(t, out.Source, "package game")
	require.Contains(t, out.Source, "type Item struct")
	require.Contains(t, out.Source, "// Byte order: little.")

	_, err = s.Generate(GenerateInput{Language: "zig"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = s.Generate(GenerateInput{Classes: []string{"Nope"}})
	require.True(t, errors.Is(err, errors.ErrNotFound))
}
