package ops

import (
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/errors"
)

// writeDump creates a 0x100 byte little-endian dump meant to be mapped at 0x1000:
//
//	0x1000: pointer to player (0x1040)
//	0x1040: player { health i32 = 100, item ptr = 0x1080 }
//	0x1080: item { count u16 = 7 }
func writeDump(t *testing.T) string {
	t.Helper()
	b := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(b[0x00:], 0x1040)
	binary.LittleEndian.PutUint32(b[0x40:], 100)
	binary.LittleEndian.PutUint64(b[0x44:], 0x1080)
	binary.LittleEndian.PutUint16(b[0x80:], 7)
	path := filepath.Join(t.TempDir(), "game.bin")
	require.NoError(t, os.WriteFile(path, b, 0600))
	return path
}

func newTestSession(t *testing.T, withDB bool) *Session {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	var database *sql.DB
	if withDB {
		d, err := db.Init(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { d.Close() })
		database = d
	}
	s, err := NewSession(cfg, database)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(i int) *int { return &i }

// buildGame creates Item { count u16 } and Player { health i32, item ptr:Item }.
func buildGame(t *testing.T, s *Session) {
	t.Helper()
	_, err := s.CreateClass(CreateClassInput{Name: "Item"})
	require.NoError(t, err)
	_, err = s.AddField(AddFieldInput{Class: "Item", Kind: "u16", Name: "count"})
	require.NoError(t, err)

	_, err = s.CreateClass(CreateClassInput{Name: "Player"})
	require.NoError(t, err)
	_, err = s.AddField(AddFieldInput{Kind: "i32", Name: "health"})
	require.NoError(t, err)
	out, err := s.AddField(AddFieldInput{Kind: "ptr:item", Name: "item"})
	require.NoError(t, err)
	require.Equal(t, 4, out.Field.Offset)
	require.Equal(t, "valid", out.Field.Ref)
	require.Equal(t, "Item", out.Field.TargetName)
}

// TestFullWorkflow exercises a complete session:
// classes → dump → inspect → write → save → new → open → bookmarks → delete class
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, true)

	// 1. Layout
	buildGame(t, s)
	_, err := s.CreateClass(CreateClassInput{Name: "  player "})
	require.True(t, errors.Is(err, errors.ErrNameAlreadyExists))

	// 2. Attach dump
	src, err := s.AttachDump(AttachDumpInput{Path: writeDump(t), Base: "0x1000"})
	require.NoError(t, err)
	require.True(t, src.Attached)
	require.Equal(t, "dump", src.Kind)
	require.Equal(t, "0x0000000000001000", src.Base)

	// 3. Inspect through a one-step chain, expanding the item pointer
	insp, err := s.Inspect(ctx, InspectInput{Class: "Player", Base: "0x1000", Chain: "0x0*", Depth: 1})
	require.NoError(t, err)
	require.Len(t, insp.Trace, 1)
	require.Equal(t, "0x0000000000001040", insp.Trace[0].Value)
	require.Equal(t, "0x0000000000001040", insp.Frame.Address)
	require.Equal(t, "100", insp.Frame.Fields[0].Value)
	item := insp.Frame.Fields[1]
	require.Equal(t, "0x0000000000001080", item.Value)
	require.NotNil(t, item.Pointee)
	require.Equal(t, "7", item.Pointee.Fields[0].Value)

	// 4. Write through the same selection
	w, err := s.WriteField(ctx, WriteFieldInput{Class: "Player", Base: "0x1000", Chain: "0x0*", Field: FieldRef{Name: "health"}, Value: "-5"})
	require.NoError(t, err)
	require.Equal(t, "-5", w.Value)
	require.Equal(t, "0x0000000000001040", w.Address)

	insp, err = s.Inspect(ctx, InspectInput{Class: "Player", Base: "0x1000", Chain: "0x0*"})
	require.NoError(t, err)
	require.Equal(t, "-5", insp.Frame.Fields[0].Value)
	require.Nil(t, insp.Frame.Fields[1].Pointee, "depth 0 does not expand")

	// 5. Save, then start a new project: the saved one is written again first
	path := filepath.Join(t.TempDir(), "game.mclass")
	saved, err := s.SaveProject(ctx, SaveProjectInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, path, saved.Path)
	require.Equal(t, 2, saved.Classes)

	fresh, err := s.NewProject(ctx)
	require.NoError(t, err)
	require.Equal(t, path, fresh.AutoSaved)
	require.Equal(t, 0, fresh.Classes)
	require.Empty(t, s.ListClasses().Items)

	// 6. Reopen
	opened, err := s.OpenProject(ctx, OpenProjectInput{Path: path})
	require.NoError(t, err)
	require.Empty(t, opened.AutoSaved, "a fresh project is a dummy and is not saved")
	require.Equal(t, 2, opened.Classes)
	require.Empty(t, opened.BrokenRefs)
	player, err := s.GetClass(GetClassInput{Class: "player"})
	require.NoError(t, err)
	require.Equal(t, 12, player.Size)
	require.Equal(t, "valid", player.Fields[1].Ref)

	// 7. Bookmarks
	_, err = s.SaveBookmark(ctx, SaveBookmarkInput{Name: "Local Player", Class: "Player", Base: "0x1000", Chain: "0x0*"})
	require.NoError(t, err)
	_, err = s.SaveBookmark(ctx, SaveBookmarkInput{Name: "local  player", Class: "Player", Base: "0x1000"})
	require.True(t, errors.Is(err, errors.ErrNameAlreadyExists))
	bm, err := s.SaveBookmark(ctx, SaveBookmarkInput{Name: "local player", Class: "Player", Base: "0x1000", Chain: "0x0*", Mode: SaveModeReplace})
	require.NoError(t, err)
	require.Equal(t, "Local Player", bm.NameRaw, "replace keeps the original display name")
	require.Equal(t, "Player", bm.ClassName)

	list, err := s.ListBookmarks(ctx)
	require.NoError(t, err)
	require.Equal(t, path, list.Project)
	require.Len(t, list.Items, 1)
	require.Equal(t, "0x0*", list.Items[0].Chain)

	_, err = s.CreateClass(CreateClassInput{Name: "Scratch"}) // becomes active
	require.NoError(t, err)
	sel, err := s.ApplyBookmark(ctx, BookmarkInput{Name: "LOCAL PLAYER"})
	require.NoError(t, err)
	require.Equal(t, "Player", sel.ClassName)
	require.Equal(t, "0x0*", sel.Chain)

	insp, err = s.Inspect(ctx, InspectInput{})
	require.NoError(t, err, "empty input uses the applied bookmark")
	require.Equal(t, "-5", insp.Frame.Fields[0].Value)

	del, err := s.DeleteBookmark(ctx, BookmarkInput{Name: "local player"})
	require.NoError(t, err)
	require.True(t, del.Deleted)
	_, err = s.DeleteBookmark(ctx, BookmarkInput{Name: "local player"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	// 8. Deleting a pointer target breaks, but keeps, the pointer field
	delOut, err := s.DeleteClass(DeleteClassInput{Class: "Item"})
	require.NoError(t, err)
	require.Equal(t, 1, delOut.BrokenFields)
	player, err = s.GetClass(GetClassInput{Class: "Player"})
	require.NoError(t, err)
	require.Len(t, player.Fields, 2)
	require.Equal(t, "broken", player.Fields[1].Ref)

	// 9. Recents
	recent, err := s.RecentProjects(ctx)
	require.NoError(t, err)
	require.Len(t, recent.Items, 1)
	require.Equal(t, path, recent.Items[0].Path)
}

func TestResolve_BrokenChainReportsStepAndAddress(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	_, err := s.AttachDump(AttachDumpInput{Path: writeDump(t), Base: "0x1000"})
	require.NoError(t, err)

	out, err := s.Resolve(ctx, ResolveInput{Base: "0x1000", Chain: "0x0*,0x4*"})
	require.NoError(t, err)
	require.Equal(t, "0x0000000000001080", out.Address)
	require.Len(t, out.Trace, 2)

	_, err = s.Resolve(ctx, ResolveInput{Base: "0x1000", Chain: "0x0*,0x10*"})
	require.NoError(t, err, "0x1050 is mapped and holds zero")

	_, err = s.Resolve(ctx, ResolveInput{Base: "0x5000", Chain: "0x10*"})
	require.Error(t, err)
	mErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrMemoryRead, mErr.Code)
	require.Equal(t, 0, mErr.Details["step"])
	require.Equal(t, "0x5010", mErr.Details["address"])
}

func TestInspect_DetachedReportsPerFieldErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.Detach()
	require.NoError(t, err)

	out, err := s.Inspect(ctx, InspectInput{Class: "Player", Base: "0x1040", Depth: 1})
	require.NoError(t, err)
	require.Len(t, out.Frame.Fields, 2)
	for _, f := range out.Frame.Fields {
		require.Contains(t, f.Error, "[MEMORY_READ]")
		require.Nil(t, f.Pointee)
	}
}

func TestInspect_RejectsBadDepth(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)
	for _, d := range []int{-1, 9} {
		_, err := s.Inspect(context.Background(), InspectInput{Class: "Player", Base: "0x0", Depth: d})
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "depth %d", d)
	}
}

func TestInspect_CancelledContext(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Inspect(ctx, InspectInput{Class: "Player", Base: "0x0"})
	require.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestWriteField_InvalidTextLeavesMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	buildGame(t, s)
	_, err := s.AttachDump(AttachDumpInput{Path: writeDump(t), Base: "0x1000"})
	require.NoError(t, err)

	_, err = s.WriteField(ctx, WriteFieldInput{Class: "Item", Base: "0x1080", Field: FieldRef{Index: intPtr(0)}, Value: "70000"})
	require.True(t, errors.Is(err, errors.ErrOutOfRange))

	out, err := s.Inspect(ctx, InspectInput{Class: "Item", Base: "0x1080"})
	require.NoError(t, err)
	require.Equal(t, "7", out.Frame.Fields[0].Value)
}

func TestOpenProject_FailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	buildGame(t, s)

	bad := filepath.Join(t.TempDir(), "bad.mclass")
	require.NoError(t, os.WriteFile(bad, []byte("version = 2\n"), 0600))

	_, err := s.OpenProject(ctx, OpenProjectInput{Path: bad})
	require.True(t, errors.Is(err, errors.ErrUnsupportedVersion))
	require.Len(t, s.ListClasses().Items, 2)

	_, err = s.OpenProject(ctx, OpenProjectInput{Path: filepath.Join(t.TempDir(), "missing.mclass")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestOpenProject_AutoSavesCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.mclass")
	second := filepath.Join(dir, "second.mclass")

	_, err := s.CreateClass(CreateClassInput{Name: "B"})
	require.NoError(t, err)
	_, err = s.SaveProject(ctx, SaveProjectInput{Path: second})
	require.NoError(t, err)

	_, err = s.NewProject(ctx)
	require.NoError(t, err)
	_, err = s.CreateClass(CreateClassInput{Name: "A"})
	require.NoError(t, err)
	_, err = s.SaveProject(ctx, SaveProjectInput{Path: first})
	require.NoError(t, err)

	// Unsaved change to first, then switch.
	_, err = s.AddField(AddFieldInput{Class: "A", Kind: "u8", Name: "x"})
	require.NoError(t, err)
	out, err := s.OpenProject(ctx, OpenProjectInput{Path: second})
	require.NoError(t, err)
	require.Equal(t, first, out.AutoSaved)

	out, err = s.OpenProject(ctx, OpenProjectInput{Path: first})
	require.NoError(t, err)
	require.Empty(t, out.AutoSaved, "nothing changed in second")
	a, err := s.GetClass(GetClassInput{})
	require.NoError(t, err, "first class of the opened project is active")
	require.Equal(t, "A", a.Name)
	require.Equal(t, 1, a.FieldCount)
}

func TestSaveProject_RequiresPath(t *testing.T) {
	s := newTestSession(t, false)
	_, err := s.SaveProject(context.Background(), SaveProjectInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestBookmarks_RequireDatabase(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.SaveBookmark(ctx, SaveBookmarkInput{Name: "x", Base: "0x0"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = s.ListBookmarks(ctx)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	recent, err := s.RecentProjects(ctx)
	require.NoError(t, err)
	require.Empty(t, recent.Items)
}

func TestSaveBookmark_InvalidMode(t *testing.T) {
	s := newTestSession(t, true)
	buildGame(t, s)
	_, err := s.SaveBookmark(context.Background(), SaveBookmarkInput{Name: "x", Mode: "merge"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestWriteField_RequiresSource(t *testing.T) {
	s := newTestSession(t, false)
	buildGame(t, s)

	_, err := s.WriteField(context.Background(), WriteFieldInput{Class: "Player", Base: "0x1040", Field: FieldRef{Name: "health"}, Value: "1"})
	require.True(t, errors.Is(err, errors.ErrNotAttached))
}

func TestAttachDump_PathRestrictions(t *testing.T) {
	dump := writeDump(t)
	cfg := config.DefaultConfig()
	s, err := NewSession(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.AttachDump(AttachDumpInput{Path: dump, Base: "0x1000"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "dumps outside allowed dirs are refused")
	require.False(t, s.SourceInfo().Attached)

	cfg.AllowedPaths = []string{filepath.Dir(dump)}
	src, err := s.AttachDump(AttachDumpInput{Path: dump, Base: "0x1000"})
	require.NoError(t, err)
	require.True(t, src.Attached)
}

func TestAttachDump_RejectsDevices(t *testing.T) {
	s := newTestSession(t, false)
	_, err := s.AttachDump(AttachDumpInput{Path: os.DevNull})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.False(t, s.SourceInfo().Attached)
}
