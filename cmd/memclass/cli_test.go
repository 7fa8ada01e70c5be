package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/ops"
)

// newTestSession builds a session the way main does for CLI mode, backed by
// a database in a temp dir.
func newTestSession(t *testing.T, dbDir string) *ops.Session {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	database, err := db.Init(dbDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	sess, err := ops.NewSession(cfg, database)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// run executes one CLI invocation against sess and returns its stdout.
func run(t *testing.T, sess *ops.Session, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(sess)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"memclass"}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, sess *ops.Session, v any, args ...string) {
	t.Helper()
	out, err := run(t, sess, args...)
	require.NoError(t, err, "memclass %s", strings.Join(args, " "))
	if v != nil {
		require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
	}
}

// writeDump creates a dump meant to be mapped at 0x4000 holding a pointer
// at 0x4000 to { hp i32 = 75 } at 0x4010.
func writeDump(t *testing.T) string {
	t.Helper()
	b := make([]byte, 0x20)
	binary.LittleEndian.PutUint64(b[0x00:], 0x4010)
	binary.LittleEndian.PutUint32(b[0x10:], 75)
	path := filepath.Join(t.TempDir(), "mem.bin")
	require.NoError(t, os.WriteFile(path, b, 0600))
	return path
}

func TestCLIProjectPersistsAcrossInvocations(t *testing.T) {
	dbDir := t.TempDir()
	project := filepath.Join(t.TempDir(), "game.mclass")

	var created ops.ClassDetail
	mustRun(t, newTestSession(t, dbDir), &created, "--project", project, "class", "create", "Player")
	require.Equal(t, "Player", created.Name)
	_, err := os.Stat(project)
	require.NoError(t, err, "mutations save the project")

	var added ops.FieldOutput
	mustRun(t, newTestSession(t, dbDir), &added, "-p", project, "field", "add", "--class", "Player", "i32", "hp")
	require.Equal(t, 4, added.Class.Size)

	var moved ops.FieldOutput
	sess := newTestSession(t, dbDir)
	mustRun(t, sess, nil, "-p", project, "field", "add", "-c", "Player", "--at", "0", "u8", "flags")
	mustRun(t, newTestSession(t, dbDir), &moved, "-p", project, "field", "move", "-c", "Player", "-f", "flags", "5")
	require.Equal(t, 1, moved.Field.Index)

	var shown ops.ClassDetail
	mustRun(t, newTestSession(t, dbDir), &shown, "-p", project, "class", "show", "player")
	require.Len(t, shown.Fields, 2)
	require.Equal(t, "hp", shown.Fields[0].Name)
	require.Equal(t, 4, shown.Fields[1].Offset)

	var recent ops.RecentOutput
	mustRun(t, newTestSession(t, dbDir), &recent, "recent")
	require.NotEmpty(t, recent.Projects)
	require.Equal(t, project, recent.Projects[0].Path)
}

func TestCLIInspectAndWrite(t *testing.T) {
	dbDir := t.TempDir()
	project := filepath.Join(t.TempDir(), "mem.mclass")
	dump := writeDump(t)

	mustRun(t, newTestSession(t, dbDir), nil, "-p", project, "class", "create", "Unit")
	mustRun(t, newTestSession(t, dbDir), nil, "-p", project, "field", "add", "i32", "hp")

	var resolved ops.ResolveOutput
	mustRun(t, newTestSession(t, dbDir), &resolved, "--dump", dump, "--dump-base", "0x4000", "resolve", "--base", "0x4000", "--chain", "0x0*")
	require.Equal(t, "0x0000000000004010", resolved.Address)
	require.Len(t, resolved.Trace, 1)

	var inspected ops.InspectOutput
	mustRun(t, newTestSession(t, dbDir), &inspected, "-p", project, "--dump", dump, "--dump-base", "0x4000",
		"inspect", "--class", "Unit", "--base", "0x4000", "--chain", "0x0*")
	require.Equal(t, "75", inspected.Frame.Fields[0].Value)

	var written ops.WriteFieldOutput
	mustRun(t, newTestSession(t, dbDir), &written, "-p", project, "--dump", dump, "--dump-base", "0x4000",
		"write", "-b", "0x4010", "-i", "0", "--", "-12")
	require.Equal(t, "-12", written.Value)
	require.Equal(t, "0x0000000000004010", written.Address)
}

func TestCLIBookmarks(t *testing.T) {
	dbDir := t.TempDir()
	project := filepath.Join(t.TempDir(), "bm.mclass")
	mustRun(t, newTestSession(t, dbDir), nil, "-p", project, "class", "create", "Unit")

	var saved ops.BookmarkOutput
	mustRun(t, newTestSession(t, dbDir), &saved, "-p", project, "bookmark", "save", "--base", "0x4000", "--chain", "0x0*", "home")
	require.Equal(t, "Unit", saved.ClassName)

	_, err := run(t, newTestSession(t, dbDir), "-p", project, "bookmark", "save", "--base", "0x10", "HOME")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[NAME_ALREADY_EXISTS]")

	mustRun(t, newTestSession(t, dbDir), nil, "-p", project, "bookmark", "save", "--base", "0x10", "-m", "replace", "HOME")

	var list ops.ListBookmarksOutput
	mustRun(t, newTestSession(t, dbDir), &list, "-p", project, "bookmark", "list")
	require.Len(t, list.Items, 1)
	require.Equal(t, "0x0000000000000010", list.Items[0].Base)

	var deleted ops.DeleteBookmarkOutput
	mustRun(t, newTestSession(t, dbDir), &deleted, "-p", project, "bookmark", "delete", "home")
	require.True(t, deleted.Deleted)
}

func TestCLIGenerateRaw(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	_, err := sess.CreateClass(ops.CreateClassInput{Name: "Vec"})
	require.NoError(t, err)
	_, err = sess.AddField(ops.AddFieldInput{Kind: "f32", Name: "x"})
	require.NoError(t, err)

	out, err := run(t, sess, "class", "generate", "--lang", "c", "--raw")
	require.NoError(t, err)
	require.Contains(t, out, "struct Vec {")
	require.False(t, strings.HasPrefix(out, "{"), "raw output is not JSON")
}

// TestCLIErrorHandling checks that failures surface as "[CODE] message".
func TestCLIErrorHandling(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing class name", []string{"class", "create"}, "[INVALID_REQUEST]"},
		{"unknown class", []string{"class", "show", "ghost"}, "[NOT_FOUND]"},
		{"no active class", []string{"field", "add", "i32"}, "[INVALID_REQUEST]"},
		{"bad kind", []string{"field", "add", "-c", "x", "i7"}, "[NOT_FOUND]"},
		{"bad position", []string{"field", "move", "-i", "0", "last"}, "[INVALID_REQUEST]"},
		{"pid and dump", []string{"--pid", "1", "--dump", "x.bin", "class", "list"}, "[INVALID_REQUEST]"},
		{"missing dump", []string{"--dump", "/nonexistent/mem.bin", "class", "list"}, "[FILE_NOT_FOUND]"},
		{"detached chain", []string{"resolve", "--base", "0x10", "--chain", "0x0*"}, "[MEMORY_READ]"},
		{"bad project extension", []string{"-p", "notes.txt", "class", "create", "A"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, newTestSession(t, t.TempDir()), tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.code)
		})
	}
}

func TestCLILogFlagsReachSessionLoggers(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	app := newCLIApp(sess)
	var out, logs bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &logs
	t.Cleanup(func() { _ = logflags.Setup("warn", "", nil) })

	require.NoError(t, app.Run([]string{"memclass", "--log", "session", "class", "create", "Player"}))
	require.Contains(t, logs.String(), "layer=session")
	require.Contains(t, logs.String(), "class created")
}

func TestHelpNeedsNoSession(t *testing.T) {
	app := newCLIApp(nil)
	var out bytes.Buffer
	app.Writer = &out
	require.NoError(t, app.Run([]string{"memclass", "--help"}))
	require.Contains(t, out.String(), "inspect")
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"memclass"}, false},
		{"class command", []string{"memclass", "class", "list"}, true},
		{"serve command", []string{"memclass", "serve"}, true},
		{"global flag first", []string{"memclass", "--project", "a.mclass", "class", "list"}, true},
		{"global flag with value", []string{"memclass", "--dump=mem.bin", "inspect"}, true},
		{"short project flag", []string{"memclass", "-p", "a.mclass"}, true},
		{"help flag", []string{"memclass", "--help"}, true},
		{"version flag", []string{"memclass", "-v"}, true},
		{"unknown flag defaults to MCP", []string{"memclass", "--unknown"}, false},
		{"unknown command defaults to MCP", []string{"memclass", "store"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isCLIMode(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"memclass"}, false},
		{"help flag", []string{"memclass", "--help"}, true},
		{"short help flag", []string{"memclass", "-h"}, true},
		{"version flag", []string{"memclass", "--version"}, true},
		{"help subcommand", []string{"memclass", "help"}, true},
		{"inspect is not help", []string{"memclass", "inspect"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if got := isHelpOrVersion(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
