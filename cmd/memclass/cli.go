package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/ops"
	"github.com/hpungsan/memclass/internal/web"
)

// newCLIApp creates the CLI application with all commands. sess may be nil
// for --help and --version.
func newCLIApp(sess *ops.Session) *cli.App {
	app := &cli.App{
		Name:    "memclass",
		Usage:   "Overlay class layouts on live process memory",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Project file (.mclass); loaded if present, saved after changes"},
			&cli.IntFlag{Name: "pid", Usage: "Attach to a running process"},
			&cli.StringFlag{Name: "dump", Usage: "Attach a raw memory dump file"},
			&cli.StringFlag{Name: "dump-base", Value: "0", Usage: "Address of the dump's first byte"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (overrides config log_level)"},
			&cli.StringFlag{Name: "log", Usage: "Comma-separated layers logged at debug level, or \"all\""},
		},
		Before: func(c *cli.Context) error {
			if err := logflags.Setup(c.String("log-level"), c.String("log"), c.App.ErrWriter); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if sess == nil {
				return nil
			}
			return outputError(prepare(c, sess))
		},
		Commands: []*cli.Command{
			classCmd(sess),
			fieldCmd(sess),
			resolveCmd(sess),
			inspectCmd(sess),
			writeCmd(sess),
			bookmarkCmd(sess),
			recentCmd(sess),
			serveCmd(sess),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// prepare opens the --project file if it exists and attaches the memory
// source named by --pid or --dump.
func prepare(c *cli.Context, sess *ops.Session) error {
	if path := c.String("project"); path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := sess.OpenProject(c.Context, ops.OpenProjectInput{Path: path}); err != nil {
				return err
			}
		} else if !os.IsNotExist(err) {
			return errors.NewInternal(err)
		}
	}

	pid, dump := c.Int("pid"), c.String("dump")
	switch {
	case pid != 0 && dump != "":
		return errors.NewInvalidRequest("--pid and --dump are mutually exclusive")
	case pid != 0:
		_, err := sess.Attach(c.Context, ops.AttachInput{PID: pid})
		return err
	case dump != "":
		_, err := sess.AttachDump(ops.AttachDumpInput{Path: dump, Base: c.String("dump-base")})
		return err
	}
	return nil
}

// persist saves the session to --project after a mutation. Without
// --project, changes only live for this invocation.
func persist(c *cli.Context, sess *ops.Session) error {
	path := c.String("project")
	if path == "" {
		return nil
	}
	_, err := sess.SaveProject(c.Context, ops.SaveProjectInput{Path: path})
	return err
}

// mutate runs fn, persists the project and prints fn's result.
func mutate[T any](c *cli.Context, sess *ops.Session, fn func() (T, error)) error {
	out, err := fn()
	if err != nil {
		return outputError(err)
	}
	if err := persist(c, sess); err != nil {
		return outputError(err)
	}
	return outputJSON(c, out)
}

// show prints out, or err in CLI form.
func show[T any](c *cli.Context, out T, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c, out)
}

func classFlag() cli.Flag {
	return &cli.StringFlag{Name: "class", Aliases: []string{"c"}, Usage: "Class id or name (default: active class)"}
}

func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base address, e.g. 0x7FF6A000"},
		&cli.StringFlag{Name: "chain", Usage: "Pointer chain, e.g. \"0x10*,0x8\""},
	}
}

func fieldRefFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "Field position (0-based)"},
		&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "Field name"},
	}
}

// fieldRef builds a FieldRef from --index/--field.
func fieldRef(c *cli.Context) ops.FieldRef {
	ref := ops.FieldRef{Name: c.String("field")}
	if c.IsSet("index") {
		i := c.Int("index")
		ref.Index = &i
	}
	return ref
}

// arg returns positional argument i, or an INVALID_REQUEST naming what is missing.
func arg(c *cli.Context, i int, what string) (string, error) {
	if c.NArg() <= i {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return c.Args().Get(i), nil
}

// classCmd creates the class command group.
func classCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "class",
		Usage: "Create, list and edit classes",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an empty class",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.ClassDetail, error) {
						name, err := arg(c, 0, "class name")
						if err != nil {
							return nil, err
						}
						return sess.CreateClass(ops.CreateClassInput{Name: name})
					})
				},
			},
			{
				Name:  "list",
				Usage: "List classes",
				Action: func(c *cli.Context) error {
					return outputJSON(c, sess.ListClasses())
				},
			},
			{
				Name:      "show",
				Usage:     "Show a class layout",
				ArgsUsage: "[class]",
				Action: func(c *cli.Context) error {
					out, err := sess.GetClass(ops.GetClassInput{Class: c.Args().First()})
					return show(c, out, err)
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a class",
				ArgsUsage: "<class> <new-name>",
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.ClassDetail, error) {
						name, err := arg(c, 1, "new class name")
						if err != nil {
							return nil, err
						}
						return sess.RenameClass(ops.RenameClassInput{Class: c.Args().First(), Name: name})
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a class; pointers to it become broken",
				ArgsUsage: "<class>",
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.DeleteClassOutput, error) {
						ref, err := arg(c, 0, "class")
						if err != nil {
							return nil, err
						}
						return sess.DeleteClass(ops.DeleteClassInput{Class: ref})
					})
				},
			},
			{
				Name:      "generate",
				Usage:     "Print classes as Go or C struct declarations",
				ArgsUsage: "[class...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Value: "go", Usage: "Output language: go|c"},
					&cli.StringFlag{Name: "package", Usage: "Go package name"},
					&cli.BoolFlag{Name: "raw", Usage: "Print source instead of JSON"},
				},
				Action: func(c *cli.Context) error {
					out, err := sess.Generate(ops.GenerateInput{
						Classes:  c.Args().Slice(),
						Language: c.String("lang"),
						Package:  c.String("package"),
					})
					if err != nil {
						return outputError(err)
					}
					if c.Bool("raw") {
						_, err := fmt.Fprint(c.App.Writer, out.Source)
						return err
					}
					return outputJSON(c, out)
				},
			},
		},
	}
}

// fieldCmd creates the field command group.
func fieldCmd(sess *ops.Session) *cli.Command {
	refFlags := func() []cli.Flag { return append([]cli.Flag{classFlag()}, fieldRefFlags()...) }
	return &cli.Command{
		Name:  "field",
		Usage: "Edit the fields of a class",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Insert a field",
				ArgsUsage: "<kind> [name]",
				Flags: []cli.Flag{
					classFlag(),
					&cli.IntFlag{Name: "at", Usage: "Insert position (default: append)"},
				},
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.FieldOutput, error) {
						kind, err := arg(c, 0, "field kind")
						if err != nil {
							return nil, err
						}
						input := ops.AddFieldInput{Class: c.String("class"), Kind: kind, Name: c.Args().Get(1)}
						if c.IsSet("at") {
							at := c.Int("at")
							input.Position = &at
						}
						return sess.AddField(input)
					})
				},
			},
			{
				Name:  "remove",
				Usage: "Remove a field",
				Flags: refFlags(),
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.FieldOutput, error) {
						return sess.RemoveField(ops.RemoveFieldInput{Class: c.String("class"), Field: fieldRef(c)})
					})
				},
			},
			{
				Name:      "kind",
				Usage:     "Change a field's kind",
				ArgsUsage: "<kind>",
				Flags:     refFlags(),
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.FieldOutput, error) {
						kind, err := arg(c, 0, "field kind")
						if err != nil {
							return nil, err
						}
						return sess.SetFieldKind(ops.SetFieldKindInput{Class: c.String("class"), Field: fieldRef(c), Kind: kind})
					})
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a field",
				ArgsUsage: "<new-name>",
				Flags:     refFlags(),
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.FieldOutput, error) {
						return sess.RenameField(ops.RenameFieldInput{Class: c.String("class"), Field: fieldRef(c), Name: c.Args().First()})
					})
				},
			},
			{
				Name:      "move",
				Usage:     "Move a field to another position",
				ArgsUsage: "<position>",
				Flags:     refFlags(),
				Action: func(c *cli.Context) error {
					return mutate(c, sess, func() (*ops.FieldOutput, error) {
						s, err := arg(c, 0, "position")
						if err != nil {
							return nil, err
						}
						pos, err := strconv.Atoi(s)
						if err != nil {
							return nil, errors.NewInvalidRequest("position must be an integer")
						}
						return sess.MoveField(ops.MoveFieldInput{Class: c.String("class"), Field: fieldRef(c), Position: pos})
					})
				},
			},
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a pointer chain and print every hop",
		Flags: selectionFlags(),
		Action: func(c *cli.Context) error {
			out, err := sess.Resolve(c.Context, ops.ResolveInput{Base: c.String("base"), Chain: c.String("chain")})
			return show(c, out, err)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Decode a class at a resolved address",
		Flags: append(selectionFlags(),
			classFlag(),
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Nested pointer expansion depth (0-8)"},
		),
		Action: func(c *cli.Context) error {
			out, err := sess.Inspect(c.Context, ops.InspectInput{
				Class: c.String("class"),
				Base:  c.String("base"),
				Chain: c.String("chain"),
				Depth: c.Int("depth"),
			})
			return show(c, out, err)
		},
	}
}

// writeCmd creates the write command.
func writeCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "Write a value to one field",
		ArgsUsage: "<value>",
		Flags:     append(append(selectionFlags(), classFlag()), fieldRefFlags()...),
		Action: func(c *cli.Context) error {
			value, err := arg(c, 0, "value")
			if err != nil {
				return outputError(err)
			}
			out, err := sess.WriteField(c.Context, ops.WriteFieldInput{
				Class: c.String("class"),
				Base:  c.String("base"),
				Chain: c.String("chain"),
				Field: fieldRef(c),
				Value: value,
			})
			return show(c, out, err)
		},
	}
}

// bookmarkCmd creates the bookmark command group.
func bookmarkCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "bookmark",
		Usage: "Manage named selections of the current project",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save a named selection",
				ArgsUsage: "<name>",
				Flags: append(selectionFlags(),
					classFlag(),
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
				),
				Action: func(c *cli.Context) error {
					name, err := arg(c, 0, "bookmark name")
					if err != nil {
						return outputError(err)
					}
					out, err := sess.SaveBookmark(c.Context, ops.SaveBookmarkInput{
						Name:  name,
						Class: c.String("class"),
						Base:  c.String("base"),
						Chain: c.String("chain"),
						Mode:  ops.SaveMode(c.String("mode")),
					})
					return show(c, out, err)
				},
			},
			{
				Name:  "list",
				Usage: "List bookmarks",
				Action: func(c *cli.Context) error {
					out, err := sess.ListBookmarks(c.Context)
					return show(c, out, err)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a bookmark",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					out, err := sess.DeleteBookmark(c.Context, ops.BookmarkInput{Name: c.Args().First()})
					return show(c, out, err)
				},
			},
		},
	}
}

// recentCmd creates the recent command.
func recentCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "List recently used projects and processes",
		Action: func(c *cli.Context) error {
			out, err := sess.Recent(c.Context)
			return show(c, out, err)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(sess *ops.Session) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the browser UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8432, Usage: "Port"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(sess, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's output as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err as "[CODE] message" with exit status 1. A nil
// err stays nil.
func outputError(err error) error {
	if err == nil {
		return nil
	}
	if mErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
