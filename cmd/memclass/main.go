package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hpungsan/memclass/internal/config"
	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/logflags"
	"github.com/hpungsan/memclass/internal/mcp"
	"github.com/hpungsan/memclass/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"class": true, "field": true,
	"resolve": true, "inspect": true, "write": true,
	"bookmark": true, "recent": true, "serve": true,
	"help": true,
}

// globalFlags contains the app-level flags that may precede a subcommand.
var globalFlags = map[string]bool{
	"project": true, "p": true,
	"pid": true, "dump": true, "dump-base": true,
	"log-level": true, "log": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] || isHelpOrVersion() {
		return true
	}
	if name, ok := strings.CutPrefix(arg, "-"); ok {
		name = strings.TrimPrefix(name, "-")
		name, _, _ = strings.Cut(name, "=")
		return globalFlags[name]
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a short banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  memclass: overlay class layouts on live process memory

  Usage: memclass [--project file.mclass] [--pid N | --dump file] <command> [options]
         memclass --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no database or config.
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	cliMode := isCLIMode()
	if !cliMode && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'memclass --help' for usage.\n")
		os.Exit(1)
	}

	baseDir, err := config.DefaultDir()
	if err != nil {
		fatal("%v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		fatal("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := logflags.Setup(cfg.LogLevel, "", os.Stderr); err != nil {
		fatal("%v", err)
	}
	if cliMode {
		// Paths typed on the command line are trusted like any other shell argument.
		cfg.AllowUnsafePaths = true
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	sess, err := ops.NewSession(cfg, database)
	if err != nil {
		fatal("%v", err)
	}
	defer sess.Close()

	if cliMode {
		if err := newCLIApp(sess).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			sess.Close()
			database.Close()
			os.Exit(1)
		}
		return
	}

	log := logflags.MCPLogger()
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.WithField("tools", unknown).Warn("unknown tools in disabled_tools")
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.WithField("types", unknown).Warn("unknown types in disabled_types")
	}
	if err := mcp.Run(sess, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		sess.Close()
		database.Close()
		os.Exit(1)
	}
}
