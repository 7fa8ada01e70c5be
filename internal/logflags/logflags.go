// Package logflags configures the per-layer loggers used across memclass.
//
// Every layer gets its own *logrus.Entry tagged with a "layer" field. All
// output goes to stderr by default: stdout carries CLI JSON and the MCP
// stdio transport.
package logflags

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu          sync.Mutex
	level                 = logrus.WarnLevel
	output      io.Writer = os.Stderr
	debugLayers           = map[string]bool{}

	// loggers holds one logger per layer. Entries handed out earlier keep
	// pointing at them, so Setup applies to loggers created before it ran.
	loggers = map[string]*logrus.Logger{}
)

// Known layer names accepted by Setup.
var Layers = []string{"session", "memory", "project", "db", "mcp", "web"}

// Setup sets the base level and the layers that log at debug level
// regardless of it. layers is a comma separated list ("memory,project") or
// "all". An empty levelStr keeps the default (warn).
func Setup(levelStr, layers string, out io.Writer) error {
	mu.Lock()
	defer mu.Unlock()

	if levelStr != "" {
		lvl, err := logrus.ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", levelStr, err)
		}
		level = lvl
	}
	if out == nil {
		out = os.Stderr
	}
	output = out

	debugLayers = map[string]bool{}
	for _, l := range strings.Split(layers, ",") {
		l = strings.TrimSpace(l)
		switch l {
		case "":
		case "all":
			for _, known := range Layers {
				debugLayers[known] = true
			}
		default:
			if !isKnownLayer(l) {
				return fmt.Errorf("unknown log layer %q", l)
			}
			debugLayers[l] = true
		}
	}
	for layer, l := range loggers {
		configure(l, layer)
	}
	return nil
}

func isKnownLayer(l string) bool {
	for _, known := range Layers {
		if l == known {
			return true
		}
	}
	return false
}

// configure applies the current settings to l. Callers hold mu.
func configure(l *logrus.Logger, layer string) {
	l.SetOutput(output)
	if debugLayers[layer] {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(level)
	}
}

func makeLogger(layer string, fields logrus.Fields) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	logger, ok := loggers[layer]
	if !ok {
		logger = logrus.New()
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}
		configure(logger, layer)
		loggers[layer] = logger
	}
	f := logrus.Fields{"layer": layer}
	for k, v := range fields {
		f[k] = v
	}
	return logger.WithFields(f)
}

// SessionLogger returns a logger for session operations.
func SessionLogger() *logrus.Entry {
	return makeLogger("session", nil)
}

// MemoryLogger returns a logger for attach/detach and memory backends.
func MemoryLogger() *logrus.Entry {
	return makeLogger("memory", nil)
}

// ProjectLogger returns a logger for project save/open.
func ProjectLogger() *logrus.Entry {
	return makeLogger("project", nil)
}

// DBLogger returns a logger for the state database.
func DBLogger() *logrus.Entry {
	return makeLogger("db", nil)
}

// MCPLogger returns a logger for the MCP server.
func MCPLogger() *logrus.Entry {
	return makeLogger("mcp", nil)
}

// WebLogger returns a logger for the web UI.
func WebLogger() *logrus.Entry {
	return makeLogger("web", logrus.Fields{"kind": "http"})
}
