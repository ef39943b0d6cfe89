// Package logging builds the daemon's internal structured logger: a
// high-volume diagnostic trail, distinct from the client-visible RPC
// `log` notification, aimed at whoever runs the daemon directly. It
// always writes to stderr (stdout is reserved for the RPC channel)
// and may additionally write to a file given via --log-file.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"
)

// Logger is the internal logger type used throughout the daemon.
type Logger = core.Logger

// New builds a Logger at the given minimum level, writing to stderr
// and, if logFile is non-empty, additionally to that file. An
// unwritable logFile falls back to stderr-only rather than failing
// daemon startup.
func New(logFile, level string) Logger {
	opts := []mtlog.Option{
		mtlog.WithSink(sinks.NewConsoleSinkWithWriter(os.Stderr)),
		mtlog.WithMinimumLevel(ParseLevel(level)),
		mtlog.WithProperty("component", "vsx-tidy"),
		// A fresh correlation id per process run, so log lines from
		// concurrent daemon instances (e.g. one per editor window)
		// can be told apart in aggregated output.
		mtlog.WithProperty("sessionId", uuid.New().String()),
	}
	if logFile != "" {
		// mtlog.WithFile panics on an unopenable path, so the file
		// sink is built directly: a failure here falls back to
		// stderr-only instead of killing the daemon.
		if fileSink, err := sinks.NewFileSink(logFile); err == nil {
			opts = append(opts, mtlog.WithSink(fileSink))
		} else {
			fmt.Fprintf(os.Stderr, "vsx-tidy: cannot open log file %s: %v\n", logFile, err)
		}
	}
	return mtlog.New(opts...)
}

// ParseLevel maps a --log-level string onto mtlog's level enum,
// defaulting to InformationLevel for an unrecognized value.
func ParseLevel(s string) core.LogEventLevel {
	switch strings.ToLower(s) {
	case "verbose", "trace":
		return core.VerboseLevel
	case "debug":
		return core.DebugLevel
	case "warn", "warning":
		return core.WarningLevel
	case "error":
		return core.ErrorLevel
	case "fatal":
		return core.FatalLevel
	default:
		return core.InformationLevel
	}
}
