// Command vsx-tidy runs the analysis daemon: a long-lived process
// speaking line-delimited JSON-RPC over stdio between an editor and
// an external clang-tidy-compatible analyzer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aloshkarev/vsx-tidy/internal/dispatcher"
	"github.com/aloshkarev/vsx-tidy/internal/logging"
	"github.com/aloshkarev/vsx-tidy/internal/protocol"
	"github.com/aloshkarev/vsx-tidy/internal/supervisor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logFile, logLevel string
	var watch bool

	cmd := &cobra.Command{
		Use:     "vsx-tidy",
		Short:   "JSON-RPC analysis daemon for clang-tidy and compatible analyzers",
		Version: supervisor.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logFile, logLevel, watch)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "path to also write internal logs to (default: stderr only)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "internal logger minimum level (verbose, debug, info, warn, error, fatal)")
	cmd.Flags().BoolVar(&watch, "watch", false, "watch the compile database for external edits (optimization only)")
	cmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}}\n", supervisor.DaemonName))
	return cmd
}

func run(logFile, logLevel string, watch bool) error {
	logger := logging.New(logFile, logLevel)
	conn := protocol.NewConn(os.Stdin, os.Stdout)
	sup := supervisor.New(conn, logger)
	if watch {
		sup.EnableWatch()
	}

	logger.Information("{Daemon} {Version} starting", supervisor.DaemonName, supervisor.Version)
	d := dispatcher.New(conn, sup, logger)
	if err := d.Run(); err != nil {
		return fmt.Errorf("dispatch loop: %w", err)
	}
	logger.Information("{Daemon} shutting down", supervisor.DaemonName)
	return nil
}
