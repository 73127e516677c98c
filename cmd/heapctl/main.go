// Command heapctl drives the heapcore allocator core directly, for manual
// testing and demonstration. Each subcommand builds its own short-lived
// arena (there is no persistent heap across invocations — the core has no
// notion of a saved-to-disk pool) and prints what happened.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Drive the heapcore allocator core for testing and demonstration",
	Long: `heapctl is a manual-testing tool for heapcore's pool-and-bin
allocator. Each subcommand creates its own Pool(s) backed by real OS
memory, runs a scripted sequence of allocator operations against it, and
reports the resulting state.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// lineLogger returns a zerolog.Logger writing bare, unadorned lines to w —
// the same rs/zerolog stack heap.DebugOptions.Logger uses for its
// structured event log, just without the timestamp/level fields that make
// sense for a diagnostic stream but not for a command's own result output.
func lineLogger(w *os.File) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName},
	}
	return zerolog.New(cw)
}

var (
	stdoutLog = lineLogger(os.Stdout)
	stderrLog = lineLogger(os.Stderr)
)

func printInfo(format string, args ...interface{}) {
	if !quiet {
		stdoutLog.Log().Msgf(strings.TrimSuffix(format, "\n"), args...)
	}
}

func printError(format string, args ...interface{}) {
	stderrLog.Log().Msgf("Error: "+strings.TrimSuffix(format, "\n"), args...)
}

func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		stdoutLog.Log().Msgf(strings.TrimSuffix(format, "\n"), args...)
	}
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
