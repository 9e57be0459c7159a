// Command crm is the conda recipe manager's CLI, exposing the
// converter and version bumper as subcommands (spec.md Sec. 6).
//
// Grounded on cmd/tsuku/main.go's root-command shape: persistent
// verbosity flags, a PersistentPreRun that wires up the logger before
// any subcommand runs, and a shared package-scoped exitWithCode.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conda/conda-recipe-manager/internal/log"
)

var (
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "Tools for reading, converting, and updating conda recipes",
	Long: `crm edits conda recipe files directly: it converts recipes between
the legacy and current schema, and bumps package versions, build
numbers, and source artifact hashes without requiring a full
re-render of the recipe by hand.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show verbose output (INFO level)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Show debug output")
	rootCmd.PersistentPreRun = initLogger

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(bumpRecipeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitClickUsage)
	}
}

func initLogger(cmd *cobra.Command, args []string) {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	switch {
	case debugFlag:
		return slog.LevelDebug
	case verboseFlag:
		return slog.LevelInfo
	case quietFlag:
		return slog.LevelError
	}
	if isTruthy(os.Getenv("CRM_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("CRM_VERBOSE")) {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
