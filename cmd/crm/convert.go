package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conda/conda-recipe-manager/internal/convert"
	"github.com/conda/conda-recipe-manager/internal/reader"
)

var failOnUnsupportedJinja bool

var convertCmd = &cobra.Command{
	Use:   "convert RECIPE",
	Short: "Convert a v0 recipe to the v1 schema",
	Long: `convert reads a legacy (v0) recipe file and writes its v1-schema
rendering to standard output. Already-v1 recipes are rejected: there
is nothing to convert.

Unsupported jinja statements ({% if %}, {% for %}) are silently
dropped by default. --fail-on-unsupported-jinja makes that an error
instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			exitWithCode(ExitIO)
			return nil
		}

		_, code := runConvert(cmd.OutOrStdout(), os.Stderr, string(raw), failOnUnsupportedJinja)
		exitWithCode(code)
		return nil
	},
}

// runConvert holds convert's actual decision logic, kept free of
// exitWithCode so it can be exercised directly in tests. It writes the
// rendered recipe to out and any warnings/errors to errOut, and returns
// the exit code the caller should report.
func runConvert(out, errOut io.Writer, raw string, failOnUnsupportedJinja bool) (string, int) {
	// A quick, throwaway parse to check the schema before running the
	// real (non-strict) parse the converter needs.
	probe, err := reader.New(raw, true)
	if err != nil {
		fmt.Fprintln(errOut, "ILLEGAL OPERATION: could not parse recipe:", err)
		return "", ExitIllegalOperation
	}
	if probe.SchemaV1() {
		fmt.Fprintln(errOut, "ILLEGAL OPERATION: recipe is already in the v1 schema")
		return "", ExitIllegalOperation
	}

	text, messages, err := convert.ConvertWithOptions(raw, !failOnUnsupportedJinja)
	if err != nil {
		fmt.Fprintln(errOut, "PARSE EXCEPTION:", err)
		return "", ExitParse
	}

	fmt.Fprint(out, text)

	for _, m := range messages.Messages {
		fmt.Fprintf(errOut, "%s: %s\n", m.Category, m.Text)
	}
	if len(messages.Messages) > 0 {
		return text, ExitRenderWarnings
	}
	return text, ExitSuccess
}

func init() {
	convertCmd.Flags().BoolVar(&failOnUnsupportedJinja, "fail-on-unsupported-jinja", false,
		"Raise an error on unsupported jinja statements instead of silently dropping them")
}
