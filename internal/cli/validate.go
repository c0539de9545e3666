package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sayquiz/internal/vocab"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Path    string   `json:"path"`
	Valid   bool     `json:"valid"`
	Entries int      `json:"entries,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dataset.json>",
		Short: "Validate a vocabulary dataset",
		Long: `Validate a vocabulary dataset against its schema.

Every entry needs a non-empty "eng" answer and "jp" prompt. Optional
fields must have the right types. All violations are reported.

Exit codes:
  0 - Dataset valid
  1 - Dataset invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		message := err.Error()
		if errors.Is(err, fs.ErrNotExist) {
			message = "dataset file not found"
		}
		_ = formatter.Error(vocab.ErrCodeNotFound, message, path)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", vocab.ErrCodeNotFound, message))
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	if msgs := vocab.Validate(data); len(msgs) > 0 {
		code := vocab.ErrCodeSchema
		if !json.Valid(data) {
			code = vocab.ErrCodeParse
		}
		return reportInvalid(formatter, code, ValidationResult{Path: path, Errors: msgs})
	}

	// The schema passed; decoding can still find an empty list.
	ds, err := vocab.Parse(data)
	if err != nil {
		code, message := vocab.ErrCodeParse, err.Error()
		var le *vocab.LoadError
		if errors.As(err, &le) {
			code, message = le.Code, le.Message
		}
		return reportInvalid(formatter, code, ValidationResult{Path: path, Errors: []string{message}})
	}

	result := ValidationResult{Path: path, Valid: true, Entries: ds.Len()}
	return formatter.Report(result, "", func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d entries valid\n", result.Path, result.Entries)
	})
}

// reportInvalid lists every violation. The first one is the JSON error
// message.
func reportInvalid(formatter *OutputFormatter, code string, result ValidationResult) error {
	exit := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	return formatter.Fail(exit, code, result.Errors[0], result, func(w io.Writer) {
		fmt.Fprintf(w, "✗ %s: validation failed\n", result.Path)
		fmt.Fprintln(w)
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	})
}
