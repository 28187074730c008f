package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-modules/internal/errors"
	"github.com/coral-mesh/coral-modules/pkg/sdk/modules"
)

func newListCmd(opts *options) *cobra.Command {
	var (
		format = FormatText
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the images loaded into this process",
		Long: `Scan the memory map of the process and print every loaded ELF image with
its load address, size, build-id and debug id.

Examples:
  coral-modules list
  coral-modules list --format json
  coral-modules list --format csv --output modules.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output) // #nosec G304 -- path supplied by the user
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer errors.DeferClose(opts.logger, file, "failed to close output file")
				out = file
			}

			report := snapshot(cmd.Context(), opts, opts.finder)
			return writeReport(out, NewFormatter(format), report)
		},
	}

	cmd.Flags().VarP(&format, "format", "f", "Output format (text, json, yaml, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write output to a file instead of stdout")

	return cmd
}

// snapshot takes a reference on the finder's module list and copies it into
// a Report.
func snapshot(ctx context.Context, opts *options, finder *modules.Finder) *Report {
	list := finder.Get()
	defer list.DecRef()

	return &Report{
		Process: currentProcess(ctx, opts.logger),
		Images:  list.Images(),
	}
}

func writeReport(w io.Writer, formatter OutputFormatter, report *Report) error {
	text, err := formatter.FormatReport(report)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
