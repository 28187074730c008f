package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-modules/internal/sys/proc"
	"github.com/coral-mesh/coral-modules/pkg/sdk/modules"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		format     = FormatText
		interval   time.Duration
		maxUpdates int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reprint the image list whenever a module is loaded or unloaded",
		Long: `Poll the memory map of the process and print the image list again each time
the set of file-backed mappings changes. The module cache is cleared before
every rescan.

Examples:
  coral-modules watch
  coral-modules watch --interval 500ms --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = opts.cfg.Watch.Interval
			}
			if interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", interval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := &watcher{
				opts:       opts,
				mapsPath:   opts.cfg.Finder.MapsPath,
				readMaps:   proc.ReadMaps,
				formatter:  NewFormatter(format),
				out:        cmd.OutOrStdout(),
				interval:   interval,
				maxUpdates: maxUpdates,
				logger:     opts.logger.With().Str("component", "watch").Logger(),
			}
			return w.run(ctx)
		},
	}

	cmd.Flags().VarP(&format, "format", "f", "Output format (text, json, yaml, csv)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Polling interval")
	cmd.Flags().IntVar(&maxUpdates, "max-updates", 0, "Exit after printing this many lists (0 means run until interrupted)")

	return cmd
}

// watcher polls the maps file and reprints the module list when the digest
// of its file-backed mappings changes.
type watcher struct {
	opts       *options
	mapsPath   string
	readMaps   func(path string) ([]byte, error)
	formatter  OutputFormatter
	out        io.Writer
	interval   time.Duration
	maxUpdates int
	logger     zerolog.Logger
}

func (w *watcher) run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		last    uint64
		updates int
	)
	for {
		contents, err := w.readMaps(w.mapsPath)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", w.mapsPath).Msg("Failed to read memory map")
		} else if digest := proc.MapsDigest(contents); updates == 0 || digest != last {
			if updates > 0 {
				w.logger.Info().Msg("Loaded images changed, rescanning")
				w.finder().Clear()
			}
			last = digest

			if err := writeReport(w.out, w.formatter, snapshot(ctx, w.opts, w.finder())); err != nil {
				return err
			}
			updates++
			if w.maxUpdates > 0 && updates >= w.maxUpdates {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *watcher) finder() *modules.Finder {
	return w.opts.finder
}
