// Package cli implements the coral-modules command line interface.
package cli

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-modules/internal/config"
	"github.com/coral-mesh/coral-modules/internal/logging"
	"github.com/coral-mesh/coral-modules/pkg/sdk/modules"
	"github.com/coral-mesh/coral-modules/pkg/version"
)

// options is the state shared by all subcommands. It is populated by the
// root command before any subcommand runs.
type options struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
	finder *modules.Finder
}

func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	o.cfg = cfg
	o.logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	o.finder = modules.NewFinder(
		modules.WithLogger(o.logger),
		modules.WithMapsPath(cfg.Finder.MapsPath),
		modules.WithAuxvPath(cfg.Finder.AuxvPath),
	)

	o.logger.Debug().
		Str("config", o.configPath).
		Str("maps", cfg.Finder.MapsPath).
		Str("auxv", cfg.Finder.AuxvPath).
		Msg("Configuration loaded")
	return nil
}

// NewRootCmd builds the coral-modules command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "coral-modules",
		Short: "Inspect the executable images loaded into a process",
		Long: `List the ELF images mapped into the current process together with the
identifiers a symbol server needs to find their debug information.

Each image is reported with its load address, mapped size, file path, GNU
build-id (when present) and debug id. Images without a build-id get a debug id
derived from the first page of their .text section.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "coral-modules", "config.yaml")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Version output needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("coral-modules version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
