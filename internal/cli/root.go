package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/omnistate/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to omni.yaml; empty uses defaults

	// Flag overrides applied over the loaded config.
	Adapter  string
	Database string
	Schema   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the omni CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "omni",
		Short: "omni - reactive state over pluggable adapters",
		Long: `A reactive state runtime: a schema-defined store whose collections
resolve through memory or SQLite adapters and merge into one state tree.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts, nil)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to omni.yaml")
	cmd.PersistentFlags().StringVar(&opts.Adapter, "adapter", "", "adapter override (memory|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database override")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "schema file or directory override")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// LoadConfig reads the config file named by --config, or the defaults,
// and applies flag overrides.
func (o *RootOptions) LoadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Adapter != "" {
		cfg.Adapter = o.Adapter
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Schema != "" {
		cfg.Schema = o.Schema
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	configureLogging(o, &cfg)
	return cfg, nil
}

// configureLogging installs the default slog handler on stderr. --verbose
// wins over the configured level.
func configureLogging(o *RootOptions, cfg *config.Config) {
	level := slog.LevelWarn
	if cfg != nil {
		if l, err := cfg.Level(); err == nil {
			level = l
		}
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
