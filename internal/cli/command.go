package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/dirhover/internal/config"
	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/logging"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version}
}

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
}

// load reads the configuration and builds the logger it describes.
func (o *globalOptions) load() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	o.override(cfg)

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

// override applies command-line flags on top of cfg.
func (o *globalOptions) override(cfg *config.Config) {
	if o.debug {
		cfg.DebugMode = true
		cfg.Logging.Level = "debug"
	}
}

// Execute runs the CLI with the process arguments. An interrupt cancels
// the running command.
func (c CLI) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.Command().ExecuteContext(ctx)
}

// Command builds the root command.
func (c CLI) Command() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "dirhover",
		Short: "Directory statistics for file explorer tooltips",
		Long: heredoc.Doc(`
			dirhover computes recursive directory statistics (total size, file count,
			folder count) and renders them through configurable templates, the way a
			file explorer shows them when hovering over an entry.

			Configuration is read from $XDG_CONFIG_HOME/dirhover/config.yaml unless
			--config is given. Every key can be overridden with a DIRHOVER_ variable,
			e.g. DIRHOVER_MAX_CALCULATION_TIME=10s.
		`),
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the configuration file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		hoverCommand(opts),
		calcCommand(opts),
		watchCommand(opts),
		versionCommand(c.version),
	)

	return root
}

// outputFlag registers --output restricted to allowed values.
func outputFlag(flags *pflag.FlagSet, target *string, allowed ...string) func() error {
	flags.StringVarP(target, "output", "o", allowed[0], fmt.Sprintf("Output format: one of %v", allowed))

	return func() error {
		if !slices.Contains(allowed, *target) {
			return fmt.Errorf("invalid output format %q: must be one of %v", *target, allowed)
		}

		return nil
	}
}

func hoverCommand(global *globalOptions) *cobra.Command {
	var opts hoverOptions

	cmd := &cobra.Command{
		Use:   "hover [path...]",
		Short: "Show the tooltip of files and directories",
		Long: heredoc.Doc(`
			Render the decoration of each path as a file explorer would on hover.

			Directories are computed in the background with the configured
			max_calculation_time. By default the command waits for the computation
			and prints the final tooltip; with --no-wait it prints whatever is
			available immediately, usually the "calculating" tooltip.
		`),
		Args: cobra.ArbitraryArgs,
	}

	validate := outputFlag(cmd.Flags(), &opts.Output, "text", "json", "yaml")
	cmd.Flags().BoolVar(&opts.NoWait, "no-wait", false, "Do not wait for directory computations")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := validate(); err != nil {
			return err
		}

		opts.Paths = args
		if len(opts.Paths) == 0 {
			opts.Paths = []string{"."}
		}

		cfg, log, err := global.load()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck // Nothing to do about a failed flush on exit

		return runHover(cmd.Context(), cmd.OutOrStdout(), cfg, log.Logger, opts)
	}

	return cmd
}

func calcCommand(global *globalOptions) *cobra.Command {
	var opts calcOptions

	cmd := &cobra.Command{
		Use:   "calc [path]",
		Short: "Calculate the statistics of a directory without a time limit",
		Long: heredoc.Doc(`
			Walk the directory tree in parallel and report its total size, file count
			and folder count. Unlike hover there is no deadline; press Ctrl+C to stop.

			Symlinks are not followed. Entries matching an --exclude regex are skipped,
			directories together with their contents.

			--output text prints a single line rendered from templates.status_bar.
		`),
		Args: cobra.MaximumNArgs(1),
	}

	validate := outputFlag(cmd.Flags(), &opts.Output, "table", "json", "yaml", "text")
	cmd.Flags().StringSliceVarP(&opts.Excludes, "exclude", "e", nil, "Regex patterns to exclude")
	cmd.Flags().DurationVar(&opts.ProgressInterval, "progress-interval", dirstat.DefaultProgressInterval,
		"Interval between progress updates")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := validate(); err != nil {
			return err
		}

		opts.Path = "."
		if len(args) == 1 {
			opts.Path = args[0]
		}

		opts.Debug = global.debug

		cfg, log, err := global.load()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck // Nothing to do about a failed flush on exit

		return runCalc(cmd.Context(), cmd.OutOrStdout(), cfg, log.Logger, opts)
	}

	return cmd
}

func watchCommand(global *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Continuously show the decorations of a directory's entries",
		Long: heredoc.Doc(`
			Show the decorations of root and its direct children and keep them up to
			date. Filesystem changes below root invalidate the affected directories,
			and edits to the configuration file are applied without a restart.

			With --metrics-addr (or metrics.enabled in the configuration) Prometheus
			metrics are served on /metrics.
		`),
		Args: cobra.MaximumNArgs(1),
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 250*time.Millisecond, "Minimum time between redraws")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts.Root = "."
		if len(args) == 1 {
			opts.Root = args[0]
		}

		return runWatch(cmd.Context(), cmd.OutOrStdout(), global, opts)
	}

	return cmd
}

func versionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)

			return err
		},
	}
}
