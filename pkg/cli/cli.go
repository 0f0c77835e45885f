// Package cli builds the docroute command line: serve, worker, routes,
// config and version subcommands sharing one configuration loader.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/version"
)

// Options configures NewRootCommand.
type Options struct {
	Name       string
	ConfigPath string
	EnvPrefix  string

	// NewApp overrides application wiring; tests use it to avoid real
	// connections.
	NewApp func(ctx context.Context, cfg *config.Config, log logger.Logger) (Runner, error)
}

// Runner is the part of App driven by the serve and worker commands.
type Runner interface {
	Serve(ctx context.Context) error
	RunWorkers(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewRootCommand returns the docroute command tree. Running the root
// command without a subcommand serves HTTP.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docroute"
	}
	if opts.NewApp == nil {
		opts.NewApp = func(ctx context.Context, cfg *config.Config, log logger.Logger) (Runner, error) {
			return NewApp(ctx, cfg, log)
		}
	}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         "Route-table driven JSON API over MongoDB",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	pf := root.PersistentFlags()
	pf.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.Int("port", 0, "public HTTP port")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("routes", "", "route table file")

	load := func(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(cfgPath, opts.EnvPrefix, flags)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the public and management HTTP servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, load, opts.NewApp, Runner.Serve)
		},
	}
	root.RunE = serve.RunE

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the background job queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, load, opts.NewApp, Runner.RunWorkers)
		},
	}

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the compiled route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			table, err := loadRoutes(cfg.Routes.File, log)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPATTERN\tCONTROLLER\tREGEXP")
			for i, e := range table.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Pattern, e.Handler, table.Pattern(i).Expr())
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.NewViperLoader(cfgPath, opts.EnvPrefix).WithFlags(cmd.Flags()).Load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewViperLoader(cfgPath, opts.EnvPrefix).WithFlags(cmd.Flags()).Load()
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg)
		},
	})

	root.AddCommand(serve, workerCmd, routesCmd, configCmd, &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Current(opts.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
		},
	})
	return root
}

type loadFunc func(*pflag.FlagSet) (*config.Config, logger.Logger, error)

type appFactory func(context.Context, *config.Config, logger.Logger) (Runner, error)

func run(cmd *cobra.Command, load loadFunc, newApp appFactory, body func(Runner, context.Context) error) error {
	cfg, log, err := load(cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Error("failed to close application", "error", err)
		}
	}()
	return body(app, ctx)
}

// LoadConfigAndLogger loads configuration from file, environment and flags,
// then builds the zap logger it describes.
func LoadConfigAndLogger(cfgPath, envPrefix string, flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Format: logger.LogFormat(cfg.Log.Format),
		Output: cfg.Log.Output,
		Port:   cfg.HTTP.Port,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	log.Debug("configuration loaded", "service", cfg.Service.Name, "environment", cfg.Service.Environment)
	return cfg, log, nil
}

func writeConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	shown.Database.URL = redactURL(cfg.Database.URL)
	shown.Worker.RedisURL = redactURL(cfg.Worker.RedisURL)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(shown); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return enc.Close()
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}

// Execute runs cmd and exits non-zero on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
