package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/bootstrap"
	"github.com/kailas-cloud/painradar/internal/config"
	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	"github.com/kailas-cloud/painradar/internal/metrics"
	"github.com/kailas-cloud/painradar/internal/render"
	"github.com/kailas-cloud/painradar/internal/version"
)

// errRunFailed makes the process exit non-zero after a FAILED report was printed.
var errRunFailed = errors.New("run failed")

// cli holds flags and the injectable pipeline builder.
type cli struct {
	env     string
	verbose bool

	loadConfig func(env string) (config.Config, error)
	build      func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bootstrap.App, error)
}

func defaultCLI() *cli {
	return &cli{
		loadConfig: config.Load,
		build: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bootstrap.App, error) {
			return bootstrap.Build(ctx, cfg, bootstrap.Deps{}, logger)
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "painctl",
		Short:         "Discover pain points people voice online about a topic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "config environment (config/<env>.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(newRunCmd(c), newSourcesCmd(c), newVersionCmd())
	return root
}

// runFlags are the options of "painctl run".
type runFlags struct {
	sources    []string
	limits     map[string]int
	timeFilter string
	format     string
	quiet      bool
}

func newRunCmd(c *cli) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Run the pipeline for one query and print the report",
		Long: `Fetches discussions from every enabled source, merges them into one
corpus and asks the language model for recurring pain points.

Progress is written to stderr, the report to stdout.

Example:
  painctl run "invoice reconciliation" --sources reddit,hackernews --limit reddit=15 --time month`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, strings.Join(args, " "), f)
		},
	}
	cmd.Flags().StringSliceVar(&f.sources, "sources", nil, "comma-separated sources (default: all enabled)")
	cmd.Flags().StringToIntVar(&f.limits, "limit", nil, "per-source result limit, e.g. reddit=10,google=5")
	cmd.Flags().StringVar(&f.timeFilter, "time", "", "recency window: hour, day, week, month, year, all")
	cmd.Flags().StringVar(&f.format, "format", "markdown", "output format: markdown or json")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, query string, f *runFlags) error {
	if f.format != "markdown" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	opts, err := domain.ParseRunOptions(f.sources, f.limits, f.timeFilter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, logger, err := c.setup(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer func() { _ = logger.Sync() }()

	events, result, err := app.Runs.Stream(logpkg.ContextWithLogger(ctx, logger), query, opts)
	if err != nil {
		return err
	}
	for ev := range events {
		if !f.quiet {
			printEvent(cmd.ErrOrStderr(), ev)
		}
	}
	report := <-result

	if err := writeReport(cmd.OutOrStdout(), report, f.format); err != nil {
		return err
	}
	if report.State == domain.StateFailed {
		return errRunFailed
	}
	return nil
}

func newSourcesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List sources and whether they are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, logger, err := c.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			defer func() { _ = logger.Sync() }()

			rows := [][]string{}
			for _, s := range app.Runs.Sources() {
				state := "available"
				switch {
				case !s.Registered:
					state = "disabled"
				case !s.Available:
					state = "unavailable"
				}
				rows = append(rows, []string{string(s.Source), state, s.Reason})
			}
			out := cmd.OutOrStdout()
			for _, line := range render.Table([]string{"Source", "State", "Reason"}, rows) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "painctl %s\n", version.String())
		},
	}
}

func (c *cli) setup(ctx context.Context) (*bootstrap.App, *zap.Logger, error) {
	cfg, err := c.loadConfig(c.env)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger(c.env, logpkg.Options{Level: level, Console: true})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	metrics.RegisterAll()

	app, err := c.build(ctx, &cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire pipeline: %w", err)
	}
	return app, logger, nil
}

func printEvent(w io.Writer, ev domain.ProgressEvent) {
	elapsed := (time.Duration(ev.ElapsedMS) * time.Millisecond).Seconds()
	switch ev.Type {
	case domain.EventSource:
		if ev.Outcome == domain.OutcomeSucceeded {
			fmt.Fprintf(w, "[%6.1fs] %-10s %d records\n", elapsed, ev.Source, ev.Records)
			return
		}
		fmt.Fprintf(w, "[%6.1fs] %-10s failed: %s\n", elapsed, ev.Source, ev.Kind)
	default:
		if ev.State.Terminal() {
			fmt.Fprintf(w, "[%6.1fs] run %s\n", elapsed, ev.State)
			return
		}
		fmt.Fprintf(w, "[%6.1fs] %s\n", elapsed, ev.State)
	}
}

func writeReport(w io.Writer, report domain.RunReport, format string) error {
	if format == "json" {
		data, err := render.JSON(report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err //nolint:wrapcheck // stdout write
	}
	_, err := io.WriteString(w, render.Markdown(report))
	return err //nolint:wrapcheck // stdout write
}
