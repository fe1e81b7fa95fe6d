package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carlton/internal/app"
	"carlton/internal/config"
	"carlton/internal/logging"
	"carlton/internal/service"
)

// loadConfig is swapped out in tests
var loadConfig = config.Load

type cliOptions struct {
	verbose  bool
	language string
	seed     int64
	timeout  time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "carltonctl",
		Short: "Carlton property assistant tools",
		Long: `carltonctl analyses property queries, renders steer-back replies and
syncs the Carlton listings snapshot into Postgres. Output is JSON.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.language, "lang", "l", "auto", "query language: en, ar or auto")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newRedirectCmd(opts),
		newSyncCmd(opts),
	)
	return root
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <text>",
		Short: "Extract facets, topic and confidence from a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, err := setup(ctx, opts, app.Options{SkipDatabase: true})
			if err != nil {
				return err
			}
			defer a.Close()

			return writeJSON(cmd.OutOrStdout(), a.Analyzer.Analyze(ctx, strings.Join(args, " "), opts.language))
		},
	}
}

func newRedirectCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirect <text>",
		Short: "Render the steer-back reply for an off-topic message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var rnd service.Randomizer
			if cmd.Flags().Changed("seed") {
				rnd = service.NewRandomizer(opts.seed)
			}
			a, err := setup(ctx, opts, app.Options{SkipDatabase: true, Random: rnd})
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			lang := service.ResolveLanguage(opts.language, query)
			return writeJSON(cmd.OutOrStdout(), a.Redirect.Redirect(ctx, query, lang))
		},
	}
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "seed the phrase picker for reproducible output")
	return cmd
}

func newSyncCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the upstream listings once and upsert them into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, err := setup(ctx, opts, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			n, err := a.Sync(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"stored":  n,
				"took_ms": time.Since(start).Milliseconds(),
			})
		},
	}
}

func setup(ctx context.Context, opts *cliOptions, appOpts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Logging.Format = "console"
	if opts.verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}
	logging.Setup(cfg.Logging, os.Stderr)

	return app.New(ctx, cfg, appOpts)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
