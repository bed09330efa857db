package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/logging"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "webcrawler <set-variant> <seed-url> <thread-count>",
		Short: "A concurrent same-domain web crawler.",
		Long: `webcrawler starts at a seed URL and follows every link that stays on the
seed's scheme and host, fetching each page exactly once with a fixed pool of
workers. set-variant selects the visited set: 0 (list), 1 (coarse-locked hash
table) or 2 (striped hash table).`,
		Example: "  webcrawler 2 https://example.com 8\n" +
			"  webcrawler 1 http://localhost:8080 4 --extractor regex --output report.json",
		Args:          exactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err = cfg.ApplyArgs(args)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

// exactArgs is cobra.ExactArgs with errors classified as invalid arguments.
func exactArgs(n int) cobra.PositionalArgs {
	check := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidArgs, err)
		}
		return nil
	}
}

// Execute is the main entry point. It exits with status 1 on any error,
// including a crawl interrupted by SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "webcrawler:", err)
		os.Exit(1)
	}
}
