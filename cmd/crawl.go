// Package cmd defines and implements the CLI commands for the sitesnap executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/targets"
)

type crawlFlags struct {
	all           bool
	retryFailures bool
	update        string
	urlsFile      string
}

func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Visit the configured sites and capture metadata and screenshots",
		Long: `Without flags, crawl visits every URL that has no successful record yet.
--all recrawls every URL, --retry-failures revisits only the URLs recorded
in the failures document (backing up their old screenshots first), and
--update recrawls a single URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.all, "all", false, "recrawl every configured URL")
	cmd.Flags().BoolVar(&flags.retryFailures, "retry-failures", false, "revisit only previously failed URLs")
	cmd.Flags().StringVar(&flags.update, "update", "", "recrawl a single URL")
	cmd.Flags().StringVar(&flags.urlsFile, "urls", "", "URL list file (overrides paths.urls_file)")
	cmd.MarkFlagsMutuallyExclusive("all", "retry-failures", "update")
	return cmd
}

// runOptions maps the mode flags to engine options.
func runOptions(flags *crawlFlags, args []string) (crawler.RunOptions, error) {
	opts := crawler.RunOptions{Mode: crawler.ModeIncremental, Args: append([]string{}, args...)}
	set := 0
	if flags.all {
		opts.Mode = crawler.ModeFull
		set++
	}
	if flags.retryFailures {
		opts.Mode = crawler.ModeRetryFailures
		set++
	}
	if flags.update != "" {
		if err := targets.Validate(flags.update); err != nil {
			return crawler.RunOptions{}, fmt.Errorf("--update: %w", err)
		}
		opts.Mode = crawler.ModeUpdate
		opts.UpdateURL = flags.update
		set++
	}
	if set > 1 {
		return crawler.RunOptions{}, errors.New("--all, --retry-failures and --update are mutually exclusive")
	}
	return opts, nil
}

func runCrawlCommand(cmd *cobra.Command, flags *crawlFlags) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close()
	logger := appInstance.GetLogger()

	opts, err := runOptions(flags, os.Args[1:])
	if err != nil {
		return err
	}
	urls, err := appInstance.LoadTargets(flags.urlsFile)
	if err != nil {
		return err
	}
	engine, err := appInstance.NewEngine(urls)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	report, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", report.RunID),
		zap.String("outcome", string(report.Outcome)),
	)
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
