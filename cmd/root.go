package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/app"
	"github.com/JakeFAU/sitesnap/internal/config"
	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services commands use, so tests can inject a fake.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	LoadTargets(override string) ([]string, error)
	NewEngine(urls []string) (*crawler.Engine, error)
}

// newApp is the application factory, replaced in tests.
var newApp = func(cfgPath string) (App, error) {
	return app.NewApp(cfgPath)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesnap",
		Short: "Capture titles, descriptions and screenshots for a list of sites.",
		Long: `sitesnap visits every URL in the configured list with headless Chrome,
records each page's title and meta description, and saves a desktop and a
mobile screenshot per host. Progress is flushed after every URL so an
interrupted run can be resumed.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			appInstance, err := newApp(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (YAML); env SITESNAP_* overrides")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitesnap: %v\n", err)
		os.Exit(1)
	}
}
