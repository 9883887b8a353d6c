// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/browser"
	"github.com/JakeFAU/sitesnap/internal/clock/system"
	"github.com/JakeFAU/sitesnap/internal/config"
	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/id/uuid"
	"github.com/JakeFAU/sitesnap/internal/logging"
	"github.com/JakeFAU/sitesnap/internal/metrics"
	"github.com/JakeFAU/sitesnap/internal/policy/ratelimit"
	"github.com/JakeFAU/sitesnap/internal/storage/local"
	"github.com/JakeFAU/sitesnap/internal/targets"
)

// App holds the configuration and logger shared by every command and builds
// the crawl engine from them.
type App struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewApp loads configuration from cfgPath (optional) and the environment and
// builds the logger.
func NewApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return New(cfg, logger), nil
}

// New wraps an already loaded configuration.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the validated configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// LoadTargets reads the URL list. A non-empty override replaces paths.urls_file.
func (a *App) LoadTargets(override string) ([]string, error) {
	path := a.cfg.Paths.URLsFile
	if override != "" {
		path = override
	}
	urls, err := targets.Load(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("url list loaded", zap.String("path", path), zap.Int("urls", len(urls)))
	return urls, nil
}

// NewEngine prepares the output directories and wires the crawl engine with
// the filesystem stores and a Chrome launcher.
func (a *App) NewEngine(urls []string) (*crawler.Engine, error) {
	if err := local.EnsureDirectories(a.cfg.OutputDirs()...); err != nil {
		return nil, err
	}
	store, err := local.New(a.cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}
	clock := system.New()
	visitor := crawler.NewVisitor(a.cfg.VisitConfig(), local.NewArtifacts(), clock, a.logger.Named("visit"))
	launcher := browser.NewLauncher(a.cfg.BrowserConfig(), a.logger.Named("browser"))

	opts := []crawler.Option{crawler.WithIDGenerator(uuid.New())}
	if pacer := ratelimit.New(a.cfg.PacerConfig()); pacer.Enabled() {
		opts = append(opts, crawler.WithPacer(pacer))
	}
	return crawler.NewEngine(urls, store, store, launcher, visitor, clock, a.logger.Named("engine"), opts...), nil
}

// Close exports metrics when a textfile is configured and flushes the logger.
func (a *App) Close() {
	if path := a.cfg.Paths.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("write metrics textfile failed", zap.String("path", path), zap.Error(err))
		} else {
			a.logger.Debug("metrics textfile written", zap.String("path", path))
		}
	}
	// Sync on a console logger returns EINVAL on some platforms; nothing useful can be done with it.
	_ = a.logger.Sync()
}
