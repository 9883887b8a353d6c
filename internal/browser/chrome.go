// Package browser drives a headless Chrome instance through chromedp and
// exposes it as crawler.Browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// Config controls how Chrome is launched.
type Config struct {
	Headless        bool
	ExecPath        string
	WindowWidth     int
	WindowHeight    int
	LaunchTimeout   time.Duration
	ProtocolTimeout time.Duration
}

const (
	defaultLaunchTimeout   = 60 * time.Second
	defaultProtocolTimeout = 180 * time.Second
)

// Launcher implements crawler.BrowserLauncher.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher constructs a Launcher, filling in default timeouts.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = defaultLaunchTimeout
	}
	if cfg.ProtocolTimeout <= 0 {
		cfg.ProtocolTimeout = defaultProtocolTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}
}

// allocatorOptions builds the exec allocator flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}

// Launch starts Chrome and waits for the first target to attach. The
// browser outlives ctx; only Close shuts it down.
func (l *Launcher) Launch(ctx context.Context) (crawler.Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(l.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	warmup := func(context.Context) error {
		if err := chromedp.Run(browserCtx); err != nil {
			return fmt.Errorf("chromedp warmup: %w", err)
		}
		return nil
	}
	if err := raceDeadline(ctx, l.cfg.LaunchTimeout, warmup); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	l.logger.Info("browser launched",
		zap.Bool("headless", l.cfg.Headless),
		zap.String("exec_path", l.cfg.ExecPath),
	)
	return &Chrome{
		ctx:             browserCtx,
		cancel:          browserCancel,
		allocCancel:     allocCancel,
		protocolTimeout: l.cfg.ProtocolTimeout,
	}, nil
}

// Chrome is a running browser.
type Chrome struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocCancel     context.CancelFunc
	protocolTimeout time.Duration
}

// NewPage opens a new tab.
func (c *Chrome) NewPage(ctx context.Context) (crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(c.ctx)
	p := newChromePage(tabCtx, tabCancel, c.protocolTimeout)
	// The first Run must use the tab context itself: the target it creates is
	// bound to that context.
	attach := func(context.Context) error {
		return chromedp.Run(tabCtx, chromedp.ActionFunc(p.enableLifecycle))
	}
	if err := raceDeadline(ctx, c.protocolTimeout, attach); err != nil {
		tabCancel()
		return nil, fmt.Errorf("new tab: %w", err)
	}
	return p, nil
}

// Close shuts down the browser process.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// ErrDeadline is returned by raceDeadline when the timeout wins.
var ErrDeadline = errors.New("deadline exceeded")

// raceDeadline runs fn in a goroutine and returns ErrDeadline if it has not
// finished within timeout. fn's context is canceled when the race is lost.
func raceDeadline(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(runCtx) }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case err := <-done:
		return err
	case <-timer:
		return fmt.Errorf("%w after %s", ErrDeadline, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
