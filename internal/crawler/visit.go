package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/metrics"
)

// VisitConfig holds the per-page knobs used by Visitor.
type VisitConfig struct {
	Navigate         NavigateOptions
	ImageLoadTimeout time.Duration
	PC               Viewport
	Mobile           Viewport
	PCDir            string
	MobileDir        string
}

// VisitResult is either a successful Record or a Failure.
type VisitResult struct {
	Record  MetadataRecord
	Failure *VisitError
}

// OK reports whether the visit succeeded.
func (r VisitResult) OK() bool {
	return r.Failure == nil
}

// Visitor drives one page through navigation, metadata extraction and
// screenshot capture.
type Visitor struct {
	cfg       VisitConfig
	artifacts ArtifactStore
	clock     Clock
	logger    *zap.Logger
}

// NewVisitor constructs a Visitor.
func NewVisitor(cfg VisitConfig, artifacts ArtifactStore, clock Clock, logger *zap.Logger) *Visitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Visitor{
		cfg:       cfg,
		artifacts: artifacts,
		clock:     clock,
		logger:    logger,
	}
}

// ScreenshotPaths returns the pc and mobile destinations for rawURL. There is
// one file per host, overwritten by every successful crawl of that host.
func (v *Visitor) ScreenshotPaths(rawURL string) (Screenshots, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return Screenshots{}, err
	}
	name := host + ".png"
	return Screenshots{
		PC:     filepath.Join(v.cfg.PCDir, name),
		Mobile: filepath.Join(v.cfg.MobileDir, name),
	}, nil
}

// Visit runs the page visit procedure. The page is closed on every path.
func (v *Visitor) Visit(ctx context.Context, browser Browser, rawURL string, isRetry bool) VisitResult {
	paths, err := v.ScreenshotPaths(rawURL)
	if err != nil {
		return failed(FailureNavigation, rawURL, err)
	}

	page, err := browser.NewPage(ctx)
	if err != nil {
		return failed(FailureUnexpected, rawURL, fmt.Errorf("open page: %w", err))
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			v.logger.Warn("close page failed", zap.String("url", rawURL), zap.Error(cerr))
		}
	}()

	if err := page.Navigate(ctx, rawURL, v.cfg.Navigate); err != nil {
		return failed(FailureNavigation, rawURL, err)
	}
	if err := page.WaitForImages(ctx, v.cfg.ImageLoadTimeout); err != nil {
		return failed(FailureUnexpected, rawURL, fmt.Errorf("wait for images: %w", err))
	}

	meta, err := page.Metadata(ctx)
	if err != nil {
		return failed(FailureMetadata, rawURL, err)
	}
	if meta.Empty() {
		return failed(FailureMetadata, rawURL, ErrEmptyMetadata)
	}
	timestamp := NewTimestamp(v.clock.Now())

	if isRetry {
		for _, path := range []string{paths.PC, paths.Mobile} {
			if err := v.backup(path); err != nil {
				return failed(FailureScreenshot, rawURL, err)
			}
		}
	}

	if err := v.capture(ctx, page, v.cfg.PC, paths.PC); err != nil {
		return failed(FailureScreenshot, rawURL, fmt.Errorf("pc: %w", err))
	}

	if err := page.SetViewport(ctx, v.cfg.Mobile); err != nil {
		return failed(FailureScreenshot, rawURL, fmt.Errorf("mobile viewport: %w", err))
	}
	if err := page.SetUserAgent(ctx, v.cfg.Mobile.UserAgent); err != nil {
		return failed(FailureScreenshot, rawURL, fmt.Errorf("mobile user agent: %w", err))
	}
	if err := page.Reload(ctx, v.cfg.Navigate); err != nil {
		return failed(FailureNavigation, rawURL, fmt.Errorf("mobile reload: %w", err))
	}
	if err := page.WaitForImages(ctx, v.cfg.ImageLoadTimeout); err != nil {
		return failed(FailureUnexpected, rawURL, fmt.Errorf("wait for images: %w", err))
	}
	if err := v.write(ctx, page, v.cfg.Mobile.FullPage, paths.Mobile); err != nil {
		return failed(FailureScreenshot, rawURL, fmt.Errorf("mobile: %w", err))
	}

	return VisitResult{Record: MetadataRecord{
		URL:         rawURL,
		Meta:        meta,
		Screenshots: paths,
		Timestamp:   timestamp,
	}}
}

func (v *Visitor) capture(ctx context.Context, page Page, viewport Viewport, path string) error {
	if err := page.SetViewport(ctx, viewport); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return v.write(ctx, page, viewport.FullPage, path)
}

func (v *Visitor) write(ctx context.Context, page Page, fullPage bool, path string) error {
	data, err := page.Screenshot(ctx, fullPage)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if len(data) == 0 {
		return errors.New("capture returned no data")
	}
	if err := v.artifacts.WriteFile(ctx, path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// backup moves an existing screenshot aside. The old file is never
// overwritten unless it was preserved first.
func (v *Visitor) backup(path string) error {
	backupPath, err := v.artifacts.BackupIfExists(path)
	if err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	if backupPath != "" {
		metrics.ObserveBackup()
		v.logger.Info("backed up old screenshot", zap.String("path", backupPath))
	}
	return nil
}

func failed(kind FailureKind, rawURL string, err error) VisitResult {
	return VisitResult{Failure: newVisitError(kind, rawURL, err)}
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}
