// Package config loads and validates sitesnap configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitesnap/internal/browser"
	"github.com/JakeFAU/sitesnap/internal/crawler"
	"github.com/JakeFAU/sitesnap/internal/policy/ratelimit"
	"github.com/JakeFAU/sitesnap/internal/storage/local"
)

// EnvPrefix is prepended to every environment override, e.g. SITESNAP_PAGE_WAIT_UNTIL.
const EnvPrefix = "SITESNAP"

// DefaultMobileUserAgent is the iPhone user agent used for mobile captures.
const DefaultMobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Browser    BrowserConfig    `mapstructure:"browser"`
	Page       PageConfig       `mapstructure:"page"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout"`
	ProtocolTimeout time.Duration `mapstructure:"protocol_timeout"`
	DefaultViewport SizeConfig    `mapstructure:"default_viewport"`
	ExecPath        string        `mapstructure:"exec_path"`
}

// SizeConfig is a width/height pair in CSS pixels.
type SizeConfig struct {
	Width  int64 `mapstructure:"width"`
	Height int64 `mapstructure:"height"`
}

// PageConfig governs navigation.
type PageConfig struct {
	WaitUntil        string        `mapstructure:"wait_until"`
	GotoTimeout      time.Duration `mapstructure:"goto_timeout"`
	ImageLoadTimeout time.Duration `mapstructure:"image_load_timeout"`
}

// ScreenshotConfig holds the two capture profiles.
type ScreenshotConfig struct {
	PC     ViewportConfig `mapstructure:"pc"`
	Mobile ViewportConfig `mapstructure:"mobile"`
}

// ViewportConfig is one device emulation profile.
type ViewportConfig struct {
	Width             int64   `mapstructure:"width"`
	Height            int64   `mapstructure:"height"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor"`
	IsMobile          bool    `mapstructure:"is_mobile"`
	HasTouch          bool    `mapstructure:"has_touch"`
	FullPage          bool    `mapstructure:"full_page"`
	UserAgent         string  `mapstructure:"user_agent"`
}

// PathsConfig locates inputs and outputs on disk.
type PathsConfig struct {
	URLsFile            string `mapstructure:"urls_file"`
	PCScreenshotDir     string `mapstructure:"pc_screenshot_dir"`
	MobileScreenshotDir string `mapstructure:"mobile_screenshot_dir"`
	DataDir             string `mapstructure:"data_dir"`
	MetadataFile        string `mapstructure:"metadata_file"`
	ReportFile          string `mapstructure:"report_file"`
	FailuresFile        string `mapstructure:"failures_file"`
	MetricsFile         string `mapstructure:"metrics_file"`
}

// CrawlConfig tunes the crawl loop.
type CrawlConfig struct {
	VisitInterval time.Duration `mapstructure:"visit_interval"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.launch_timeout", 60*time.Second)
	v.SetDefault("browser.protocol_timeout", 180*time.Second)
	v.SetDefault("browser.default_viewport.width", 0)
	v.SetDefault("browser.default_viewport.height", 0)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("page.wait_until", string(crawler.WaitNetworkIdle2))
	v.SetDefault("page.goto_timeout", 90*time.Second)
	v.SetDefault("page.image_load_timeout", 90*time.Second)
	v.SetDefault("screenshot.pc.width", 1920)
	v.SetDefault("screenshot.pc.height", 1080)
	v.SetDefault("screenshot.pc.device_scale_factor", 1.0)
	v.SetDefault("screenshot.pc.is_mobile", false)
	v.SetDefault("screenshot.pc.has_touch", false)
	v.SetDefault("screenshot.pc.full_page", false)
	v.SetDefault("screenshot.pc.user_agent", "")
	v.SetDefault("screenshot.mobile.width", 375)
	v.SetDefault("screenshot.mobile.height", 812)
	v.SetDefault("screenshot.mobile.device_scale_factor", 3.0)
	v.SetDefault("screenshot.mobile.is_mobile", true)
	v.SetDefault("screenshot.mobile.has_touch", true)
	v.SetDefault("screenshot.mobile.full_page", false)
	v.SetDefault("screenshot.mobile.user_agent", DefaultMobileUserAgent)
	v.SetDefault("paths.urls_file", "urls.yaml")
	v.SetDefault("paths.pc_screenshot_dir", filepath.Join("screenshots", "pc"))
	v.SetDefault("paths.mobile_screenshot_dir", filepath.Join("screenshots", "mobile"))
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.metadata_file", filepath.Join("data", "meta.json"))
	v.SetDefault("paths.report_file", filepath.Join("data", "report.json"))
	v.SetDefault("paths.failures_file", filepath.Join("data", "failures.json"))
	v.SetDefault("paths.metrics_file", "")
	v.SetDefault("crawl.visit_interval", time.Duration(0))
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Browser.LaunchTimeout <= 0 {
		errs = append(errs, errors.New("browser.launch_timeout must be > 0"))
	}
	if c.Browser.ProtocolTimeout <= 0 {
		errs = append(errs, errors.New("browser.protocol_timeout must be > 0"))
	}
	if c.Browser.DefaultViewport.Width < 0 || c.Browser.DefaultViewport.Height < 0 {
		errs = append(errs, errors.New("browser.default_viewport must not be negative"))
	}
	if !crawler.WaitCondition(c.Page.WaitUntil).Valid() {
		errs = append(errs, fmt.Errorf("page.wait_until %q must be one of networkidle0, networkidle2, domcontentloaded",
			c.Page.WaitUntil))
	}
	if c.Page.GotoTimeout <= 0 {
		errs = append(errs, errors.New("page.goto_timeout must be > 0"))
	}
	if c.Page.ImageLoadTimeout <= 0 {
		errs = append(errs, errors.New("page.image_load_timeout must be > 0"))
	}
	errs = append(errs, c.Screenshot.PC.validate("screenshot.pc"), c.Screenshot.Mobile.validate("screenshot.mobile"))
	required := map[string]string{
		"paths.urls_file":             c.Paths.URLsFile,
		"paths.pc_screenshot_dir":     c.Paths.PCScreenshotDir,
		"paths.mobile_screenshot_dir": c.Paths.MobileScreenshotDir,
		"paths.data_dir":              c.Paths.DataDir,
		"paths.metadata_file":         c.Paths.MetadataFile,
		"paths.report_file":           c.Paths.ReportFile,
		"paths.failures_file":         c.Paths.FailuresFile,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s must be set", key))
		}
	}
	if c.Paths.PCScreenshotDir != "" && filepath.Clean(c.Paths.PCScreenshotDir) == filepath.Clean(c.Paths.MobileScreenshotDir) {
		errs = append(errs, errors.New("paths.pc_screenshot_dir and paths.mobile_screenshot_dir must differ"))
	}
	if c.Crawl.VisitInterval < 0 {
		errs = append(errs, errors.New("crawl.visit_interval must be >= 0"))
	}
	return errors.Join(errs...)
}

func (v ViewportConfig) validate(key string) error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%s width and height must be > 0", key)
	}
	if v.DeviceScaleFactor < 0 {
		return fmt.Errorf("%s.device_scale_factor must be >= 0", key)
	}
	return nil
}

// Viewport converts the profile to the crawler representation.
func (v ViewportConfig) Viewport() crawler.Viewport {
	return crawler.Viewport{
		Width:             v.Width,
		Height:            v.Height,
		DeviceScaleFactor: v.DeviceScaleFactor,
		Mobile:            v.IsMobile,
		Touch:             v.HasTouch,
		FullPage:          v.FullPage,
		UserAgent:         v.UserAgent,
	}
}

// VisitConfig returns the per-page settings for crawler.NewVisitor.
func (c Config) VisitConfig() crawler.VisitConfig {
	return crawler.VisitConfig{
		Navigate: crawler.NavigateOptions{
			WaitUntil: crawler.WaitCondition(c.Page.WaitUntil),
			Timeout:   c.Page.GotoTimeout,
		},
		ImageLoadTimeout: c.Page.ImageLoadTimeout,
		PC:               c.Screenshot.PC.Viewport(),
		Mobile:           c.Screenshot.Mobile.Viewport(),
		PCDir:            c.Paths.PCScreenshotDir,
		MobileDir:        c.Paths.MobileScreenshotDir,
	}
}

// BrowserConfig returns the launcher settings.
func (c Config) BrowserConfig() browser.Config {
	return browser.Config{
		Headless:        c.Browser.Headless,
		ExecPath:        c.Browser.ExecPath,
		WindowWidth:     int(c.Browser.DefaultViewport.Width),
		WindowHeight:    int(c.Browser.DefaultViewport.Height),
		LaunchTimeout:   c.Browser.LaunchTimeout,
		ProtocolTimeout: c.Browser.ProtocolTimeout,
	}
}

// StoreConfig returns the state document locations.
func (c Config) StoreConfig() local.Config {
	return local.Config{
		MetadataFile: c.Paths.MetadataFile,
		FailuresFile: c.Paths.FailuresFile,
		ReportFile:   c.Paths.ReportFile,
	}
}

// PacerConfig returns the visit pacing settings.
func (c Config) PacerConfig() ratelimit.Config {
	return ratelimit.Config{Interval: c.Crawl.VisitInterval}
}

// OutputDirs lists every directory that must exist before a run.
func (c Config) OutputDirs() []string {
	return []string{
		c.Paths.PCScreenshotDir,
		c.Paths.MobileScreenshotDir,
		c.Paths.DataDir,
		filepath.Dir(c.Paths.MetadataFile),
		filepath.Dir(c.Paths.FailuresFile),
		filepath.Dir(c.Paths.ReportFile),
	}
}
