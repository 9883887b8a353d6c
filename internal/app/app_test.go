package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitesnap/internal/app"
	"github.com/JakeFAU/sitesnap/internal/config"
	"github.com/JakeFAU/sitesnap/internal/crawler"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Paths.URLsFile = filepath.Join(dir, "urls.yaml")
	cfg.Paths.PCScreenshotDir = filepath.Join(dir, "screenshots", "pc")
	cfg.Paths.MobileScreenshotDir = filepath.Join(dir, "screenshots", "mobile")
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.MetadataFile = filepath.Join(dir, "data", "meta.json")
	cfg.Paths.FailuresFile = filepath.Join(dir, "data", "failures.json")
	cfg.Paths.ReportFile = filepath.Join(dir, "data", "report.json")
	cfg.Paths.MetricsFile = filepath.Join(dir, "metrics", "sitesnap.prom")
	return cfg
}

func TestNewApp(t *testing.T) {
	a, err := app.NewApp("")
	require.NoError(t, err)
	assert.NotNil(t, a.GetLogger())
	assert.Equal(t, "urls.yaml", a.GetConfig().Paths.URLsFile)

	_, err = app.NewApp(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTargets(t *testing.T) {
	cfg := testConfig(t)
	a := app.New(cfg, nil)

	_, err := a.LoadTargets("")
	assert.ErrorIs(t, err, crawler.ErrStartupConfigMissing)

	require.NoError(t, os.WriteFile(cfg.Paths.URLsFile, []byte("urls:\n  - https://a.test/\n"), 0o600))
	urls, err := a.LoadTargets("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/"}, urls)

	override := filepath.Join(t.TempDir(), "other.txt")
	require.NoError(t, os.WriteFile(override, []byte("https://b.test/\n"), 0o600))
	urls, err = a.LoadTargets(override)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.test/"}, urls)
}

func TestNewEngineCreatesDirectories(t *testing.T) {
	cfg := testConfig(t)
	a := app.New(cfg, nil)

	engine, err := a.NewEngine([]string{"https://a.test/"})
	require.NoError(t, err)
	assert.NotNil(t, engine)

	for _, dir := range []string{cfg.Paths.PCScreenshotDir, cfg.Paths.MobileScreenshotDir, cfg.Paths.DataDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestCloseWritesMetricsTextfile(t *testing.T) {
	cfg := testConfig(t)
	a := app.New(cfg, nil)
	_, err := a.NewEngine(nil)
	require.NoError(t, err)

	a.Close()

	_, err = os.Stat(cfg.Paths.MetricsFile)
	assert.NoError(t, err)
}
