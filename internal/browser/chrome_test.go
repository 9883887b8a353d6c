package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

func TestLifecycleEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      crawler.WaitCondition
		want    string
		wantErr bool
	}{
		{in: crawler.WaitNetworkIdle0, want: "networkIdle"},
		{in: crawler.WaitNetworkIdle2, want: "networkAlmostIdle"},
		{in: "", want: "networkAlmostIdle"},
		{in: crawler.WaitDOMContentLoaded, want: "DOMContentLoaded"},
		{in: "load", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(string(tc.in), func(t *testing.T) {
			got, err := lifecycleEvent(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewLauncherDefaults(t *testing.T) {
	t.Parallel()

	l := NewLauncher(Config{}, nil)
	assert.Equal(t, defaultLaunchTimeout, l.cfg.LaunchTimeout)
	assert.Equal(t, defaultProtocolTimeout, l.cfg.ProtocolTimeout)

	l = NewLauncher(Config{LaunchTimeout: time.Second, ProtocolTimeout: 2 * time.Second}, nil)
	assert.Equal(t, time.Second, l.cfg.LaunchTimeout)
	assert.Equal(t, 2*time.Second, l.cfg.ProtocolTimeout)
}

func TestAllocatorOptionsGrowWithConfig(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Config{Headless: true}))
	full := len(allocatorOptions(Config{Headless: true, ExecPath: "/usr/bin/chromium", WindowWidth: 800, WindowHeight: 600}))
	assert.Equal(t, base+2, full)

	// A half-specified window size is ignored.
	assert.Equal(t, base, len(allocatorOptions(Config{Headless: true, WindowWidth: 800})))
}

func TestRaceDeadline(t *testing.T) {
	t.Parallel()

	t.Run("FinishesFirst", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		err := raceDeadline(context.Background(), time.Second, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("TimeoutWins", func(t *testing.T) {
		t.Parallel()
		canceled := make(chan struct{})
		err := raceDeadline(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
			<-ctx.Done()
			close(canceled)
			return ctx.Err()
		})
		assert.ErrorIs(t, err, ErrDeadline)
		select {
		case <-canceled:
		case <-time.After(time.Second):
			t.Fatal("losing function was not canceled")
		}
	})

	t.Run("ParentCanceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := raceDeadline(ctx, time.Minute, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("NoTimeout", func(t *testing.T) {
		t.Parallel()
		err := raceDeadline(context.Background(), 0, func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestLifecycleTracker(t *testing.T) {
	t.Parallel()

	tracker := newLifecycleTracker()
	main := cdp.FrameID("main")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- tracker.wait(ctx, main, "networkAlmostIdle")
	}()

	tracker.record(cdp.FrameID("child"), "networkAlmostIdle")
	tracker.record(main, "init")
	tracker.record(main, "load")
	tracker.record(main, "networkAlmostIdle")
	require.NoError(t, <-done)

	// A new document clears earlier events for the frame.
	tracker.record(main, "init")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, tracker.wait(ctx, main, "networkAlmostIdle"))

	tracker.reset()
	assert.Empty(t, tracker.seen)
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestChromeVisitSmoke(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("chrome not available")
	}

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><title>Smoke</title>
<meta name="description" content="smoke test page"></head>
<body><svg><title>icon</title></svg><p>hi</p></body></html>`)
	})
	mux.HandleFunc("/hanging", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><title>Hanging</title></head>
<body><img src="/never.png"></body></html>`)
	})
	mux.HandleFunc("/never.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	defer close(release)

	ctx := context.Background()
	b, err := NewLauncher(Config{Headless: true, LaunchTimeout: 30 * time.Second, ProtocolTimeout: 30 * time.Second}, nil).Launch(ctx)
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	t.Run("metadata and reload", func(t *testing.T) {
		p, err := b.NewPage(ctx)
		require.NoError(t, err)
		defer func() { _ = p.Close() }()

		opts := crawler.NavigateOptions{WaitUntil: crawler.WaitDOMContentLoaded, Timeout: 20 * time.Second}
		require.NoError(t, p.Navigate(ctx, server.URL, opts))
		require.NoError(t, p.WaitForImages(ctx, time.Second))

		meta, err := p.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, crawler.PageMeta{Title: "Smoke", Description: "smoke test page"}, meta)

		require.NoError(t, p.SetViewport(ctx, crawler.Viewport{Width: 375, Height: 812, DeviceScaleFactor: 2, Mobile: true, Touch: true}))
		require.NoError(t, p.SetUserAgent(ctx, "sitesnap-test"))
		require.NoError(t, p.Reload(ctx, opts))

		png, err := p.Screenshot(ctx, false)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})

	t.Run("network idle waits", func(t *testing.T) {
		for _, wait := range []crawler.WaitCondition{crawler.WaitNetworkIdle0, crawler.WaitNetworkIdle2} {
			p, err := b.NewPage(ctx)
			require.NoError(t, err)
			opts := crawler.NavigateOptions{WaitUntil: wait, Timeout: 20 * time.Second}
			assert.NoError(t, p.Navigate(ctx, server.URL, opts), wait)
			assert.NoError(t, p.Reload(ctx, opts), wait)
			_ = p.Close()
		}
	})

	t.Run("image that never loads", func(t *testing.T) {
		p, err := b.NewPage(ctx)
		require.NoError(t, err)
		defer func() { _ = p.Close() }()

		opts := crawler.NavigateOptions{WaitUntil: crawler.WaitDOMContentLoaded, Timeout: 20 * time.Second}
		require.NoError(t, p.Navigate(ctx, server.URL+"/hanging", opts))

		start := time.Now()
		require.NoError(t, p.WaitForImages(ctx, 500*time.Millisecond))
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
		assert.Less(t, elapsed, 5*time.Second)

		png, err := p.Screenshot(ctx, true)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})
}
