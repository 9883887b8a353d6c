package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// imagesSettledJS resolves once every <img> has either loaded or errored.
const imagesSettledJS = `Promise.all(Array.from(document.images)
	.filter(img => !img.complete)
	.map(img => new Promise(resolve => {
		img.addEventListener("load", resolve, {once: true});
		img.addEventListener("error", resolve, {once: true});
	})))
	.then(() => true)`

// lifecycleEvent maps a wait condition to the CDP lifecycle event name.
func lifecycleEvent(w crawler.WaitCondition) (string, error) {
	switch w {
	case crawler.WaitNetworkIdle0:
		return "networkIdle", nil
	case crawler.WaitNetworkIdle2, "":
		return "networkAlmostIdle", nil
	case crawler.WaitDOMContentLoaded:
		return "DOMContentLoaded", nil
	default:
		return "", fmt.Errorf("unknown wait condition %q", w)
	}
}

// chromePage is a single Chrome tab.
type chromePage struct {
	ctx             context.Context
	cancel          context.CancelFunc
	protocolTimeout time.Duration
	events          *lifecycleTracker
}

func newChromePage(ctx context.Context, cancel context.CancelFunc, protocolTimeout time.Duration) *chromePage {
	p := &chromePage{
		ctx:             ctx,
		cancel:          cancel,
		protocolTimeout: protocolTimeout,
		events:          newLifecycleTracker(),
	}
	chromedp.ListenTarget(ctx, p.events.captureEvent)
	return p
}

func (p *chromePage) enableLifecycle(ctx context.Context) error {
	if err := page.Enable().Do(ctx); err != nil {
		return fmt.Errorf("enable page domain: %w", err)
	}
	if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
		return fmt.Errorf("enable lifecycle events: %w", err)
	}
	return nil
}

// run executes actions on the tab bounded by the protocol timeout and by
// the caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	return p.runWithin(ctx, p.protocolTimeout, actions...)
}

func (p *chromePage) runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timeout of %s exceeded: %w", timeout, err)
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the configured lifecycle event.
func (p *chromePage) Navigate(ctx context.Context, url string, opts crawler.NavigateOptions) error {
	return p.load(ctx, opts, chromedp.Navigate(url))
}

// Reload reloads the current document with the same wait semantics as Navigate.
func (p *chromePage) Reload(ctx context.Context, opts crawler.NavigateOptions) error {
	return p.load(ctx, opts, chromedp.Reload())
}

func (p *chromePage) load(ctx context.Context, opts crawler.NavigateOptions, nav chromedp.Action) error {
	event, err := lifecycleEvent(opts.WaitUntil)
	if err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.protocolTimeout
	}
	p.events.reset()
	waitForEvent := chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("frame tree: %w", err)
		}
		return p.events.wait(ctx, tree.Frame.ID, event)
	})
	if err := p.runWithin(ctx, timeout, nav, waitForEvent); err != nil {
		return fmt.Errorf("navigation (%s): %w", opts.WaitUntil, err)
	}
	return nil
}

// WaitForImages waits until every image has settled or timeout elapses.
// Elapsing the timeout is not an error.
func (p *chromePage) WaitForImages(ctx context.Context, timeout time.Duration) error {
	err := raceDeadline(ctx, timeout, func(ctx context.Context) error {
		var settled bool
		return p.run(ctx, chromedp.Evaluate(imagesSettledJS, &settled,
			func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
				return params.WithAwaitPromise(true)
			}))
	})
	if errors.Is(err, ErrDeadline) {
		return nil
	}
	return err
}

// Metadata reads document.title from the live page and the description from
// the rendered markup.
func (p *chromePage) Metadata(ctx context.Context) (crawler.PageMeta, error) {
	var title, html string
	if err := p.run(ctx,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return crawler.PageMeta{}, fmt.Errorf("read document: %w", err)
	}
	meta, err := crawler.ExtractMetadata(html)
	if err != nil {
		return crawler.PageMeta{}, err
	}
	meta.Title = title
	return meta, nil
}

// SetViewport applies the device metrics of vp.
func (p *chromePage) SetViewport(ctx context.Context, vp crawler.Viewport) error {
	return p.run(ctx, emulateAction(vp))
}

func emulateAction(vp crawler.Viewport) chromedp.Action {
	opts := []chromedp.EmulateViewportOption{}
	if vp.DeviceScaleFactor > 0 {
		opts = append(opts, chromedp.EmulateScale(vp.DeviceScaleFactor))
	}
	if vp.Mobile {
		opts = append(opts, chromedp.EmulateMobile)
	}
	if vp.Touch {
		opts = append(opts, chromedp.EmulateTouch)
	}
	return chromedp.EmulateViewport(vp.Width, vp.Height, opts...)
}

// SetUserAgent overrides the tab's user agent. An empty value is a no-op.
func (p *chromePage) SetUserAgent(ctx context.Context, userAgent string) error {
	if userAgent == "" {
		return nil
	}
	return p.run(ctx, emulation.SetUserAgentOverride(userAgent))
}

// Screenshot captures the viewport, or the whole document when fullPage is set.
func (p *chromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab.
func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// lifecycleTracker records lifecycle events per frame since the last reset.
type lifecycleTracker struct {
	mu     sync.Mutex
	seen   map[cdp.FrameID]map[string]struct{}
	notify chan struct{}
}

func newLifecycleTracker() *lifecycleTracker {
	return &lifecycleTracker{
		seen:   make(map[cdp.FrameID]map[string]struct{}),
		notify: make(chan struct{}),
	}
}

func (t *lifecycleTracker) captureEvent(ev any) {
	if e, ok := ev.(*page.EventLifecycleEvent); ok {
		t.record(e.FrameID, e.Name)
	}
}

func (t *lifecycleTracker) record(frame cdp.FrameID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A new document in the frame starts a fresh lifecycle.
	if name == "init" {
		t.seen[frame] = make(map[string]struct{})
	}
	if t.seen[frame] == nil {
		t.seen[frame] = make(map[string]struct{})
	}
	t.seen[frame][name] = struct{}{}
	close(t.notify)
	t.notify = make(chan struct{})
}

func (t *lifecycleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[cdp.FrameID]map[string]struct{})
}

// wait blocks until frame has fired name since the last reset.
func (t *lifecycleTracker) wait(ctx context.Context, frame cdp.FrameID, name string) error {
	for {
		t.mu.Lock()
		_, ok := t.seen[frame][name]
		notify := t.notify
		t.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
		}
	}
}
