package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// site describes how the fake browser renders one URL.
type site struct {
	html          string
	navErr        error
	screenshotErr error
	panicOnNav    bool
	onNavigate    func()
}

type fakeBrowser struct {
	mu          sync.Mutex
	sites       map[string]site
	navigations []string
	openPages   int
	closed      bool
	newPageErr  error
}

func newFakeBrowser(sites map[string]site) *fakeBrowser {
	return &fakeBrowser{sites: sites}
}

func (b *fakeBrowser) NewPage(context.Context) (crawler.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.openPages++
	return &fakePage{browser: b}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

type fakeLauncher struct {
	browser *fakeBrowser
	err     error
	calls   int
}

func (l *fakeLauncher) Launch(context.Context) (crawler.Browser, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

type fakePage struct {
	browser   *fakeBrowser
	url       string
	viewport  crawler.Viewport
	userAgent string
	reloads   int
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, url string, opts crawler.NavigateOptions) error {
	if !opts.WaitUntil.Valid() {
		return fmt.Errorf("bad wait condition %q", opts.WaitUntil)
	}
	p.browser.mu.Lock()
	p.browser.navigations = append(p.browser.navigations, url)
	s, ok := p.browser.sites[url]
	p.browser.mu.Unlock()
	if s.onNavigate != nil {
		s.onNavigate()
	}
	if s.panicOnNav {
		panic("renderer crashed")
	}
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if s.navErr != nil {
		return s.navErr
	}
	p.url = url
	return nil
}

func (p *fakePage) Reload(context.Context, crawler.NavigateOptions) error {
	if p.url == "" {
		return errors.New("nothing to reload")
	}
	p.reloads++
	return nil
}

func (p *fakePage) WaitForImages(context.Context, time.Duration) error { return nil }

func (p *fakePage) Metadata(context.Context) (crawler.PageMeta, error) {
	p.browser.mu.Lock()
	s := p.browser.sites[p.url]
	p.browser.mu.Unlock()
	return crawler.ExtractMetadata(s.html)
}

func (p *fakePage) SetViewport(_ context.Context, vp crawler.Viewport) error {
	p.viewport = vp
	return nil
}

func (p *fakePage) SetUserAgent(_ context.Context, ua string) error {
	p.userAgent = ua
	return nil
}

func (p *fakePage) Screenshot(context.Context, bool) ([]byte, error) {
	p.browser.mu.Lock()
	s := p.browser.sites[p.url]
	p.browser.mu.Unlock()
	if s.screenshotErr != nil {
		return nil, s.screenshotErr
	}
	profile := "pc"
	if p.viewport.Mobile {
		if p.reloads == 0 {
			return nil, errors.New("mobile capture before reload")
		}
		profile = "mobile:" + p.userAgent
	}
	return []byte(profile + "|" + p.url), nil
}

func (p *fakePage) Close() error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.browser.openPages--
	}
	return nil
}

// stepClock advances by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type staticIDs struct{ id string }

func (s staticIDs) NewID() (string, error) { return s.id, nil }

type mockPacer struct {
	mock.Mock
}

func (m *mockPacer) Wait(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func page(title, description string) string {
	html := "<html><head>"
	if title != "" {
		html += "<title>" + title + "</title>"
	}
	if description != "" {
		html += `<meta name="description" content="` + description + `">`
	}
	return html + "</head><body></body></html>"
}
