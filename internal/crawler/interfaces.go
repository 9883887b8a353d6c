package crawler

import (
	"context"
	"time"
)

// Browser is a running browser instance able to open isolated pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// BrowserLauncher starts a Browser. Launching is deferred until the engine
// knows there is work to do.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Page is a single tab driven by the visit procedure.
type Page interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Reload(ctx context.Context, opts NavigateOptions) error
	WaitForImages(ctx context.Context, timeout time.Duration) error
	Metadata(ctx context.Context) (PageMeta, error)
	SetViewport(ctx context.Context, viewport Viewport) error
	SetUserAgent(ctx context.Context, userAgent string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

// StateStore persists the metadata and failure documents.
type StateStore interface {
	LoadMetadata(ctx context.Context) (map[string]MetadataRecord, error)
	LoadFailures(ctx context.Context) (map[string]FailureRecord, error)
	Save(ctx context.Context, state State) error
}

// ReportWriter persists the end-of-run report.
type ReportWriter interface {
	WriteReport(ctx context.Context, report RunReport) error
}

// ArtifactStore writes screenshot files and preserves the ones they replace.
type ArtifactStore interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	BackupIfExists(path string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Pacer delays the next visit. Implementations must return promptly once ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}
