package crawler

import (
	"time"
)

// Mode selects which URLs a run visits and whether the skip check applies.
type Mode string

// Run modes accepted by the engine.
const (
	ModeIncremental   Mode = "incremental"
	ModeFull          Mode = "full"
	ModeRetryFailures Mode = "retry-failures"
	ModeUpdate        Mode = "update"
)

// RunOutcome describes how a run ended.
type RunOutcome string

// Outcome values recorded in the run report.
const (
	OutcomeCompleted   RunOutcome = "completed"
	OutcomeNothingToDo RunOutcome = "nothing_to_do"
	OutcomeAborted     RunOutcome = "aborted"
)

// PageMeta is the metadata scraped from a rendered document.
type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Empty reports whether neither title nor description was found.
func (m PageMeta) Empty() bool {
	return m.Title == "" && m.Description == ""
}

// Screenshots holds the on-disk locations of the captured images.
type Screenshots struct {
	PC     string `json:"pc"`
	Mobile string `json:"mobile"`
}

// MetadataRecord is persisted for each URL whose latest visit succeeded.
type MetadataRecord struct {
	URL         string      `json:"url"`
	Meta        PageMeta    `json:"meta"`
	Screenshots Screenshots `json:"screenshots"`
	Timestamp   Timestamp   `json:"timestamp"`
}

// FailureRecord is persisted for each URL whose latest visit failed.
type FailureRecord struct {
	URL       string      `json:"url"`
	Error     string      `json:"error"`
	Kind      FailureKind `json:"kind,omitempty"`
	Timestamp Timestamp   `json:"timestamp"`
}

// Summary tracks per-run counters.
type Summary struct {
	Success int `json:"success"`
	Skip    int `json:"skip"`
	Fail    int `json:"fail"`
}

// RunReport is written once at the end of every invocation.
type RunReport struct {
	RunID       string     `json:"runId,omitempty"`
	Mode        Mode       `json:"mode"`
	Outcome     RunOutcome `json:"outcome"`
	StartTime   Timestamp  `json:"startTime"`
	EndTime     Timestamp  `json:"endTime"`
	DurationSec int64      `json:"durationSec"`
	Args        []string   `json:"args"`
	Summary     Summary    `json:"summary"`
}

// RunOptions captures the invocation's mode flags.
type RunOptions struct {
	Mode      Mode
	UpdateURL string
	// Args is echoed verbatim into the run report.
	Args []string
}

// Viewport describes a screenshot emulation profile.
type Viewport struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	Touch             bool
	FullPage          bool
	UserAgent         string
}

// WaitCondition is the heuristic used to decide a navigation has finished.
type WaitCondition string

// Supported wait conditions.
const (
	WaitNetworkIdle0     WaitCondition = "networkidle0"
	WaitNetworkIdle2     WaitCondition = "networkidle2"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
)

// Valid reports whether w is a recognized wait condition.
func (w WaitCondition) Valid() bool {
	switch w {
	case WaitNetworkIdle0, WaitNetworkIdle2, WaitDOMContentLoaded:
		return true
	default:
		return false
	}
}

// NavigateOptions bound a navigation or reload.
type NavigateOptions struct {
	WaitUntil WaitCondition
	Timeout   time.Duration
}

// Timestamp marshals as an ISO-8601 UTC instant with millisecond precision.
type Timestamp time.Time

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewTimestamp converts t to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

// Time returns the underlying time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// String formats the timestamp the same way it is persisted.
func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(timestampLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts any RFC 3339 instant.
func (t *Timestamp) UnmarshalText(data []byte) error {
	parsed, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed.UTC())
	return nil
}
