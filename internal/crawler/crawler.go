// Package crawler implements the crawl orchestration loop: target selection,
// per-URL skip and retry policy, the page visit procedure, and the flush-per-URL
// persistence protocol that keeps on-disk state resumable.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitesnap/internal/logging"
	"github.com/JakeFAU/sitesnap/internal/metrics"
)

// Engine runs one crawl from persisted state to a finished report.
type Engine struct {
	urls     []string
	store    StateStore
	reports  ReportWriter
	launcher BrowserLauncher
	visitor  *Visitor
	clock    Clock
	ids      IDGenerator
	pacer    Pacer
	logger   *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPacer delays every visit after the first by the pacer's schedule.
func WithPacer(p Pacer) Option {
	return func(e *Engine) { e.pacer = p }
}

// WithIDGenerator sets the generator used for report run IDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

// NewEngine wires the orchestrator. urls is the configured crawl universe.
func NewEngine(
	urls []string,
	store StateStore,
	reports ReportWriter,
	launcher BrowserLauncher,
	visitor *Visitor,
	clock Clock,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	e := &Engine{
		urls:     append([]string(nil), urls...),
		store:    store,
		reports:  reports,
		launcher: launcher,
		visitor:  visitor,
		clock:    clock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// plan is the resolved target list and whether the skip check applies.
type plan struct {
	targets   []string
	skipDone  bool
	retrying  bool
	noTargets bool
}

// resolve computes the target set for opts against the loaded state.
func (e *Engine) resolve(opts RunOptions, state State) (plan, error) {
	switch opts.Mode {
	case ModeRetryFailures:
		targets := state.FailedURLs()
		return plan{targets: targets, retrying: true, noTargets: len(targets) == 0}, nil
	case ModeUpdate:
		if opts.UpdateURL == "" {
			return plan{}, errors.New("update mode requires a url")
		}
		return plan{targets: []string{opts.UpdateURL}}, nil
	case ModeFull:
		return plan{targets: e.urls}, nil
	case ModeIncremental, "":
		return plan{targets: e.urls, skipDone: true}, nil
	default:
		return plan{}, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

// Run executes a crawl. The report is written on every path that gets past
// loading state, including aborted runs; the returned error is non-nil only
// for failures that break the persistence contract.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	if opts.Mode == "" {
		opts.Mode = ModeIncremental
	}
	reporter := NewReporter(e.clock, opts)
	var runID string
	if e.ids != nil {
		id, err := e.ids.NewID()
		if err != nil {
			e.logger.Warn("run id generation failed", zap.Error(err))
		}
		runID = id
		reporter.SetRunID(id)
	}
	return e.forRun(runID, opts.Mode).run(ctx, opts, reporter)
}

// forRun returns a copy of e whose logger carries the run identity.
func (e *Engine) forRun(runID string, mode Mode) *Engine {
	run := *e
	run.logger = logging.ForRun(e.logger, runID, string(mode))
	return &run
}

func (e *Engine) run(ctx context.Context, opts RunOptions, reporter *Reporter) (RunReport, error) {
	state, err := e.load(ctx)
	if err != nil {
		return RunReport{}, err
	}

	p, err := e.resolve(opts, state)
	if err != nil {
		return RunReport{}, err
	}
	if p.noTargets {
		e.logger.Info("failures document is empty, nothing to retry")
		return e.finish(ctx, reporter, OutcomeNothingToDo)
	}
	e.logPlan(opts, p)

	runErr := e.crawl(ctx, p, state, reporter)
	outcome := OutcomeCompleted
	if runErr != nil {
		outcome = OutcomeAborted
	}
	report, err := e.finish(ctx, reporter, outcome)
	if runErr != nil {
		return report, errors.Join(runErr, err)
	}
	return report, err
}

func (e *Engine) load(ctx context.Context) (State, error) {
	metadata, err := e.store.LoadMetadata(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load metadata: %w", err)
	}
	failures, err := e.store.LoadFailures(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load failures: %w", err)
	}
	return NewState(metadata, failures).Normalize(), nil
}

// crawl owns the browser for the duration of the loop.
func (e *Engine) crawl(ctx context.Context, p plan, state State, reporter *Reporter) error {
	browser, err := e.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			e.logger.Warn("close browser failed", zap.Error(cerr))
		}
	}()

	visited := 0
	for _, url := range p.targets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
		if p.skipDone && state.HasMetadata(url) {
			e.logger.Info("skipping already crawled", zap.String("url", url))
			reporter.Skip()
			metrics.ObserveVisit(url, metrics.StatusSkip, 0)
			continue
		}
		if visited > 0 && e.pacer != nil {
			if err := e.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("crawl interrupted: %w", err)
			}
		}
		visited++

		e.logger.Info("crawling", zap.String("url", url), zap.Bool("retry", p.retrying))
		start := time.Now()
		result := e.safeVisit(ctx, browser, url, p.retrying)
		if err := ctx.Err(); err != nil {
			// The in-flight URL is dropped; everything before it is already durable.
			return fmt.Errorf("crawl interrupted during %s: %w", url, err)
		}

		state = e.apply(state, url, result, time.Since(start), reporter)
		if err := e.store.Save(context.WithoutCancel(ctx), state); err != nil {
			return fmt.Errorf("save progress after %s: %w", url, err)
		}
	}
	return nil
}

// apply folds one visit result into state.
func (e *Engine) apply(state State, url string, result VisitResult, elapsed time.Duration, reporter *Reporter) State {
	if result.OK() {
		reporter.Success()
		metrics.ObserveVisit(url, metrics.StatusSuccess, elapsed)
		e.logger.Info("crawl succeeded",
			zap.String("url", url),
			zap.String("title", result.Record.Meta.Title),
			zap.Duration("dur", elapsed),
		)
		return state.RecordSuccess(result.Record)
	}

	reporter.Fail()
	metrics.ObserveVisit(url, metrics.StatusFail, elapsed)
	e.logger.Error("crawl failed",
		zap.String("url", url),
		zap.String("kind", string(result.Failure.Kind)),
		zap.Error(result.Failure),
	)
	return state.RecordFailure(FailureRecord{
		URL:       url,
		Error:     result.Failure.Error(),
		Kind:      result.Failure.Kind,
		Timestamp: NewTimestamp(e.clock.Now()),
	})
}

// safeVisit converts a panic inside the visit into an unexpected failure so a
// single URL can never take down the loop.
func (e *Engine) safeVisit(ctx context.Context, browser Browser, url string, retrying bool) (result VisitResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failed(FailureUnexpected, url, fmt.Errorf("panic: %v", r))
		}
	}()
	return e.visitor.Visit(ctx, browser, url, retrying)
}

func (e *Engine) finish(ctx context.Context, reporter *Reporter, outcome RunOutcome) (RunReport, error) {
	report := reporter.Finish(outcome)
	metrics.ObserveRunFinished(string(report.Mode), string(report.Outcome), report.EndTime.Time())
	e.logger.Info("task complete",
		zap.String("outcome", string(report.Outcome)),
		zap.Int("success", report.Summary.Success),
		zap.Int("skip", report.Summary.Skip),
		zap.Int("fail", report.Summary.Fail),
		zap.Int64("duration_sec", report.DurationSec),
	)
	if e.reports == nil {
		return report, nil
	}
	// The report is written even when ctx was canceled mid-run.
	if err := e.reports.WriteReport(context.WithoutCancel(ctx), report); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

func (e *Engine) logPlan(opts RunOptions, p plan) {
	switch opts.Mode {
	case ModeRetryFailures:
		e.logger.Info("retrying failed sites only", zap.Strings("urls", p.targets))
	case ModeUpdate:
		e.logger.Info("forcing update for site", zap.String("url", opts.UpdateURL))
	case ModeFull:
		e.logger.Info("performing a full update for all sites", zap.Int("urls", len(p.targets)))
	default:
		e.logger.Info("incremental crawl", zap.Int("urls", len(p.targets)))
	}
}
