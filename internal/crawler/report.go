package crawler

import (
	"math"
)

// Reporter accumulates counters for a single run and produces the RunReport.
type Reporter struct {
	clock   Clock
	report  RunReport
	summary Summary
}

// NewReporter starts the run clock.
func NewReporter(clock Clock, opts RunOptions) *Reporter {
	return &Reporter{
		clock: clock,
		report: RunReport{
			Mode:      opts.Mode,
			StartTime: NewTimestamp(clock.Now()),
			Args:      append([]string{}, opts.Args...),
		},
	}
}

// SetRunID stamps the report with an identifier.
func (r *Reporter) SetRunID(id string) {
	r.report.RunID = id
}

// Success counts one successful visit.
func (r *Reporter) Success() { r.summary.Success++ }

// Skip counts one skipped URL.
func (r *Reporter) Skip() { r.summary.Skip++ }

// Fail counts one failed visit.
func (r *Reporter) Fail() { r.summary.Fail++ }

// Finish stamps the end time and returns the completed report.
func (r *Reporter) Finish(outcome RunOutcome) RunReport {
	report := r.report
	end := r.clock.Now()
	report.EndTime = NewTimestamp(end)
	report.DurationSec = int64(math.Round(end.Sub(report.StartTime.Time()).Seconds()))
	report.Outcome = outcome
	report.Summary = r.summary
	return report
}
