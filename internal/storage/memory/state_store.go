// Package memory keeps crawl state, reports, and screenshots in memory for
// tests and dry runs.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// StateStore is an in-memory crawler.StateStore and crawler.ReportWriter.
// Every Save is kept as a snapshot so callers can inspect flush history.
type StateStore struct {
	mu        sync.RWMutex
	metadata  map[string]crawler.MetadataRecord
	failures  map[string]crawler.FailureRecord
	snapshots []crawler.State
	reports   []crawler.RunReport
	saveErr   error
}

// NewStateStore constructs a StateStore seeded with the given state.
func NewStateStore(seed crawler.State) *StateStore {
	return &StateStore{
		metadata: cloneMetadata(seed.Metadata),
		failures: cloneFailures(seed.Failures),
	}
}

// SetSaveError makes every subsequent Save fail with err. A nil err clears it.
func (s *StateStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// LoadMetadata returns a copy of the stored metadata.
func (s *StateStore) LoadMetadata(ctx context.Context) (map[string]crawler.MetadataRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMetadata(s.metadata), nil
}

// LoadFailures returns a copy of the stored failures.
func (s *StateStore) LoadFailures(ctx context.Context) (map[string]crawler.FailureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneFailures(s.failures), nil
}

// Save replaces both documents with state.
func (s *StateStore) Save(ctx context.Context, state crawler.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.metadata = cloneMetadata(state.Metadata)
	s.failures = cloneFailures(state.Failures)
	s.snapshots = append(s.snapshots, crawler.NewState(cloneMetadata(state.Metadata), cloneFailures(state.Failures)))
	return nil
}

// WriteReport records report.
func (s *StateStore) WriteReport(_ context.Context, report crawler.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

// State returns the current documents.
func (s *StateStore) State() crawler.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return crawler.NewState(cloneMetadata(s.metadata), cloneFailures(s.failures))
}

// Snapshots returns every state passed to a successful Save, in order.
func (s *StateStore) Snapshots() []crawler.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.State(nil), s.snapshots...)
}

// Reports returns every written report, in order.
func (s *StateStore) Reports() []crawler.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]crawler.RunReport(nil), s.reports...)
}

func cloneMetadata(in map[string]crawler.MetadataRecord) map[string]crawler.MetadataRecord {
	out := make(map[string]crawler.MetadataRecord, len(in))
	maps.Copy(out, in)
	return out
}

func cloneFailures(in map[string]crawler.FailureRecord) map[string]crawler.FailureRecord {
	out := make(map[string]crawler.FailureRecord, len(in))
	maps.Copy(out, in)
	return out
}
