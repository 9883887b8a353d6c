package crawler

import "sort"

// State is the keyed-by-URL crawl state owned by the engine for one run.
// A URL is present in at most one of the two maps.
type State struct {
	Metadata map[string]MetadataRecord
	Failures map[string]FailureRecord
}

// NewState returns a State with non-nil maps.
func NewState(metadata map[string]MetadataRecord, failures map[string]FailureRecord) State {
	if metadata == nil {
		metadata = make(map[string]MetadataRecord)
	}
	if failures == nil {
		failures = make(map[string]FailureRecord)
	}
	return State{Metadata: metadata, Failures: failures}
}

// RecordSuccess stores rec and clears any failure for the same URL.
func (s State) RecordSuccess(rec MetadataRecord) State {
	s.Metadata[rec.URL] = rec
	delete(s.Failures, rec.URL)
	return s
}

// RecordFailure stores rec and clears any stale metadata for the same URL.
func (s State) RecordFailure(rec FailureRecord) State {
	delete(s.Metadata, rec.URL)
	s.Failures[rec.URL] = rec
	return s
}

// HasMetadata reports whether url has a successful record.
func (s State) HasMetadata(url string) bool {
	_, ok := s.Metadata[url]
	return ok
}

// FailedURLs returns the failure keys in sorted order.
func (s State) FailedURLs() []string {
	out := make([]string, 0, len(s.Failures))
	for url := range s.Failures {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// Normalize drops any metadata entry that also has a failure record, so
// hand-edited documents cannot leave a URL in both maps.
func (s State) Normalize() State {
	for url := range s.Failures {
		delete(s.Metadata, url)
	}
	return s
}
