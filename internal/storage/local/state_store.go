package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// Config captures the document locations for the state store.
type Config struct {
	MetadataFile string `mapstructure:"metadata_file" yaml:"metadata_file"`
	FailuresFile string `mapstructure:"failures_file" yaml:"failures_file"`
	ReportFile   string `mapstructure:"report_file" yaml:"report_file"`
}

// Store reads and writes the metadata, failures, and report documents.
type Store struct {
	cfg Config
}

// New creates a Store. The documents themselves need not exist yet.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.MetadataFile) == "" {
		return nil, fmt.Errorf("metadata file is required")
	}
	if strings.TrimSpace(cfg.FailuresFile) == "" {
		return nil, fmt.Errorf("failures file is required")
	}
	if strings.TrimSpace(cfg.ReportFile) == "" {
		return nil, fmt.Errorf("report file is required")
	}
	return &Store{cfg: cfg}, nil
}

// LoadMetadata reads the metadata document. A missing or empty file is an empty map.
func (s *Store) LoadMetadata(ctx context.Context) (map[string]crawler.MetadataRecord, error) {
	out := make(map[string]crawler.MetadataRecord)
	if err := readJSON(ctx, s.cfg.MetadataFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFailures reads the failures document. A missing or empty file is an empty map.
func (s *Store) LoadFailures(ctx context.Context) (map[string]crawler.FailureRecord, error) {
	out := make(map[string]crawler.FailureRecord)
	if err := readJSON(ctx, s.cfg.FailuresFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes both documents in full, metadata first.
func (s *Store) Save(ctx context.Context, state crawler.State) error {
	if err := writeJSON(ctx, s.cfg.MetadataFile, state.Metadata); err != nil {
		return err
	}
	return writeJSON(ctx, s.cfg.FailuresFile, state.Failures)
}

// WriteReport writes the run report.
func (s *Store) WriteReport(ctx context.Context, report crawler.RunReport) error {
	return writeJSON(ctx, s.cfg.ReportFile, report)
}

func readJSON(ctx context.Context, path string, dst any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
