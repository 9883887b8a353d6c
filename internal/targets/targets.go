// Package targets loads the list of URLs a crawl visits.
package targets

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

// ExampleFile is the template users copy to create their URL list.
const ExampleFile = "urls.example.yaml"

type document struct {
	URLs []string `yaml:"urls"`
}

// Load reads the URL list at path. YAML files hold either a `urls:` key or a
// bare sequence; any other extension is read as one URL per line with `#`
// comments. Entries are trimmed, validated and deduplicated in order.
func Load(path string) ([]string, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: url list %s not found; copy %s to %s and edit it",
				crawler.ErrStartupConfigMissing, path, ExampleFile, path)
		}
		return nil, fmt.Errorf("read url list: %w", err)
	}

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = parseYAML(data)
	default:
		raw = parseLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse url list %s: %w", path, err)
	}
	return Normalize(raw)
}

func parseYAML(data []byte) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.URLs, nil
	default:
		return nil, errors.New("expected a `urls:` key or a list of urls")
	}
}

func parseLines(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Normalize trims each entry, drops blanks, rejects non-http(s) URLs and keeps
// the first occurrence of duplicates.
func Normalize(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	var errs []error
	for i, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if err := Validate(entry); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i+1, err))
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Validate checks that raw is an absolute http or https URL with a host.
func Validate(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
