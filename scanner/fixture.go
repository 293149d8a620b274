package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk form of a canned scan.
type Fixture struct {
	Samples []Sample `yaml:"samples"`
}

// FixtureScanner replays samples from a YAML file. The file is read on every
// scan so it can be edited while running.
type FixtureScanner struct {
	path string
	log  *slog.Logger
}

func NewFixtureScanner(path string, log *slog.Logger) (*FixtureScanner, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("a fixture path is required")
	}

	return &FixtureScanner{
		path: path,
		log:  log.With("operation", "FixtureScanner"),
	}, nil
}

func (s *FixtureScanner) Scan(ctx context.Context) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", s.path, err)
	}

	f := Fixture{}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", s.path, err)
	}

	s.log.Debug("fixture loaded", "path", s.path, "samples", len(f.Samples))
	return f.Samples, nil
}
