// Package settings reads alerting settings from a TOML file, for deployments
// that keep intervals and toggles in version control instead of the database.
package settings

import (
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// FileSource loads settings from a TOML file on every call, so edits apply
// to the next run without a restart.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load parses the file. A missing file is an error: the operator asked for it.
func (s *FileSource) Load(_ context.Context) (*models.Settings, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read settings file %q: %w", s.path, err)
	}
	return Parse(raw)
}

// Parse decodes TOML settings and rejects negative intervals.
func Parse(raw []byte) (*models.Settings, error) {
	var out models.Settings
	if err := toml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	for name, interval := range out.MaintenanceIntervals {
		if interval < 0 {
			return nil, fmt.Errorf("maintenance_intervals.%s: interval must not be negative, got %v", name, interval)
		}
	}
	return &out, nil
}
