// Package manifest records what a generation run produced in
// .crewgen/manifest.yaml.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brightfame/crewgen/internal/constants"
	"github.com/brightfame/crewgen/internal/materialize"
)

// Run status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Manifest struct {
	Project    string    `yaml:"project"`
	Status     string    `yaml:"status"`
	Error      string    `yaml:"error,omitempty"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Stages     []Stage   `yaml:"stages"`
	Files      []File    `yaml:"files"`
}

// Stage summarises the files one pipeline stage materialized.
type Stage struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role"`
	ToolCalls int    `yaml:"tool_calls"`
	Blocks    int    `yaml:"blocks"`
	Written   int    `yaml:"written"`
	Identical int    `yaml:"identical"`
	Rejected  int    `yaml:"rejected"`
	Failed    int    `yaml:"failed"`
}

type File struct {
	Path   string `yaml:"path"`
	Bytes  int    `yaml:"bytes"`
	SHA256 string `yaml:"sha256"`
}

// NewStage converts a materialization summary into a manifest stage.
func NewStage(name, role string, toolCalls int, s materialize.Summary) Stage {
	return Stage{
		Name:      name,
		Role:      role,
		ToolCalls: toolCalls,
		Blocks:    s.Blocks,
		Written:   s.Written,
		Identical: s.Identical,
		Rejected:  s.Rejected,
		Failed:    s.Failed,
	}
}

// Files lists the registry contents with their digests.
func Files(records []materialize.Record) []File {
	files := make([]File, 0, len(records))
	for _, r := range records {
		sum := sha256.Sum256([]byte(r.Content))
		files = append(files, File{
			Path:   r.Path,
			Bytes:  len(r.Content),
			SHA256: hex.EncodeToString(sum[:]),
		})
	}
	return files
}

// Save writes m to <dir>/.crewgen/manifest.yaml.
func Save(dir string, m *Manifest) error {
	path := filepath.Join(dir, constants.ManifestFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("manifest: failed to create state dir: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest: failed to write: %w", err)
	}
	return nil
}

// Load reads the manifest of a previous run from dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, constants.ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to read: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: failed to parse: %w", err)
	}
	return &m, nil
}
