// Package project holds the metadata of the project being generated.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/brightfame/crewgen/internal/constants"
)

// Info describes the project handed to every pipeline stage.
type Info struct {
	Name            string `json:"project_name"`
	Description     string `json:"project_description"`
	Features        string `json:"features"`
	TechnologyStack string `json:"technology_stack"`
	ProjectType     string `json:"project_type"`
}

// Validate checks the fields every stage relies on.
func (i Info) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("project description is required")
	}
	return nil
}

// FeatureList splits the comma separated feature string.
func (i Info) FeatureList() []string {
	var out []string
	for _, f := range strings.Split(i.Features, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// DirName returns the output directory name for a project, e.g. "My App"
// becomes "my_app_project".
func DirName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_") + "_project"
}

// Save writes info to project_config/project_info.json below dir.
func Save(dir string, info Info) error {
	path := filepath.Join(dir, constants.ProjectInfoFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("project: failed to create %s: %w", constants.ProjectInfoDir, err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("project: failed to marshal info: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("project: failed to write info: %w", err)
	}
	return nil
}

// Load reads the info saved by Save.
func Load(dir string) (Info, error) {
	var info Info
	data, err := os.ReadFile(filepath.Join(dir, constants.ProjectInfoFile))
	if err != nil {
		return info, fmt.Errorf("project: failed to read info: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("project: failed to parse info: %w", err)
	}
	return info, nil
}

// skipDirs are directories crewgen writes itself; they are not part of the
// generated project.
var skipDirs = map[string]bool{
	constants.ProjectInfoDir: true,
	constants.StateDir:       true,
	".git":                   true,
}

// CountFiles counts the generated files below dir.
func CountFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if path == filepath.Join(dir, constants.RunLogFile) {
			return nil
		}
		count++
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("project: failed to count files: %w", err)
	}
	return count, nil
}

// DefaultFrontend is used when the technology stack names no frontend.
const DefaultFrontend = "Streamlit"

var frontends = []string{"streamlit", "react", "vue", "angular", "html"}

// ResolveStack returns stack with the default frontend prepended when none
// of the known frontends is mentioned.
func ResolveStack(stack string) string {
	stack = strings.TrimSpace(stack)
	if stack == "" {
		return DefaultFrontend + ", Python"
	}
	lower := strings.ToLower(stack)
	for _, f := range frontends {
		if strings.Contains(lower, f) {
			return stack
		}
	}
	return DefaultFrontend + ", " + stack
}
