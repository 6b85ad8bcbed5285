package toolset

import (
	"context"
	"fmt"

	"github.com/brightfame/crewgen/internal/materialize"
)

// FileWriterName is the tool name agents use to create files.
const FileWriterName = "file_writer"

// Parameter describes one string argument of a tool.
type Parameter struct {
	Name        string
	Description string
	Required    bool
}

// Spec describes a tool to an agent runtime.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// FileWriterSpec describes the file_writer tool.
var FileWriterSpec = Spec{
	Name:        FileWriterName,
	Description: "Create a file with specific content. Paths are relative to the project root; parent directories are created as needed.",
	Parameters: []Parameter{
		{Name: "filepath", Description: "Path of the file relative to the project root", Required: true},
		{Name: "content", Description: "Full content of the file", Required: true},
	},
}

// FileWriter returns a handler writing files through m.
func FileWriter(m *materialize.Materializer) Handler {
	return ObservedFileWriter(m, nil)
}

// ObservedFileWriter is FileWriter that also passes every write result to
// observe. Argument errors never reach observe.
func ObservedFileWriter(m *materialize.Materializer, observe func(materialize.Result)) Handler {
	return func(_ context.Context, arguments map[string]any) (string, error) {
		path, err := stringArgument(arguments, "filepath", "path")
		if err != nil {
			return "", err
		}
		content, err := stringArgument(arguments, "content")
		if err != nil {
			return "", err
		}
		r := m.Write(path, content)
		if observe != nil {
			observe(r)
		}
		return WriteResult(r)
	}
}

// WriteResult renders a write result as tool output.
func WriteResult(r materialize.Result) (string, error) {
	if !r.OK() {
		return "", fmt.Errorf("write %q: %s: %w", r.Path, r.Outcome, r.Err)
	}
	return fmt.Sprintf("write_ok path=%s bytes=%d outcome=%s", r.Path, r.Bytes, r.Outcome), nil
}

// stringArgument returns the first of names present in arguments.
func stringArgument(arguments map[string]any, names ...string) (string, error) {
	for _, name := range names {
		raw, ok := arguments[name]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("argument %q must be a string, got %T", name, raw)
		}
		return value, nil
	}
	return "", fmt.Errorf("missing argument %q", names[0])
}

// Register adds the file_writer tool backed by m to r.
func Register(r *Registry, m *materialize.Materializer) {
	r.Register(FileWriterName, FileWriter(m))
}
