// Package materialize turns LLM-authored (path, content) pairs into files on disk.
//
// Every write goes through Materializer.Write, which refuses blank content,
// skips byte-identical rewrites of paths already written during the run,
// creates parent directories on demand and records the result in a Registry.
// Failures are reported in the returned Result and never escape as panics.
package materialize

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// ErrEmptyContent is attached to results rejected for blank content.
var ErrEmptyContent = errors.New("refusing to write empty content")

// Outcome describes what a single write did.
type Outcome string

const (
	Created            Outcome = "created"
	Overwritten        Outcome = "overwritten"
	Identical          Outcome = "identical"
	RejectedEmpty      Outcome = "rejected_empty"
	RejectedUnsafePath Outcome = "rejected_unsafe_path"
	Failed             Outcome = "failed"
)

// Result is the outcome of one write. Err is set for every rejected or failed write.
type Result struct {
	Path       string
	Outcome    Outcome
	Bytes      int
	CreatedDir string
	// Replaced is set on Created when a file this run had not written
	// already existed, e.g. one left by a previous run.
	Replaced   bool
	Err        error
}

// OK reports whether the path now holds the requested content.
func (r Result) OK() bool {
	return r.Outcome == Created || r.Outcome == Overwritten || r.Outcome == Identical
}

// Wrote reports whether the filesystem was touched.
func (r Result) Wrote() bool {
	return r.Outcome == Created || r.Outcome == Overwritten
}

// Options configures a Materializer. Zero values pick sensible defaults.
type Options struct {
	Registry *Registry
	Logger   *slog.Logger
	// Status receives one human-readable line per outcome. Nil discards them.
	Status   io.Writer
	FileMode os.FileMode
	DirMode  os.FileMode
}

// Materializer writes files below the root of fs and tracks them in a Registry.
// It is safe for concurrent use.
type Materializer struct {
	fs       billy.Filesystem
	registry *Registry
	logger   *slog.Logger
	status   io.Writer
	fileMode os.FileMode
	dirMode  os.FileMode
}

// New returns a Materializer rooted at the root of fs.
func New(fs billy.Filesystem, opts Options) *Materializer {
	m := &Materializer{
		fs:       fs,
		registry: opts.Registry,
		logger:   opts.Logger,
		status:   opts.Status,
		fileMode: opts.FileMode,
		dirMode:  opts.DirMode,
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.status == nil {
		m.status = io.Discard
	}
	if m.fileMode == 0 {
		m.fileMode = 0644
	}
	if m.dirMode == 0 {
		m.dirMode = 0755
	}
	return m
}

// NewForDir returns a Materializer rooted at dir on the host filesystem.
func NewForDir(dir string, opts Options) *Materializer {
	return New(osfs.New(dir), opts)
}

// Root is the directory logical paths are resolved against.
func (m *Materializer) Root() string {
	return m.fs.Root()
}

func (m *Materializer) Registry() *Registry {
	return m.registry
}

// Write materializes content at path. The identical-content check and the
// write happen under one lock so concurrent writers cannot both proceed.
// Paths naming the same file, such as "a.txt" and "./a.txt", share one record.
func (m *Materializer) Write(path, content string) Result {
	logical := Normalize(path)
	target, resolveErr := resolve(logical)
	key := logical
	if resolveErr == nil {
		key = filepath.ToSlash(target)
	}

	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	prev, known := m.registry.entries[key]

	if strings.TrimSpace(content) == "" {
		return m.report(Result{Path: key, Outcome: RejectedEmpty, Err: ErrEmptyContent}, known)
	}
	if resolveErr != nil {
		return m.report(Result{Path: key, Outcome: RejectedUnsafePath, Err: resolveErr}, known)
	}

	outcome := Created
	existed := false
	if known {
		if prev == content {
			return m.report(Result{Path: key, Outcome: Identical, Bytes: len(content)}, known)
		}
		outcome = Overwritten
	} else if _, err := m.fs.Stat(target); err == nil {
		existed = true
	}

	createdDir, err := m.writeFile(target, content)
	if err != nil {
		return m.report(Result{Path: key, Outcome: Failed, CreatedDir: createdDir, Err: err}, known)
	}

	m.registry.entries[key] = content
	return m.report(Result{Path: key, Outcome: outcome, Bytes: len(content), CreatedDir: createdDir, Replaced: existed}, known)
}

// writeFile creates missing parents of target and replaces its contents.
// It returns the parent directory when that directory did not exist before.
func (m *Materializer) writeFile(target, content string) (string, error) {
	var createdDir string
	if dir := filepath.Dir(target); dir != "." {
		_, statErr := m.fs.Stat(dir)
		if err := m.fs.MkdirAll(dir, m.dirMode); err != nil {
			return "", fmt.Errorf("create directory %s: %w", dir, err)
		}
		if statErr != nil {
			createdDir = dir
			m.logger.Info("created directory", "dir", m.fs.Join(m.fs.Root(), dir))
		}
	}

	if err := util.WriteFile(m.fs, target, []byte(content), m.fileMode); err != nil {
		return createdDir, fmt.Errorf("write %s: %w", target, err)
	}
	return createdDir, nil
}

// report emits the status line and log entry for r and returns it unchanged.
func (m *Materializer) report(r Result, known bool) Result {
	full := m.fs.Join(m.fs.Root(), r.Path)

	switch r.Outcome {
	case Created:
		if r.Replaced {
			m.logger.Info("replaced file from a previous run", "path", r.Path, "file", full, "bytes", r.Bytes)
			fmt.Fprintf(m.status, "  Overwrote %s (from a previous run)\n", r.Path)
			break
		}
		m.logger.Info("created file", "path", r.Path, "file", full, "bytes", r.Bytes)
		fmt.Fprintf(m.status, "  Created %s\n", r.Path)
	case Overwritten:
		m.logger.Info("overwrote existing file", "path", r.Path, "file", full, "bytes", r.Bytes)
		fmt.Fprintf(m.status, "  Overwrote %s\n", r.Path)
	case Identical:
		m.logger.Info("file content identical, not rewriting", "path", r.Path)
		fmt.Fprintf(m.status, "  Unchanged %s (identical content)\n", r.Path)
	case RejectedEmpty:
		action := "create"
		if known {
			action = "overwrite"
		}
		m.logger.Warn("attempted to "+action+" file with empty content", "path", r.Path)
		fmt.Fprintf(m.status, "  Skipped %s: refusing to %s with empty content\n", r.Path, action)
	case RejectedUnsafePath:
		m.logger.Warn("rejected unsafe path", "path", r.Path, "error", r.Err)
		fmt.Fprintf(m.status, "  Skipped %s: %v\n", r.Path, r.Err)
	case Failed:
		m.logger.Error("failed to write file", "path", r.Path, "file", full, "error", r.Err)
		fmt.Fprintf(m.status, "  Failed to write %s: %v\n", r.Path, r.Err)
	}
	return r
}
