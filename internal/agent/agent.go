// Package agent invokes the LLM behind each pipeline stage.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/brightfame/crewgen/internal/toolset"
)

// Request is the input of one stage.
type Request struct {
	Stage  string
	Role   string
	Prompt string
}

// Response is what an agent produced: free text, which may contain file
// blocks, and structured tool calls.
type Response struct {
	Text      string
	ToolCalls []toolset.Call
}

type Agent interface {
	Run(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Run(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Command runs an external LLM CLI. Args may reference ${MODEL}, ${STAGE},
// ${ROLE} or any environment variable; the prompt is appended as the last
// argument and stdout becomes the response text.
type Command struct {
	Path  string
	Args  []string
	Model string
	Dir   string
	// Env is appended to the current environment, e.g. provider credentials.
	Env []string
}

func (c *Command) Run(ctx context.Context, req Request) (Response, error) {
	expand := func(key string) string {
		switch key {
		case "MODEL":
			return c.Model
		case "STAGE":
			return req.Stage
		case "ROLE":
			return req.Role
		default:
			return os.Getenv(key)
		}
	}

	args := make([]string, 0, len(c.Args)+1)
	for _, a := range c.Args {
		args = append(args, os.Expand(a, expand))
	}
	args = append(args, req.Prompt)

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Response{}, fmt.Errorf("agent: %s failed for stage %s: %w: %s", c.Path, req.Stage, err, strings.TrimSpace(stderr.String()))
	}
	return Response{Text: stdout.String()}, nil
}

// Replay serves canned responses from Dir: <stage>.md holds the text and
// <stage>.calls.json an optional list of tool calls.
type Replay struct {
	Dir string
}

func (r Replay) Run(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	var resp Response
	found := false

	text, err := os.ReadFile(filepath.Join(r.Dir, req.Stage+".md"))
	switch {
	case err == nil:
		resp.Text = string(text)
		found = true
	case !errors.Is(err, fs.ErrNotExist):
		return Response{}, fmt.Errorf("agent: failed to read replay text for %s: %w", req.Stage, err)
	}

	calls, err := os.ReadFile(filepath.Join(r.Dir, req.Stage+".calls.json"))
	switch {
	case err == nil:
		if err := json.Unmarshal(calls, &resp.ToolCalls); err != nil {
			return Response{}, fmt.Errorf("agent: failed to parse replay tool calls for %s: %w", req.Stage, err)
		}
		found = true
	case !errors.Is(err, fs.ErrNotExist):
		return Response{}, fmt.Errorf("agent: failed to read replay tool calls for %s: %w", req.Stage, err)
	}

	if !found {
		return Response{}, fmt.Errorf("agent: no replay fixture for stage %s in %s", req.Stage, r.Dir)
	}
	return resp, nil
}
