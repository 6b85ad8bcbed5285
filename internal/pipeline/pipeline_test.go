package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfame/crewgen/internal/agent"
	"github.com/brightfame/crewgen/internal/materialize"
	"github.com/brightfame/crewgen/internal/project"
	"github.com/brightfame/crewgen/internal/toolset"
)

var todo = project.Info{
	Name:            "Todo",
	Description:     "Track things to do",
	Features:        "add, complete",
	TechnologyStack: "Streamlit, Python",
}

// scripted answers each stage with a canned response and records prompts.
type scripted struct {
	responses map[string]agent.Response
	prompts   map[string]string
	order     []string
}

func (s *scripted) Run(_ context.Context, req agent.Request) (agent.Response, error) {
	if s.prompts == nil {
		s.prompts = map[string]string{}
	}
	s.prompts[req.Stage] = req.Prompt
	s.order = append(s.order, req.Stage)
	return s.responses[req.Stage], nil
}

func TestRunMaterializesTextAndToolCalls(t *testing.T) {
	fs := memfs.New()
	m := materialize.New(fs, materialize.Options{})
	a := &scripted{responses: map[string]agent.Response{
		"architect": {Text: "Path: architecture.md\nCode: '''# Architecture'''"},
		"developer": {ToolCalls: []toolset.Call{
			{Name: toolset.FileWriterName, Arguments: map[string]any{"filepath": "app.py", "content": "import streamlit as st"}},
			{Name: "web_search", Arguments: map[string]any{"q": "x"}},
		}},
		"tester": {Text: "Path: tests/test_app.py\nCode: '''def test(): pass'''\nPath: app.py\nCode: '''import streamlit as st'''"},
		"readme": {Text: "Path: README.md\nCode: '''# Todo'''"},
	}}

	var hooked []string
	p, err := New(Options{
		Agent:        a,
		Materializer: m,
		OnStageDone: func(_ context.Context, res StageResult) error {
			hooked = append(hooked, res.Stage.Name)
			return errors.New("hook failures are not fatal")
		},
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), todo)
	require.NoError(t, err)

	assert.Equal(t, []string{"architect", "developer", "tester", "readme"}, a.order)
	assert.Equal(t, a.order, hooked)
	require.Len(t, report.Stages, 4)

	dev := report.Stages[1]
	assert.Equal(t, 2, dev.ToolCalls)
	assert.Equal(t, 1, dev.ToolErrors)
	assert.Equal(t, 1, dev.Summary.Written)

	tester := report.Stages[2]
	assert.Equal(t, 2, tester.Summary.Blocks)
	assert.Equal(t, 1, tester.Summary.Written)
	assert.Equal(t, 1, tester.Summary.Identical)

	assert.Equal(t, 4, report.Summary.Written)
	for _, path := range []string{"architecture.md", "app.py", "tests/test_app.py", "README.md"} {
		_, err := util.ReadFile(fs, path)
		assert.NoError(t, err, path)
	}

	stages := report.ManifestStages()
	require.Len(t, stages, 4)
	assert.Equal(t, "Senior Developer", stages[1].Role)
	assert.Equal(t, 2, stages[1].ToolCalls)
}

func TestRunPassesPreviousWorkToLaterStages(t *testing.T) {
	a := &scripted{responses: map[string]agent.Response{
		"architect": {Text: "Use a layered design.\nPath: architecture.md\nCode: '''# A'''"},
		"developer": {ToolCalls: []toolset.Call{
			{Name: toolset.FileWriterName, Arguments: map[string]any{"filepath": "app.py", "content": "x = 1"}},
		}},
	}}
	p, err := New(Options{Agent: a, Materializer: materialize.New(memfs.New(), materialize.Options{})})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), todo)
	require.NoError(t, err)

	assert.Contains(t, a.prompts["architect"], "Software Architect")
	assert.Contains(t, a.prompts["architect"], "- complete")
	assert.NotContains(t, a.prompts["architect"], "PREVIOUS WORK")
	assert.Contains(t, a.prompts["developer"], "Use a layered design.")
	assert.Contains(t, a.prompts["tester"], "wrote app.py")
	assert.Contains(t, a.prompts["readme"], "--- tester ---")
	assert.Contains(t, a.prompts["readme"], "Path: relative/path/to/file.ext")
}

func TestRunStopsOnAgentFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	a := agent.Func(func(_ context.Context, req agent.Request) (agent.Response, error) {
		if req.Stage == "tester" {
			return agent.Response{}, boom
		}
		return agent.Response{Text: "Path: " + req.Stage + ".md\nCode: '''" + req.Stage + "'''"}, nil
	})
	p, err := New(Options{Agent: a, Materializer: materialize.New(memfs.New(), materialize.Options{})})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), todo)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "tester stage failed")
	assert.Len(t, report.Stages, 2)
	assert.Equal(t, 2, report.Summary.Written)
}

func TestRunContinuesAfterMaterializationFailures(t *testing.T) {
	a := agent.Func(func(_ context.Context, req agent.Request) (agent.Response, error) {
		return agent.Response{Text: "Path: ../escape.txt\nCode: '''x'''\nPath: empty.txt\nCode: ''' '''"}, nil
	})
	p, err := New(Options{Agent: a, Materializer: materialize.New(memfs.New(), materialize.Options{})})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), todo)
	require.NoError(t, err)
	assert.Len(t, report.Stages, 4)
	assert.Equal(t, 8, report.Summary.Rejected)
	assert.Equal(t, 0, report.Summary.Written)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	a := agent.Func(func(_ context.Context, req agent.Request) (agent.Response, error) {
		calls++
		cancel()
		return agent.Response{}, nil
	})
	p, err := New(Options{Agent: a, Materializer: materialize.New(memfs.New(), materialize.Options{})})
	require.NoError(t, err)

	report, err := p.Run(ctx, todo)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "stopped before developer")
	assert.Equal(t, 1, calls)
	assert.Len(t, report.Stages, 1)
}

func TestRunPacesAgentCalls(t *testing.T) {
	var times []time.Time
	a := agent.Func(func(_ context.Context, req agent.Request) (agent.Response, error) {
		times = append(times, time.Now())
		return agent.Response{}, nil
	})
	p, err := New(Options{
		Agent:        a,
		Materializer: materialize.New(memfs.New(), materialize.Options{}),
		Stages:       []Stage{{Name: "one"}, {Name: "two"}},
		MaxRPM:       600,
		Template:     func(string) (string, error) { return "prompt", nil },
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), todo)
	require.NoError(t, err)
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 80*time.Millisecond)
}

func TestNewValidatesOptions(t *testing.T) {
	m := materialize.New(memfs.New(), materialize.Options{})
	a := agent.Func(func(context.Context, agent.Request) (agent.Response, error) { return agent.Response{}, nil })

	_, err := New(Options{Materializer: m})
	assert.EqualError(t, err, "pipeline: agent is required")
	_, err = New(Options{Agent: a})
	assert.EqualError(t, err, "pipeline: materializer is required")
	_, err = New(Options{Agent: a, Materializer: m, MaxRPM: -1})
	assert.Error(t, err)
}

func TestRenderUnknownStage(t *testing.T) {
	p, err := New(Options{
		Agent:        agent.Func(func(context.Context, agent.Request) (agent.Response, error) { return agent.Response{}, nil }),
		Materializer: materialize.New(memfs.New(), materialize.Options{}),
	})
	require.NoError(t, err)

	_, err = p.Prompt(Stage{Name: "deployer"}, todo, nil)
	assert.ErrorContains(t, err, `no prompt template for stage "deployer"`)
}

func TestRunStatusLines(t *testing.T) {
	var status bytes.Buffer
	a := agent.Func(func(_ context.Context, req agent.Request) (agent.Response, error) {
		return agent.Response{Text: "Path: " + req.Stage + ".md\nCode: '''" + req.Stage + "'''"}, nil
	})
	p, err := New(Options{Agent: a, Materializer: materialize.New(memfs.New(), materialize.Options{}), Status: &status})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), todo)
	require.NoError(t, err)
	out := status.String()
	assert.True(t, strings.HasPrefix(out, "[1/4] architect (Software Architect)"), out)
	assert.Contains(t, out, "[4/4] readme (Technical Writer)")
	assert.Contains(t, out, "readme: 1 file(s) written")
}

func TestRenderReportsTemplateErrors(t *testing.T) {
	_, err := Render("{{.Project.Nope}}", Stage{Name: "architect"}, todo, nil)
	assert.ErrorContains(t, err, "failed to render architect prompt")

	_, err = Render("{{if}}", Stage{Name: "architect"}, todo, nil)
	assert.ErrorContains(t, err, "failed to parse architect prompt")
}
