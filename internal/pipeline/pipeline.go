// Package pipeline runs the generation stages in order, materializing the
// files each agent produces.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"golang.org/x/time/rate"

	"github.com/brightfame/crewgen/assets"
	"github.com/brightfame/crewgen/internal/agent"
	"github.com/brightfame/crewgen/internal/constants"
	"github.com/brightfame/crewgen/internal/manifest"
	"github.com/brightfame/crewgen/internal/materialize"
	"github.com/brightfame/crewgen/internal/project"
	"github.com/brightfame/crewgen/internal/toolset"
)

type Stage struct {
	Name string
	Role string
}

// DefaultStages returns architect, developer, tester and readme in order.
func DefaultStages() []Stage {
	stages := make([]Stage, 0, len(constants.Stages))
	for _, name := range constants.Stages {
		stages = append(stages, Stage{Name: name, Role: constants.StageRoles[name]})
	}
	return stages
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage      Stage
	Response   agent.Response
	ToolCalls  int
	ToolErrors int
	Summary    materialize.Summary
	Duration   time.Duration
}

// Report is the outcome of a run. Stages holds every stage that completed,
// including on failure.
type Report struct {
	Stages  []StageResult
	Summary materialize.Summary
}

// ManifestStages converts the report for the run manifest.
func (r Report) ManifestStages() []manifest.Stage {
	out := make([]manifest.Stage, 0, len(r.Stages))
	for _, s := range r.Stages {
		out = append(out, manifest.NewStage(s.Stage.Name, s.Stage.Role, s.ToolCalls, s.Summary))
	}
	return out
}

type Options struct {
	Agent        agent.Agent
	Materializer *materialize.Materializer
	// Stages defaults to DefaultStages.
	Stages []Stage
	// MaxRPM limits agent calls per minute; zero disables pacing.
	MaxRPM int
	// Template returns the prompt template of a stage; defaults to assets.Prompt.
	Template func(stage string) (string, error)
	// OnStageDone runs after every successful stage. Its error is logged and
	// does not stop the run.
	OnStageDone func(ctx context.Context, res StageResult) error
	Logger      *slog.Logger
	Status      io.Writer
}

type Pipeline struct {
	agent    agent.Agent
	m        *materialize.Materializer
	stages   []Stage
	limiter  *rate.Limiter
	template func(string) (string, error)
	onDone   func(context.Context, StageResult) error
	logger   *slog.Logger
	status   io.Writer
}

func New(opts Options) (*Pipeline, error) {
	if opts.Agent == nil {
		return nil, fmt.Errorf("pipeline: agent is required")
	}
	if opts.Materializer == nil {
		return nil, fmt.Errorf("pipeline: materializer is required")
	}
	if opts.MaxRPM < 0 {
		return nil, fmt.Errorf("pipeline: max rpm must not be negative")
	}

	p := &Pipeline{
		agent:    opts.Agent,
		m:        opts.Materializer,
		stages:   opts.Stages,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		template: opts.Template,
		onDone:   opts.OnStageDone,
		logger:   opts.Logger,
		status:   opts.Status,
	}
	if len(p.stages) == 0 {
		p.stages = DefaultStages()
	}
	if opts.MaxRPM > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.MaxRPM)), 1)
	}
	if p.template == nil {
		p.template = assets.Prompt
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.status == nil {
		p.status = io.Discard
	}
	return p, nil
}

// Output is the text a finished stage hands to the following ones.
type Output struct {
	Stage string
	Text  string
}

type promptData struct {
	Role     string
	Project  project.Info
	Features []string
	Previous []Output
	Format   string
}

// Prompt renders the prompt of stage from its template.
func (p *Pipeline) Prompt(stage Stage, info project.Info, previous []Output) (string, error) {
	raw, err := p.template(stage.Name)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	return Render(raw, stage, info, previous)
}

// Render executes the prompt template raw for stage.
func Render(raw string, stage Stage, info project.Info, previous []Output) (string, error) {
	tmpl, err := template.New(stage.Name).Parse(raw)
	if err != nil {
		return "", fmt.Errorf("pipeline: failed to parse %s prompt: %w", stage.Name, err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, promptData{
		Role:     stage.Role,
		Project:  info,
		Features: info.FeatureList(),
		Previous: previous,
		Format:   assets.FileFormat,
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: failed to render %s prompt: %w", stage.Name, err)
	}
	return buf.String(), nil
}

// Run executes every stage in order. An agent failure stops the run with an
// error naming the stage; files that fail to materialize are only counted.
func (p *Pipeline) Run(ctx context.Context, info project.Info) (Report, error) {
	var report Report
	var previous []Output

	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline: stopped before %s: %w", stage.Name, err)
		}

		fmt.Fprintf(p.status, "[%d/%d] %s (%s)\n", i+1, len(p.stages), stage.Name, stage.Role)
		res, err := p.runStage(ctx, stage, info, previous)
		if err != nil {
			return report, err
		}

		report.Stages = append(report.Stages, res)
		report.Summary.Merge(res.Summary)
		previous = append(previous, Output{Stage: stage.Name, Text: stageText(res)})

		if p.onDone != nil {
			if err := p.onDone(ctx, res); err != nil {
				p.logger.Warn("stage hook failed", "stage", stage.Name, "error", err)
			}
		}
	}

	p.logger.Info("pipeline completed",
		"stages", len(report.Stages),
		"written", report.Summary.Written,
		"identical", report.Summary.Identical,
		"rejected", report.Summary.Rejected,
		"failed", report.Summary.Failed,
	)
	return report, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, info project.Info, previous []Output) (StageResult, error) {
	res := StageResult{Stage: stage}
	start := time.Now()

	prompt, err := p.Prompt(stage, info, previous)
	if err != nil {
		return res, err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return res, fmt.Errorf("pipeline: %s stage: waiting for rate limit: %w", stage.Name, err)
	}

	p.logger.Debug("calling agent", "stage", stage.Name, "prompt_bytes", len(prompt))
	resp, err := p.agent.Run(ctx, agent.Request{Stage: stage.Name, Role: stage.Role, Prompt: prompt})
	if err != nil {
		return res, fmt.Errorf("pipeline: %s stage failed: %w", stage.Name, err)
	}
	res.Response = resp

	tools := toolset.New()
	tools.Register(toolset.FileWriterName, toolset.ObservedFileWriter(p.m, res.Summary.Add))
	for _, call := range resp.ToolCalls {
		res.ToolCalls++
		out, err := tools.Execute(ctx, call)
		if err != nil {
			res.ToolErrors++
			p.logger.Warn("tool call failed", "stage", stage.Name, "tool", call.Name, "error", err)
			continue
		}
		p.logger.Debug("tool call", "stage", stage.Name, "tool", call.Name, "result", out)
	}

	if strings.TrimSpace(resp.Text) != "" {
		res.Summary.Merge(p.m.ExtractAndWriteAll(resp.Text))
	} else if len(resp.ToolCalls) == 0 {
		p.logger.Warn("agent returned nothing", "stage", stage.Name)
	}

	res.Duration = time.Since(start)
	p.logger.Info("stage completed",
		"stage", stage.Name,
		"tool_calls", res.ToolCalls,
		"blocks", res.Summary.Blocks,
		"written", res.Summary.Written,
		"duration", res.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(p.status, "  %s: %d file(s) written\n", stage.Name, res.Summary.Written)
	return res, nil
}

// stageText is what later stages see of res. Files delivered only as tool
// calls are listed by path.
func stageText(res StageResult) string {
	if strings.TrimSpace(res.Response.Text) != "" {
		return res.Response.Text
	}
	var b strings.Builder
	for _, r := range res.Summary.Results {
		if r.OK() {
			fmt.Fprintf(&b, "wrote %s\n", r.Path)
		}
	}
	return b.String()
}
