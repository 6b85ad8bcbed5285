package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/agent"
	"github.com/brightfame/crewgen/internal/config"
	"github.com/brightfame/crewgen/internal/constants"
	"github.com/brightfame/crewgen/internal/gitops"
	"github.com/brightfame/crewgen/internal/lock"
	"github.com/brightfame/crewgen/internal/logging"
	"github.com/brightfame/crewgen/internal/manifest"
	"github.com/brightfame/crewgen/internal/materialize"
	"github.com/brightfame/crewgen/internal/notify"
	"github.com/brightfame/crewgen/internal/pipeline"
	"github.com/brightfame/crewgen/internal/project"
)

// staleLockAge is how long a run lock is honoured before it is considered
// abandoned.
const staleLockAge = 2 * time.Hour

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a project with the agent crew",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := workDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd, dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		info, err := projectInfo(cmd, cfg)
		if err != nil {
			return err
		}

		outDir := cfg.Output.BaseDir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(dir, outDir)
		}
		outDir = filepath.Join(outDir, project.DirName(info.Name))
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		lk, err := lock.Acquire(outDir, staleLockAge)
		if err != nil {
			return err
		}
		defer func() {
			if err := lk.Release(); err != nil {
				slog.Warn("failed to release run lock", "error", err)
			}
		}()

		logger, closeLog, err := runLogger(cfg, outDir)
		if err != nil {
			return err
		}
		// The lock is released after this runs, so its warnings must not reach the closed run log.
		prevLogger := slog.Default()
		slog.SetDefault(logger)
		defer func() {
			slog.SetDefault(prevLogger)
			closeLog()
		}()

		if err := project.Save(outDir, info); err != nil {
			return err
		}

		a, err := newAgent(cfg, dir, outDir)
		if err != nil {
			return err
		}

		var repo *gitops.Repo
		if cfg.Git.Snapshot {
			repo, err = gitops.Open(outDir, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
			if err != nil {
				return err
			}
		}

		m := materialize.NewForDir(outDir, materialize.Options{Logger: logger, Status: out})
		webhook := cfg.Notifications.WebhookURL

		p, err := pipeline.New(pipeline.Options{
			Agent:        a,
			Materializer: m,
			MaxRPM:       cfg.LLM.MaxRPM,
			Logger:       logger,
			Status:       out,
			OnStageDone: func(ctx context.Context, res pipeline.StageResult) error {
				if repo != nil {
					paths := []string{constants.ProjectInfoFile}
					for _, r := range res.Summary.Results {
						if r.Wrote() {
							paths = append(paths, r.Path)
						}
					}
					hash, err := repo.Snapshot(fmt.Sprintf("crewgen: %s stage", res.Stage.Name), paths)
					if err != nil {
						return err
					}
					if hash != "" {
						logger.Info("snapshot committed", "stage", res.Stage.Name, "commit", hash)
					}
				}
				return notify.Send(ctx, webhook, notify.Event{
					Type:         notify.EventStageCompleted,
					Project:      info.Name,
					Stage:        res.Stage.Name,
					FilesWritten: res.Summary.Written,
					Message:      fmt.Sprintf("%s stage completed", res.Stage.Name),
					Timestamp:    time.Now().UTC(),
				})
			},
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(out, "\nGenerating %q with %s (%s) in %s\n\n", info.Name, cfg.LLM.Model, cfg.LLM.Provider, outDir)
		startedAt := time.Now().UTC()
		report, runErr := p.Run(ctx, info)

		mf := &manifest.Manifest{
			Project:    info.Name,
			Status:     manifest.StatusCompleted,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
			Stages:     report.ManifestStages(),
			Files:      manifest.Files(m.Registry().Snapshot()),
		}
		event := notify.Event{
			Type:         notify.EventRunCompleted,
			Project:      info.Name,
			FilesWritten: report.Summary.Written,
			Message:      "Project generated",
			Timestamp:    mf.FinishedAt,
		}
		if runErr != nil {
			mf.Status = manifest.StatusFailed
			mf.Error = runErr.Error()
			event.Type = notify.EventRunFailed
			event.Message = runErr.Error()
		}
		if err := manifest.Save(outDir, mf); err != nil {
			logger.Error("failed to save manifest", "error", err)
		}
		// The run context may already be cancelled; the final event still goes out.
		if err := notify.Send(context.Background(), webhook, event); err != nil {
			logger.Warn("failed to send notification", "error", err)
		}

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				fmt.Fprintln(out, "\nInterrupted. Files written so far are kept.")
			}
			return runErr
		}

		total, err := project.CountFiles(outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nYour project %q has been generated.\n", info.Name)
		fmt.Fprintf(out, "  Location:    %s\n", outDir)
		fmt.Fprintf(out, "  Files:       %d\n", total)
		fmt.Fprintf(out, "  Written:     %d (identical %d, rejected %d, failed %d)\n",
			report.Summary.Written, report.Summary.Identical, report.Summary.Rejected, report.Summary.Failed)
		fmt.Fprintf(out, "  Duration:    %s\n", formatDuration(mf.FinishedAt.Sub(startedAt)))

		if strings.Contains(strings.ToLower(info.TechnologyStack), "streamlit") {
			fmt.Fprintln(out, "\nTo run your Streamlit application:")
			fmt.Fprintln(out, "  1. Install dependencies: pip install -r requirements.txt")
			fmt.Fprintln(out, "  2. Start the app: streamlit run app.py")
		}
		fmt.Fprintln(out, "\nSee README.md for details about the project.")
		return nil
	},
}

func init() {
	generateCmd.Flags().String("name", "", "Project name")
	generateCmd.Flags().String("description", "", "Detailed project description")
	generateCmd.Flags().String("features", "", "Key features, comma separated")
	generateCmd.Flags().String("stack", "", "Technology stack (defaults to Streamlit)")
	rootCmd.AddCommand(generateCmd)
}

// projectInfo merges flags over the [project] config section and asks for
// the rest on stdin when name or description are still missing.
func projectInfo(cmd *cobra.Command, cfg *config.Config) (project.Info, error) {
	info := project.Info{
		Name:            cfg.Project.Name,
		Description:     cfg.Project.Description,
		Features:        cfg.Project.Features,
		TechnologyStack: cfg.Project.TechnologyStack,
		ProjectType:     "custom",
	}
	for flag, field := range map[string]*string{
		"name":        &info.Name,
		"description": &info.Description,
		"features":    &info.Features,
		"stack":       &info.TechnologyStack,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*field = v
		}
	}

	if strings.TrimSpace(info.Name) == "" || strings.TrimSpace(info.Description) == "" {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		questions := []struct {
			label string
			field *string
		}{
			{"Enter the project name: ", &info.Name},
			{"Enter a detailed description of the project: ", &info.Description},
			{"List key features (comma separated): ", &info.Features},
			{"Enter the technology stack (leave blank for Streamlit): ", &info.TechnologyStack},
		}
		for _, q := range questions {
			if strings.TrimSpace(*q.field) != "" {
				continue
			}
			answer, err := ask(in, out, q.label)
			if err != nil {
				return info, err
			}
			*q.field = answer
		}
	}

	if strings.TrimSpace(info.TechnologyStack) == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No technology stack specified, defaulting to Streamlit with a Python backend.")
	}
	info.TechnologyStack = project.ResolveStack(info.TechnologyStack)
	return info, info.Validate()
}

func ask(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// runLogger logs to the console and to the JSON run log in outDir.
func runLogger(cfg *config.Config, outDir string) (*slog.Logger, func(), error) {
	level := consoleLevel(cfg.SlogLevel())
	path := cfg.Logging.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(outDir, path)
	}
	runLog, err := logging.OpenRunLog(path, slog.LevelDebug)
	if err != nil {
		return nil, nil, err
	}
	handler := logging.Fanout{logging.NewConsole(os.Stderr, level), runLog}
	return slog.New(handler), func() { _ = runLog.Close() }, nil
}

// newAgent returns the replay agent in test mode and the configured LLM
// command otherwise.
func newAgent(cfg *config.Config, workspace, outDir string) (agent.Agent, error) {
	if cfg.LLM.TestMode {
		replayDir := cfg.LLM.ReplayDir
		if !filepath.IsAbs(replayDir) {
			replayDir = filepath.Join(workspace, replayDir)
		}
		slog.Info("test mode enabled, replaying responses", "dir", replayDir)
		return agent.Replay{Dir: replayDir}, nil
	}

	path, err := exec.LookPath(cfg.LLM.Command)
	if err != nil {
		return nil, fmt.Errorf("'%s' not found in PATH (set llm.command in %s)", cfg.LLM.Command, constants.ConfigFile)
	}
	return &agent.Command{
		Path:  path,
		Args:  cfg.LLM.Args,
		Model: cfg.LLM.Model,
		Dir:   outDir,
		Env:   cfg.Credentials.Env(),
	}, nil
}
