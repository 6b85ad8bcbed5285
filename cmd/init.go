package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/config"
	"github.com/brightfame/crewgen/internal/constants"
)

const envExample = `# Credentials for the LLM provider selected in crewgen.toml.
OPENAI_API_KEY=
ANTHROPIC_API_KEY=
AZURE_OPENAI_API_KEY=
AZURE_OPENAI_API_BASE=
AZURE_OPENAI_API_VERSION=

# Optional overrides.
# DEFAULT_LLM_PROVIDER=anthropic
# DEFAULT_LLM_MODEL=claude-sonnet-4-5
# MAX_RPM=10
# LOG_LEVEL=info
`

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a crewgen workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absDir, err := argDir(args)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(absDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", absDir, err)
		}
		out := cmd.OutOrStdout()

		configPath := filepath.Join(absDir, constants.ConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists in %s", constants.ConfigFile, absDir)
		}

		cfg := config.Default()
		cfg.Project.Name = filepath.Base(absDir)
		if err := config.Write(configPath, cfg); err != nil {
			return fmt.Errorf("failed to write %s: %w", constants.ConfigFile, err)
		}
		fmt.Fprintf(out, "  Created %s\n", constants.ConfigFile)

		examplePath := filepath.Join(absDir, constants.EnvFile+".example")
		if _, err := os.Stat(examplePath); os.IsNotExist(err) {
			if err := os.WriteFile(examplePath, []byte(envExample), 0644); err != nil {
				return fmt.Errorf("failed to write %s.example: %w", constants.EnvFile, err)
			}
			fmt.Fprintf(out, "  Created %s.example\n", constants.EnvFile)
		} else {
			fmt.Fprintf(out, "  Using existing %s.example\n", constants.EnvFile)
		}

		// Append entries to .gitignore (create if missing, never overwrite).
		gitignorePath := filepath.Join(absDir, ".gitignore")
		requiredEntries := []string{constants.EnvFile, constants.RunLogFile, "*_project/"}
		existing, _ := os.ReadFile(gitignorePath)
		existingStr := string(existing)
		var toAdd []string
		for _, entry := range requiredEntries {
			if !strings.Contains(existingStr, entry) {
				toAdd = append(toAdd, entry)
			}
		}
		if len(toAdd) > 0 {
			f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("failed to open .gitignore: %w", err)
			}
			if len(existingStr) > 0 && !strings.HasSuffix(existingStr, "\n") {
				_, _ = f.WriteString("\n")
			}
			for _, entry := range toAdd {
				if _, err := f.WriteString(entry + "\n"); err != nil {
					_ = f.Close()
					return fmt.Errorf("failed to write .gitignore entry: %w", err)
				}
			}
			_ = f.Close()
			fmt.Fprintln(out, "  Updated .gitignore")
		} else {
			fmt.Fprintln(out, "  .gitignore already up to date")
		}

		fmt.Fprintf(out, "\nWorkspace %q initialized successfully!\n\n", cfg.Project.Name)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintf(out, "  1. Copy %s.example to %s and set your API key\n", constants.EnvFile, constants.EnvFile)
		fmt.Fprintf(out, "  2. Describe the project in %s ([project]) or pass flags to generate\n", constants.ConfigFile)
		fmt.Fprintln(out, "  3. Generate it: crewgen generate")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
