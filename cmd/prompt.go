package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/assets"
	"github.com/brightfame/crewgen/internal/constants"
	"github.com/brightfame/crewgen/internal/pipeline"
	"github.com/brightfame/crewgen/internal/project"
)

var promptCmd = &cobra.Command{
	Use:   "prompt <stage>",
	Short: "Show the prompt template of a stage",
	Long:  fmt.Sprintf("Prints the embedded prompt of a stage (%s). With --render the template is filled in from crewgen.toml.", strings.Join(constants.Stages, ", ")),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !slices.Contains(constants.Stages, name) {
			return fmt.Errorf("unknown stage %q (expected one of %s)", name, strings.Join(constants.Stages, ", "))
		}

		raw, err := assets.Prompt(name)
		if err != nil {
			return err
		}

		render, _ := cmd.Flags().GetBool("render")
		if !render {
			fmt.Fprint(cmd.OutOrStdout(), raw)
			return nil
		}

		dir, err := workDir()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd, dir)
		if err != nil {
			return err
		}
		info := project.Info{
			Name:            cfg.Project.Name,
			Description:     cfg.Project.Description,
			Features:        cfg.Project.Features,
			TechnologyStack: project.ResolveStack(cfg.Project.TechnologyStack),
		}
		text, err := pipeline.Render(raw, pipeline.Stage{Name: name, Role: constants.StageRoles[name]}, info, nil)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	promptCmd.Flags().Bool("render", false, "Render the template with the project from crewgen.toml")
	rootCmd.AddCommand(promptCmd)
}
