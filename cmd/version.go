package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of crewgen",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if commit != "" && date != "" {
			fmt.Fprintf(out, "crewgen version %s (commit %s, built %s)\n", version, commit, date)
		} else {
			fmt.Fprintf(out, "crewgen version %s\n", version)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
