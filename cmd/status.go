package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/lock"
	"github.com/brightfame/crewgen/internal/manifest"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-dir]",
	Short: "Show the last generation run of a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := argDir(args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if l, err := lock.Read(dir); err == nil {
			fmt.Fprintf(out, "A run is in progress (pid %d, started %s)\n\n", l.PID, formatRelativeTime(l.AcquiredAt))
		}

		mf, err := manifest.Load(dir)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "No generation runs recorded in %s\n", dir)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Project:  %s\n", mf.Project)
		fmt.Fprintf(out, "Status:   %s\n", mf.Status)
		if mf.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", mf.Error)
		}
		fmt.Fprintf(out, "Finished: %s (took %s)\n", formatRelativeTime(mf.FinishedAt), formatDuration(mf.FinishedAt.Sub(mf.StartedAt)))
		fmt.Fprintf(out, "Files:    %d\n\n", len(mf.Files))

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tROLE\tTOOL CALLS\tBLOCKS\tWRITTEN\tIDENTICAL\tREJECTED\tFAILED")
		for _, s := range mf.Stages {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				s.Name, s.Role, s.ToolCalls, s.Blocks, s.Written, s.Identical, s.Rejected, s.Failed)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
