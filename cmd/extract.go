package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/materialize"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Write the Path:/Code: file blocks of a document",
	Long:  "Reads an LLM response (or - for stdin) and writes every file block it contains below --dir.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}

		dir, _ := cmd.Flags().GetString("dir")
		out := cmd.OutOrStdout()
		m := materialize.NewForDir(dir, materialize.Options{Status: out})

		s := m.ExtractAndWriteAll(string(data))
		fmt.Fprintf(out, "\nWrote %d of %d file(s) (identical %d, rejected %d, failed %d)\n",
			s.Written, s.Blocks, s.Identical, s.Rejected, s.Failed)
		if s.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to write", s.Failed)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().String("dir", ".", "Directory the file paths are relative to")
	rootCmd.AddCommand(extractCmd)
}
