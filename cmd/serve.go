package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/brightfame/crewgen/internal/materialize"
	"github.com/brightfame/crewgen/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the file_writer tool over MCP stdio",
	Long:  "Runs a Model Context Protocol server on stdin/stdout so an agent CLI can create files below --dir.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		s, absDir, err := newMCPServer(dir)
		if err != nil {
			return err
		}
		slog.Info("serving file_writer over MCP stdio", "dir", absDir)
		return mcpserver.ServeStdio(s)
	},
}

// newMCPServer returns the server writing below dir, creating dir if needed.
func newMCPServer(dir string) (*server.MCPServer, string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", absDir, err)
	}

	// stdout carries the protocol; status lines are dropped and logs go to stderr.
	m := materialize.NewForDir(absDir, materialize.Options{Logger: slog.Default(), Status: io.Discard})
	return mcpserver.New(m, version), absDir, nil
}

func init() {
	serveCmd.Flags().String("dir", ".", "Project directory files are written to")
	rootCmd.AddCommand(serveCmd)
}
