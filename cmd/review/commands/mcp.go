package commands

import (
	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/mcpserver"
)

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the stream normalizer and history as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol.
			if err := g.setupLogging(false, cmd.ErrOrStderr()); err != nil {
				return err
			}
			s := mcpserver.New(Version, mcpserver.Options{
				DBPath: g.cfg.DBPath,
				Stream: g.streamOptions(),
			})
			return s.ServeStdio()
		},
	}
}
