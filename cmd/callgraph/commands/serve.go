package commands

import (
	"github.com/spf13/cobra"

	"callgraph/internal/logger"
	"callgraph/internal/server"
)

// Version is reported to MCP clients.
var Version = "dev"

// ServeCmd serves the drawing tools over MCP.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the drawing tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		srv := server.New(rt.draws, server.Options{
			Version: Version,
			Format:  rt.format,
			Logger:  logger.Named("server"),
		})
		return srv.Run(ctx)
	},
}
