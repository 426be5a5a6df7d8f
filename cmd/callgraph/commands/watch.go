package commands

import (
	"context"

	"github.com/spf13/cobra"

	"callgraph/internal/draw"
	"callgraph/internal/logger"
	"callgraph/internal/session"
)

// WatchCmd keeps the call graph of one file current.
var WatchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Redraw the call graph of a file whenever it is saved",
	Long: `Draw the call graph of FILE, then redraw it every time the file is written.
Each graph is stored as a snapshot and printed. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := open(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		s := session.New(func(ctx context.Context, file string) error {
			snap, err := rt.draws.Draw(ctx, draw.Request{Kind: draw.KindCallgraph, Scope: draw.ScopeFile, Target: file})
			if err != nil {
				return err
			}
			if snap.ID == "" {
				return ctx.Err()
			}
			return rt.print(cmd, snap)
		}, session.Options{Logger: logger.Named("session")})

		if err := s.Start(ctx); err != nil {
			return err
		}
		defer s.Stop()

		if err := s.Activate(args[0]); err != nil {
			return err
		}
		logger.Logger.Infow("watching for changes", logger.FieldFile, s.Active())
		<-ctx.Done()
		return nil
	},
}
