package commands

import (
	"github.com/spf13/cobra"
)

// SnapshotsCmd manages stored graphs.
var SnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List, show, hide nodes of and delete stored graphs",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		infos, err := rt.store.List(ctx)
		if err != nil {
			return err
		}
		return rt.print(cmd, infos)
	},
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show [ID]",
	Short: "Print a snapshot (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		if len(args) == 0 {
			snap, err := rt.store.Latest(ctx)
			if err != nil {
				return err
			}
			return rt.print(cmd, snap)
		}
		snap, err := rt.store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		return rt.print(cmd, snap)
	},
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		for _, id := range args {
			if err := rt.store.Delete(ctx, id); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", id)
		}
		return nil
	},
}

var snapshotsHideCmd = &cobra.Command{
	Use:   "hide ID NODE...",
	Short: "Hide nodes of a stored graph by key or display name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		show, _ := cmd.Flags().GetBool("show")
		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		snap, err := rt.draws.Hide(ctx, args[0], args[1:], !show)
		if err != nil {
			return err
		}
		return rt.print(cmd, snap.Graph)
	},
}

func init() {
	snapshotsHideCmd.Flags().Bool("show", false, "Unhide the nodes instead")
	SnapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd, snapshotsDeleteCmd, snapshotsHideCmd)
}
