package commands

import (
	"github.com/spf13/cobra"

	"callgraph/internal/graph"
)

// RollupCmd folds a stored file hierarchy into folders.
var RollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Fold a stored file hierarchy into folders",
	Long: `Fold the files of a stored file hierarchy into folders two levels deep.

Expanded folders show their contents one level deeper. The expanded set is
remembered with the snapshot, so repeated calls refine the same view.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, _ := cmd.Flags().GetString("snapshot")
		expand, _ := cmd.Flags().GetStringSlice("expand")
		collapse, _ := cmd.Flags().GetStringSlice("collapse")

		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		snap, rolled, err := rt.draws.Rollup(ctx, id, expand, collapse)
		if err != nil {
			return err
		}
		return rt.print(cmd, struct {
			SnapshotID string       `json:"snapshot_id" yaml:"snapshot_id"`
			Expanded   []string     `json:"expanded" yaml:"expanded"`
			Graph      *graph.Graph `json:"graph" yaml:"graph"`
		}{snap.ID, snap.Expanded, rolled})
	},
}

func init() {
	RollupCmd.Flags().String("snapshot", "", "Snapshot id (default: latest)")
	RollupCmd.Flags().StringSlice("expand", nil, "Folders to expand, relative to the workspace root")
	RollupCmd.Flags().StringSlice("collapse", nil, "Folders to collapse along with their expanded descendants")
}
