package commands

import (
	"github.com/spf13/cobra"

	"callgraph/internal/draw"
	"callgraph/internal/graph"
)

// TreeCmd projects a stored file hierarchy through its directory tree.
var TreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Project a stored file hierarchy through its directory tree",
	Long: `Project the files of a stored file hierarchy through their directory tree.

Files under a collapsed directory merge into one node for it. Flags apply in
order: --collapse-all, --collapse, --expand, --expand-till, then --isolate,
which keeps only the nodes below one directory. The visible tree entries are
printed alongside the graph; --focus also reports the entries around one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, _ := cmd.Flags().GetString("snapshot")
		var view draw.TreeView
		view.CollapseAll, _ = cmd.Flags().GetBool("collapse-all")
		view.Collapse, _ = cmd.Flags().GetStringSlice("collapse")
		view.Expand, _ = cmd.Flags().GetStringSlice("expand")
		view.ExpandTill, _ = cmd.Flags().GetString("expand-till")
		view.Isolate, _ = cmd.Flags().GetString("isolate")
		view.Focus, _ = cmd.Flags().GetString("focus")

		rt, err := openOffline(cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		res, err := rt.draws.Directories(ctx, id, view)
		if err != nil {
			return err
		}
		return rt.print(cmd, struct {
			SnapshotID string       `json:"snapshot_id" yaml:"snapshot_id"`
			Entries    []string     `json:"entries" yaml:"entries"`
			Prev       string       `json:"prev,omitempty" yaml:"prev,omitempty"`
			Next       string       `json:"next,omitempty" yaml:"next,omitempty"`
			Graph      *graph.Graph `json:"graph" yaml:"graph"`
		}{res.Snapshot.ID, res.Entries, res.Prev, res.Next, res.Graph})
	},
}

func init() {
	TreeCmd.Flags().String("snapshot", "", "Snapshot id (default: latest)")
	TreeCmd.Flags().Bool("collapse-all", false, "Collapse every directory first")
	TreeCmd.Flags().StringSlice("collapse", nil, "Directories to collapse, relative to the workspace root")
	TreeCmd.Flags().StringSlice("expand", nil, "Directories to expand")
	TreeCmd.Flags().String("expand-till", "", "Expand every ancestor directory of this file")
	TreeCmd.Flags().String("isolate", "", "Only show nodes below this directory")
	TreeCmd.Flags().String("focus", "", "Report the entries before and after this one")
}
