package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"callgraph/internal/draw"
	"callgraph/internal/errors"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
)

// CallgraphCmd draws call graphs.
var CallgraphCmd = relationCmd("callgraph", "Draw who calls whom", draw.KindCallgraph, true)

// TypesCmd draws type hierarchies.
var TypesCmd = relationCmd("types", "Draw supertypes and subtypes", draw.KindTypeHierarchy, true)

// FilesCmd draws file hierarchies. There is no symbol scope: references are
// collected per file.
var FilesCmd = relationCmd("files", "Draw which files reference which", draw.KindFileHierarchy, false)

func relationCmd(use, short string, kind draw.Kind, withSymbol bool) *cobra.Command {
	parent := &cobra.Command{
		Use:   use,
		Short: short,
	}
	parent.PersistentFlags().String("filter", "", "Drop edges with an endpoint outside this path")

	parent.AddCommand(&cobra.Command{
		Use:   "file PATH",
		Short: "One level per symbol declared in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(cmd, draw.Request{Kind: kind, Scope: draw.ScopeFile, Target: args[0]})
		},
	})

	parent.AddCommand(&cobra.Command{
		Use:   "folder PATH",
		Short: "One level per symbol declared in every file below a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(cmd, draw.Request{Kind: kind, Scope: draw.ScopeFolder, Target: args[0]})
		},
	})

	if withSymbol {
		symbolCmd := &cobra.Command{
			Use:   "symbol PATH[:LINE[:COLUMN]]",
			Short: "Walk recursively from one symbol",
			Long: `Walk the relation recursively in both directions from one symbol.

The symbol is located either by a one-based LINE and COLUMN, as editors show
them, or by --name.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, pos, err := parseLocation(args[0])
				if err != nil {
					return err
				}
				name, _ := cmd.Flags().GetString("name")
				if pos == nil && name == "" {
					return errors.NewInvalidRequestError("give a position as PATH:LINE:COLUMN or a symbol --name")
				}
				return runDraw(cmd, draw.Request{Kind: kind, Scope: draw.ScopeSymbol, Target: path, Position: pos, Symbol: name})
			},
		}
		symbolCmd.Flags().String("name", "", "Name of a symbol declared in PATH")
		parent.AddCommand(symbolCmd)
	}
	return parent
}

func runDraw(cmd *cobra.Command, req draw.Request) error {
	ctx := cmd.Context()
	req.FilterPath, _ = cmd.Flags().GetString("filter")

	rt, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	snap, err := rt.draws.Draw(ctx, req)
	if err != nil {
		return err
	}
	if snap.ID == "" {
		logger.Logger.Warnw("interrupted, printing the partial graph without storing it")
	}
	return rt.print(cmd, snap)
}

// parseLocation splits PATH[:LINE[:COLUMN]] and converts the one-based line
// and column to a zero-based position. Without a line, pos is nil.
func parseLocation(arg string) (string, *lsp.Position, error) {
	parts := strings.Split(arg, ":")
	var nums []int
	for len(parts) > 1 && len(nums) < 2 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	path := strings.Join(parts, ":")
	if path == "" {
		return "", nil, errors.NewInvalidRequestError("missing path in %q", arg)
	}
	if len(nums) == 0 {
		return path, nil, nil
	}
	for _, n := range nums {
		if n < 1 {
			return "", nil, errors.NewInvalidRequestError("line and column are one-based, got %q", arg)
		}
	}
	pos := &lsp.Position{Line: nums[0] - 1}
	if len(nums) == 2 {
		pos.Character = nums[1] - 1
	}
	return path, pos, nil
}
