// Package commands implements the callgraph subcommands.
package commands

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"callgraph/internal/config"
	"callgraph/internal/draw"
	"callgraph/internal/errors"
	"callgraph/internal/explorer"
	"callgraph/internal/files"
	"callgraph/internal/logger"
	"callgraph/internal/lsp"
	"callgraph/internal/render"
	"callgraph/internal/retry"
	"callgraph/internal/store"
	"callgraph/util"
)

// runtime is everything a command needs, built from the configuration.
type runtime struct {
	cfg    *config.Config
	root   string
	format render.Format
	store  *store.Store
	client *lsp.Client
	draws  *draw.Service
}

// loadConfig reads the configuration named by --config and applies --output.
func loadConfig(cmd *cobra.Command) (*config.Config, render.Format, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	format := cfg.Output.Format
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		format = out
	}
	f, err := render.ParseFormat(format)
	if err != nil {
		return nil, "", err
	}
	return cfg, f, nil
}

// workspaceRoot is the configured root, else the enclosing git repository,
// else the working directory.
func workspaceRoot(cfg *config.Config) (string, error) {
	if cfg.Workspace.Root != "" {
		return filepath.Abs(cfg.Workspace.Root)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get working directory")
	}
	if root, err := util.FindGitRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

// openOffline builds a runtime without a language server, for commands that
// only read stored snapshots.
func openOffline(cmd *cobra.Command) (*runtime, error) {
	cfg, format, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root, err := workspaceRoot(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, root: root, format: format, store: st}
	rt.draws = draw.New(nil, st, draw.Options{Logger: logger.Named("draw")})
	return rt, nil
}

// open builds a runtime connected to the workspace language server.
func open(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	rt, err := openOffline(cmd)
	if err != nil {
		return nil, err
	}
	if err := rt.connect(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) connect(ctx context.Context) error {
	log := logger.Named("lsp")
	lang := rt.cfg.LSP.Language
	if lang == "" {
		paths, err := files.List(ctx, rt.root)
		if err != nil {
			return err
		}
		if lang, err = lsp.DetectLanguage(paths); err != nil {
			return errors.WithHint(err, "set lsp.language in the config")
		}
	}
	meta, err := lsp.GetServerMetadata(lang)
	if err != nil {
		return err
	}
	command, err := lsp.ResolveServer(lang, rt.cfg.LSP.Command)
	if err != nil {
		return err
	}
	args := meta.Args
	if len(rt.cfg.LSP.Args) > 0 {
		args = rt.cfg.LSP.Args
	}

	log.Infow("starting language server", logger.FieldBinary, command, logger.FieldWorkspace, rt.root)
	client, err := lsp.Start(lsp.ClientConfig{
		Command:           command,
		Args:              args,
		RootDir:           rt.root,
		RequestsPerSecond: rt.cfg.Oracle.RequestsPerSecond,
		RequestTimeout:    rt.cfg.RequestTimeout(),
		Logger:            log,
	})
	if err != nil {
		return err
	}
	rt.client = client
	if err := client.Initialize(ctx); err != nil {
		return err
	}

	oracle := explorer.NewRetryingOracle(explorer.ClientOracle(client), retry.Options{
		MaxRetries: rt.cfg.Oracle.MaxRetries,
		Delay:      rt.cfg.RetryDelay(),
	}, logger.Named("retry"))

	progress := logger.Named("progress")
	rt.draws = draw.New(oracle, rt.store, draw.Options{
		Explorer: explorer.Options{
			FilterByPath: rt.cfg.Workspace.FilterPath,
			Root:         rt.root,
			CallableOnly: rt.cfg.Explorer.CallableOnly,
			Snippets:     rt.cfg.Explorer.Snippets,
			OnProgress: func(p explorer.Progress) {
				progress.Debugw(p.Message, "increment", p.Increment)
			},
			Logger: logger.Named("explorer"),
		},
		Extensions: meta.Extensions,
		Workers:    rt.cfg.Explorer.Workers,
		Logger:     logger.Named("draw"),
	})
	return nil
}

// Close shuts the language server down and closes the store.
func (rt *runtime) Close(ctx context.Context) {
	if rt.client != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := rt.client.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Debugw("language server shutdown failed", logger.FieldError, err)
		}
		cancel()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

// print writes v to the command's stdout in the selected format.
func (rt *runtime) print(cmd *cobra.Command, v interface{}) error {
	return render.Write(cmd.OutOrStdout(), rt.format, v)
}
