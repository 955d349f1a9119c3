// Package app wires configuration, logging, the workspace, the repository
// and the journal into a commit engine.
package app

import (
	"path/filepath"

	"treecommit/internal/commit"
	"treecommit/internal/config"
	"treecommit/internal/journal"
	"treecommit/internal/logging"
	"treecommit/internal/remote"
	"treecommit/internal/remote/gitstore"
	"treecommit/internal/storage"
	"treecommit/internal/workspace"

	"go.uber.org/zap"
)

type Params struct {
	// Workspace is the working tree root.
	Workspace string
	// Repository is the git repository to commit into. Relative paths are
	// taken from the workspace; empty means the workspace itself.
	Repository string
	Ref        string
}

type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Workspace *workspace.Workspace
	Store     *gitstore.Store
	Repo      remote.Repository
	// Journal is nil when disabled.
	Journal *journal.Journal
}

// New builds an App. The caller owns the returned App and must Close it.
func New(cfg *config.Config, logger *logging.Logger, p Params) (*App, error) {
	ws, err := workspace.Open(p.Workspace, logger)
	if err != nil {
		return nil, err
	}

	repoPath := p.Repository
	switch {
	case repoPath == "":
		repoPath = ws.Root()
	case !filepath.IsAbs(repoPath):
		repoPath = filepath.Join(ws.Root(), repoPath)
	}

	store, err := gitstore.Open(repoPath, p.Ref,
		gitstore.WithSignature(cfg.Committer.Name, cfg.Committer.Email))
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Workspace: ws,
		Store:     store,
		Repo: remote.Chain(store,
			remote.WithLogging(logger.Named("remote")),
			remote.WithTreeCache(cfg.TreeCacheSize),
			remote.WithRecover(logger),
		),
	}

	if !cfg.Journal.Disabled && cfg.Journal.Path != "" {
		opts := storage.DefaultCompressionOptions()
		opts.MinSize = cfg.Journal.MinSize
		a.Journal, err = journal.Open(cfg.Journal.Path, opts, logger)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("initialized",
		zap.String("workspace", ws.Root()),
		zap.String("repository", repoPath),
		zap.String("ref", store.Ref()),
		zap.Int("workers", cfg.Workers))
	return a, nil
}

// Engine returns a commit engine over the App's components.
func (a *App) Engine() *commit.Engine {
	e := &commit.Engine{
		Workspace: a.Workspace,
		Repo:      a.Repo,
		Logger:    a.Logger,
		Workers:   a.Config.Workers,
	}
	if a.Journal != nil {
		e.Journal = a.Journal
	}
	return e
}

func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}
