// Package commit builds a single commit from a workspace against a remote
// reference.
package commit

import (
	"context"
	"time"

	"treecommit/internal/content"
	"treecommit/internal/errors"
	"treecommit/internal/journal"
	"treecommit/internal/logging"
	"treecommit/internal/pathmap"
	"treecommit/internal/remote"
	"treecommit/internal/workspace"

	"go.uber.org/zap"
)

// Recorder stores the outcome of each run.
type Recorder interface {
	Record(run *journal.Run) error
}

type Engine struct {
	Workspace *workspace.Workspace
	Repo      remote.Repository
	Logger    *logging.Logger
	// Workers bounds each parallel stage; <= 0 means unbounded.
	Workers int
	// Journal is optional.
	Journal Recorder
}

type Result struct {
	RunID string
	Base  *remote.Commit
	// CommitID is the new commit, or the base commit when nothing was
	// committed.
	CommitID  content.ContentID
	Committed bool
	DryRun    bool
	Changes   []Change
	Unchanged workspace.PathSet
	// Ignored lists selected directories and symlinks.
	Ignored []string
	Scan    *remote.ScanResult
	// Orphans are blobs this run created but did not commit.
	Orphans []content.ContentID
}

// Execute runs the whole pipeline: scan the base tree, select, map paths,
// build blobs, gate, and publish. The result is returned even on failure so
// callers can see what was created.
func (e *Engine) Execute(ctx context.Context, opts Options) (result *Result, err error) {
	result = &Result{RunID: journal.NewRunID(), DryRun: opts.DryRun}
	logger := e.Logger.WithRun(result.RunID)
	started := time.Now().UTC()

	defer func() {
		e.record(logger, opts, result, started, err)
	}()

	if err := opts.Validate(); err != nil {
		return result, err
	}

	scope, release, err := e.Workspace.Enter(opts.Source)
	if err != nil {
		return result, err
	}
	defer release()

	base, err := e.Repo.Head(ctx)
	if err != nil {
		return result, remoteError("read "+e.Repo.Ref(), err)
	}
	result.Base = base
	result.CommitID = base.ID
	logger.Info("resolved base commit", zap.String("ref", e.Repo.Ref()), zap.String("commit", base.ID.String()))

	scan, err := remote.Scan(ctx, e.Repo, base.Tree, e.Workers)
	if err != nil {
		return result, err
	}
	result.Scan = scan
	for _, f := range scan.Failed {
		logger.Warn("subtree scan failed, its files count as changed",
			zap.String("path", f.Path), zap.String("tree", f.ID.String()), zap.Error(f.Err))
	}

	result.Unchanged = ResolveUnchanged(ctx, scope, scan, e.Workers)

	include := workspace.CompilePatterns(opts.Include, logger)
	exclude := workspace.CompilePatterns(opts.Exclude, logger)
	set, err := workspace.Select(scope, include, exclude, result.Unchanged)
	if err != nil {
		return result, err
	}

	files, ignored := set.Files()
	for _, i := range ignored {
		result.Ignored = append(result.Ignored, i.Path)
	}

	candidates, err := e.plan(scope, opts, files)
	if err != nil {
		return result, err
	}
	logger.Info("selected files",
		zap.Int("candidates", len(candidates)),
		zap.Int("unchanged", len(result.Unchanged)),
		zap.Int("ignored", len(ignored)))

	builder := &BlobBuilder{
		Repo:    e.Repo,
		Scope:   scope,
		Index:   scan.Index(),
		Workers: e.Workers,
		DryRun:  opts.DryRun,
	}
	changes, created, err := builder.Build(ctx, candidates)
	if err != nil {
		result.Orphans = created
		return result, err
	}
	result.Changes = changes

	decision := Gate(opts.Always, len(changes))
	logger.Debug("gate", zap.Stringer("decision", decision), zap.Int("changes", len(changes)))
	if decision == Skip {
		logger.Info("no changes, keeping base commit", zap.String("commit", base.ID.String()))
		return result, nil
	}
	if opts.DryRun {
		logger.Info("dry run, nothing published", zap.Int("changes", len(changes)))
		return result, nil
	}

	c, err := Publish(ctx, e.Repo, base, changes, opts.Message, opts.Force)
	if err != nil {
		result.Orphans = created
		return result, err
	}
	result.CommitID = c.ID
	result.Committed = true

	logger.Info("published commit",
		zap.String("commit", c.ID.String()),
		zap.String("tree", c.Tree.String()),
		zap.Int("changes", len(changes)))
	return result, nil
}

// plan maps every file to its destination. Conflicts are detected over the
// whole set before any remote write.
func (e *Engine) plan(scope *workspace.Scope, opts Options, files []workspace.Entry) ([]Candidate, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = scope.WorkspacePath(f.Path)
	}

	mappings, err := pathmap.Plan(pathmap.New(scope.Source(), opts.Target, opts.Flatten), paths)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(files))
	for i, m := range mappings {
		candidates[i] = Candidate{
			Path:        files[i].Path,
			Source:      m.Source,
			Destination: m.Destination,
		}
	}
	return candidates, nil
}

func (e *Engine) record(logger *logging.Logger, opts Options, result *Result, started time.Time, err error) {
	if err != nil {
		logger.Error("commit failed",
			zap.String("type", string(errors.TypeOf(err))),
			zap.Int("orphans", len(result.Orphans)),
			zap.Error(err))
	}
	if e.Journal == nil {
		return
	}

	run := &journal.Run{
		ID:        result.RunID,
		Ref:       e.Repo.Ref(),
		Message:   opts.Message,
		Source:    opts.Source,
		Target:    opts.Target,
		Include:   opts.Include,
		Exclude:   opts.Exclude,
		Flatten:   opts.Flatten,
		Force:     opts.Force,
		Always:    opts.Always,
		DryRun:    opts.DryRun,
		Unchanged: len(result.Unchanged),
		StartedAt: started,
		EndedAt:   time.Now().UTC(),
	}
	if result.Base != nil {
		run.Base = result.Base.ID.String()
	}
	run.Commit = result.CommitID.String()

	for _, c := range result.Changes {
		run.Entries = append(run.Entries, journal.Entry{
			Source:      c.Source,
			Destination: c.Entry.Path,
			ID:          c.Entry.ID.String(),
			Mode:        c.Entry.Mode.String(),
		})
	}
	if result.Scan != nil {
		for _, f := range result.Scan.Failed {
			run.Degraded = append(run.Degraded, f.Path)
		}
	}
	for _, id := range result.Orphans {
		run.Orphans = append(run.Orphans, id.String())
	}

	switch {
	case err != nil:
		run.Status = journal.StatusFailed
		run.Error = err.Error()
		run.ErrorType = string(errors.TypeOf(err))
	case result.Committed:
		run.Status = journal.StatusCommitted
	case opts.DryRun && len(result.Changes) > 0:
		run.Status = journal.StatusDryRun
	default:
		run.Status = journal.StatusSkipped
	}

	if rerr := e.Journal.Record(run); rerr != nil {
		logger.Warn("failed to record run", zap.Error(rerr))
	}
}
