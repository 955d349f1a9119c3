// Package journal keeps a local history of commit runs: what was selected,
// what was created remotely and how the run ended.
package journal

import (
	"fmt"
	"sort"
	"time"

	"treecommit/internal/logging"
	"treecommit/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const runPrefix = "run"

type Status string

const (
	StatusCommitted Status = "committed"
	StatusSkipped   Status = "skipped"
	StatusDryRun    Status = "dry_run"
	StatusFailed    Status = "failed"
)

// Entry is one blob placed in the committed tree.
type Entry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ID          string `json:"id"`
	Mode        string `json:"mode"`
}

type Run struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Target    string    `json:"target,omitempty"`
	Include   []string  `json:"include,omitempty"`
	Exclude   []string  `json:"exclude,omitempty"`
	Flatten   bool      `json:"flatten"`
	Force     bool      `json:"force"`
	Always    bool      `json:"always"`
	DryRun    bool      `json:"dry_run"`
	Base      string    `json:"base,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	Status    Status    `json:"status"`
	Unchanged int       `json:"unchanged"`
	Entries   []Entry   `json:"entries,omitempty"`
	Degraded  []string  `json:"degraded,omitempty"` // subtrees that could not be scanned
	Orphans   []string  `json:"orphans,omitempty"`  // blobs created by a run that did not commit them
	Error     string    `json:"error,omitempty"`
	ErrorType string    `json:"error_type,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func (r *Run) GetID() string {
	return r.ID
}

func (r *Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

type Journal struct {
	db     *badger.DB
	runs   *storage.BadgerStore
	logger *logging.Logger
}

// Open opens the journal in dir; an empty dir keeps it in memory.
func Open(dir string, opts storage.CompressionOptions, logger *logging.Logger) (*Journal, error) {
	db, err := storage.Open(dir)
	if err != nil {
		return nil, err
	}

	runs, err := storage.NewBadgerStore(db, runPrefix, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, runs: runs, logger: logger.Named("journal")}, nil
}

// Record stores a finished run, assigning an id when it has none.
func (j *Journal) Record(run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.EndedAt.IsZero() {
		run.EndedAt = time.Now().UTC()
	}

	if err := j.runs.Create(run); err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	j.logger.Debug("recorded run",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("entries", len(run.Entries)),
		zap.Int("orphans", len(run.Orphans)))
	return nil
}

func (j *Journal) Get(id string) (*Run, error) {
	var run Run
	if err := j.runs.Get(id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns every run, most recent first.
func (j *Journal) List() ([]*Run, error) {
	var runs []*Run
	if err := j.runs.List(&runs); err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].StartedAt.After(runs[b].StartedAt)
	})
	return runs, nil
}

// IDs returns every run id without decoding the runs.
func (j *Journal) IDs() ([]string, error) {
	return j.runs.IDs()
}

// Orphans returns the ids of blobs that failed runs left in the remote
// store, without duplicates.
func (j *Journal) Orphans() ([]string, error) {
	runs, err := j.List()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var orphans []string
	for _, run := range runs {
		for _, id := range run.Orphans {
			if !seen[id] {
				seen[id] = true
				orphans = append(orphans, id)
			}
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

func (j *Journal) Close() error {
	j.runs.Close()
	return j.db.Close()
}
