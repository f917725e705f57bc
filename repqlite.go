// Package repqlite keeps live replicas of a directory of databases: each
// write to a primary is diffed against its backup, the diff is appended to
// a per-database journal, and the journal tail is replayed onto the backup.
package repqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/chinarulezzz/repqlite/database"
	"github.com/chinarulezzz/repqlite/diff"
	"github.com/chinarulezzz/repqlite/journal"
	"github.com/chinarulezzz/repqlite/watch"
)

// Options carries the settings shared by watch and one-shot modes.
type Options struct {
	Libs        []string // extension libraries to load into each connection
	SchemaPK    bool
	RBU         bool
	Transaction bool
	Event       watch.EventKind
	Debug       diff.Debug
	Output      string // one-shot mode journal path; empty means stdout

	TargetTables []string
	SkipTables   []string
}

func (o *Options) diffConfig() diff.Config {
	return diff.Config{
		SchemaPK:     o.SchemaPK,
		RBU:          o.RBU,
		Transaction:  o.Transaction,
		Debug:        o.Debug,
		TargetTables: o.TargetTables,
		SkipTables:   o.SkipTables,
	}
}

// DiffFiles opens db1 as main and db2 as aux, appends the statements
// transforming db1 into db2 to out, and returns the replay offset (-1 when
// the databases already match).
func DiffFiles(db1, db2 string, out *journal.Writer, opts *Options) (int64, error) {
	db, err := database.Open(db1)
	if err != nil {
		return -1, err
	}
	defer db.Close()

	if err := db.LoadExtensions(opts.Libs); err != nil {
		return -1, err
	}
	if err := db.Attach(db2, "aux"); err != nil {
		return -1, err
	}
	return diff.New(db, opts.diffConfig()).Diff(out)
}

// RunOnce diffs two databases and writes the result to opts.Output, or
// stdout when unset.
func RunOnce(db1, db2 string, opts *Options) error {
	var out *journal.Writer
	if opts.Output == "" {
		out = journal.NewWriter(os.Stdout)
	} else {
		var err error
		if out, err = journal.Create(opts.Output); err != nil {
			return err
		}
		defer out.Close()
	}
	_, err := DiffFiles(db1, db2, out, opts)
	return err
}

// Run watches dir and keeps <dir>/backup in sync with every database
// written under it, journalling each diff under <dir>/patches. It returns
// nil after an interrupt and an error on any fatal condition.
func Run(dir string, opts *Options) error {
	for _, sub := range []string{"backup", "patches"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}

	w, err := watch.New(dir, opts.Event)
	if err != nil {
		return err
	}

	// The interrupt handler only cancels the context; the loop below
	// notices at its next wakeup.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	slog.Info("watching", "dir", dir)
	for {
		select {
		case err := <-runErr:
			return err
		case name := <-w.Events():
			if err := handleChange(dir, name, opts); err != nil {
				return err
			}
		}
	}
}

// handleChange runs one diff+apply cycle for a freshly written primary.
func handleChange(dir, name string, opts *Options) error {
	newPath := filepath.Join(dir, name)
	oldPath := filepath.Join(dir, "backup", name)
	patchPath := filepath.Join(dir, "patches", name)

	out, err := journal.Create(patchPath)
	if err != nil {
		return err
	}
	offset, err := DiffFiles(oldPath, newPath, out, opts)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("diff %s: %w", name, err)
	}
	if offset < 0 {
		slog.Info("no differences", "database", name)
		return nil
	}

	slog.Info("patching backup", "database", name, "offset", offset)
	return journal.Apply(oldPath, patchPath, offset)
}
