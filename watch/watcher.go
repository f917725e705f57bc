// Package watch turns filesystem events on the watched directory into a
// stream of database file names for the change controller.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind selects which event mask triggers a diff.
type EventKind int

const (
	// CloseWrite reacts once a writer has finished: write events are
	// debounced by a settle window, approximating close-after-write on
	// top of the portable watcher.
	CloseWrite EventKind = iota
	// Modify reacts to each write, after a short sleep that lets the
	// engine release its file lock.
	Modify
)

// ParseEventKind maps the --event flag values.
func ParseEventKind(s string) (EventKind, bool) {
	switch s {
	case "close_write", "":
		return CloseWrite, true
	case "modify":
		return Modify, true
	}
	return CloseWrite, false
}

const (
	writeSettle = 200 * time.Millisecond
	lockSettle  = 250 * time.Millisecond
)

// Watcher delivers the base names of databases written under dir.
type Watcher struct {
	fw     *fsnotify.Watcher
	dir    string
	kind   EventKind
	events chan string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(dir string, kind EventKind) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		fw:     fw,
		dir:    dir,
		kind:   kind,
		events: make(chan string, 64),
		timers: map[string]*time.Timer{},
	}, nil
}

// Events is the stream of database base names to reconcile.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run forwards eligible events until ctx is cancelled (returns nil) or
// the watcher fails (returns the error).
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !Eligible(name) {
				continue
			}
			if st, err := os.Stat(ev.Name); err != nil || st.IsDir() {
				continue
			}
			switch w.kind {
			case Modify:
				// Give the engine a moment to release its write lock.
				time.Sleep(lockSettle)
				w.deliver(name)
			case CloseWrite:
				w.bump(name)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Eligible reports whether a file name belongs to a database we replicate.
// The engine's rollback journals share the directory and must not trigger
// diffs of themselves.
func Eligible(name string) bool {
	return name != "" && !strings.Contains(name, "-journal")
}

func (w *Watcher) deliver(name string) {
	w.events <- name
}

// bump re-arms the settle timer for name; the name is delivered only once
// writes have stopped for a full window.
func (w *Watcher) bump(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(writeSettle, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()
		w.deliver(name)
	})
}
