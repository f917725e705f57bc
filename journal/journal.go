// Package journal maintains the per-database SCN-journal: an append-only
// text file of SQL patches, replayable from a recorded byte offset.
package journal

import (
	"io"
	"os"

	"github.com/gofrs/flock"
)

// Writer appends to a journal while tracking the byte offset at which the
// next write lands. The offset is the anchor handed to Apply.
type Writer struct {
	f    *os.File
	w    io.Writer
	lock *flock.Flock
	off  int64
}

// Create opens (or creates) the journal at path for appending and takes an
// advisory lock so concurrent controllers cannot interleave diffs.
func Create(path string) (*Writer, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, err
	}
	return &Writer{f: f, w: f, lock: lock, off: st.Size()}, nil
}

// NewWriter wraps an arbitrary stream, counting offsets from zero. Used
// for one-shot diffs to stdout.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.off += int64(n)
	return n, err
}

// Offset returns the byte position of the next write.
func (w *Writer) Offset() int64 {
	return w.off
}

func (w *Writer) Close() error {
	var err error
	if w.f != nil {
		err = w.f.Close()
	}
	if w.lock != nil {
		if uerr := w.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}
