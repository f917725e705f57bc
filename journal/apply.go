package journal

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/chinarulezzz/repqlite/database"
)

// Apply replays the journal at patchPath, starting at offset, onto the
// database file dbPath. A statement that fails is logged and skipped; the
// replay continues with the next one.
func Apply(dbPath, patchPath string, offset int64) error {
	lock := flock.New(patchPath + ".lock")
	if err := lock.RLock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.Open(patchPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sc := newScanner(f)
	for {
		stmt, err := sc.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if _, err := db.DB().Exec(stmt); err != nil {
			slog.Warn("statement failed during replay", "error", err, "statement", trimmed)
		}
	}
}

// scanner splits journal text into statements. Statements are
// newline-terminated, but a statement may contain embedded newlines inside
// a quoted string; a line only ends a statement when the scanner is
// outside both quote kinds.
type scanner struct {
	r *bufio.Reader
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReader(r)}
}

func (s *scanner) next() (string, error) {
	var b strings.Builder
	inSingle, inDouble := false, false
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			if b.Len() > 0 {
				return b.String(), nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '\n' && !inSingle && !inDouble:
			return b.String(), nil
		}
		b.WriteByte(c)
	}
}
