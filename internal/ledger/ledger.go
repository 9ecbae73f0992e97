package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
)

// Ledger appends question records to the output CSV. Appends are
// serialised so a single writer owns the file.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// OpenLedger returns a ledger writing to path. The file is created on the
// first append.
func OpenLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append writes records under the file's existing header, or under Columns
// for a new file. Columns unknown to the record are left blank.
func (l *Ledger) Append(records []QuestionRecord) error {
	if len(records) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return appendRecords(l.path, records)
}

func appendRecords(path string, records []QuestionRecord) error {
	header, err := readHeader(path)
	if err != nil {
		return qerrors.PersistenceError("read ledger header", path, lockHint(err))
	}
	fresh := header == nil
	if fresh {
		header = Columns
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if fresh {
		if err := w.Write(header); err != nil {
			return qerrors.PersistenceError("encode ledger", path, err)
		}
	}
	for _, r := range records {
		values := r.Values()
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = values[strings.TrimSpace(col)]
		}
		if err := w.Write(row); err != nil {
			return qerrors.PersistenceError("encode ledger", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return qerrors.PersistenceError("encode ledger", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return qerrors.PersistenceError("open ledger", path, lockHint(err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return qerrors.PersistenceError("stat ledger", path, err)
	}
	size := info.Size()
	data := buf.Bytes()
	if size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			f.Close()
			return qerrors.PersistenceError("read ledger", path, lockHint(err))
		}
		if last[0] != '\n' {
			data = append([]byte{'\n'}, data...)
		}
	}

	// The batch goes in as one write. A short write is cut back off so a
	// retry does not duplicate the rows that made it.
	if _, err := f.Write(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			err = errors.Join(err, fmt.Errorf("roll back partial append: %w", terr))
		}
		f.Close()
		return qerrors.PersistenceError("write ledger", path, lockHint(err))
	}
	if err := f.Close(); err != nil {
		return qerrors.PersistenceError("close ledger", path, lockHint(err))
	}
	return nil
}

// readHeader returns the first row of an existing, non-empty CSV, or nil.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return header, nil
}

// PendingPath is the sidecar file unsaved records are spilled to.
func PendingPath(ledgerPath string) string {
	return strings.TrimSuffix(ledgerPath, ".csv") + ".pending.csv"
}

// SpillPending appends records that could not be written to the ledger to
// its sidecar file, so they can be merged by hand.
func (l *Ledger) SpillPending(records []QuestionRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	path := PendingPath(l.path)
	return path, appendRecords(path, records)
}

// CountBatch returns how many ledger rows belong to the batch folder and
// came from source. Rows from ledgers without a source column match on the
// folder alone. A missing ledger holds none.
func (l *Ledger) CountBatch(folder, source string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := ReadRows(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, qerrors.PersistenceError("read ledger", l.path, lockHint(err))
	}
	n := 0
	for _, r := range rows {
		if r[ColFolder] != folder {
			continue
		}
		if s, ok := r[ColSourceFile]; ok && s != "" && s != source {
			continue
		}
		n++
	}
	return n, nil
}

// ReadRows loads a ledger (or any CSV with a header) as column-keyed rows.
func ReadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
