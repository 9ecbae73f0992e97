package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
)

// Counter file keys.
const (
	KeyLastUniqueID   = "last_unique_id"
	keyLegacyLatestID = "latest_question_id"
	KeyBasePath       = "BASE_PATH"
)

// IdAllocator hands out globally unique, monotonic question IDs backed by
// the shared JSON counter file. Every other key in the file is preserved.
type IdAllocator struct {
	mu     sync.Mutex
	path   string
	fields map[string]json.RawMessage
	last   int
}

// OpenCounter loads the counter file. A missing file is a fatal error
// unless create is set, in which case a counter starting at zero is written.
func OpenCounter(path string, create bool) (*IdAllocator, error) {
	a := &IdAllocator{path: path, fields: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := a.persist(0); err != nil {
			return nil, err
		}
		return a, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, qerrors.FatalError("open counter", path,
			fmt.Errorf("counter file missing; run with --init-counter to create it: %w", err))
	case err != nil:
		return nil, qerrors.FatalError("open counter", path, err)
	}

	if err := json.Unmarshal(data, &a.fields); err != nil {
		return nil, qerrors.FatalError("parse counter", path, err)
	}
	if a.fields == nil {
		a.fields = make(map[string]json.RawMessage)
	}
	for _, key := range []string{KeyLastUniqueID, keyLegacyLatestID} {
		raw, ok := a.fields[key]
		if !ok {
			continue
		}
		n, err := parseCount(raw)
		if err != nil {
			return nil, qerrors.FatalError("parse counter", path, fmt.Errorf("%s: %w", key, err))
		}
		a.last = n
		break
	}
	return a, nil
}

// parseCount accepts a JSON number or a numeric string.
func parseCount(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		n = json.Number(s)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid id %s", n)
	}
	return int(f), nil
}

// Last returns the most recently allocated ID.
func (a *IdAllocator) Last() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// BasePath returns the BASE_PATH entry, if any.
func (a *IdAllocator) BasePath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s string
	if raw, ok := a.fields[KeyBasePath]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Next allocates an ID. The counter file is updated before the ID is
// returned, so an ID is never handed out twice across restarts.
func (a *IdAllocator) Next() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.last + 1
	if err := a.persist(next); err != nil {
		return 0, err
	}
	a.last = next
	return next, nil
}

// Checkpoint rewrites the counter file with the current value.
func (a *IdAllocator) Checkpoint() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persist(a.last)
}

func (a *IdAllocator) persist(value int) error {
	a.fields[KeyLastUniqueID] = json.RawMessage(strconv.Itoa(value))
	data, err := json.MarshalIndent(a.fields, "", "    ")
	if err != nil {
		return qerrors.PersistenceError("encode counter", a.path, err)
	}
	if err := writeFileAtomic(a.path, append(data, '\n'), 0o644); err != nil {
		return qerrors.PersistenceError("save counter", a.path, lockHint(err))
	}
	return nil
}

// lockHint adds the usual cause of a permission failure on shared files.
func lockHint(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w (is the file open in another application?)", err)
	}
	return err
}
