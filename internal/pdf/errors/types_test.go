package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		kind        ErrorKind
		name        string
		severity    ErrorSeverity
		recoverable bool
	}{
		{KindParse, "PARSE", SeverityWarning, true},
		{KindBatch, "BATCH", SeverityError, true},
		{KindPersistence, "PERSISTENCE", SeverityCritical, false},
		{KindFatal, "FATAL", SeverityFatal, false},
		{KindUnknown, "UNKNOWN", SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.severity, tt.kind.Severity())
			assert.Equal(t, tt.recoverable, tt.kind.IsRecoverable())
		})
	}
}

func TestExtractionError_WrapsAndFormats(t *testing.T) {
	inner := errors.New("file locked")
	err := fmt.Errorf("saving: %w", PersistenceError("append ledger", "bank.csv", inner))

	assert.ErrorIs(t, err, inner)
	assert.True(t, IsKind(err, KindPersistence))
	assert.False(t, IsKind(err, KindBatch))
	assert.Contains(t, err.Error(), "[PERSISTENCE] append ledger bank.csv: file locked")

	q := ParseError("crop", 12, inner)
	assert.Equal(t, "[PARSE] crop (question 12): file locked", q.Error())
	assert.Equal(t, KindUnknown, KindOf(inner))
}

func TestGuard(t *testing.T) {
	err := Guard("render", 7, func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParse))
	assert.Contains(t, err.Error(), "question 7")

	assert.NoError(t, Guard("render", 7, func() error { return nil }))
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection("paper.pdf")
	assert.Equal(t, "No errors or warnings", ec.Summary())

	ec.Add(ParseError("crop", 3, errors.New("empty crop")))
	ec.Add(BatchError("answer key", "", errors.New("missing")))

	errs, warns := ec.Count()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, warns)
	assert.Equal(t, "paper.pdf", ec.Errors[0].Path)
	assert.Equal(t, "Found 1 error(s) and 1 warning(s)", ec.Summary())
}
