package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExtractionError is a typed pipeline error carrying the taxonomy kind and
// the location it happened at.
type ExtractionError struct {
	Kind      ErrorKind `json:"kind"`
	Op        string    `json:"op"`
	Path      string    `json:"path,omitempty"`
	Question  int       `json:"question,omitempty"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorKind classifies an error by how far its damage reaches
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindParse covers a single anchor, region or crop. Skipped locally.
	KindParse
	// KindBatch covers an unreadable PDF or missing companion file. The batch is skipped.
	KindBatch
	// KindPersistence covers ledger, manifest and counter writes.
	KindPersistence
	// KindFatal aborts the run.
	KindFatal
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

// Error implements the error interface
func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind.String(), e.Op)
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Question > 0 {
		fmt.Fprintf(&b, " (question %d)", e.Question)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "PARSE"
	case KindBatch:
		return "BATCH"
	case KindPersistence:
		return "PERSISTENCE"
	case KindFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Severity returns the severity level for a given kind
func (k ErrorKind) Severity() ErrorSeverity {
	switch k {
	case KindParse:
		return SeverityWarning
	case KindBatch:
		return SeverityError
	case KindPersistence:
		return SeverityCritical
	case KindFatal:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the run can continue past an error of this kind
func (k ErrorKind) IsRecoverable() bool {
	switch k {
	case KindParse, KindBatch:
		return true
	default:
		return false
	}
}

func newError(kind ErrorKind, op, path string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Op: op, Path: path, Err: err, Timestamp: time.Now()}
}

// ParseError reports a failure confined to one question
func ParseError(op string, question int, err error) *ExtractionError {
	e := newError(KindParse, op, "", err)
	e.Question = question
	return e
}

// BatchError reports a failure that skips a whole batch
func BatchError(op, path string, err error) *ExtractionError {
	return newError(KindBatch, op, path, err)
}

// PersistenceError reports a failed write of persisted state
func PersistenceError(op, path string, err error) *ExtractionError {
	return newError(KindPersistence, op, path, err)
}

// FatalError reports a condition that must abort the run
func FatalError(op, path string, err error) *ExtractionError {
	return newError(KindFatal, op, path, err)
}

// KindOf returns the kind of the first ExtractionError in err's chain
func KindOf(err error) ErrorKind {
	var e *ExtractionError
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain holds an ExtractionError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorCollection gathers the non-fatal errors of one batch
type ErrorCollection struct {
	Errors   []*ExtractionError `json:"errors"`
	Warnings []*ExtractionError `json:"warnings"`
	FilePath string             `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*ExtractionError, 0),
		Warnings: make([]*ExtractionError, 0),
		FilePath: filePath,
	}
}

// Add files an error by severity
func (ec *ErrorCollection) Add(err *ExtractionError) {
	if err.Path == "" && ec.FilePath != "" {
		err.Path = ec.FilePath
	}
	severity := err.Kind.Severity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
