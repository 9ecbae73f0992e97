package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/pdf"
)

// Candidate statuses written to the diagnostics file.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

var diagnosticsHeader = []string{
	"batch", "source", "section", "page", "column", "number", "text", "x", "top", "strong", "status", "rule",
}

// Diagnostics appends every anchor candidate of a batch, accepted or not,
// to a CSV file for layout tuning.
type Diagnostics struct {
	mu   sync.Mutex
	path string
}

// NewDiagnostics returns a writer for path. The file is created on the
// first write.
func NewDiagnostics(path string) *Diagnostics {
	return &Diagnostics{path: path}
}

// Path returns the diagnostics file path.
func (d *Diagnostics) Path() string {
	return d.path
}

// Write records one analysis.
func (d *Diagnostics) Write(batch int, source string, a *pdf.Analysis) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, statErr := os.Stat(d.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open diagnostics: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(diagnosticsHeader); err != nil {
			return fmt.Errorf("write diagnostics header: %w", err)
		}
	}
	for _, row := range diagnosticRows(batch, source, a) {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write diagnostics: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func diagnosticRows(batch int, source string, a *pdf.Analysis) [][]string {
	b := strconv.Itoa(batch)
	var rows [][]string
	accepted := func(section string, anchors []anchor.Anchor) {
		for _, an := range anchors {
			rows = append(rows, []string{
				b, source, section,
				strconv.Itoa(an.PageIndex + 1), strconv.Itoa(an.Column), strconv.Itoa(an.QuestionNumber),
				an.Text, formatPoint(an.X), formatPoint(an.Top), strconv.FormatBool(an.Strong),
				StatusAccepted, "",
			})
		}
	}
	rejected := func(section string, rejections []anchor.Rejection) {
		for _, r := range rejections {
			rows = append(rows, []string{
				b, source, section,
				strconv.Itoa(r.PageIndex + 1), strconv.Itoa(r.Column), strconv.Itoa(r.Number),
				r.Text, formatPoint(r.X), formatPoint(r.Top), "",
				StatusRejected, r.Rule,
			})
		}
	}

	accepted("questions", a.Sections.Questions)
	accepted("solutions", a.Sections.Solutions)
	rejected("detection", a.Rejections)
	rejected("sequence", a.Sections.Dropped)
	return rows
}

func formatPoint(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
