package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
)

// Manifest column names.
const (
	MColStartPage   = "pdf_start_pg"
	MColEndPage     = "pdf_end_pg"
	MColChapter     = "Chapter"
	MColSubject     = "Subject"
	MColTopic       = "Topic"
	MColTopicL2     = "Topic_L2"
	MColExam        = "Exam"
	MColPYQ         = "PYQ"
	MColDifficulty  = "Difficulty"
	MColPDF         = "pdf"
	MColAnswerKey   = "answer_key"
	MColSolutionPDF = "solution_pdf"
	MColProcessed   = "isProcessed"
)

// ManifestRow is one batch description.
type ManifestRow struct {
	// Index is the zero-based data row position in the manifest.
	Index       int    `json:"index"`
	PDF         string `json:"pdf,omitempty"`
	StartPage   int    `json:"start_page"` // 1-based, 0 when unset
	EndPage     int    `json:"end_page"`
	Chapter     string `json:"chapter"`
	Subject     string `json:"subject"`
	Topic       string `json:"topic,omitempty"`
	TopicL2     string `json:"topic_l2,omitempty"`
	Exam        string `json:"exam,omitempty"`
	PYQ         string `json:"pyq,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	AnswerKey   string `json:"answer_key,omitempty"`
	SolutionPDF string `json:"solution_pdf,omitempty"`
	Processed   bool   `json:"processed"`
}

// HasPageRange reports whether the row restricts the PDF to a page range.
func (r ManifestRow) HasPageRange() bool {
	return r.StartPage > 0 && r.EndPage >= r.StartPage
}

// Manifest is the input CSV, kept verbatim so it can be rewritten with
// only the isProcessed column changed.
type Manifest struct {
	mu      sync.Mutex
	path    string
	header  []string
	records [][]string
	cols    map[string]int
}

// LoadManifest reads the manifest. A missing isProcessed column is added
// with every row set to "No".
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.FatalError("open manifest", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, qerrors.FatalError("parse manifest", path, err)
	}
	if len(rows) == 0 {
		return nil, qerrors.FatalError("parse manifest", path, fmt.Errorf("manifest is empty"))
	}

	m := &Manifest{path: path, header: rows[0], records: rows[1:]}
	m.header[0] = strings.TrimPrefix(m.header[0], "\ufeff")
	m.indexColumns()
	if _, ok := m.cols[strings.ToLower(MColProcessed)]; !ok {
		m.header = append(m.header, MColProcessed)
		m.indexColumns()
	}
	width := len(m.header)
	for i, rec := range m.records {
		for len(rec) < width {
			rec = append(rec, "")
		}
		if v := &rec[m.cols[strings.ToLower(MColProcessed)]]; strings.TrimSpace(*v) == "" {
			*v = "No"
		}
		m.records[i] = rec
	}
	return m, nil
}

func (m *Manifest) indexColumns() {
	m.cols = make(map[string]int, len(m.header))
	for i, h := range m.header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := m.cols[key]; !dup {
			m.cols[key] = i
		}
	}
}

func (m *Manifest) get(rec []string, col string) string {
	i, ok := m.cols[strings.ToLower(col)]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// Rows returns every row. A row with an unparsable page number is an error.
func (m *Manifest) Rows() ([]ManifestRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ManifestRow, 0, len(m.records))
	for i, rec := range m.records {
		row := ManifestRow{
			Index:       i,
			PDF:         m.get(rec, MColPDF),
			Chapter:     m.get(rec, MColChapter),
			Subject:     m.get(rec, MColSubject),
			Topic:       m.get(rec, MColTopic),
			TopicL2:     m.get(rec, MColTopicL2),
			Exam:        m.get(rec, MColExam),
			PYQ:         m.get(rec, MColPYQ),
			Difficulty:  m.get(rec, MColDifficulty),
			AnswerKey:   m.get(rec, MColAnswerKey),
			SolutionPDF: m.get(rec, MColSolutionPDF),
			Processed:   strings.EqualFold(m.get(rec, MColProcessed), "Yes"),
		}
		var err error
		if row.StartPage, err = pageNumber(m.get(rec, MColStartPage)); err != nil {
			return nil, fmt.Errorf("manifest row %d: %s: %w", i+2, MColStartPage, err)
		}
		if row.EndPage, err = pageNumber(m.get(rec, MColEndPage)); err != nil {
			return nil, fmt.Errorf("manifest row %d: %s: %w", i+2, MColEndPage, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Pending returns the rows not yet marked processed.
func (m *Manifest) Pending() ([]ManifestRow, error) {
	rows, err := m.Rows()
	if err != nil {
		return nil, err
	}
	var pending []ManifestRow
	for _, r := range rows {
		if !r.Processed {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// pageNumber parses "12" or "12.0"; empty means unset.
func pageNumber(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative page %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	return int(f), nil
}

// MarkProcessed sets isProcessed=Yes on a row and rewrites the manifest
// atomically.
func (m *Manifest) MarkProcessed(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.records) {
		return fmt.Errorf("manifest row %d out of range", index)
	}
	col := m.cols[strings.ToLower(MColProcessed)]
	prev := m.records[index][col]
	m.records[index][col] = "Yes"
	if err := m.save(); err != nil {
		m.records[index][col] = prev
		return err
	}
	return nil
}

func (m *Manifest) save() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(m.header); err != nil {
		return qerrors.PersistenceError("encode manifest", m.path, err)
	}
	if err := w.WriteAll(m.records); err != nil {
		return qerrors.PersistenceError("encode manifest", m.path, err)
	}
	if err := writeFileAtomic(m.path, buf.Bytes(), 0o644); err != nil {
		return qerrors.PersistenceError("save manifest", m.path, lockHint(err))
	}
	return nil
}
