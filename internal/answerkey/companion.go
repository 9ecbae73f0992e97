package answerkey

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Companion file patterns, in preference order.
var companionGlobs = []string{
	"*excel_answer_key.xlsx",
	"*answer_key.xlsx",
	"*answer_key.csv",
}

// FindCompanion locates the answer-key spreadsheet stored next to a PDF.
// A file whose name starts with the PDF's base name is preferred.
func FindCompanion(pdfPath string) (string, error) {
	dir := filepath.Dir(pdfPath)
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	var fallback string
	for _, glob := range companionGlobs {
		matches, err := filepath.Glob(filepath.Join(dir, glob))
		if err != nil {
			return "", err
		}
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), base) {
				return m, nil
			}
			if fallback == "" {
				fallback = m
			}
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no answer key file next to %s: %w", pdfPath, os.ErrNotExist)
	}
	return fallback, nil
}

// LoadCompanion reads a key from an .xlsx (first sheet) or .csv file with a
// "Question No." column and a "Correct Answer" or "Answer" column.
func LoadCompanion(path string) (Key, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSheet(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported answer key file %s", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	return keyFromRows(rows)
}

func readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func keyFromRows(rows [][]string) (Key, error) {
	qCol, aCol, start := -1, -1, 0
	for i, row := range rows {
		qCol, aCol = -1, -1
		for j, cell := range row {
			switch normalizeHeader(cell) {
			case "question no.", "question no", "question number":
				qCol = j
			case "correct answer":
				aCol = j
			case "answer":
				if aCol < 0 {
					aCol = j
				}
			}
		}
		if qCol >= 0 && aCol >= 0 {
			start = i + 1
			break
		}
	}
	if qCol < 0 || aCol < 0 {
		return nil, fmt.Errorf("answer key needs \"Question No.\" and \"Correct Answer\" columns")
	}

	key := make(Key)
	for _, row := range rows[start:] {
		if qCol >= len(row) || aCol >= len(row) {
			continue
		}
		n, ok := questionNumber(row[qCol])
		answer := strings.TrimSpace(row[aCol])
		if !ok || answer == "" {
			continue
		}
		if _, dup := key[n]; !dup {
			key[n] = answer
		}
	}
	return key, nil
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// questionNumber accepts "12" as well as spreadsheet floats such as "12.0".
func questionNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
