// Package answerkey reads per-question answers from an answer-key section,
// the solutions section or a companion spreadsheet, and classifies them.
package answerkey

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/a3tai/qbank-extractor/internal/anchor"
	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Format names an answer-key layout.
type Format string

const (
	FormatInline    Format = "inline"
	FormatTabular   Format = "tabular"
	FormatMatrix    Format = "matrix"
	FormatProximity Format = "proximity"
	FormatCompanion Format = "companion"
	FormatNone      Format = "none"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatInline, FormatTabular, FormatMatrix, FormatProximity, FormatCompanion, FormatNone:
		return f, nil
	case "":
		return FormatNone, nil
	default:
		return "", fmt.Errorf("unknown answer key format %q", s)
	}
}

// Key maps question numbers to raw answer tokens.
type Key map[int]string

// Numbers returns the key's question numbers in ascending order.
func (k Key) Numbers() []int {
	out := make([]int, 0, len(k))
	for n := range k {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

var (
	inlineRe  = regexp.MustCompile(`(\d+)\.\s*\(([^)]+)\)`)
	queLineRe = regexp.MustCompile(`(?i)^\s*Que\.?\s*(.*)$`)
	ansLineRe = regexp.MustCompile(`(?i)^\s*Ans\.?\s*(.*)$`)
	blockRe   = regexp.MustCompile(`(\d+)\.\s*((?:[A-D]\s*[-–→]\s*(?:[P-T]\s*,?\s*)+[;,]?\s*)+)`)
	pairRe    = regexp.MustCompile(`([A-D])\s*[-–→]\s*((?:[P-T]\s*,?\s*)+)`)
	valueRe   = regexp.MustCompile(`[P-T]`)
	proximRe  = regexp.MustCompile(`\(([A-Za-z0-9.]+)\)`)
)

func yearLike(n int) bool { return n >= 1900 && n <= 2100 }

// ParseInline reads "12. (3)" style entries. Year-like numbers and numbers
// above maxQuestion (when positive) are ignored; the first entry wins.
func ParseInline(text string, maxQuestion int) Key {
	key := make(Key)
	for _, m := range inlineRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || yearLike(n) || (maxQuestion > 0 && n > maxQuestion) {
			continue
		}
		if _, dup := key[n]; dup {
			continue
		}
		key[n] = strings.TrimSpace(m[2])
	}
	return key
}

// ParseTabular zips "Que." rows with the "Ans." row that follows them.
// Answer codes 1-4 become A-D.
func ParseTabular(text string) Key {
	key := make(Key)
	var pending []int
	for _, line := range strings.Split(text, "\n") {
		if m := queLineRe.FindStringSubmatch(line); m != nil {
			pending = pending[:0]
			for _, f := range strings.Fields(m[1]) {
				if n, err := strconv.Atoi(strings.Trim(f, ".,")); err == nil {
					pending = append(pending, n)
				}
			}
			continue
		}
		m := ansLineRe.FindStringSubmatch(line)
		if m == nil || len(pending) == 0 {
			continue
		}
		answers := strings.Fields(m[1])
		for i, n := range pending {
			if i >= len(answers) {
				break
			}
			if _, dup := key[n]; !dup {
				key[n] = OptionCode(strings.Trim(answers[i], "()"))
			}
		}
		pending = pending[:0]
	}
	return key
}

// ParseMatrix reads "12. A-P,Q; B-R" blocks into canonical "A-P,Q; B-R"
// strings with keys and values sorted.
func ParseMatrix(text string) Key {
	key := make(Key)
	flat := strings.Join(strings.Fields(text), " ")
	for _, m := range blockRe.FindAllStringSubmatch(flat, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || yearLike(n) {
			continue
		}
		if _, dup := key[n]; dup {
			continue
		}
		if canon := canonicalMatrix(m[2]); canon != "" {
			key[n] = canon
		}
	}
	return key
}

func canonicalMatrix(block string) string {
	pairs := make(map[string][]string)
	for _, p := range pairRe.FindAllStringSubmatch(block, -1) {
		pairs[p[1]] = append(pairs[p[1]], valueRe.FindAllString(p[2], -1)...)
	}
	left := make([]string, 0, len(pairs))
	for k := range pairs {
		left = append(left, k)
	}
	sort.Strings(left)
	parts := make([]string, 0, len(left))
	for _, k := range left {
		values := dedupeSorted(pairs[k])
		parts = append(parts, k+"-"+strings.Join(values, ","))
	}
	return strings.Join(parts, "; ")
}

func dedupeSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// ParseProximity reads the first parenthesised token printed right of each
// solution anchor on the same line.
func ParseProximity(ix *pageindex.Index, solutions []anchor.Anchor) Key {
	key := make(Key)
	for _, a := range solutions {
		page, err := ix.Page(a.PageIndex)
		if err != nil {
			continue
		}
		var right []pageindex.Word
		for _, w := range page.Words {
			if math.Abs(w.Top-a.Top) < 5 && w.X0 > a.X && w.X0-a.X <= 100 {
				right = append(right, w)
			}
		}
		sort.SliceStable(right, func(i, j int) bool { return right[i].X0 < right[j].X0 })
		if len(right) > 2 {
			right = right[:2]
		}
		texts := make([]string, len(right))
		for i, w := range right {
			texts[i] = w.Text
		}
		if m := proximRe.FindStringSubmatch(strings.Join(texts, " ")); m != nil {
			if _, dup := key[a.QuestionNumber]; !dup {
				key[a.QuestionNumber] = m[1]
			}
		}
	}
	return key
}

// KeyText returns the text the key is searched in: from the first solution
// anchor's page to the end, or the last lastPages pages.
func KeyText(ix *pageindex.Index, solutions []anchor.Anchor, lastPages int) string {
	start := ix.PageCount() - lastPages
	if len(solutions) > 0 {
		start = solutions[0].PageIndex
		for _, a := range solutions {
			start = min(start, a.PageIndex)
		}
	}
	start = max(start, 0)
	var pages []string
	for _, p := range ix.Pages[start:] {
		pages = append(pages, p.Text())
	}
	return strings.Join(pages, "\n")
}

// Config selects and tunes the parser.
type Config struct {
	Format            Format `json:"format"`
	LastPages         int    `json:"last_pages"`
	MaxQuestionNumber int    `json:"max_question_number"`
	OptionCodes       bool   `json:"option_codes"`
}

// Input is everything a parse can draw on.
type Input struct {
	Index         *pageindex.Index
	Sections      anchor.Sections
	PDFPath       string
	CompanionPath string
}

// Parser reads keys in one configured format.
type Parser struct {
	cfg Config
}

// NewParser creates a parser.
func NewParser(cfg Config) *Parser {
	if cfg.LastPages <= 0 {
		cfg.LastPages = 5
	}
	if cfg.Format == "" {
		cfg.Format = FormatNone
	}
	return &Parser{cfg: cfg}
}

// Format returns the configured format.
func (p *Parser) Format() Format {
	return p.cfg.Format
}

// Parse reads the key. A missing companion file is a batch error.
func (p *Parser) Parse(in Input) (Key, error) {
	var key Key
	switch p.cfg.Format {
	case FormatNone:
		return Key{}, nil
	case FormatCompanion:
		path := in.CompanionPath
		if path == "" {
			found, err := FindCompanion(in.PDFPath)
			if err != nil {
				return nil, qerrors.BatchError("find answer key", in.PDFPath, err)
			}
			path = found
		}
		loaded, err := LoadCompanion(path)
		if err != nil {
			return nil, qerrors.BatchError("load answer key", path, err)
		}
		key = loaded
	case FormatProximity:
		key = ParseProximity(in.Index, in.Sections.Solutions)
	default:
		text := KeyText(in.Index, in.Sections.Solutions, p.cfg.LastPages)
		switch p.cfg.Format {
		case FormatTabular:
			key = ParseTabular(text)
		case FormatMatrix:
			key = ParseMatrix(text)
		default:
			key = ParseInline(text, p.cfg.MaxQuestionNumber)
		}
	}

	if p.cfg.OptionCodes {
		for n, v := range key {
			key[n] = OptionCode(v)
		}
	}
	return key, nil
}
