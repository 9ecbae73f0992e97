package pdf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/answerkey"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
	"github.com/a3tai/qbank-extractor/internal/profile"
)

func word(text string, x, top float64) pageindex.Word {
	return pageindex.Word{
		Text: text, X0: x, X1: x + float64(len(text))*5,
		Top: top, Bottom: top + 10, FontName: "Arial-BoldMT", FontSize: 10,
	}
}

// book lays out three questions on page 0 and their solutions after an
// ANSWER KEY heading on page 1.
func book() *pageindex.Index {
	q := []pageindex.Word{
		word("1.", 20, 60), word("Find", 50, 60),
		word("2.", 20, 300), word("Evaluate", 50, 300),
		word("3.", 320, 60), word("Prove", 350, 60),
	}
	s := []pageindex.Word{
		word("ANSWER", 200, 30), word("KEY", 260, 30),
		word("1.", 20, 100), word("(A)", 50, 100),
		word("2.", 20, 200), word("(C)", 50, 200),
		word("3.", 20, 300), word("(B)", 50, 300),
	}
	return &pageindex.Index{Pages: []*pageindex.Page{
		pageindex.NewPage(0, 600, 800, q),
		pageindex.NewPage(1, 600, 800, s),
	}}
}

func TestAnalyzeIndex(t *testing.T) {
	p, err := profile.Get("default")
	require.NoError(t, err)

	a, err := AnalyzeIndex(book(), p)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, anchor.Numbers(a.Sections.Questions))
	assert.Equal(t, []int{1, 2, 3}, anchor.Numbers(a.Sections.Solutions))
	assert.Equal(t, anchor.SplitHeader, a.Sections.SplitReason)
	require.NotEmpty(t, a.Markers)
	assert.Equal(t, "ANSWER KEY", a.Markers[0].Text)

	third := a.Sections.Questions[2]
	assert.Equal(t, 1, third.Column)
	assert.Equal(t, 0, third.PageIndex)
}

func TestAnalyzeIndex_BadProfilePatterns(t *testing.T) {
	p, err := profile.Get("default")
	require.NoError(t, err)

	bad := p
	bad.Detector.Pattern = "(["
	_, err = AnalyzeIndex(book(), bad)
	assert.Error(t, err)

	bad = p
	bad.MarkerPattern = "(unclosed"
	_, err = AnalyzeIndex(book(), bad)
	assert.Error(t, err)
}

func TestEntries(t *testing.T) {
	key := answerkey.Key{3: "2.5", 1: "(a)", 2: "A,C"}
	entries := Entries(key)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].QuestionNumber)
	assert.Equal(t, "A", entries[0].Answer)
	assert.Equal(t, answerkey.TypeSingle, entries[0].QuestionType)
	assert.Equal(t, "A, C", entries[1].Answer)
	assert.Equal(t, answerkey.TypeMultiple, entries[1].QuestionType)
	assert.Equal(t, answerkey.TypeNumerical, entries[2].QuestionType)
}

type fakeStructure struct {
	pages int
	err   error
}

func (f fakeStructure) Validate(string) error { return f.err }
func (f fakeStructure) PageCount(string) (int, error) { return f.pages, f.err }
func (f fakeStructure) TrimPages(string, string, int, int) error { return f.err }

func TestValidator_ValidateFile(t *testing.T) {
	tempDir := t.TempDir()
	emptyPath := filepath.Join(tempDir, "empty.pdf")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))
	largePath := filepath.Join(tempDir, "large.pdf")
	require.NoError(t, os.WriteFile(largePath, make([]byte, 4096), 0o600))
	textPath := filepath.Join(tempDir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("hello"), 0o600))
	brokenPath := filepath.Join(tempDir, "broken.pdf")
	require.NoError(t, os.WriteFile(brokenPath, []byte("%PDF-1.4 broken"), 0o600))

	tests := []struct {
		name      string
		path      string
		structure fakeStructure
		message   string
	}{
		{"empty path", "", fakeStructure{}, "path cannot be empty"},
		{"missing", filepath.Join(tempDir, "missing.pdf"), fakeStructure{}, "does not exist"},
		{"directory", tempDir, fakeStructure{}, "directory"},
		{"not a pdf", textPath, fakeStructure{}, "not a PDF"},
		{"empty file", emptyPath, fakeStructure{}, "empty"},
		{"too large", largePath, fakeStructure{}, "too large"},
		{"structure invalid", brokenPath, fakeStructure{err: errors.New("xref missing")}, "invalid PDF"},
		{"no pages", brokenPath, fakeStructure{pages: 0}, "no pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(1024, tt.structure)
			result, err := v.ValidateFile(ValidateFileRequest{Path: tt.path})
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.False(t, result.Valid)
			assert.Equal(t, tt.path, result.Path)
			assert.Contains(t, result.Message, tt.message)

			_, err = v.Check(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestService_PathConfinement(t *testing.T) {
	base := t.TempDir()
	svc, err := NewService(1024, base, nil)
	require.NoError(t, err)

	_, err = svc.ValidateFile(ValidateFileRequest{Path: "../elsewhere.pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security validation failed")

	result, err := svc.ValidateFile(ValidateFileRequest{Path: "missing.pdf"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, filepath.Join(base, "missing.pdf"), result.Path)
}

func TestService_AnalyzeFileUnknownProfile(t *testing.T) {
	base := t.TempDir()
	svc, err := NewService(1024, base, nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeFile(t.Context(), AnalyzeRequest{Path: "book.pdf", Profile: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestService_ServerInfo(t *testing.T) {
	base := t.TempDir()
	svc, err := NewService(1024, base, nil)
	require.NoError(t, err)

	info := svc.ServerInfo("qbank-extract", "1.2.0", "disha")
	assert.Equal(t, "qbank-extract", info.ServerName)
	assert.Equal(t, "disha", info.DefaultProfile)
	assert.Contains(t, info.Profiles, "collegedoors")
	require.Len(t, info.AvailableTools, 6)
	for _, tool := range info.AvailableTools {
		assert.NotEmpty(t, tool.Usage, tool.Name)
		assert.NotContains(t, tool.Description, "\n")
	}
}
