package pdf

import (
	"github.com/a3tai/qbank-extractor/internal/anchor"
	"github.com/a3tai/qbank-extractor/internal/pageindex"
)

// Request Types

// ValidateFileRequest represents a request to validate a PDF file
type ValidateFileRequest struct {
	Path string `json:"path"`
}

// AnalyzeRequest represents a request to detect question anchors in a PDF
type AnalyzeRequest struct {
	Path    string `json:"path"`
	Profile string `json:"profile"`
}

// AnswerKeyRequest represents a request to parse a PDF's answer key
type AnswerKeyRequest struct {
	Path          string `json:"path"`
	Profile       string `json:"profile"`
	CompanionPath string `json:"companion_path,omitempty"`
}

// Response Types

// ValidateFileResult represents the result of a PDF validation operation
type ValidateFileResult struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path"`
	Pages   int    `json:"pages,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Message string `json:"message,omitempty"`
}

// Analysis is the full anchor analysis of one document. It is what the batch
// orchestrator consumes; AnalyzeResult is its wire summary.
type Analysis struct {
	Path       string
	Index      *pageindex.Index
	Raw        []anchor.Anchor
	Rejections []anchor.Rejection
	Markers    []anchor.Marker
	Sections   anchor.Sections
}

// AnalyzeResult summarises an analysis for tool callers
type AnalyzeResult struct {
	Path            string          `json:"path"`
	Profile         string          `json:"profile"`
	Pages           int             `json:"pages"`
	Candidates      int             `json:"candidates"`
	Rejected        int             `json:"rejected"`
	SplitReason     string          `json:"split_reason"`
	Markers         []anchor.Marker `json:"markers,omitempty"`
	Questions       []int           `json:"questions"`
	Solutions       []int           `json:"solutions,omitempty"`
	QuestionAnchors []anchor.Anchor `json:"question_anchors"`
	SolutionAnchors []anchor.Anchor `json:"solution_anchors,omitempty"`
}

// AnswerEntry is one parsed and classified answer
type AnswerEntry struct {
	QuestionNumber int    `json:"question_number"`
	Raw            string `json:"raw"`
	Answer         string `json:"answer"`
	QuestionType   string `json:"question_type"`
}

// AnswerKeyResult represents the result of parsing an answer key
type AnswerKeyResult struct {
	Path    string        `json:"path"`
	Profile string        `json:"profile"`
	Format  string        `json:"format"`
	Count   int           `json:"count"`
	Answers []AnswerEntry `json:"answers"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName      string     `json:"server_name"`
	Version         string     `json:"version"`
	BaseDirectory   string     `json:"base_directory"`
	DefaultProfile  string     `json:"default_profile"`
	Profiles        []string   `json:"profiles"`
	AvailableTools  []ToolInfo `json:"available_tools"`
	SupportedFormat string     `json:"supported_format"`
	OCRAvailable    bool       `json:"ocr_available"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
}
