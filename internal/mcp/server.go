package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/qbank-extractor/internal/answerkey"
	"github.com/a3tai/qbank-extractor/internal/batch"
	"github.com/a3tai/qbank-extractor/internal/config"
	"github.com/a3tai/qbank-extractor/internal/descriptions"
	"github.com/a3tai/qbank-extractor/internal/pdf"
)

// ManifestRunner processes every pending row of a manifest.
type ManifestRunner func(ctx context.Context, manifestPath string) (batch.Summary, error)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	runner     ManifestRunner
	logger     *slog.Logger
	mcpServer  *server.MCPServer

	// runMu allows one manifest run at a time.
	runMu sync.Mutex
}

// NewServer creates a new MCP server instance. runner may be nil, in which
// case qbank_run_manifest reports that batch runs are unavailable.
func NewServer(cfg *config.Config, pdfService *pdf.Service, runner ManifestRunner, logger *slog.Logger) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		runner:     runner,
		logger:     logger,
		mcpServer:  mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	profileParam := mcp.WithString("profile",
		mcp.Description("Source profile name (uses the server default if empty)"),
	)

	detectTool := mcp.NewTool(
		"qbank_detect_anchors",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_detect_anchors")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF path, absolute or relative to the base directory"),
		),
		profileParam,
	)
	s.mcpServer.AddTool(detectTool, s.handleDetectAnchors)

	answerKeyTool := mcp.NewTool(
		"qbank_parse_answer_key",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_parse_answer_key")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF path, absolute or relative to the base directory"),
		),
		profileParam,
		mcp.WithString("companion_path",
			mcp.Description("Companion answer-key spreadsheet (found next to the PDF if empty)"),
		),
	)
	s.mcpServer.AddTool(answerKeyTool, s.handleParseAnswerKey)

	classifyTool := mcp.NewTool(
		"qbank_classify_answer",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_classify_answer")),
		mcp.WithString("token",
			mcp.Required(),
			mcp.Description("Raw answer token as printed, e.g. (a), A,C or 2.5"),
		),
	)
	s.mcpServer.AddTool(classifyTool, s.handleClassifyAnswer)

	validateTool := mcp.NewTool(
		"qbank_validate_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_validate_pdf")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF path, absolute or relative to the base directory"),
		),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidatePDF)

	runTool := mcp.NewTool(
		"qbank_run_manifest",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_run_manifest")),
		mcp.WithString("manifest",
			mcp.Description("Manifest CSV (uses the configured manifest if empty)"),
		),
	)
	s.mcpServer.AddTool(runTool, s.handleRunManifest)

	infoTool := mcp.NewTool(
		"qbank_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("qbank_server_info")),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

func (s *Server) profileArg(request mcp.CallToolRequest) string {
	if p := request.GetString("profile", ""); p != "" {
		return p
	}
	return s.config.Profile
}

// Handler functions
func (s *Server) handleDetectAnchors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.AnalyzeFile(ctx, pdf.AnalyzeRequest{Path: path, Profile: s.profileArg(request)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAnalyzeResult(result)), nil
}

func (s *Server) handleParseAnswerKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.AnswerKey(ctx, pdf.AnswerKeyRequest{
		Path:          path,
		Profile:       s.profileArg(request),
		CompanionPath: request.GetString("companion_path", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAnswerKeyResult(result)), nil
}

func (s *Server) handleClassifyAnswer(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := request.RequireString("token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, qtype := answerkey.Classify(token)
	if answer == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Token %q carries no answer", token)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Answer: %s\nQuestion type: %s", answer, qtype)), nil
}

func (s *Server) handleValidatePDF(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.ValidateFile(pdf.ValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file %s is valid (%d pages, %d bytes)", result.Path, result.Pages, result.Size)
	} else {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleRunManifest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runner == nil {
		return mcp.NewToolResultError("manifest runs are not available on this server"), nil
	}

	manifest := s.config.Manifest
	if m := request.GetString("manifest", ""); m != "" {
		resolved, err := s.pdfService.ResolvePath(m)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		manifest = resolved
	}

	if !s.runMu.TryLock() {
		return mcp.NewToolResultError("a manifest run is already in progress"), nil
	}
	defer s.runMu.Unlock()

	s.logger.Info("manifest run requested", "manifest", manifest)
	summary, err := s.runner(ctx, manifest)
	text := formatSummary(manifest, summary)
	if err != nil {
		return mcp.NewToolResultError(text + "\nRun stopped: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.pdfService.ServerInfo(s.config.ServerName, s.config.Version, s.config.Profile)
	return mcp.NewToolResultText(formatServerInfoResult(result)), nil
}

// Formatting methods
func formatAnalyzeResult(result *pdf.AnalyzeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Anchors for: %s (profile %s)\n", result.Path, result.Profile)
	fmt.Fprintf(&b, "Pages: %d\n", result.Pages)
	fmt.Fprintf(&b, "Candidates: %d, rejected: %d\n", result.Candidates, result.Rejected)
	fmt.Fprintf(&b, "Split: %s\n", result.SplitReason)
	for _, m := range result.Markers {
		fmt.Fprintf(&b, "Marker: %q on page %d, column %d\n", m.Text, m.PageIndex+1, m.Column)
	}

	fmt.Fprintf(&b, "\nQuestions (%d): %s\n", len(result.Questions), joinInts(result.Questions))
	for _, a := range result.QuestionAnchors {
		fmt.Fprintf(&b, "  Q%d: page %d, column %d, top %.1f\n", a.QuestionNumber, a.PageIndex+1, a.Column, a.Top)
	}
	if len(result.Solutions) > 0 {
		fmt.Fprintf(&b, "\nSolutions (%d): %s\n", len(result.Solutions), joinInts(result.Solutions))
	}
	return b.String()
}

func formatAnswerKeyResult(result *pdf.AnswerKeyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer key for: %s (profile %s, format %s)\n", result.Path, result.Profile, result.Format)
	fmt.Fprintf(&b, "Answers: %d\n", result.Count)
	for _, e := range result.Answers {
		fmt.Fprintf(&b, "  %d. %s -> %s (%s)\n", e.QuestionNumber, e.Raw, e.Answer, e.QuestionType)
	}
	return b.String()
}

func formatSummary(manifest string, summary batch.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manifest: %s\n", manifest)
	fmt.Fprintf(&b, "Batches: %d processed, %d skipped, %d failed\n", summary.Processed, summary.Skipped, summary.Failed)
	fmt.Fprintf(&b, "Records: %d, images: %d\n", summary.Records, summary.Images)
	for _, r := range summary.Batches {
		fmt.Fprintf(&b, "  row %d %s: %s", r.Row, r.Chapter, r.Status)
		if r.Status == batch.StatusProcessed {
			fmt.Fprintf(&b, " (%d records, ids %d-%d)", r.Records, r.FirstID, r.LastID)
		}
		if r.Reason != "" {
			fmt.Fprintf(&b, " - %s", r.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatServerInfoResult(result *pdf.ServerInfoResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s\n", result.ServerName, result.Version)
	fmt.Fprintf(&b, "Base directory: %s\n", result.BaseDirectory)
	fmt.Fprintf(&b, "Default profile: %s\n", result.DefaultProfile)
	fmt.Fprintf(&b, "Profiles: %s\n", strings.Join(result.Profiles, ", "))
	fmt.Fprintf(&b, "Supported format: %s\n", result.SupportedFormat)
	fmt.Fprintf(&b, "OCR available: %t\n", result.OCRAvailable)

	b.WriteString("\nAvailable Tools:\n")
	for _, tool := range result.AvailableTools {
		fmt.Fprintf(&b, "\n• %s\n", tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", tool.Description)
		fmt.Fprintf(&b, "  Usage: %s\n", tool.Usage)
	}
	return b.String()
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is done
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio", "base", s.pdfService.BaseDirectory())

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()
	s.logger.Info("starting MCP server on SSE", "address", addr, "base", s.pdfService.BaseDirectory())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve SSE: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down MCP server")
		if err := sse.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("shutdown SSE server: %w", err)
		}
		return nil
	}
}
