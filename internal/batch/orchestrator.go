// Package batch runs the extraction pipeline over every pending row of an
// input manifest and commits the results to the ledger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a3tai/qbank-extractor/internal/answerkey"
	"github.com/a3tai/qbank-extractor/internal/ledger"
	"github.com/a3tai/qbank-extractor/internal/pdf"
	qerrors "github.com/a3tai/qbank-extractor/internal/pdf/errors"
	"github.com/a3tai/qbank-extractor/internal/profile"
	"github.com/a3tai/qbank-extractor/internal/region"
	"github.com/a3tai/qbank-extractor/internal/render"
	"github.com/a3tai/qbank-extractor/internal/textextract"
)

// Batch outcomes.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Analyzer turns a PDF into anchors and sections. *pdf.Service implements it.
type Analyzer interface {
	Analyze(ctx context.Context, path string, p profile.Profile) (*pdf.Analysis, error)
}

// Validator checks a PDF and returns its page count. *pdf.Validator
// implements it.
type Validator interface {
	Check(path string) (int, error)
}

// Trimmer extracts a page range into a new PDF.
type Trimmer interface {
	TrimPages(inPath, outPath string, startPage, endPage int) error
}

// releaser is implemented by rasterizers that cache open documents.
type releaser interface {
	Release(pdfPath string)
}

// Options configures a run.
type Options struct {
	// BaseDir resolves relative PDF and answer-key paths in the manifest.
	BaseDir string
	// OutputRoot receives one image folder per batch.
	OutputRoot string
	// TrimmedDir receives page-range extracts.
	TrimmedDir  string
	KeepTrimmed bool
	// SourcePDF is used for rows without a pdf column.
	SourcePDF string
	// Workers bounds concurrent question renders within a batch.
	Workers         int
	DiagnosticsPath string
	AppendRetries   int
	RetryDelay      time.Duration
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Analyzer   Analyzer
	Validator  Validator
	Trimmer    Trimmer
	Rasterizer render.Rasterizer
	// OCR is optional.
	OCR      textextract.Recognizer
	Manifest *ledger.Manifest
	Ledger   *ledger.Ledger
	Counter  *ledger.IdAllocator
	Logger   *slog.Logger
}

// Result describes one manifest row's outcome.
type Result struct {
	Row       int    `json:"row"` // 1-based data row
	Chapter   string `json:"chapter"`
	Folder    string `json:"folder,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Anchors   int    `json:"anchors"`
	Solutions int    `json:"solutions"`
	Answers   int    `json:"answers_matched"`
	Images    int    `json:"images_cropped"`
	Records   int    `json:"records"`
	Skipped   int    `json:"questions_skipped"`
	Warnings  int    `json:"question_warnings,omitempty"`
	FirstID   int    `json:"first_id,omitempty"`
	LastID    int    `json:"last_id,omitempty"`
}

// Summary totals a run.
type Summary struct {
	Processed int      `json:"batches_processed"`
	Skipped   int      `json:"batches_skipped"`
	Failed    int      `json:"batches_failed"`
	Records   int      `json:"records"`
	Images    int      `json:"images_cropped"`
	Batches   []Result `json:"batches"`
}

func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusProcessed:
		s.Processed++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Records += r.Records
	s.Images += r.Images
	s.Batches = append(s.Batches, r)
}

// pendingWrite holds a commit that did not finish: records the ledger
// refused, or records already appended whose manifest row could not be
// marked.
type pendingWrite struct {
	row      int
	records  []ledger.QuestionRecord
	appended bool
}

// Orchestrator processes manifest batches one at a time.
type Orchestrator struct {
	opts      Options
	profile   profile.Profile
	deps      Deps
	renderer  *render.Renderer
	extractor *textextract.Extractor
	parser    *answerkey.Parser
	diag      *Diagnostics
	logger    *slog.Logger

	mu      sync.Mutex
	pending *pendingWrite
}

// New creates an orchestrator for one source profile.
func New(opts Options, p profile.Profile, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Analyzer == nil, deps.Validator == nil, deps.Trimmer == nil, deps.Rasterizer == nil:
		return nil, errors.New("batch: analyzer, validator, trimmer and rasterizer are required")
	case deps.Manifest == nil, deps.Ledger == nil, deps.Counter == nil:
		return nil, errors.New("batch: manifest, ledger and counter are required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.AppendRetries < 0 {
		opts.AppendRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extractor, err := textextract.New(p.Text, deps.OCR)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	o := &Orchestrator{
		opts:      opts,
		profile:   p,
		deps:      deps,
		renderer:  render.NewRenderer(deps.Rasterizer, p.Render, logger),
		extractor: extractor,
		parser:    answerkey.NewParser(p.AnswerKey),
		logger:    logger.With("profile", p.Name),
	}
	if opts.DiagnosticsPath != "" {
		o.diag = NewDiagnostics(opts.DiagnosticsPath)
	}
	return o, nil
}

// Run processes every pending manifest row in order. Batch-level failures
// are logged and the row is left for a later run. Persistence and fatal
// errors, and cancellation, stop the run after a checkpoint.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	rows, err := o.deps.Manifest.Pending()
	if err != nil {
		return summary, qerrors.FatalError("read manifest", o.deps.Manifest.Path(), err)
	}
	o.logger.Info("starting run", "pending", len(rows), "manifest", o.deps.Manifest.Path())

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, o.stop(err)
		}
		res, err := o.ProcessRow(ctx, row)
		summary.add(res)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return summary, o.stop(err)
		}
		switch qerrors.KindOf(err) {
		case qerrors.KindPersistence, qerrors.KindFatal:
			o.logger.Error("stopping run", "batch", res.Row, "error", err)
			return summary, o.stop(err)
		default:
			o.logger.Error("batch failed; row left for retry", "batch", res.Row, "chapter", row.Chapter, "error", err)
		}
	}

	if err := o.Checkpoint(); err != nil {
		return summary, err
	}
	o.logger.Info("run complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"records", summary.Records,
		"images", summary.Images,
		"last_id", o.deps.Counter.Last())
	return summary, nil
}

func (o *Orchestrator) stop(cause error) error {
	if err := o.Checkpoint(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Checkpoint finishes an interrupted commit and re-persists the counter.
// Records the ledger refused are retried and spilled to the sidecar file if
// it still fails. An appended batch whose row could not be marked has the
// mark retried, and stays pending while the manifest is unavailable.
func (o *Orchestrator) Checkpoint() error {
	o.mu.Lock()
	p := o.pending
	o.pending = nil
	o.mu.Unlock()

	var errs []error
	switch {
	case p != nil && p.appended:
		if err := o.deps.Manifest.MarkProcessed(p.row); err != nil {
			o.mu.Lock()
			o.pending = p
			o.mu.Unlock()
			errs = append(errs, err)
		}
	case p != nil:
		if err := o.deps.Ledger.Append(p.records); err != nil {
			spill, spillErr := o.deps.Ledger.SpillPending(p.records)
			if spillErr != nil {
				errs = append(errs, fmt.Errorf("spill %d unsaved records: %w", len(p.records), spillErr))
			} else {
				o.logger.Error("ledger unavailable; unsaved records written to sidecar",
					"records", len(p.records), "sidecar", spill, "error", err)
			}
		} else if err := o.deps.Manifest.MarkProcessed(p.row); err != nil {
			p.appended = true
			o.mu.Lock()
			o.pending = p
			o.mu.Unlock()
			errs = append(errs, err)
		}
	}
	if err := o.deps.Counter.Checkpoint(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// question is the per-question output of the render stage.
type question struct {
	region   region.Region
	image    render.Output
	solution render.Output
	text     textextract.Result
	issues   []error
}

// ProcessRow runs the pipeline for one manifest row.
func (o *Orchestrator) ProcessRow(ctx context.Context, row ledger.ManifestRow) (Result, error) {
	res := Result{Row: row.Index + 1, Chapter: row.Chapter, Status: StatusFailed}
	log := o.logger.With("batch", res.Row, "chapter", row.Chapter)

	pdfPath, err := o.sourcePath(row)
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}
	res.Folder = ledger.BatchFolder(o.profile.FolderPrefix, row.Chapter, row.StartPage, row.EndPage)
	if done, err := o.resumeCommitted(log, row, res.Folder, filepath.Base(pdfPath), &res); done {
		return res, err
	}

	pages, err := o.deps.Validator.Check(pdfPath)
	if err != nil {
		res.Reason = err.Error()
		return res, qerrors.BatchError("validate", pdfPath, err)
	}
	if row.HasPageRange() && row.EndPage > pages {
		err := fmt.Errorf("page range %d-%d exceeds %d pages", row.StartPage, row.EndPage, pages)
		res.Reason = err.Error()
		return res, qerrors.BatchError("validate", pdfPath, err)
	}

	work := pdfPath
	if row.HasPageRange() {
		if work, err = o.trim(pdfPath, row); err != nil {
			res.Reason = err.Error()
			return res, err
		}
		if !o.opts.KeepTrimmed {
			defer o.removeTrimmed(work, log)
		}
	}
	if rel, ok := o.deps.Rasterizer.(releaser); ok {
		defer rel.Release(work)
	}

	analysis, err := o.deps.Analyzer.Analyze(ctx, work, o.profile)
	if err != nil {
		res.Reason = err.Error()
		return res, qerrors.BatchError("analyze", work, err)
	}
	if o.diag != nil {
		if err := o.diag.Write(res.Row, filepath.Base(pdfPath), analysis); err != nil {
			log.Warn("diagnostics not written", "error", err)
		}
	}
	sections := analysis.Sections
	res.Anchors = len(sections.Questions)
	res.Solutions = len(sections.Solutions)
	log.Info("anchors found",
		"questions", res.Anchors,
		"solutions", res.Solutions,
		"rejected", len(analysis.Rejections)+len(sections.Dropped),
		"split", sections.SplitReason)
	if len(sections.Questions) == 0 {
		res.Status = StatusSkipped
		res.Reason = "no question anchors"
		log.Warn("batch skipped: no question anchors; row left unmarked")
		return res, nil
	}

	key, err := o.parser.Parse(answerkey.Input{
		Index:         analysis.Index,
		Sections:      sections,
		PDFPath:       pdfPath,
		CompanionPath: o.resolve(row.AnswerKey),
	})
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}
	log.Info("answer key parsed", "format", o.parser.Format(), "answers", len(key))

	questions := region.NewResolver(o.profile.Region, analysis.Index).Resolve(sections.Questions)
	for _, reg := range questions {
		if reg.Truncated {
			log.Warn("question region truncated to its first segment", "question", reg.QuestionNumber)
		}
	}
	solPath, solutions, err := o.solutionRegions(ctx, row, work, analysis)
	if err != nil {
		log.Warn("solution images skipped", "error", err)
	}

	dir := filepath.Join(o.opts.OutputRoot, res.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Reason = err.Error()
		return res, qerrors.FatalError("create output folder", dir, err)
	}

	out, err := o.renderAll(ctx, log, work, analysis, questions, solPath, solutions, dir)
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}

	issues := collectIssues(work, out)
	if errCount, warnCount := issues.Count(); errCount+warnCount > 0 {
		res.Warnings = errCount + warnCount
		log.Warn("question issues", "summary", issues.Summary())
	}

	records, err := o.buildRecords(log, row, res.Folder, filepath.Base(pdfPath), key, out, &res)
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}

	if err := o.commit(ctx, row.Index, records); err != nil {
		res.Reason = err.Error()
		return res, err
	}
	res.Status = StatusProcessed
	log.Info("batch committed",
		"records", res.Records,
		"images", res.Images,
		"answers", res.Answers,
		"skipped_questions", res.Skipped,
		"first_id", res.FirstID,
		"last_id", res.LastID)
	return res, nil
}

// resumeCommitted marks a row processed without extracting it again when the
// ledger already holds its records. That happens when an earlier run
// appended the batch but could not update the manifest.
func (o *Orchestrator) resumeCommitted(log *slog.Logger, row ledger.ManifestRow, folder, source string, res *Result) (bool, error) {
	n, err := o.deps.Ledger.CountBatch(folder, source)
	if err != nil {
		log.Warn("ledger not readable; cannot check for committed records", "error", err)
		return false, nil
	}
	if n == 0 {
		return false, nil
	}
	log.Info("batch already in ledger; marking row processed", "records", n)
	if err := o.deps.Manifest.MarkProcessed(row.Index); err != nil {
		res.Reason = err.Error()
		return true, err
	}
	res.Status = StatusProcessed
	res.Reason = "already in ledger"
	return true, nil
}

func (o *Orchestrator) sourcePath(row ledger.ManifestRow) (string, error) {
	p := row.PDF
	if p == "" {
		p = o.opts.SourcePDF
	}
	if p == "" {
		return "", qerrors.BatchError("resolve source", "", errors.New("row names no pdf and no default source is configured"))
	}
	return o.resolve(p), nil
}

func (o *Orchestrator) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || o.opts.BaseDir == "" {
		return p
	}
	return filepath.Join(o.opts.BaseDir, p)
}

func (o *Orchestrator) trim(pdfPath string, row ledger.ManifestRow) (string, error) {
	if err := os.MkdirAll(o.opts.TrimmedDir, 0o755); err != nil {
		return "", qerrors.FatalError("create trimmed folder", o.opts.TrimmedDir, err)
	}
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	out := filepath.Join(o.opts.TrimmedDir, fmt.Sprintf("%s_p%d_p%d.pdf", stem, row.StartPage, row.EndPage))
	if err := o.deps.Trimmer.TrimPages(pdfPath, out, row.StartPage, row.EndPage); err != nil {
		return "", qerrors.BatchError("trim", pdfPath, err)
	}
	return out, nil
}

func (o *Orchestrator) removeTrimmed(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("trimmed pdf not removed", "path", path, "error", err)
	}
}

// solutionRegions resolves the solution regions, from a companion solution
// PDF when the row names one and from the solutions section otherwise.
func (o *Orchestrator) solutionRegions(ctx context.Context, row ledger.ManifestRow, work string, a *pdf.Analysis) (string, map[int]region.Region, error) {
	if !o.profile.Solutions {
		return "", nil, nil
	}
	path, ix, anchors := work, a.Index, a.Sections.Solutions
	if row.SolutionPDF != "" {
		path = o.resolve(row.SolutionPDF)
		sol, err := o.deps.Analyzer.Analyze(ctx, path, o.profile)
		if err != nil {
			return "", nil, fmt.Errorf("solution pdf %s: %w", path, err)
		}
		ix, anchors = sol.Index, sol.Sections.Questions
		if rel, ok := o.deps.Rasterizer.(releaser); ok {
			defer rel.Release(path)
		}
	}
	if len(anchors) == 0 {
		return "", nil, nil
	}
	out := make(map[int]region.Region, len(anchors))
	for _, reg := range region.NewResolver(o.profile.Region, ix).Resolve(anchors) {
		out[reg.QuestionNumber] = reg
	}
	return path, out, nil
}

// renderAll renders question and solution images and extracts question
// text, bounded by the worker limit. Per-question failures are logged and
// leave that question without an image.
func (o *Orchestrator) renderAll(ctx context.Context, log *slog.Logger, work string, a *pdf.Analysis,
	questions []region.Region, solPath string, solutions map[int]region.Region, dir string,
) ([]question, error) {
	out := make([]question, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i, reg := range questions {
		out[i].region = reg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := reg.QuestionNumber
			err := qerrors.Guard("question", n, func() error {
				img, err := o.renderer.RenderToFile(gctx, work, reg, render.Question, dir)
				if err != nil {
					out[i].issues = append(out[i].issues, err)
					log.Warn("question image skipped", "question", n, "error", err)
				} else {
					out[i].image = img
				}

				if sol, ok := solutions[n]; ok {
					if s, err := o.renderer.RenderToFile(gctx, solPath, sol, render.Solution, dir); err != nil {
						out[i].issues = append(out[i].issues, err)
						log.Warn("solution image skipped", "question", n, "error", err)
					} else {
						out[i].solution = s
					}
				}

				text, err := o.extractor.Extract(gctx, a.Index, reg, out[i].image.Path)
				if err != nil {
					out[i].issues = append(out[i].issues, qerrors.ParseError("ocr", n, err))
					log.Warn("ocr fallback failed", "question", n, "error", err)
				}
				out[i].text = text
				return nil
			})
			if err != nil {
				out[i].issues = append(out[i].issues, err)
				log.Warn("question skipped after failure", "question", n, "error", err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// collectIssues files every per-question failure of a batch.
func collectIssues(path string, questions []question) *qerrors.ErrorCollection {
	issues := qerrors.NewErrorCollection(path)
	for _, q := range questions {
		for _, err := range q.issues {
			var xe *qerrors.ExtractionError
			if !errors.As(err, &xe) {
				xe = qerrors.ParseError("question", q.region.QuestionNumber, err)
			}
			issues.Add(xe)
		}
	}
	return issues
}

// buildRecords allocates IDs and assembles records in question order.
func (o *Orchestrator) buildRecords(log *slog.Logger, row ledger.ManifestRow, folder, source string,
	key answerkey.Key, questions []question, res *Result,
) ([]ledger.QuestionRecord, error) {
	exam := row.Exam
	if exam == "" {
		exam = o.profile.Exam
	}

	records := make([]ledger.QuestionRecord, 0, len(questions))
	for _, q := range questions {
		n := q.region.QuestionNumber
		if q.image.Path == "" && strings.TrimSpace(q.text.Text) == "" {
			res.Skipped++
			log.Warn("question skipped: no image and no text", "question", n)
			continue
		}

		raw := key[n]
		answer, qtype := answerkey.Classify(raw)
		if answer != "" {
			res.Answers++
		}
		pyq := row.PYQ
		if pyq == "" && o.profile.YearTag {
			pyq = textextract.YearTag(q.text.Text)
		}

		id, err := o.deps.Counter.Next()
		if err != nil {
			return nil, err
		}
		rec := ledger.QuestionRecord{
			UniqueID:       id,
			QuestionNumber: n,
			Folder:         folder,
			Subject:        row.Subject,
			Chapter:        row.Chapter,
			Topic:          row.Topic,
			TopicL2:        row.TopicL2,
			Exam:           exam,
			PYQ:            pyq,
			Difficulty:     row.Difficulty,
			QuestionType:   qtype,
			CorrectAnswer:  answer,
			AnswerRaw:      raw,
			Text:           q.text.Text,
			TextAvailable:  q.text.Available,
			TextSource:     q.text.Source,
			SourceFile:     source,
		}
		if q.image.Path != "" {
			rec.ImageFile = filepath.Base(q.image.Path)
			rec.ImageWidth, rec.ImageHeight = q.image.Width, q.image.Height
			res.Images++
		}
		if q.solution.Path != "" {
			rec.SolutionFile = filepath.Base(q.solution.Path)
		}
		ledger.ApplyQC(&rec, o.profile.QCDefault)

		rec, err = ledger.NewQuestionRecord(rec)
		if err != nil {
			res.Skipped++
			log.Warn("question skipped: invalid record", "question", n, "id", id, "error", err)
			continue
		}
		if res.FirstID == 0 {
			res.FirstID = id
		}
		res.LastID = id
		records = append(records, rec)
	}
	res.Records = len(records)
	return records, nil
}

// commit appends records with retries, then marks the row processed. On
// final failure of either step the commit is held for Checkpoint.
func (o *Orchestrator) commit(ctx context.Context, rowIndex int, records []ledger.QuestionRecord) error {
	delay := o.opts.RetryDelay
	retries := o.opts.AppendRetries
	var err error
	for attempt := 0; ; attempt++ {
		if err = o.deps.Ledger.Append(records); err == nil || attempt >= retries {
			break
		}
		o.logger.Warn("ledger append failed; retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// one last try without waiting
			retries = attempt + 1
		}
		delay *= 2
	}
	if err != nil {
		o.mu.Lock()
		o.pending = &pendingWrite{row: rowIndex, records: records}
		o.mu.Unlock()
		return err
	}
	if err := o.deps.Manifest.MarkProcessed(rowIndex); err != nil {
		o.mu.Lock()
		o.pending = &pendingWrite{row: rowIndex, records: records, appended: true}
		o.mu.Unlock()
		return err
	}
	return nil
}
