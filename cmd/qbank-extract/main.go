package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/qbank-extractor/internal/batch"
	"github.com/a3tai/qbank-extractor/internal/config"
	"github.com/a3tai/qbank-extractor/internal/ledger"
	"github.com/a3tai/qbank-extractor/internal/mcp"
	"github.com/a3tai/qbank-extractor/internal/ocr"
	"github.com/a3tai/qbank-extractor/internal/pdf"
	"github.com/a3tai/qbank-extractor/internal/profile"
	"github.com/a3tai/qbank-extractor/internal/render"
	"github.com/a3tai/qbank-extractor/internal/textextract"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const (
	fitzPageCache = 4
	appendRetries = 3
)

// newLogger builds the process logger. Logs always go to w (stderr), which
// keeps stdout free for the MCP stdio protocol.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel(), AddSource: cfg.IsDebug()}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("mode", cfg.Mode)
}

// newRasterizer returns the configured rendering backend.
func newRasterizer(cfg *config.Config) (render.Rasterizer, error) {
	switch cfg.Rasterizer {
	case config.RasterizerPoppler:
		return render.NewPopplerRasterizer()
	case config.RasterizerFitz:
		return render.NewFitzRasterizer(fitzPageCache), nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q", cfg.Rasterizer)
	}
}

// newRecognizer returns the OCR client when it is requested and compiled
// in, and nil otherwise.
func newRecognizer(cfg *config.Config, logger *slog.Logger) (*ocr.Client, error) {
	if !cfg.OCR {
		return nil, nil
	}
	if !ocr.Enabled {
		logger.Warn("OCR requested but this build has no OCR support; continuing without it")
		return nil, nil
	}
	return ocr.New(cfg.OCRLang)
}

// app holds the long-lived collaborators shared by batch runs.
type app struct {
	cfg        *config.Config
	profile    profile.Profile
	service    *pdf.Service
	rasterizer render.Rasterizer
	ocr        textextract.Recognizer
	logger     *slog.Logger
}

// runManifest opens the manifest, ledger and counter and processes every
// pending row.
func (a *app) runManifest(ctx context.Context, manifestPath string) (batch.Summary, error) {
	manifest, err := ledger.LoadManifest(manifestPath)
	if err != nil {
		return batch.Summary{}, err
	}
	counter, err := ledger.OpenCounter(a.cfg.Counter, a.cfg.InitCounter)
	if err != nil {
		return batch.Summary{}, err
	}

	orch, err := batch.New(batch.Options{
		BaseDir:         a.cfg.BaseDir,
		OutputRoot:      a.cfg.OutputRoot,
		TrimmedDir:      a.cfg.TrimmedDir,
		KeepTrimmed:     a.cfg.KeepTrimmed,
		SourcePDF:       a.cfg.SourcePDF,
		Workers:         a.cfg.Workers,
		DiagnosticsPath: a.cfg.Diagnostics,
		AppendRetries:   appendRetries,
	}, a.profile, batch.Deps{
		Analyzer:   a.service,
		Validator:  a.service.Validator(),
		Trimmer:    a.service.Structure(),
		Rasterizer: a.rasterizer,
		OCR:        a.ocr,
		Manifest:   manifest,
		Ledger:     ledger.OpenLedger(a.cfg.Ledger),
		Counter:    counter,
		Logger:     a.logger,
	})
	if err != nil {
		return batch.Summary{}, err
	}
	return orch.Run(ctx)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	p, err := cfg.SourceProfile()
	if err != nil {
		return err
	}

	service, err := pdf.NewService(cfg.MaxFileSize, cfg.BaseDir, logger)
	if err != nil {
		return err
	}

	raster, err := newRasterizer(cfg)
	if err != nil {
		return err
	}
	defer raster.Close()

	a := &app{cfg: cfg, profile: p, service: service, rasterizer: raster, logger: logger}
	client, err := newRecognizer(cfg, logger)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		a.ocr = client
	}

	if cfg.IsBatchMode() {
		summary, err := a.runManifest(ctx, cfg.Manifest)
		logger.Info("batch mode finished",
			"processed", summary.Processed,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"records", summary.Records)
		return err
	}

	server, err := mcp.NewServer(cfg, service, a.runManifest, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted; progress up to the last committed batch is saved")
		} else {
			logger.Error("run failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "qbank-extract\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
	fmt.Fprintf(w, "OCR support: %t\n", ocr.Enabled)
}
