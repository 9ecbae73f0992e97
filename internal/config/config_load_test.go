package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// withArgs runs LoadFromFlags with args and restores global state afterwards.
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})
	os.Args = append([]string{"qbank-extract"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	base := t.TempDir()
	cfg, err := withArgs(t, "--base="+base)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != ModeBatch {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, ModeBatch)
	}
	if cfg.Profile != DefaultProfile {
		t.Errorf("LoadFromFlags() Profile = %v, want %v", cfg.Profile, DefaultProfile)
	}
	if cfg.Manifest != filepath.Join(base, "inputs.csv") {
		t.Errorf("LoadFromFlags() Manifest = %v", cfg.Manifest)
	}
	if cfg.Ledger != filepath.Join(base, "Question Bank.csv") {
		t.Errorf("LoadFromFlags() Ledger = %v", cfg.Ledger)
	}
	if cfg.Counter != filepath.Join(base, "config.json") {
		t.Errorf("LoadFromFlags() Counter = %v", cfg.Counter)
	}
	if cfg.InitCounter || cfg.KeepTrimmed || cfg.OCR {
		t.Error("LoadFromFlags() boolean flags should default to false")
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, DefaultMaxFileSize)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	base := t.TempDir()
	cfg, err := withArgs(t,
		"--base="+base,
		"--mode=server", "--host=0.0.0.0", "--port=9090",
		"--profile=allen", "--dpi=200", "--rasterizer=pdftoppm", "--workers=4",
		"--ocr", "--ocr-lang=eng+hin", "--init-counter", "--keep-trimmed",
		"--source=book.pdf", "--diagnostics=anchors.csv",
		"--loglevel=debug", "--logformat=json", "--maxfilesize=1048576",
	)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:9090" {
		t.Errorf("Address() = %v", cfg.Address())
	}
	if cfg.Profile != "allen" || cfg.DPI != 200 || cfg.Rasterizer != RasterizerPoppler || cfg.Workers != 4 {
		t.Errorf("pipeline flags not applied: %s", cfg)
	}
	if !cfg.OCR || cfg.OCRLang != "eng+hin" {
		t.Errorf("OCR flags not applied: %v %v", cfg.OCR, cfg.OCRLang)
	}
	if !cfg.InitCounter || !cfg.KeepTrimmed {
		t.Error("boolean flags not applied")
	}
	if cfg.SourcePDF != "book.pdf" {
		t.Errorf("SourcePDF = %v", cfg.SourcePDF)
	}
	if cfg.Diagnostics != filepath.Join(base, "anchors.csv") {
		t.Errorf("Diagnostics = %v", cfg.Diagnostics)
	}
	if !cfg.IsDebug() || cfg.LogFormat != "json" {
		t.Errorf("logging flags not applied: %v %v", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %v", cfg.MaxFileSize)
	}
}

func TestLoadFromFlags_Environment(t *testing.T) {
	base := t.TempDir()
	t.Setenv("QBANK_BASE", base)
	t.Setenv("QBANK_PROFILE", "mtg")
	t.Setenv("QBANK_INIT_COUNTER", "true")

	cfg, err := withArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.BaseDir != base {
		t.Errorf("BaseDir = %v, want %v", cfg.BaseDir, base)
	}
	if cfg.Profile != "mtg" {
		t.Errorf("Profile = %v, want mtg", cfg.Profile)
	}
	if !cfg.InitCounter {
		t.Error("InitCounter should be read from QBANK_INIT_COUNTER")
	}
}

func TestLoadFromFlags_ConfigFile(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "qbank.yaml")
	content := "profile: disha\n" +
		"workers: 3\n" +
		"profile_overrides:\n" +
		"  footer_fraction: 0.88\n" +
		"  max_question_number: 150\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := withArgs(t, "--base="+base, "--config="+file)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.Profile != "disha" || cfg.Workers != 3 {
		t.Errorf("config file values not applied: %s", cfg)
	}
	if cfg.Overrides.FooterFraction == nil || *cfg.Overrides.FooterFraction != 0.88 {
		t.Errorf("FooterFraction override = %v", cfg.Overrides.FooterFraction)
	}
	if cfg.Overrides.MaxQuestionNumber == nil || *cfg.Overrides.MaxQuestionNumber != 150 {
		t.Errorf("MaxQuestionNumber override = %v", cfg.Overrides.MaxQuestionNumber)
	}
	if _, err := cfg.SourceProfile(); err != nil {
		t.Errorf("SourceProfile() unexpected error: %v", err)
	}
}

func TestLoadFromFlags_Errors(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"missing base", []string{"--base=" + filepath.Join(base, "missing")}},
		{"unknown profile", []string{"--base=" + base, "--profile=nope"}},
		{"bad dpi", []string{"--base=" + base, "--dpi=10"}},
		{"missing config file", []string{"--base=" + base, "--config=" + filepath.Join(base, "none.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := withArgs(t, tt.args...); err == nil {
				t.Error("LoadFromFlags() expected error")
			}
		})
	}
}

func TestLoadFromFlags_Version(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		_, err := withArgs(t, flag)
		if !errors.Is(err, ErrVersionRequested) {
			t.Errorf("LoadFromFlags(%s) error = %v, want ErrVersionRequested", flag, err)
		}
	}
}
