package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "batch" {
		t.Errorf("Expected default mode to be 'batch', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.Profile != "default" {
		t.Errorf("Expected default profile to be 'default', got '%s'", cfg.Profile)
	}

	if cfg.DPI != 300 {
		t.Errorf("Expected default DPI to be 300, got %d", cfg.DPI)
	}

	if cfg.Rasterizer != "fitz" {
		t.Errorf("Expected default rasterizer to be 'fitz', got '%s'", cfg.Rasterizer)
	}

	if cfg.Workers != 1 {
		t.Errorf("Expected default workers to be 1, got %d", cfg.Workers)
	}

	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Expected default logging to be info/text, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}

	if cfg.MaxFileSize != 200*1024*1024 {
		t.Errorf("Expected default max file size to be 200MB, got %d", cfg.MaxFileSize)
	}

	currentDir, _ := os.Getwd()
	if cfg.BaseDir != currentDir {
		t.Errorf("Expected default base directory to be '%s', got '%s'", currentDir, cfg.BaseDir)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseDir = t.TempDir()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid batch config", modify: func(*Config) {}},
		{name: "valid stdio config", modify: func(c *Config) { c.Mode = ModeStdio }},
		{name: "valid server config", modify: func(c *Config) { c.Mode = ModeServer; c.Port = 9090 }},
		{name: "valid pdftoppm", modify: func(c *Config) { c.Rasterizer = RasterizerPoppler }},
		{name: "invalid mode", modify: func(c *Config) { c.Mode = "invalid" }, wantErr: "mode must be"},
		{name: "invalid port", modify: func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, wantErr: "port"},
		{name: "port ignored outside server mode", modify: func(c *Config) { c.Port = 0 }},
		{name: "empty base", modify: func(c *Config) { c.BaseDir = "" }, wantErr: "cannot be empty"},
		{
			name:    "missing base",
			modify:  func(c *Config) { c.BaseDir = filepath.Join(c.BaseDir, "missing") },
			wantErr: "does not exist",
		},
		{name: "unknown profile", modify: func(c *Config) { c.Profile = "nope" }, wantErr: "unknown profile"},
		{name: "dpi too low", modify: func(c *Config) { c.DPI = 50 }, wantErr: "dpi"},
		{name: "dpi too high", modify: func(c *Config) { c.DPI = 2400 }, wantErr: "dpi"},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: "workers"},
		{name: "unknown rasterizer", modify: func(c *Config) { c.Rasterizer = "gs" }, wantErr: "rasterizer"},
		{name: "zero max file size", modify: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "log level"},
		{name: "invalid log format", modify: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_BaseIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(cfg.BaseDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.BaseDir = file
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("Validate() error = %v, want not a directory", err)
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := validConfig(t)
	cfg.Ledger = "out/bank.csv"
	cfg.Counter = "/abs/config.json"
	cfg.Diagnostics = "anchors.csv"
	cfg.resolvePaths()

	base := cfg.BaseDir
	want := map[string]string{
		"manifest":    filepath.Join(base, "inputs.csv"),
		"ledger":      filepath.Join(base, "out", "bank.csv"),
		"counter":     "/abs/config.json",
		"output":      filepath.Join(base, "Processed_Database"),
		"trimmed":     filepath.Join(base, "raw data", "Trimmed_PDFs"),
		"diagnostics": filepath.Join(base, "anchors.csv"),
	}
	got := map[string]string{
		"manifest":    cfg.Manifest,
		"ledger":      cfg.Ledger,
		"counter":     cfg.Counter,
		"output":      cfg.OutputRoot,
		"trimmed":     cfg.TrimmedDir,
		"diagnostics": cfg.Diagnostics,
	}
	for key, w := range want {
		if got[key] != w {
			t.Errorf("%s = %s, want %s", key, got[key], w)
		}
	}

	cfg.Diagnostics = ""
	cfg.resolvePaths()
	if cfg.Diagnostics != "" {
		t.Errorf("Diagnostics should stay empty, got %s", cfg.Diagnostics)
	}
}

func TestSourceProfile(t *testing.T) {
	cfg := validConfig(t)
	cfg.Profile = "disha"
	cfg.DPI = 150
	footer := 0.9
	cfg.Overrides.FooterFraction = &footer

	p, err := cfg.SourceProfile()
	if err != nil {
		t.Fatalf("SourceProfile() unexpected error: %v", err)
	}
	if p.Name != "disha" {
		t.Errorf("Name = %s, want disha", p.Name)
	}
	if p.Render.DPI != 150 {
		t.Errorf("Render.DPI = %d, want 150", p.Render.DPI)
	}

	bad := 1.5
	cfg.Overrides.FooterFraction = &bad
	if _, err := cfg.SourceProfile(); err == nil {
		t.Error("SourceProfile() expected error for an out of range override")
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9000

	if got := cfg.Address(); got != "0.0.0.0:9000" {
		t.Errorf("Address() = %s, want 0.0.0.0:9000", got)
	}
	if !cfg.IsBatchMode() || cfg.IsStdioMode() || cfg.IsServerMode() {
		t.Error("default config should be in batch mode only")
	}
	if cfg.IsDebug() {
		t.Error("IsDebug() should be false at info level")
	}
	if !strings.Contains(cfg.String(), "Mode: batch") {
		t.Errorf("String() = %s", cfg.String())
	}

	levels := map[string]string{"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR"}
	for in, want := range levels {
		cfg.LogLevel = in
		if got := cfg.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%s) = %s, want %s", in, got, want)
		}
	}
}
