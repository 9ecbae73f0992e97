package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/qbank-extractor/internal/profile"
)

const (
	// Mode constants
	ModeBatch  = "batch"
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Rasterizer backends
	RasterizerFitz    = "fitz"
	RasterizerPoppler = "pdftoppm"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultProfile     = "default"
	DefaultDPI         = 300
	DefaultOCRLang     = "eng"
	DefaultMaxFileSize = 200 * 1024 * 1024 // 200MB

	// Default file names under the base directory
	DefaultManifestName = "inputs.csv"
	DefaultLedgerName   = "Question Bank.csv"
	DefaultCounterName  = "config.json"
	DefaultOutputName   = "Processed_Database"
	DefaultTrimmedName  = "raw data/Trimmed_PDFs"

	minDPI = 72
	maxDPI = 1200
)

// ErrVersionRequested is returned by LoadFromFlags when --version is given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the extractor
type Config struct {
	// Run mode and MCP server address
	Mode string // "batch", "stdio" or "server"
	Host string
	Port int

	// Paths. Relative paths resolve against BaseDir.
	BaseDir     string
	Manifest    string
	Ledger      string
	Counter     string
	InitCounter bool
	SourcePDF   string
	OutputRoot  string
	TrimmedDir  string
	KeepTrimmed bool
	Diagnostics string
	ConfigFile  string

	// Pipeline
	Profile    string
	DPI        int
	Rasterizer string
	Workers    int
	OCR        bool
	OCRLang    string
	Overrides  profile.Overrides

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:        ModeBatch,
		Host:        DefaultHost,
		Port:        DefaultPort,
		BaseDir:     currentDir,
		Profile:     DefaultProfile,
		DPI:         DefaultDPI,
		Rasterizer:  RasterizerFitz,
		Workers:     1,
		OCRLang:     DefaultOCRLang,
		Version:     "1.0.0",
		ServerName:  "qbank-extract",
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags, environment variables and an
// optional config file, and returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	if err := populateConfigFromViper(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("QBANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("base", cfg.BaseDir)
	viper.SetDefault("profile", cfg.Profile)
	viper.SetDefault("dpi", cfg.DPI)
	viper.SetDefault("rasterizer", cfg.Rasterizer)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("ocr-lang", cfg.OCRLang)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logformat", cfg.LogFormat)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' to process the manifest, 'stdio' for MCP standard I/O, 'server' for MCP over SSE")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("base", cfg.BaseDir, "Base directory; relative paths below resolve against it")
	pflag.String("manifest", "", "Input manifest CSV (default <base>/"+DefaultManifestName+")")
	pflag.String("ledger", "", "Output ledger CSV (default <base>/"+DefaultLedgerName+")")
	pflag.String("counter", "", "Global ID counter JSON file (default <base>/"+DefaultCounterName+")")
	pflag.Bool("init-counter", false, "Create the counter file when it does not exist")
	pflag.String("source", "", "Default source PDF for manifest rows without a pdf column")
	pflag.String("output", "", "Image output root (default <base>/"+DefaultOutputName+")")
	pflag.String("trimmed", "", "Directory for page-range PDFs (default <base>/"+DefaultTrimmedName+")")
	pflag.Bool("keep-trimmed", false, "Keep page-range PDFs after each batch")
	pflag.String("profile", cfg.Profile, "Source profile: "+strings.Join(profile.Names(), ", "))
	pflag.Int("dpi", cfg.DPI, "Rendering resolution")
	pflag.String("rasterizer", cfg.Rasterizer, "Rasterizer: 'fitz' (MuPDF) or 'pdftoppm' (poppler)")
	pflag.Int("workers", cfg.Workers, "Concurrent question renders within a batch")
	pflag.Bool("ocr", false, "OCR regions without a text layer (requires a build with -tags ocr)")
	pflag.String("ocr-lang", cfg.OCRLang, "Tesseract language")
	pflag.String("diagnostics", "", "Write every anchor candidate to this CSV")
	pflag.String("config", "", "Optional YAML or JSON config file")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logformat", cfg.LogFormat, "Log format (text, json)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

var flagNames = []string{
	"mode", "host", "port", "base", "manifest", "ledger", "counter", "init-counter",
	"source", "output", "trimmed", "keep-trimmed", "profile", "dpi", "rasterizer",
	"workers", "ocr", "ocr-lang", "diagnostics", "config", "loglevel", "logformat",
	"maxfilesize",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nqbank-extract - crops questions out of PDF question papers into an image bank\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --base=/data/bank                          "+
			"# process every pending manifest row\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --base=/data/bank --profile=disha --ocr    "+
			"# preset layout with OCR fallback\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --base=/data/bank             # MCP over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081   # MCP over SSE\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every flag can be set as QBANK_<FLAG>, with dashes as underscores\n")
		fmt.Fprintf(os.Stderr, "  (QBANK_BASE, QBANK_PROFILE, QBANK_INIT_COUNTER, ...)\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) error {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.BaseDir = viper.GetString("base")
	cfg.Manifest = viper.GetString("manifest")
	cfg.Ledger = viper.GetString("ledger")
	cfg.Counter = viper.GetString("counter")
	cfg.InitCounter = viper.GetBool("init-counter")
	cfg.SourcePDF = viper.GetString("source")
	cfg.OutputRoot = viper.GetString("output")
	cfg.TrimmedDir = viper.GetString("trimmed")
	cfg.KeepTrimmed = viper.GetBool("keep-trimmed")
	cfg.Diagnostics = viper.GetString("diagnostics")
	cfg.ConfigFile = viper.GetString("config")
	cfg.Profile = viper.GetString("profile")
	cfg.DPI = viper.GetInt("dpi")
	cfg.Rasterizer = viper.GetString("rasterizer")
	cfg.Workers = viper.GetInt("workers")
	cfg.OCR = viper.GetBool("ocr")
	cfg.OCRLang = viper.GetString("ocr-lang")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.LogFormat = viper.GetString("logformat")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")

	if viper.IsSet("profile_overrides") {
		if err := viper.UnmarshalKey("profile_overrides", &cfg.Overrides); err != nil {
			return fmt.Errorf("parse profile_overrides: %w", err)
		}
	}
	return nil
}

// resolvePaths makes BaseDir absolute and fills the paths derived from it.
func (c *Config) resolvePaths() {
	if c.BaseDir != "" {
		if abs, err := filepath.Abs(c.BaseDir); err == nil {
			c.BaseDir = abs
		}
	}
	c.Manifest = c.under(c.Manifest, DefaultManifestName)
	c.Ledger = c.under(c.Ledger, DefaultLedgerName)
	c.Counter = c.under(c.Counter, DefaultCounterName)
	c.OutputRoot = c.under(c.OutputRoot, DefaultOutputName)
	c.TrimmedDir = c.under(c.TrimmedDir, filepath.FromSlash(DefaultTrimmedName))
	if c.Diagnostics != "" {
		c.Diagnostics = c.under(c.Diagnostics, "")
	}
}

func (c *Config) under(path, def string) string {
	if path == "" {
		path = def
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeBatch && c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be one of 'batch', 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.BaseDir == "" {
		return errors.New("base directory cannot be empty")
	}
	info, err := os.Stat(c.BaseDir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("base directory %s does not exist", c.BaseDir)
	case err != nil:
		return fmt.Errorf("cannot access base directory %s: %w", c.BaseDir, err)
	case !info.IsDir():
		return fmt.Errorf("base path %s is not a directory", c.BaseDir)
	}

	if _, err := profile.Get(c.Profile); err != nil {
		return err
	}

	if c.DPI < minDPI || c.DPI > maxDPI {
		return fmt.Errorf("dpi must be between %d and %d, got %d", minDPI, maxDPI, c.DPI)
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	if c.Rasterizer != RasterizerFitz && c.Rasterizer != RasterizerPoppler {
		return fmt.Errorf("invalid rasterizer: %s (must be one of: %s, %s)", c.Rasterizer, RasterizerFitz, RasterizerPoppler)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be one of: text, json)", c.LogFormat)
	}

	return nil
}

// SourceProfile returns the selected preset with the config file overrides
// and the rendering DPI applied.
func (c *Config) SourceProfile() (profile.Profile, error) {
	p, err := profile.Get(c.Profile)
	if err != nil {
		return p, err
	}
	if err := p.Apply(c.Overrides); err != nil {
		return p, fmt.Errorf("profile %s: %w", c.Profile, err)
	}
	p.Render.DPI = c.DPI
	return p, nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, BaseDir: %s, Manifest: %s, Ledger: %s, Profile: %s, DPI: %d, "+
		"Rasterizer: %s, Workers: %d, OCR: %t, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.BaseDir, c.Manifest, c.Ledger, c.Profile, c.DPI,
		c.Rasterizer, c.Workers, c.OCR, c.LogLevel, c.MaxFileSize)
}

// IsBatchMode returns true if the manifest is processed directly
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsServerMode returns true if the MCP server runs over SSE
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP server runs over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
