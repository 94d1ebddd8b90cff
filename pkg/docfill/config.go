package docfill

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all configuration options for the document engine
type Config struct {
	// OutputDir is the flat directory generated files are written to.
	OutputDir string `yaml:"output_dir"`
	// TemplateDir holds named templates served by TemplateLibrary.
	TemplateDir string `yaml:"template_dir"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `yaml:"log_level"`
	// LoopName is the loop region name bound to the row list.
	LoopName string `yaml:"loop_name"`
	// Linebreaks turns newlines in field values into line breaks.
	Linebreaks bool `yaml:"linebreaks"`
	// FieldAliases are canonical field names that may also arrive with a
	// lower-case first letter.
	FieldAliases []string `yaml:"field_aliases"`
	// DefaultLargeRows is used when a large-table request has no usable row count.
	DefaultLargeRows int `yaml:"default_large_rows"`
	// MaxLargeRows bounds large-table requests. 0 means unbounded.
	MaxLargeRows int `yaml:"max_large_rows"`

	Render RenderConfig `yaml:"render"`
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
}

// RenderConfig configures conversion to the portable format.
type RenderConfig struct {
	// Enabled turns the render step on.
	Enabled bool `yaml:"enabled"`
	// Candidates are probed in order for the office suite binary.
	Candidates []string `yaml:"candidates"`
	// Timeout bounds a single subprocess conversion.
	Timeout time.Duration `yaml:"timeout"`
	// Fallback enables the in-process PDF writer when the subprocess fails.
	Fallback bool `yaml:"fallback"`
	// FallbackFont is an optional UTF-8 TrueType font for the fallback writer.
	FallbackFont string `yaml:"fallback_font"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// CacheConfig contains configuration options for the template cache
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int `yaml:"max_size"`
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultRendererCandidates lists well-known office suite locations.
var DefaultRendererCandidates = []string{
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice.bin",
	"/opt/homebrew/bin/soffice",
	"/usr/local/bin/soffice",
	"/usr/bin/soffice",
	"/usr/bin/libreoffice",
	"/usr/lib/libreoffice/program/soffice",
	"/opt/libreoffice/program/soffice",
	"/snap/bin/libreoffice",
	`C:\Program Files\LibreOffice\program\soffice.exe`,
}

// DefaultFallbackFonts lists common locations of TrueType fonts with
// Cyrillic coverage, probed when no fallback font is configured.
var DefaultFallbackFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/Library/Fonts/Arial Unicode.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

// DefaultFieldAliases are the contract fields accepted in either case.
var DefaultFieldAliases = []string{
	"ContractNumber",
	"City",
	"ContractDate",
	"ClientName",
	"ClientFio",
	"ExecutorName",
	"ExecutorFio",
	"NumOfDays",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir:        "downloads",
		TemplateDir:      "templates",
		LogLevel:         "info",
		LoopName:         "items",
		Linebreaks:       true,
		FieldAliases:     append([]string(nil), DefaultFieldAliases...),
		DefaultLargeRows: 10000,
		MaxLargeRows:     200000,
		Render: RenderConfig{
			Enabled:    true,
			Candidates: append([]string(nil), DefaultRendererCandidates...),
			Timeout:    30 * time.Second,
			Fallback:   true,
		},
		Server: ServerConfig{
			Addr:           ":3000",
			MaxUploadBytes: 50 << 20,
		},
		Cache: CacheConfig{
			MaxSize: 32,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	config.applyEnv()
	return config
}

func (c *Config) applyEnv() {
	// DOCFILL_OUTPUT_DIR
	if val := os.Getenv("DOCFILL_OUTPUT_DIR"); val != "" {
		c.OutputDir = val
	}

	// DOCFILL_TEMPLATE_DIR
	if val := os.Getenv("DOCFILL_TEMPLATE_DIR"); val != "" {
		c.TemplateDir = val
	}

	// DOCFILL_LOG_LEVEL
	if val := os.Getenv("DOCFILL_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}

	// DOCFILL_RENDER_ENABLED
	if val := os.Getenv("DOCFILL_RENDER_ENABLED"); val != "" {
		c.Render.Enabled = parseBool(val)
	}

	// DOCFILL_RENDER_TIMEOUT
	if val := os.Getenv("DOCFILL_RENDER_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Render.Timeout = duration
		}
	}

	// DOCFILL_RENDER_FALLBACK
	if val := os.Getenv("DOCFILL_RENDER_FALLBACK"); val != "" {
		c.Render.Fallback = parseBool(val)
	}

	// DOCFILL_SOFFICE: a single explicit binary probed before the defaults
	if val := os.Getenv("DOCFILL_SOFFICE"); val != "" {
		c.Render.Candidates = append([]string{val}, c.Render.Candidates...)
	}

	// DOCFILL_FALLBACK_FONT
	if val := os.Getenv("DOCFILL_FALLBACK_FONT"); val != "" {
		c.Render.FallbackFont = val
	}

	// DOCFILL_ADDR
	if val := os.Getenv("DOCFILL_ADDR"); val != "" {
		c.Server.Addr = val
	}

	// DOCFILL_MAX_LARGE_ROWS
	if val := os.Getenv("DOCFILL_MAX_LARGE_ROWS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxLargeRows = n
		}
	}

	// DOCFILL_CACHE_MAX_SIZE
	if val := os.Getenv("DOCFILL_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxSize = size
		}
	}

	// DOCFILL_CACHE_TTL
	if val := os.Getenv("DOCFILL_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.TTL = duration
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output dir must be set")
	}

	if _, err := parseLogLevel(c.LogLevel); err != nil && !strings.EqualFold(c.LogLevel, "off") {
		return err
	}

	if c.LoopName == "" {
		return errors.New("loop name must be set")
	}

	if c.DefaultLargeRows < 0 {
		return errors.New("default large rows cannot be negative")
	}

	if c.MaxLargeRows < 0 {
		return errors.New("max large rows cannot be negative")
	}

	if c.Render.Timeout <= 0 {
		return errors.New("render timeout must be positive")
	}

	if c.Cache.MaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.Cache.TTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	return nil
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
