package docfill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputDir != "downloads" {
		t.Errorf("DefaultConfig OutputDir = %s, want downloads", config.OutputDir)
	}
	if config.LoopName != "items" {
		t.Errorf("DefaultConfig LoopName = %s, want items", config.LoopName)
	}
	if config.DefaultLargeRows != 10000 {
		t.Errorf("DefaultConfig DefaultLargeRows = %d, want 10000", config.DefaultLargeRows)
	}
	if config.Render.Timeout != 30*time.Second {
		t.Errorf("DefaultConfig Render.Timeout = %v, want 30s", config.Render.Timeout)
	}
	if config.Server.Addr != ":3000" {
		t.Errorf("DefaultConfig Server.Addr = %s, want :3000", config.Server.Addr)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig is invalid: %v", err)
	}

	// Defaults are copies
	config.FieldAliases[0] = "changed"
	if DefaultFieldAliases[0] == "changed" {
		t.Error("DefaultConfig shares the alias slice")
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, config *Config)
	}{
		{
			name:    "output dir",
			envVars: map[string]string{"DOCFILL_OUTPUT_DIR": "/tmp/out"},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, "/tmp/out", config.OutputDir)
			},
		},
		{
			name: "render settings",
			envVars: map[string]string{
				"DOCFILL_RENDER_ENABLED":  "false",
				"DOCFILL_RENDER_TIMEOUT":  "5s",
				"DOCFILL_RENDER_FALLBACK": "no",
				"DOCFILL_SOFFICE":         "/custom/soffice",
			},
			check: func(t *testing.T, config *Config) {
				assert.False(t, config.Render.Enabled)
				assert.Equal(t, 5*time.Second, config.Render.Timeout)
				assert.False(t, config.Render.Fallback)
				assert.Equal(t, "/custom/soffice", config.Render.Candidates[0])
				assert.Len(t, config.Render.Candidates, len(DefaultRendererCandidates)+1)
			},
		},
		{
			name: "cache and limits",
			envVars: map[string]string{
				"DOCFILL_CACHE_MAX_SIZE": "5",
				"DOCFILL_CACHE_TTL":      "1m",
				"DOCFILL_MAX_LARGE_ROWS": "500",
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, 5, config.Cache.MaxSize)
				assert.Equal(t, time.Minute, config.Cache.TTL)
				assert.Equal(t, 500, config.MaxLargeRows)
			},
		},
		{
			name:    "invalid values are ignored",
			envVars: map[string]string{"DOCFILL_RENDER_TIMEOUT": "soon", "DOCFILL_CACHE_MAX_SIZE": "many"},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, 30*time.Second, config.Render.Timeout)
				assert.Equal(t, 32, config.Cache.MaxSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			tt.check(t, ConfigFromEnvironment())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docfill.yaml")
	content := `
output_dir: out
log_level: debug
linebreaks: false
field_aliases: [City]
render:
  enabled: false
  timeout: 45s
server:
  addr: ":8080"
cache:
  max_size: 4
  ttl: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DOCFILL_ADDR", ":9090")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "out", config.OutputDir)
	assert.Equal(t, "debug", config.LogLevel)
	assert.False(t, config.Linebreaks)
	assert.Equal(t, []string{"City"}, config.FieldAliases)
	assert.False(t, config.Render.Enabled)
	assert.Equal(t, 45*time.Second, config.Render.Timeout)
	assert.Equal(t, 4, config.Cache.MaxSize)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	// Environment wins over the file
	assert.Equal(t, ":9090", config.Server.Addr)
	// Unset keys keep their defaults
	assert.Equal(t, "items", config.LoopName)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"empty loop name", func(c *Config) { c.LoopName = "" }},
		{"negative max rows", func(c *Config) { c.MaxLargeRows = -1 }},
		{"zero render timeout", func(c *Config) { c.Render.Timeout = 0 }},
		{"negative cache size", func(c *Config) { c.Cache.MaxSize = -1 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	c := DefaultConfig()
	c.LogLevel = "off"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() with log level off = %v", err)
	}
}
