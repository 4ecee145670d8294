package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" split_words:"true"`
	Logging   LoggingConfig   `yaml:"logging" split_words:"true"`
	Render    RenderConfig    `yaml:"render" split_words:"true"`
	Upload    UploadConfig    `yaml:"upload" split_words:"true"`
	Telemetry TelemetryConfig `yaml:"telemetry" split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string        `yaml:"allowed_origins" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" split_words:"true"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`
	Format   string `yaml:"format" split_words:"true"`
	Output   string `yaml:"output" split_words:"true"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// RenderConfig contains heatmap rendering defaults
type RenderConfig struct {
	OutputPath string `yaml:"output_path" split_words:"true"`
	Offset     int    `yaml:"offset" split_words:"true"`
	Overflow   string `yaml:"overflow" split_words:"true"`
	// Format is "png", "svg" or empty to follow the output path extension.
	Format   string  `yaml:"format" split_words:"true"`
	CellSize int     `yaml:"cell_size" split_words:"true"`
	FontSize float64 `yaml:"font_size" split_words:"true"`
}

// UploadConfig contains upload limits for the HTTP front-end
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" split_words:"true"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path falls back to
// the well-known config file locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}

	if c.Render.OutputPath == "" {
		return fmt.Errorf("render output path must not be empty")
	}

	if c.Render.Offset < 0 || c.Render.Offset > 6 {
		return fmt.Errorf("render offset must be within 0..6, got %d", c.Render.Offset)
	}

	c.Render.Overflow = strings.ToLower(c.Render.Overflow)
	if c.Render.Overflow != OverflowDrop && c.Render.Overflow != OverflowExpand {
		return fmt.Errorf("unknown overflow policy: %q", c.Render.Overflow)
	}

	c.Render.Format = strings.ToLower(c.Render.Format)
	switch c.Render.Format {
	case "", FormatPNG, FormatSVG:
	default:
		return fmt.Errorf("unknown render format: %q", c.Render.Format)
	}

	if c.Render.CellSize < 20 {
		return fmt.Errorf("render cell size must be at least 20, got %d", c.Render.CellSize)
	}

	if c.Render.FontSize <= 0 {
		return fmt.Errorf("render font size must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"calheat.yaml",
		"configs/calheat.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Render: RenderConfig{
			OutputPath: DefaultOutputPath,
			Offset:     0,
			Overflow:   OverflowDrop,
			CellSize:   80,
			FontSize:   14,
		},
		Upload: UploadConfig{
			MaxBytes: 10 << 20, // 10MB
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
