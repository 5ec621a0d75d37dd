package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. DELIVERY_SERVER_PORT
const EnvPrefix = "DELIVERY"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// RebuildTimeout bounds a full rebuild of the fact table from raw files
	RebuildTimeout time.Duration `yaml:"rebuild_timeout" envconfig:"REBUILD_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration.
// Relative directories are resolved against BaseDir.
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// SourceConfig describes where missing raw files may be fetched from.
// URL points at a zip archive of the dataset; S3Bucket holds the CSVs under S3Prefix.
type SourceConfig struct {
	URL          string        `yaml:"url" envconfig:"URL"`
	S3Bucket     string        `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Prefix     string        `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
	S3Region     string        `yaml:"s3_region" envconfig:"S3_REGION"`
	AutoFetch    bool          `yaml:"auto_fetch" envconfig:"AUTO_FETCH"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
}

// DashboardConfig tunes the dashboard views
type DashboardConfig struct {
	UseCacheFile  bool `yaml:"use_cache_file" envconfig:"USE_CACHE_FILE"`
	PageSize      int  `yaml:"page_size" envconfig:"PAGE_SIZE"`
	MaxPageSize   int  `yaml:"max_page_size" envconfig:"MAX_PAGE_SIZE"`
	TopCategories int  `yaml:"top_categories" envconfig:"TOP_CATEGORIES"`
	HistogramBins int  `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// TelemetryConfig selects OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // "stdout", "none"
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // "prometheus", "none"
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
// Precedence is environment over file over defaults.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path; an empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
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

// loadFromFile overlays YAML values onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration and normalizes a few fields in place
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

	if c.Dashboard.PageSize <= 0 {
		return fmt.Errorf("dashboard page size must be positive")
	}

	if c.Dashboard.MaxPageSize < c.Dashboard.PageSize {
		return fmt.Errorf("dashboard max page size %d is below page size %d", c.Dashboard.MaxPageSize, c.Dashboard.PageSize)
	}

	if c.Dashboard.TopCategories <= 0 {
		return fmt.Errorf("dashboard top categories must be positive")
	}

	if c.Dashboard.HistogramBins <= 0 || c.Dashboard.HistogramBins > MaxHistogramBins {
		return fmt.Errorf("dashboard histogram bins must be between 1 and %d, got %d", MaxHistogramBins, c.Dashboard.HistogramBins)
	}

	if c.Source.S3Bucket != "" && strings.Contains(c.Source.S3Bucket, "/") {
		return fmt.Errorf("invalid s3 bucket name: %q", c.Source.S3Bucket)
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HasRemoteSource reports whether any remote-download fallback is configured
func (c *Config) HasRemoteSource() bool {
	return c.Source.URL != "" || c.Source.S3Bucket != ""
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8501,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RebuildTimeout:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			BaseDir:      ".",
			RawDir:       DefaultRawDir,
			ProcessedDir: DefaultProcessedDir,
			LogsDir:      DefaultLogsDir,
		},
		Source: SourceConfig{
			S3Prefix:     "",
			AutoFetch:    true,
			FetchTimeout: 5 * time.Minute,
		},
		Dashboard: DashboardConfig{
			UseCacheFile:  true,
			PageSize:      100,
			MaxPageSize:   1000,
			TopCategories: 10,
			HistogramBins: MaxHistogramBins,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
