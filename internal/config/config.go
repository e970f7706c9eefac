package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReferenceReadings are the static collaborator inputs used where no frame-derived
// value exists (dissolved oxygen, water level, clarity) or no session is given.
type ReferenceReadings struct {
	Temperature     float64 `yaml:"temperature"`
	PH              float64 `yaml:"ph"`
	FlowRate        float64 `yaml:"flow_rate"`
	DissolvedOxygen float64 `yaml:"dissolved_oxygen"`
	WaterLevel      float64 `yaml:"water_level"`
	Clarity         float64 `yaml:"clarity"`
}

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout"`
	FrameFetchTimeout  time.Duration `yaml:"frame_fetch_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	UploadDir          string        `yaml:"upload_dir"`
	SessionIdleTTL     time.Duration `yaml:"session_idle_ttl"`
	DatabasePath       string        `yaml:"database_path"`
	AzureAccountName   string        `yaml:"azure_account_name"`
	AzureAccountKey    string        `yaml:"azure_account_key"`
	OCRLanguage        string        `yaml:"ocr_language"`
	VideoFrameStride   int           `yaml:"video_frame_stride"`
	VideoMaxFrames     int           `yaml:"video_max_frames"`
	AnalyzerType       string        `yaml:"analyzer_type"`
	MaxWorkers         int           `yaml:"max_workers"`
	LogLevel           string        `yaml:"log_level"`

	Reference ReferenceReadings `yaml:"reference"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob storage credentials were supplied
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8001",
		RequestTimeout:     60 * time.Second,
		AnalysisTimeout:    45 * time.Second,
		FrameFetchTimeout:  15 * time.Second,
		MaxRequestBodySize: 100 * 1024 * 1024, // 100MB
		UploadDir:          "uploads",
		SessionIdleTTL:     15 * time.Minute,
		DatabasePath:       "rivermind.db",
		OCRLanguage:        "eng",
		VideoFrameStride:   1,
		VideoMaxFrames:     300,
		AnalyzerType:       "standard",
		LogLevel:           "info",
		Reference: ReferenceReadings{
			Temperature:     24.7,
			PH:              7.5,
			FlowRate:        90.0,
			DissolvedOxygen: 8.9,
			WaterLevel:      2.3,
			Clarity:         85,
		},
	}
}

// LoadFromEnv builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.FrameFetchTimeout = parseDurationOrDefault("FRAME_FETCH_TIMEOUT", cfg.FrameFetchTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.UploadDir = getEnvOrDefault("UPLOAD_DIR", cfg.UploadDir)
	cfg.SessionIdleTTL = parseDurationOrDefault("SESSION_IDLE_TTL", cfg.SessionIdleTTL)
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", cfg.DatabasePath)
	cfg.AzureAccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.AzureAccountName)
	cfg.AzureAccountKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.AzureAccountKey)
	cfg.OCRLanguage = getEnvOrDefault("OCR_LANGUAGE", cfg.OCRLanguage)
	cfg.VideoFrameStride = int(parseIntOrDefault("VIDEO_FRAME_STRIDE", int64(cfg.VideoFrameStride)))
	cfg.VideoMaxFrames = int(parseIntOrDefault("VIDEO_MAX_FRAMES", int64(cfg.VideoMaxFrames)))
	cfg.AnalyzerType = getEnvOrDefault("ANALYZER_TYPE", cfg.AnalyzerType)
	cfg.MaxWorkers = int(parseIntOrDefault("MAX_WORKERS", int64(cfg.MaxWorkers)))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Reference.DissolvedOxygen = parseFloatOrDefault("REFERENCE_DISSOLVED_OXYGEN", cfg.Reference.DissolvedOxygen)
	cfg.Reference.WaterLevel = parseFloatOrDefault("REFERENCE_WATER_LEVEL", cfg.Reference.WaterLevel)
	cfg.Reference.Clarity = parseFloatOrDefault("REFERENCE_CLARITY", cfg.Reference.Clarity)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges the server cannot run without
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 || c.FrameFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s, fetch=%s)",
			c.RequestTimeout, c.AnalysisTimeout, c.FrameFetchTimeout)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0 (got %s)", c.SessionIdleTTL)
	}
	if c.VideoFrameStride < 1 {
		return fmt.Errorf("VIDEO_FRAME_STRIDE must be >= 1 (got %d)", c.VideoFrameStride)
	}
	if c.VideoMaxFrames < 1 {
		return fmt.Errorf("VIDEO_MAX_FRAMES must be >= 1 (got %d)", c.VideoMaxFrames)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("MAX_WORKERS must be >= 0 (got %d)", c.MaxWorkers)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
