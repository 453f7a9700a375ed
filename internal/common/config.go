package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Language   LanguageConfig   `mapstructure:"language"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

// PipelineConfig holds text acquisition limits.
type PipelineConfig struct {
	MinTextLength    int `mapstructure:"min_text_length"`
	MaxDocumentBytes int `mapstructure:"max_document_bytes"`
}

type LanguageConfig struct {
	HebrewThreshold float64 `mapstructure:"hebrew_threshold"`
	MinLetters      int     `mapstructure:"min_letters"`
}

type ConfidenceConfig struct {
	RequiredFields  []string `mapstructure:"required_fields"`
	FuzzyWeight     float64  `mapstructure:"fuzzy_weight"`
	ReviewThreshold float64  `mapstructure:"review_threshold"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext          string        `mapstructure:"pdftotext"`
	Pdftoppm           string        `mapstructure:"pdftoppm"`
	Tesseract          string        `mapstructure:"tesseract"`
	Lang               string        `mapstructure:"lang"`
	DPI                int           `mapstructure:"dpi"`
	MaxPages           int           `mapstructure:"max_pages"`
	TessdataDir        string        `mapstructure:"tessdata_dir"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type BatchConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

type WatchConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	InitialScan bool          `mapstructure:"initial_scan"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// POLICY_* environment variables, in increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, NewAppError(CodeConfig, "config file not readable", err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError(CodeConfig, "failed to read config", err)
		}
	}

	// POLICY_OCR_LANG, POLICY_DATABASE_DSN, ...
	v.SetEnvPrefix("POLICY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.dsn", "POLICY_DATABASE_DSN", "DB_URL")
	_ = v.BindEnv("ocr.tessdata_dir", "POLICY_OCR_TESSDATA_DIR", "TESSDATA_PREFIX")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError(CodeConfig, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	cfg, err := LoadConfig("")
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("pipeline.min_text_length", 20)
	v.SetDefault("pipeline.max_document_bytes", 50<<20)

	v.SetDefault("language.hebrew_threshold", 0.15)
	v.SetDefault("language.min_letters", 8)

	v.SetDefault("confidence.required_fields", []string{"insurer", "policy_number", "premium_monthly", "start_date", "end_date"})
	v.SetDefault("confidence.fuzzy_weight", 0.5)
	v.SetDefault("confidence.review_threshold", 0.6)

	v.SetDefault("ocr.pdftotext", "pdftotext")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.lang", "heb+eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 10)
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.breaker_max_failures", 5)
	v.SetDefault("ocr.breaker_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.queue_size", 256)
	v.SetDefault("batch.rate_per_second", 0)
	v.SetDefault("batch.process_timeout", 3*time.Minute)

	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("watch.initial_scan", true)

	v.SetDefault("metrics.addr", "")
}

// Validate checks ranges that would make the pipeline misbehave.
func (c *Config) Validate() error {
	if c.Pipeline.MinTextLength < 1 {
		return NewAppError(CodeConfig, "pipeline.min_text_length must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxDocumentBytes < 1 {
		return NewAppError(CodeConfig, "pipeline.max_document_bytes must be positive", ErrInvalidInput)
	}
	if c.Language.HebrewThreshold <= 0 || c.Language.HebrewThreshold >= 1 {
		return NewAppError(CodeConfig, "language.hebrew_threshold must be in (0,1)", ErrInvalidInput)
	}
	if len(c.Confidence.RequiredFields) == 0 {
		return NewAppError(CodeConfig, "confidence.required_fields must not be empty", ErrInvalidInput)
	}
	if c.Confidence.FuzzyWeight < 0 || c.Confidence.FuzzyWeight > 1 {
		return NewAppError(CodeConfig, "confidence.fuzzy_weight must be in [0,1]", ErrInvalidInput)
	}
	if c.Confidence.ReviewThreshold < 0 || c.Confidence.ReviewThreshold > 1 {
		return NewAppError(CodeConfig, "confidence.review_threshold must be in [0,1]", ErrInvalidInput)
	}
	if c.OCR.DPI < 72 {
		return NewAppError(CodeConfig, "ocr.dpi must be at least 72", ErrInvalidInput)
	}
	if c.Batch.Workers < 1 {
		return NewAppError(CodeConfig, "batch.workers must be positive", ErrInvalidInput)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("log.format %q must be json or text", c.Log.Format), ErrInvalidInput)
	}
	return nil
}
