package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by Validate when no model API key is set.
var ErrMissingCredential = errors.New("missing GROQ_API_KEY")

type Config struct {
	GroqAPIKey     string   `yaml:"-"`
	LLMBaseURL     string   `yaml:"llm_base_url"`
	LLMModel       string   `yaml:"llm_model"`
	Temperature    float32  `yaml:"temperature"`
	RequestTimeout Duration `yaml:"request_timeout"`

	InputPath    string `yaml:"input_path"`
	OutputDir    string `yaml:"output_dir"`
	OutputPrefix string `yaml:"output_prefix"`
	HTMLDir      string `yaml:"html_dir"`
	LogDir       string `yaml:"log_dir"`
	LogFile      string `yaml:"log_file"`
	CacheDir     string `yaml:"cache_dir"`
	MetricsPort  string `yaml:"metrics_port"`
	Resume       bool   `yaml:"resume"`

	Fetch     FetchConfig     `yaml:"fetch"`
	Browser   BrowserConfig   `yaml:"browser"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Compact   CompactConfig   `yaml:"compact"`
}

// FetchConfig controls the page fetcher and its HTML cache.
type FetchConfig struct {
	Engine        string   `yaml:"engine"` // "browser" ou "http"
	MaxAttempts   int      `yaml:"max_attempts"`
	NavTimeout    Duration `yaml:"nav_timeout"`
	SettleDelay   Duration `yaml:"settle_delay"`
	ReadyTimeout  Duration `yaml:"ready_timeout"`
	FinalDelay    Duration `yaml:"final_delay"`
	MinCacheBytes int64    `yaml:"min_cache_bytes"`
	RowDelayMin   Duration `yaml:"row_delay_min"`
	RowDelayMax   Duration `yaml:"row_delay_max"`
}

type BrowserConfig struct {
	Headless       bool     `yaml:"headless"`
	BinPath        string   `yaml:"bin_path"`
	SlowMotion     Duration `yaml:"slow_motion"`
	Locale         string   `yaml:"locale"`
	Timezone       string   `yaml:"timezone"`
	ViewportWidth  int      `yaml:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height"`
	UserAgent      string   `yaml:"user_agent"`
	AcceptLanguage string   `yaml:"accept_language"`
}

// RateLimitConfig paces and retries model calls.
type RateLimitConfig struct {
	MinInterval Duration `yaml:"min_interval"`
	MaxRetries  int      `yaml:"max_retries"`
	BackoffBase float64  `yaml:"backoff_base"`
	JitterMin   Duration `yaml:"jitter_min"`
	JitterMax   Duration `yaml:"jitter_max"`
}

type CompactConfig struct {
	MaxVisibleChars    int `yaml:"max_visible_chars"`
	ShrunkVisibleChars int `yaml:"shrunk_visible_chars"`
}

// Default returns the settings the pipeline was tuned with.
func Default() *Config {
	return &Config{
		LLMBaseURL:     "https://api.groq.com/openai/v1",
		LLMModel:       "openai/gpt-oss-120b",
		Temperature:    0.2,
		RequestTimeout: DurationFrom(180 * time.Second),
		InputPath:      "input.xlsx",
		OutputDir:      ".",
		OutputPrefix:   "laptop_cms_template_",
		HTMLDir:        "clean_html",
		LogDir:         "logs",
		LogFile:        filepath.Join("logs", "one_run_pipeline.log"),
		CacheDir:       "groq_cache",
		Resume:         true,
		Fetch: FetchConfig{
			Engine:        "browser",
			MaxAttempts:   3,
			NavTimeout:    DurationFrom(90 * time.Second),
			SettleDelay:   DurationFrom(2500 * time.Millisecond),
			ReadyTimeout:  DurationFrom(12 * time.Second),
			FinalDelay:    DurationFrom(1200 * time.Millisecond),
			MinCacheBytes: 50_000,
			RowDelayMin:   DurationFrom(4 * time.Second),
			RowDelayMax:   DurationFrom(7 * time.Second),
		},
		Browser: BrowserConfig{
			Headless:       false,
			SlowMotion:     DurationFrom(35 * time.Millisecond),
			Locale:         "en-US",
			Timezone:       "Asia/Kolkata",
			ViewportWidth:  1366,
			ViewportHeight: 768,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
		},
		RateLimit: RateLimitConfig{
			MinInterval: DurationFrom(3500 * time.Millisecond),
			MaxRetries:  6,
			BackoffBase: 2.0,
			JitterMin:   DurationFrom(200 * time.Millisecond),
			JitterMax:   DurationFrom(800 * time.Millisecond),
		},
		Compact: CompactConfig{
			MaxVisibleChars:    18000,
			ShrunkVisibleChars: 9000,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	// .env da raiz do projeto, depois o diretório atual
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.InputPath = getEnv("INPUT_PATH", cfg.InputPath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.HTMLDir = getEnv("HTML_DIR", cfg.HTMLDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.Fetch.Engine = getEnv("FETCH_ENGINE", cfg.Fetch.Engine)
	cfg.Browser.BinPath = getEnv("BROWSER_BIN", cfg.Browser.BinPath)

	var err error
	if cfg.Resume, err = getEnvBool("RESUME_FROM_OLD_CSV", cfg.Resume); err != nil {
		return nil, err
	}
	if cfg.Browser.Headless, err = getEnvBool("HEADLESS", cfg.Browser.Headless); err != nil {
		return nil, err
	}
	if cfg.Fetch.MaxAttempts, err = getEnvInt("MAX_SCRAPE_ATTEMPTS", cfg.Fetch.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MaxRetries, err = getEnvInt("MAX_GROQ_RETRIES", cfg.RateLimit.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MinInterval, err = getEnvDuration("MIN_DELAY_BETWEEN_CALLS", cfg.RateLimit.MinInterval); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration problems that must stop the run before any
// record is processed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GroqAPIKey) == "" {
		return ErrMissingCredential
	}
	if c.Fetch.Engine != "browser" && c.Fetch.Engine != "http" {
		return fmt.Errorf("unknown fetch engine %q", c.Fetch.Engine)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be >= 1, got %d", c.Fetch.MaxAttempts)
	}
	if c.RateLimit.MaxRetries < 1 {
		return fmt.Errorf("rate_limit.max_retries must be >= 1, got %d", c.RateLimit.MaxRetries)
	}
	if c.Fetch.RowDelayMax.Duration < c.Fetch.RowDelayMin.Duration {
		return fmt.Errorf("fetch.row_delay_max (%s) is below row_delay_min (%s)", c.Fetch.RowDelayMax, c.Fetch.RowDelayMin)
	}
	return nil
}

// ScreenshotDir is where per-SKU screenshots are written.
func (c *Config) ScreenshotDir() string {
	return c.LogDir
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getEnvInt(k string, d int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getEnvBool(k string, d bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("3.5s") or plain seconds ("3.5").
func getEnvDuration(k string, d Duration) (Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return DurationFrom(time.Duration(secs * float64(time.Second))), nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return Duration{}, fmt.Errorf("%s: %w", k, err)
	}
	return DurationFrom(parsed), nil
}
