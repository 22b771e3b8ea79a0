package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	DeepSearch DeepSearchConfig `mapstructure:"deepsearch"`
	Video      VideoConfig      `mapstructure:"video"`
	Scholar    ScholarConfig    `mapstructure:"scholar"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DataDir   string `mapstructure:"data_dir"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// WorkflowConfig controls the dispatcher.
type WorkflowConfig struct {
	// DispatchTimeout bounds every agent from the dispatcher side. Zero
	// leaves timing to the agents' own per-call timeouts.
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	ReportInterval  time.Duration `mapstructure:"report_interval"`
}

type DeepSearchConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	TopP            float64       `mapstructure:"top_p"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PricePerMillion float64       `mapstructure:"price_per_million"`
}

type VideoConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	Mode               string        `mapstructure:"mode"`
	PublishedAfterDays int           `mapstructure:"published_after_days"`
	Timeout            time.Duration `mapstructure:"timeout"`
	CaptionBaseURL     string        `mapstructure:"caption_base_url"`
	Summary            SummaryConfig `mapstructure:"summary"`
	Whisper            WhisperConfig `mapstructure:"whisper"`
}

// SummaryConfig points the transcript summarizer at an OpenAI compatible API.
type SummaryConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	MaxChars        int     `mapstructure:"max_chars"`
	PricePerMillion float64 `mapstructure:"price_per_million"`
}

type WhisperConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Model      string `mapstructure:"model"`
	YTDLPBin   string `mapstructure:"ytdlp_bin"`
	WhisperBin string `mapstructure:"whisper_bin"`
	Workers    int    `mapstructure:"workers"`

	// Timeout bounds one video's transcript step, download and
	// transcription included, when the fallback is enabled.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScholarConfig struct {
	ArxivEndpoint   string        `mapstructure:"arxiv_endpoint"`
	ArxivMaxResults int           `mapstructure:"arxiv_max_results"`
	ArxivInterval   time.Duration `mapstructure:"arxiv_interval"`
	NewsAPIKey      string        `mapstructure:"news_api_key"`
	NewsEndpoint    string        `mapstructure:"news_endpoint"`
	NewsMaxResults  int           `mapstructure:"news_max_results"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// RedisConfig configures report history. An empty Addr disables history.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Workflow.DispatchTimeout < 0 {
		return fmt.Errorf("workflow.dispatch_timeout cannot be negative")
	}
	if c.DeepSearch.MaxTokens <= 0 {
		return fmt.Errorf("deepsearch.max_tokens must be greater than zero")
	}
	if c.DeepSearch.Temperature < 0 || c.DeepSearch.Temperature > 2 {
		return fmt.Errorf("deepsearch.temperature must be within [0,2]")
	}
	if c.DeepSearch.TopP <= 0 || c.DeepSearch.TopP > 1 {
		return fmt.Errorf("deepsearch.top_p must be within (0,1]")
	}
	switch c.Video.Mode {
	case "simple", "extended":
	default:
		return fmt.Errorf("video.mode must be simple or extended, got %q", c.Video.Mode)
	}
	if c.Video.Whisper.Enabled && c.Video.Whisper.Workers <= 0 {
		return fmt.Errorf("video.whisper.workers must be > 0 when whisper is enabled")
	}
	if c.Video.Whisper.Enabled && c.Video.Whisper.Timeout <= 0 {
		return fmt.Errorf("video.whisper.timeout must be greater than zero when whisper is enabled")
	}
	for name, d := range map[string]time.Duration{
		"deepsearch.timeout": c.DeepSearch.Timeout,
		"video.timeout":      c.Video.Timeout,
		"scholar.timeout":    c.Scholar.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	return nil
}

// Normalize fills values derived from other settings.
func (c *Config) Normalize() {
	c.Video.Mode = strings.ToLower(strings.TrimSpace(c.Video.Mode))
	if c.General.DataDir != "" {
		c.General.DataDir = filepath.Clean(c.General.DataDir)
	}
	if c.Redis.KeyPrefix != "" && !strings.HasSuffix(c.Redis.KeyPrefix, ":") {
		c.Redis.KeyPrefix += ":"
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")
	v.SetDefault("general.data_dir", "data")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("workflow.dispatch_timeout", "0s")
	v.SetDefault("workflow.report_interval", "10m")

	v.SetDefault("deepsearch.api_key", "")
	v.SetDefault("deepsearch.base_url", "https://api.perplexity.ai")
	v.SetDefault("deepsearch.model", "sonar-pro")
	v.SetDefault("deepsearch.max_tokens", 2000)
	v.SetDefault("deepsearch.temperature", 0.2)
	v.SetDefault("deepsearch.top_p", 0.9)
	v.SetDefault("deepsearch.timeout", "120s")
	v.SetDefault("deepsearch.price_per_million", 5.0)

	v.SetDefault("video.api_key", "")
	v.SetDefault("video.mode", "extended")
	v.SetDefault("video.published_after_days", 365)
	v.SetDefault("video.timeout", "90s")
	v.SetDefault("video.caption_base_url", "https://video.google.com/timedtext")
	v.SetDefault("video.summary.api_key", "")
	v.SetDefault("video.summary.base_url", "https://api.openai.com/v1")
	v.SetDefault("video.summary.model", "gpt-4o-mini")
	v.SetDefault("video.summary.max_chars", 5000)
	v.SetDefault("video.summary.price_per_million", 0.6)
	v.SetDefault("video.whisper.enabled", false)
	v.SetDefault("video.whisper.model", "base")
	v.SetDefault("video.whisper.ytdlp_bin", "yt-dlp")
	v.SetDefault("video.whisper.whisper_bin", "whisper")
	v.SetDefault("video.whisper.workers", 1)
	v.SetDefault("video.whisper.timeout", "10m")

	v.SetDefault("scholar.arxiv_endpoint", "https://export.arxiv.org/api/query")
	v.SetDefault("scholar.arxiv_max_results", 5)
	v.SetDefault("scholar.arxiv_interval", "3s")
	v.SetDefault("scholar.news_api_key", "")
	v.SetDefault("scholar.news_endpoint", "https://newsapi.org/v2/everything")
	v.SetDefault("scholar.news_max_results", 5)
	v.SetDefault("scholar.timeout", "30s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("redis.key_prefix", "researchdesk:")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "researchdesk")
}

// conventional variable names accepted next to the RESEARCHDESK_ ones
var envAliases = map[string][]string{
	"deepsearch.api_key":      {"PERPLEXITY_API_KEY"},
	"video.api_key":           {"YOUTUBE_API_KEY"},
	"video.summary.api_key":   {"OPENAI_API_KEY"},
	"video.whisper.enabled":   {"ENABLE_WHISPER_FALLBACK"},
	"video.whisper.model":     {"WHISPER_MODEL"},
	"scholar.news_api_key":    {"NEWSAPI_KEY", "NEWS_API_KEY"},
	"redis.addr":              {"REDIS_ADDR"},
	"telemetry.otlp_endpoint": {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// LoadConfig reads configuration from an optional file, a local .env file
// and the environment. path selects an explicit config file; when empty the
// usual locations are searched and a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RESEARCHDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		prefixed := "RESEARCHDESK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
