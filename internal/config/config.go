package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Providers ProvidersConfig `yaml:"providers" envconfig:"PROVIDERS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Stream    StreamConfig    `yaml:"stream" envconfig:"STREAM"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains CORS and rate limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration for the HTTP API
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/leadpulse.log"`
}

// ProvidersConfig holds credentials and tuning for the external collaborators
// the pipeline calls out to. Missing optional keys degrade the corresponding
// stage to a no-op instead of failing the job.
type ProvidersConfig struct {
	// Google Custom Search: profile URL lookup (stage 2)
	GoogleAPIKey string `yaml:"google_api_key" envconfig:"GOOGLE_API_KEY"`
	GoogleCX     string `yaml:"google_cx" envconfig:"GOOGLE_CX"`

	// Contact-data provider (stage 3). Optional: stage is skipped without it.
	ContactAPIKey string `yaml:"contact_api_key" envconfig:"CONTACT_API_KEY"`
	// ContactBaseURL is overridable for tests.
	ContactBaseURL   string `yaml:"contact_base_url" envconfig:"CONTACT_BASE_URL" default:"https://api.dropcontact.com"`
	ContactBatchSize int    `yaml:"contact_batch_size" envconfig:"CONTACT_BATCH_SIZE" default:"50"`

	// Gemini: AI summary generation (stage 5)
	GeminiAPIKey string `yaml:"gemini_api_key" envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Browser scraper (stage 1)
	CookiesPath string `yaml:"cookies_path" envconfig:"COOKIES_PATH" default:"cookies.json"`
	Headless    bool   `yaml:"headless" envconfig:"HEADLESS" default:"false"`

	// Profile-page session for AI context gathering (stage 5). Profiles
	// behind an auth wall come back empty without it.
	ProfileCookiesPath string `yaml:"profile_cookies_path" envconfig:"PROFILE_COOKIES_PATH" default:"linkedin_cookies.json"`

	// RequestDelay paces per-lead calls against free-tier provider quotas.
	RequestDelay time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"2s"`
	// CallTimeout bounds every single provider call.
	CallTimeout time.Duration `yaml:"call_timeout" envconfig:"CALL_TIMEOUT" default:"30s"`
}

// PipelineConfig contains the tuning knobs of the pipeline engine
type PipelineConfig struct {
	HitThreshold    int `yaml:"hit_threshold" envconfig:"HIT_THRESHOLD" default:"50"`
	MaxLeadsDefault int `yaml:"max_leads_default" envconfig:"MAX_LEADS_DEFAULT" default:"500"`
	MaxLeadsLimit   int `yaml:"max_leads_limit" envconfig:"MAX_LEADS_LIMIT" default:"5000"`

	// StageConcurrency bounds per-lead parallelism within enrichment stages.
	StageConcurrency int `yaml:"stage_concurrency" envconfig:"STAGE_CONCURRENCY" default:"4"`

	// EventLogCap is the number of progress events retained per job for
	// replay to late subscribers.
	EventLogCap int `yaml:"event_log_cap" envconfig:"EVENT_LOG_CAP" default:"100"`

	// RetentionTTL evicts terminal jobs after this duration. Zero keeps
	// jobs for the lifetime of the process.
	RetentionTTL time.Duration `yaml:"retention_ttl" envconfig:"RETENTION_TTL" default:"0"`

	// ExportDir is where CSV/XLSX exports are written.
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR" default:"output"`
}

// StreamConfig contains progress-stream (WebSocket) configuration
type StreamConfig struct {
	WriteWait  time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT" default:"10s"`
	PongWait   time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	PingPeriod time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	SendBuffer int           `yaml:"send_buffer" envconfig:"SEND_BUFFER" default:"256"`
}

// Default returns the built-in configuration with all defaults applied
// and nothing read from files. Environment variables still apply.
func Default() *Config {
	var cfg Config
	if err := envconfig.Process("LEADPULSE", &cfg); err != nil {
		// Only possible with malformed struct tags.
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables win over file values.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("LEADPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func configFilePath() string {
	if p := os.Getenv("LEADPULSE_CONFIG"); p != "" {
		return p
	}
	return "leadpulse.yaml"
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs overlays file values onto env values, field by field. The
// env config already carries every struct default, so a zero-value field in
// the file falls back to the env/default value and a partial file section
// never wipes the rest of the section. Credentials supplied through the
// environment win over file values. Booleans always follow env: a false in
// the file is indistinguishable from absent.
func mergeConfigs(file, env Config) Config {
	merged := file

	// Credentials are the values most often supplied via environment.
	if env.Providers.GoogleAPIKey != "" {
		merged.Providers.GoogleAPIKey = env.Providers.GoogleAPIKey
	}
	if env.Providers.GoogleCX != "" {
		merged.Providers.GoogleCX = env.Providers.GoogleCX
	}
	if env.Providers.ContactAPIKey != "" {
		merged.Providers.ContactAPIKey = env.Providers.ContactAPIKey
	}
	if env.Providers.GeminiAPIKey != "" {
		merged.Providers.GeminiAPIKey = env.Providers.GeminiAPIKey
	}

	// Server
	if merged.Server.Port == 0 {
		merged.Server.Port = env.Server.Port
	}
	if merged.Server.ReadTimeout == 0 {
		merged.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if merged.Server.WriteTimeout == 0 {
		merged.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if merged.Server.IdleTimeout == 0 {
		merged.Server.IdleTimeout = env.Server.IdleTimeout
	}
	if merged.Server.ShutdownTimeout == 0 {
		merged.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}

	// Security
	if len(merged.Security.AllowedOrigins) == 0 {
		merged.Security.AllowedOrigins = env.Security.AllowedOrigins
	}
	merged.Security.EnableCORS = env.Security.EnableCORS
	merged.Security.RateLimit.Enabled = env.Security.RateLimit.Enabled
	if merged.Security.RateLimit.RPS == 0 {
		merged.Security.RateLimit.RPS = env.Security.RateLimit.RPS
	}
	if merged.Security.RateLimit.Burst == 0 {
		merged.Security.RateLimit.Burst = env.Security.RateLimit.Burst
	}

	// Logging
	if merged.Logging.Level == "" {
		merged.Logging.Level = env.Logging.Level
	}
	if merged.Logging.Output == "" {
		merged.Logging.Output = env.Logging.Output
	}
	if merged.Logging.FilePath == "" {
		merged.Logging.FilePath = env.Logging.FilePath
	}

	// Providers
	if merged.Providers.ContactBaseURL == "" {
		merged.Providers.ContactBaseURL = env.Providers.ContactBaseURL
	}
	if merged.Providers.ContactBatchSize == 0 {
		merged.Providers.ContactBatchSize = env.Providers.ContactBatchSize
	}
	if merged.Providers.GeminiModel == "" {
		merged.Providers.GeminiModel = env.Providers.GeminiModel
	}
	if merged.Providers.CallTimeout == 0 {
		merged.Providers.CallTimeout = env.Providers.CallTimeout
	}
	if merged.Providers.RequestDelay == 0 {
		merged.Providers.RequestDelay = env.Providers.RequestDelay
	}
	if merged.Providers.CookiesPath == "" {
		merged.Providers.CookiesPath = env.Providers.CookiesPath
	}
	if merged.Providers.ProfileCookiesPath == "" {
		merged.Providers.ProfileCookiesPath = env.Providers.ProfileCookiesPath
	}
	merged.Providers.Headless = env.Providers.Headless

	// Pipeline
	if merged.Pipeline.HitThreshold == 0 {
		merged.Pipeline.HitThreshold = env.Pipeline.HitThreshold
	}
	if merged.Pipeline.MaxLeadsDefault == 0 {
		merged.Pipeline.MaxLeadsDefault = env.Pipeline.MaxLeadsDefault
	}
	if merged.Pipeline.MaxLeadsLimit == 0 {
		merged.Pipeline.MaxLeadsLimit = env.Pipeline.MaxLeadsLimit
	}
	if merged.Pipeline.StageConcurrency == 0 {
		merged.Pipeline.StageConcurrency = env.Pipeline.StageConcurrency
	}
	if merged.Pipeline.EventLogCap == 0 {
		merged.Pipeline.EventLogCap = env.Pipeline.EventLogCap
	}
	if merged.Pipeline.RetentionTTL == 0 {
		merged.Pipeline.RetentionTTL = env.Pipeline.RetentionTTL
	}
	if merged.Pipeline.ExportDir == "" {
		merged.Pipeline.ExportDir = env.Pipeline.ExportDir
	}

	// Stream
	if merged.Stream.WriteWait == 0 {
		merged.Stream.WriteWait = env.Stream.WriteWait
	}
	if merged.Stream.PongWait == 0 {
		merged.Stream.PongWait = env.Stream.PongWait
	}
	if merged.Stream.PingPeriod == 0 {
		merged.Stream.PingPeriod = env.Stream.PingPeriod
	}
	if merged.Stream.SendBuffer == 0 {
		merged.Stream.SendBuffer = env.Stream.SendBuffer
	}

	return merged
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.HitThreshold < 0 || c.Pipeline.HitThreshold > 100 {
		return fmt.Errorf("hit threshold must be within 0-100, got %d", c.Pipeline.HitThreshold)
	}
	if c.Pipeline.MaxLeadsLimit < 1 {
		return fmt.Errorf("max leads limit must be positive, got %d", c.Pipeline.MaxLeadsLimit)
	}
	if c.Pipeline.MaxLeadsDefault < 1 || c.Pipeline.MaxLeadsDefault > c.Pipeline.MaxLeadsLimit {
		return fmt.Errorf("max leads default %d outside 1-%d", c.Pipeline.MaxLeadsDefault, c.Pipeline.MaxLeadsLimit)
	}
	if c.Pipeline.StageConcurrency < 1 {
		return fmt.Errorf("stage concurrency must be positive, got %d", c.Pipeline.StageConcurrency)
	}
	if c.Pipeline.EventLogCap < 1 {
		return fmt.Errorf("event log cap must be positive, got %d", c.Pipeline.EventLogCap)
	}
	if c.Stream.PingPeriod >= c.Stream.PongWait {
		return fmt.Errorf("stream ping period %s must be shorter than pong wait %s", c.Stream.PingPeriod, c.Stream.PongWait)
	}
	return nil
}

// MissingCredentials reports which required provider credentials are absent.
// The contact-data key is optional and therefore never reported.
func (c *Config) MissingCredentials() []string {
	missing := []string{}
	if c.Providers.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if c.Providers.GoogleCX == "" {
		missing = append(missing, "GOOGLE_CX")
	}
	if c.Providers.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	return missing
}
