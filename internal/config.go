package internal

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. It is loaded from a YAML
// file with environment variables expanded, then the recognized
// environment overrides are applied on top, so deployments can run with
// no file at all.
type Config struct {
	// Server holds the HTTP boundary configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`

	// Webhook holds the inbound webhook endpoint configuration.
	Webhook struct {
		Path   string `yaml:"path"`
		Secret string `yaml:"secret"`
	} `yaml:"webhook"`

	// Queue bounds the in-memory event queue.
	Queue struct {
		CapacityPerKind int `yaml:"capacity_per_kind"`
	} `yaml:"queue"`

	// Workers configures the processing pool.
	Workers struct {
		Count            int   `yaml:"count"`
		MaxRetryAttempts int   `yaml:"max_retry_attempts"`
		RetryBaseDelayMS int64 `yaml:"retry_base_delay_ms"`
		ShutdownGraceMS  int64 `yaml:"shutdown_grace_ms"`
	} `yaml:"workers"`

	// GitLab configures the rate-limited API client.
	GitLab GitLabConfig `yaml:"gitlab"`

	// Dispatch configures result delivery retries, separate from the
	// worker retry budget.
	Dispatch struct {
		MaxAttempts int   `yaml:"max_attempts"`
		BaseDelayMS int64 `yaml:"base_delay_ms"`
	} `yaml:"dispatch"`

	// PriorityRules run before the built-in defaults.
	PriorityRules []PriorityRule `yaml:"priority_rules"`

	// Stream configures the outcome notification publisher.
	Stream StreamConfig `yaml:"stream"`
}

// GitLabConfig holds everything the API client needs; the token is
// injected here and nowhere else.
type GitLabConfig struct {
	BaseURL                 string  `yaml:"base_url"`
	Token                   string  `yaml:"token"`
	TokensPerSecond         float64 `yaml:"rate_limit_tokens_per_second"`
	Burst                   float64 `yaml:"rate_limit_burst"`
	RateWaitTimeoutMS       int64   `yaml:"rate_wait_timeout_ms"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold"`
	CircuitWindowMS         int64   `yaml:"circuit_window_ms"`
	CircuitCooldownSeconds  int     `yaml:"circuit_cooldown_seconds"`
	CircuitHalfOpenProbes   int     `yaml:"circuit_half_open_probes"`
	CircuitSuccessStreak    int     `yaml:"circuit_success_streak"`
	CacheTTLSeconds         int     `yaml:"cache_ttl_seconds"`
	CacheStaticTTLSeconds   int     `yaml:"cache_static_ttl_seconds"`
}

// StreamConfig holds configuration for the outcome stream publisher.
type StreamConfig struct {
	Driver    string          `yaml:"driver"`
	Drivers   []string        `yaml:"drivers"`
	Topic     string          `yaml:"topic"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	SQL       SQLConfig       `yaml:"sql"`
}

// GoChannelConfig holds configuration for the in-process pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer int64 `yaml:"output_buffer"`
	Persistent          bool  `yaml:"persistent"`
}

// KafkaConfig holds configuration for the Kafka driver.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming driver.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP driver.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL driver.
type SQLConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Dialect          string `yaml:"dialect"`
	InitializeSchema bool   `yaml:"initialize_schema"`
}

// LoadConfig loads configuration from a YAML file, expands environment
// variables, applies defaults and the environment overrides. A missing
// file is not an error when the path is empty.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envInt("WORKER_COUNT"); ok {
		cfg.Workers.Count = v
	}
	if v, ok := envInt("QUEUE_CAPACITY_PER_KIND"); ok {
		cfg.Queue.CapacityPerKind = v
	}
	if v, ok := envFloat("RATE_LIMIT_TOKENS_PER_SECOND"); ok {
		cfg.GitLab.TokensPerSecond = v
	}
	if v, ok := envInt("CIRCUIT_FAILURE_THRESHOLD"); ok {
		cfg.GitLab.CircuitFailureThreshold = v
	}
	if v, ok := envInt("CIRCUIT_COOLDOWN_SECONDS"); ok {
		cfg.GitLab.CircuitCooldownSeconds = v
	}
	if v, ok := envInt("CACHE_TTL_SECONDS"); ok {
		cfg.GitLab.CacheTTLSeconds = v
	}
	if v, ok := envInt("MAX_RETRY_ATTEMPTS"); ok {
		cfg.Workers.MaxRetryAttempts = v
	}
	if v, ok := envInt("RETRY_BASE_DELAY_MS"); ok {
		cfg.Workers.RetryBaseDelayMS = int64(v)
	}
	if v := os.Getenv("WEBHOOK_SHARED_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("GITLAB_TOKEN"); v != "" {
		cfg.GitLab.Token = v
	}
	if v := os.Getenv("GITLAB_BASE_URL"); v != "" {
		cfg.GitLab.BaseURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhooks/gitlab"
	}
	if cfg.Queue.CapacityPerKind == 0 {
		cfg.Queue.CapacityPerKind = 100
	}
	if cfg.Workers.Count == 0 {
		cfg.Workers.Count = 5
	}
	if cfg.Workers.MaxRetryAttempts == 0 {
		cfg.Workers.MaxRetryAttempts = 3
	}
	if cfg.Workers.RetryBaseDelayMS == 0 {
		cfg.Workers.RetryBaseDelayMS = 500
	}
	if cfg.Workers.ShutdownGraceMS == 0 {
		cfg.Workers.ShutdownGraceMS = 10000
	}
	if cfg.GitLab.BaseURL == "" {
		cfg.GitLab.BaseURL = "https://gitlab.com"
	}
	if cfg.GitLab.TokensPerSecond == 0 {
		cfg.GitLab.TokensPerSecond = 10
	}
	if cfg.GitLab.Burst == 0 {
		cfg.GitLab.Burst = cfg.GitLab.TokensPerSecond
	}
	if cfg.GitLab.RateWaitTimeoutMS == 0 {
		cfg.GitLab.RateWaitTimeoutMS = 30000
	}
	if cfg.GitLab.CircuitFailureThreshold == 0 {
		cfg.GitLab.CircuitFailureThreshold = 5
	}
	if cfg.GitLab.CircuitWindowMS == 0 {
		cfg.GitLab.CircuitWindowMS = 60000
	}
	if cfg.GitLab.CircuitCooldownSeconds == 0 {
		cfg.GitLab.CircuitCooldownSeconds = 30
	}
	if cfg.GitLab.CircuitHalfOpenProbes == 0 {
		cfg.GitLab.CircuitHalfOpenProbes = 1
	}
	if cfg.GitLab.CircuitSuccessStreak == 0 {
		cfg.GitLab.CircuitSuccessStreak = 1
	}
	if cfg.GitLab.CacheTTLSeconds == 0 {
		cfg.GitLab.CacheTTLSeconds = 300
	}
	if cfg.GitLab.CacheStaticTTLSeconds == 0 {
		cfg.GitLab.CacheStaticTTLSeconds = 3600
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 2
	}
	if cfg.Dispatch.BaseDelayMS == 0 {
		cfg.Dispatch.BaseDelayMS = 250
	}
	if cfg.Stream.Driver == "" && len(cfg.Stream.Drivers) == 0 {
		cfg.Stream.Driver = "gochannel"
	}
	if cfg.Stream.Topic == "" {
		cfg.Stream.Topic = "gitaiops.outcomes"
	}
	if cfg.Stream.GoChannel.OutputChannelBuffer == 0 {
		cfg.Stream.GoChannel.OutputChannelBuffer = 64
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
