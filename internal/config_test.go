package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Webhook.Path != "/webhooks/gitlab" {
		t.Fatalf("Webhook.Path = %q", cfg.Webhook.Path)
	}
	if cfg.Queue.CapacityPerKind != 100 {
		t.Fatalf("Queue.CapacityPerKind = %d, want 100", cfg.Queue.CapacityPerKind)
	}
	if cfg.Workers.Count != 5 || cfg.Workers.MaxRetryAttempts != 3 || cfg.Workers.RetryBaseDelayMS != 500 {
		t.Fatalf("Workers defaults wrong: %+v", cfg.Workers)
	}
	if cfg.GitLab.CircuitFailureThreshold != 5 || cfg.GitLab.CircuitCooldownSeconds != 30 {
		t.Fatalf("GitLab circuit defaults wrong: %+v", cfg.GitLab)
	}
	if cfg.GitLab.CacheTTLSeconds != 300 || cfg.GitLab.CacheStaticTTLSeconds != 3600 {
		t.Fatalf("GitLab cache defaults wrong: %+v", cfg.GitLab)
	}
	if cfg.Stream.Driver != "gochannel" || cfg.Stream.Topic != "gitaiops.outcomes" {
		t.Fatalf("Stream defaults wrong: %+v", cfg.Stream)
	}
}

func TestLoadConfigFileWithExpansion(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_SECRET", "s3cr3t")

	raw := `
server:
  port: 9090
webhook:
  secret: ${TEST_WEBHOOK_SECRET}
workers:
  count: 8
gitlab:
  base_url: https://gitlab.example.com
  rate_limit_tokens_per_second: 2.5
priority_rules:
  - when: kind == "push"
    priority: critical
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Webhook.Secret != "s3cr3t" {
		t.Fatalf("Webhook.Secret = %q, env expansion failed", cfg.Webhook.Secret)
	}
	if cfg.Workers.Count != 8 {
		t.Fatalf("Workers.Count = %d, want 8", cfg.Workers.Count)
	}
	if cfg.GitLab.BaseURL != "https://gitlab.example.com" {
		t.Fatalf("GitLab.BaseURL = %q", cfg.GitLab.BaseURL)
	}
	if cfg.GitLab.TokensPerSecond != 2.5 {
		t.Fatalf("GitLab.TokensPerSecond = %v, want 2.5", cfg.GitLab.TokensPerSecond)
	}
	if len(cfg.PriorityRules) != 1 || cfg.PriorityRules[0].Priority != "critical" {
		t.Fatalf("PriorityRules = %+v", cfg.PriorityRules)
	}
}

func TestLoadConfigEnvOverridesBeatFile(t *testing.T) {
	raw := `
queue:
  capacity_per_kind: 50
workers:
  count: 2
  max_retry_attempts: 9
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WORKER_COUNT", "11")
	t.Setenv("QUEUE_CAPACITY_PER_KIND", "7")
	t.Setenv("MAX_RETRY_ATTEMPTS", "4")
	t.Setenv("RATE_LIMIT_TOKENS_PER_SECOND", "3")
	t.Setenv("CIRCUIT_FAILURE_THRESHOLD", "2")
	t.Setenv("CIRCUIT_COOLDOWN_SECONDS", "12")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("WEBHOOK_SHARED_SECRET", "from-env")
	t.Setenv("GITLAB_TOKEN", "glpat-test")
	t.Setenv("GITLAB_BASE_URL", "https://gitlab.internal")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workers.Count != 11 {
		t.Fatalf("Workers.Count = %d, want 11", cfg.Workers.Count)
	}
	if cfg.Queue.CapacityPerKind != 7 {
		t.Fatalf("Queue.CapacityPerKind = %d, want 7", cfg.Queue.CapacityPerKind)
	}
	if cfg.Workers.MaxRetryAttempts != 4 {
		t.Fatalf("Workers.MaxRetryAttempts = %d, want 4", cfg.Workers.MaxRetryAttempts)
	}
	if cfg.GitLab.TokensPerSecond != 3 {
		t.Fatalf("GitLab.TokensPerSecond = %v, want 3", cfg.GitLab.TokensPerSecond)
	}
	if cfg.GitLab.CircuitFailureThreshold != 2 || cfg.GitLab.CircuitCooldownSeconds != 12 {
		t.Fatalf("circuit overrides not applied: %+v", cfg.GitLab)
	}
	if cfg.GitLab.CacheTTLSeconds != 60 {
		t.Fatalf("GitLab.CacheTTLSeconds = %d, want 60", cfg.GitLab.CacheTTLSeconds)
	}
	if cfg.Webhook.Secret != "from-env" {
		t.Fatalf("Webhook.Secret = %q", cfg.Webhook.Secret)
	}
	if cfg.GitLab.Token != "glpat-test" || cfg.GitLab.BaseURL != "https://gitlab.internal" {
		t.Fatalf("GitLab credentials not applied: %+v", cfg.GitLab)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
