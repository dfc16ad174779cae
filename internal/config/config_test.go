package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
bot:
  admin_ids: ["1001", "1002"]
gateway:
  base_url: https://pay.example.test
  poll_interval: 5s
  poll_attempts: 10
dedup:
  ttl: 2m
kafka:
  enabled: true
  brokers: ["kafka:9092"]
  topic: deliveries
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[0] != "1001" {
		t.Fatalf("unexpected admin ids: %v", cfg.Bot.AdminIDs)
	}
	if cfg.Gateway.BaseURL != "https://pay.example.test" {
		t.Fatalf("unexpected gateway base url: %s", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Gateway.PollInterval)
	}
	if cfg.Gateway.PollAttempts != 10 {
		t.Fatalf("unexpected poll attempts: %d", cfg.Gateway.PollAttempts)
	}
	if cfg.Dedup.TTL != 2*time.Minute {
		t.Fatalf("unexpected dedup ttl: %s", cfg.Dedup.TTL)
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Topic != "deliveries" {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}

	if cfg.Gateway.InitRetries != 3 {
		t.Fatalf("init_retries default should stay 3")
	}
	if cfg.Gateway.RetryBackoff != 2*time.Second {
		t.Fatalf("retry_backoff default should stay 2s")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Gateway.PollInterval != 3*time.Second {
		t.Fatalf("unexpected default poll interval: %s", cfg.Gateway.PollInterval)
	}
	if cfg.Gateway.PollAttempts != 40 {
		t.Fatalf("unexpected default poll attempts: %d", cfg.Gateway.PollAttempts)
	}
	if cfg.Dedup.TTL != 60*time.Second {
		t.Fatalf("unexpected default dedup ttl: %s", cfg.Dedup.TTL)
	}
	if cfg.Kafka.Enabled {
		t.Fatalf("kafka must be disabled by default")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BOT_ADMIN_IDS", " 42, 43 ,")
	t.Setenv("GATEWAY_POLL_ATTEMPTS", "5")
	t.Setenv("DEDUP_TTL", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[1] != "43" {
		t.Fatalf("unexpected admin ids: %v", cfg.Bot.AdminIDs)
	}
	if cfg.Gateway.PollAttempts != 5 {
		t.Fatalf("unexpected poll attempts: %d", cfg.Gateway.PollAttempts)
	}
	if cfg.Dedup.TTL != 30*time.Second {
		t.Fatalf("unexpected dedup ttl: %s", cfg.Dedup.TTL)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GATEWAY_POLL_INTERVAL", "soon")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}

func TestLoadRejectsZeroPollAttempts(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GATEWAY_POLL_ATTEMPTS", "0")

	// "0" is a set value, not an empty one, so the override applies.
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for zero poll attempts")
	}
}

func TestLoadRejectsMissingBotTokenInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when bot.token is empty in production")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENABLED",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"KAFKA_ENABLED",
		"KAFKA_BROKERS",
		"KAFKA_TOPIC",
		"BOT_TOKEN",
		"BOT_ADMIN_IDS",
		"GATEWAY_BASE_URL",
		"GATEWAY_API_KEY",
		"GATEWAY_ACCOUNT_ID",
		"GATEWAY_CALLBACK_URL",
		"GATEWAY_TIMEOUT",
		"GATEWAY_INIT_RETRIES",
		"GATEWAY_RETRY_BACKOFF",
		"GATEWAY_POLL_INTERVAL",
		"GATEWAY_POLL_ATTEMPTS",
		"GATEWAY_TOPUP_PER_MINUTE",
		"GATEWAY_TOPUP_PER_HOUR",
		"API_KEY",
		"API_CALLBACK_KEY",
		"API_CORS_ORIGINS",
		"API_JWT_SECRET",
		"API_TOKEN_TTL",
		"DEDUP_TTL",
		"SESSION_TTL",
		"CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
