package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, falling back to defaults.
func Load() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("WIKI_STREAM_URL"); v != "" {
		cfg.StreamURL = v
	}
	if v := os.Getenv("WIKI_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURLs = splitList(v)
	}
	if v := os.Getenv("NATS_USERNAME"); v != "" {
		cfg.NATSUsername = v
	}
	if v := os.Getenv("NATS_PASSWORD"); v != "" {
		cfg.NATSPassword = v
	}
	if v := os.Getenv("NATS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NATSTimeout = d
		}
	}
	if v := os.Getenv("BUS_STREAM"); v != "" {
		cfg.StreamName = v
	}
	if v := os.Getenv("BUS_SUBJECT"); v != "" {
		cfg.Subject = v
	}
	if v := os.Getenv("BUS_CONSUMER"); v != "" {
		cfg.ConsumerName = v
	}
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("FETCH_BATCH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.FetchBatch = i
		}
	}
	if v := os.Getenv("FETCH_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FetchWait = d
		}
	}
	if v := os.Getenv("SINK_BACKEND"); v != "" {
		cfg.SinkBackend = strings.ToLower(v)
	}
	if v := os.Getenv("SINK_DSN"); v != "" {
		cfg.SinkDSN = v
	}
	if v := os.Getenv("SINK_TABLE"); v != "" {
		cfg.SinkTable = v
	}
	if v := strings.ToLower(os.Getenv("DEDUP_ENABLED")); v == "1" || v == "true" || v == "yes" {
		cfg.DedupEnabled = true
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("DEDUP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DedupTTL = d
		}
	}
	if v := os.Getenv("HEALTH_ADDR"); v != "" {
		cfg.HealthAddr = v
	}
	if v := strings.ToLower(os.Getenv("DEBUG")); v == "1" || v == "true" || v == "yes" {
		cfg.Debug = true
	}

	return cfg
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
