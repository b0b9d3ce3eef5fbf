package config

import (
	"time"
)

// Config captures settings for both the ingest bridge and the pipeline.
type Config struct {
	// Upstream SSE feed (ingest bridge only).
	StreamURL string
	UserAgent string

	// NATS / JetStream.
	NATSURLs     []string
	NATSUsername string
	NATSPassword string
	NATSTimeout  time.Duration
	StreamName   string
	Subject      string
	ConsumerName string

	// Pipeline runtime.
	Workers    int
	FetchBatch int
	FetchWait  time.Duration

	// Sink.
	SinkBackend string // clickhouse or postgres
	SinkDSN     string
	SinkTable   string

	// Optional event_id dedup.
	DedupEnabled bool
	RedisURL     string
	DedupTTL     time.Duration

	HealthAddr string
	Debug      bool
}

// DefaultConfig provides safe defaults for local prototyping.
func DefaultConfig() Config {
	return Config{
		StreamURL:    "https://stream.wikimedia.org/v2/stream/recentchange",
		UserAgent:    "wikiflow/1.0 (change-analytics pipeline)",
		NATSURLs:     []string{"nats://localhost:4222"},
		NATSTimeout:  5 * time.Second,
		StreamName:   "WIKI",
		Subject:      "wiki.recentchange",
		ConsumerName: "wikiflow-pipeline",
		Workers:      8,
		FetchBatch:   64,
		FetchWait:    2 * time.Second,
		SinkBackend:  "clickhouse",
		SinkDSN:      "clickhouse://localhost:9000/default",
		SinkTable:    "wiki_edits",
		RedisURL:     "redis://localhost:6379",
		DedupTTL:     24 * time.Hour,
		HealthAddr:   ":8080",
	}
}
