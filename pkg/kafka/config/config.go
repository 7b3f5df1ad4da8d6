// Package kafka_config reads the broker settings shared by the ledger feed
// producer and the notifier consumer.
package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"smartassist/pkg/logger"
)

const (
	EnvKafkaBrokers          = "KAFKA_BROKERS"
	EnvKafkaClientID         = "KAFKA_CLIENT_ID"
	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"

	EnvProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"

	EnvConsumerStartOffset       = "KAFKA_CONSUMER_START_OFFSET"
	EnvConsumerMaxBytes          = "KAFKA_CONSUMER_MAX_BYTES"
	EnvConsumerMaxWait           = "KAFKA_CONSUMER_MAX_WAIT"
	EnvConsumerCommitInterval    = "KAFKA_CONSUMER_COMMIT_INTERVAL"
	EnvConsumerHeartbeatInterval = "KAFKA_CONSUMER_HEARTBEAT_INTERVAL"
	EnvConsumerSessionTimeout    = "KAFKA_CONSUMER_SESSION_TIMEOUT"
	EnvConsumerRebalanceTimeout  = "KAFKA_CONSUMER_REBALANCE_TIMEOUT"
	EnvConsumerMaxRetries        = "KAFKA_CONSUMER_MAX_RETRIES"
)

// StartOffset values understood by kafka-go.
const (
	OffsetNewest int64 = -1
	OffsetOldest int64 = -2
)

var compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}

type Producer struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	// RequireAcks: -1 all replicas, 0 none, 1 leader only.
	RequireAcks int
	Compression string
}

type Consumer struct {
	StartOffset       int64
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	// MaxRetries bounds transient redeliveries before a message is parked in the DLQ.
	MaxRetries int
}

type Config struct {
	Brokers  []string
	ClientID string

	Producer Producer
	Consumer Consumer

	EnableMiddleware bool
}

// Default is tuned for the ledger feed: low-latency single-event writes acked
// by every replica, and a notifier group that starts from the oldest offset so
// a fresh deployment does not skip pending approval mails.
func Default() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "smartassist",
		Producer: Producer{
			MaxAttempts:  5,
			BatchTimeout: 5 * time.Millisecond,
			RequireAcks:  -1,
			Compression:  "snappy",
		},
		Consumer: Consumer{
			StartOffset:       OffsetOldest,
			MinBytes:          1,
			MaxBytes:          1 << 20,
			MaxWait:           500 * time.Millisecond,
			CommitInterval:    0,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
			RebalanceTimeout:  60 * time.Second,
			MaxRetries:        3,
		},
		EnableMiddleware: true,
	}
}

// Load overlays the environment on Default and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	e := env{}

	if brokers := splitBrokers(os.Getenv(EnvKafkaBrokers)); len(brokers) > 0 {
		cfg.Brokers = brokers
	}
	cfg.ClientID = e.str(EnvKafkaClientID, cfg.ClientID)
	cfg.EnableMiddleware = e.boolean(EnvKafkaEnableMiddleware, cfg.EnableMiddleware)

	p := &cfg.Producer
	p.MaxAttempts = e.integer(EnvProducerMaxAttempts, p.MaxAttempts)
	p.BatchTimeout = e.duration(EnvProducerBatchTimeout, p.BatchTimeout)
	p.RequireAcks = e.integer(EnvProducerRequireAcks, p.RequireAcks)
	p.Compression = strings.ToLower(e.str(EnvProducerCompression, p.Compression))

	c := &cfg.Consumer
	c.StartOffset = int64(e.integer(EnvConsumerStartOffset, int(c.StartOffset)))
	c.MaxBytes = e.integer(EnvConsumerMaxBytes, c.MaxBytes)
	c.MaxWait = e.duration(EnvConsumerMaxWait, c.MaxWait)
	c.CommitInterval = e.duration(EnvConsumerCommitInterval, c.CommitInterval)
	c.HeartbeatInterval = e.duration(EnvConsumerHeartbeatInterval, c.HeartbeatInterval)
	c.SessionTimeout = e.duration(EnvConsumerSessionTimeout, c.SessionTimeout)
	c.RebalanceTimeout = e.duration(EnvConsumerRebalanceTimeout, c.RebalanceTimeout)
	c.MaxRetries = e.integer(EnvConsumerMaxRetries, c.MaxRetries)

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("kafka: unparsable environment: %s", strings.Join(e.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(len(cfg.Brokers) > 0, "at least one broker is required")
	check(cfg.Producer.MaxAttempts > 0, "producer max attempts must be positive, got %d", cfg.Producer.MaxAttempts)
	check(cfg.Producer.BatchTimeout > 0, "producer batch timeout must be positive, got %s", cfg.Producer.BatchTimeout)
	check(cfg.Producer.RequireAcks >= -1 && cfg.Producer.RequireAcks <= 1, "producer require acks must be -1, 0 or 1, got %d", cfg.Producer.RequireAcks)
	check(contains(compressions, cfg.Producer.Compression), "producer compression must be one of %v, got %q", compressions, cfg.Producer.Compression)

	check(cfg.Consumer.StartOffset == OffsetNewest || cfg.Consumer.StartOffset == OffsetOldest,
		"consumer start offset must be -1 (newest) or -2 (oldest), got %d", cfg.Consumer.StartOffset)
	check(cfg.Consumer.MinBytes > 0 && cfg.Consumer.MaxBytes >= cfg.Consumer.MinBytes,
		"consumer byte bounds must satisfy 0 < min <= max, got %d..%d", cfg.Consumer.MinBytes, cfg.Consumer.MaxBytes)
	check(cfg.Consumer.MaxWait > 0, "consumer max wait must be positive, got %s", cfg.Consumer.MaxWait)
	check(cfg.Consumer.CommitInterval >= 0, "consumer commit interval cannot be negative, got %s", cfg.Consumer.CommitInterval)
	check(cfg.Consumer.HeartbeatInterval > 0 && cfg.Consumer.HeartbeatInterval < cfg.Consumer.SessionTimeout,
		"consumer heartbeat interval must be positive and below the session timeout, got %s / %s", cfg.Consumer.HeartbeatInterval, cfg.Consumer.SessionTimeout)
	check(cfg.Consumer.RebalanceTimeout > 0, "consumer rebalance timeout must be positive, got %s", cfg.Consumer.RebalanceTimeout)
	check(cfg.Consumer.MaxRetries >= 0, "consumer max retries cannot be negative, got %d", cfg.Consumer.MaxRetries)

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"producer_max_attempts", cfg.Producer.MaxAttempts,
		"producer_batch_timeout", cfg.Producer.BatchTimeout,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"consumer_start_offset", cfg.Consumer.StartOffset,
		"consumer_max_bytes", cfg.Consumer.MaxBytes,
		"consumer_session_timeout", cfg.Consumer.SessionTimeout,
		"consumer_max_retries", cfg.Consumer.MaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func splitBrokers(value string) []string {
	var brokers []string
	for _, b := range strings.Split(value, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// env reads typed values and remembers the keys it could not parse, so a typo
// in a duration fails startup instead of silently falling back to the default.
type env struct {
	errs []string
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) integer(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, key+"="+v)
		return fallback
	}
	return n
}

func (e *env) boolean(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, key+"="+v)
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, key+"="+v)
		return fallback
	}
	return d
}
