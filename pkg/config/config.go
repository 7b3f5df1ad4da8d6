package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"smartassist/pkg/client"
	"smartassist/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	StorageDriver     string
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	LockDriver      string
	LockTTL         time.Duration
	LockWaitTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	EventsDriver        string
	EventsQueueSize     int
	KafkaLedgerTopic    string
	KafkaLedgerDLQTopic string
	KafkaNotifierGroup  string
	RabbitMQURL         string

	ApprovalPolicy string
	AllowPastDates bool
	LedgerTimezone string
	Location       *time.Location

	ActionLinkKey string
	BaseURL       string

	AssistantURL     string
	AssistantTimeout time.Duration
	MaxUploadSize    int

	NotifyInline bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	AdminEmail   string

	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads .env (when present) and the process environment, validates the
// result and exits on invalid configuration.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv(serviceName)
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv(serviceName string) *Config {
	cfg := &Config{
		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		StorageDriver:     strings.ToLower(getEnvStr(EnvStorageDriver, DefaultStorageDriver)),
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		LockDriver:      strings.ToLower(getEnvStr(EnvLockDriver, DefaultLockDriver)),
		LockTTL:         getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockWaitTimeout: getEnvDuration(EnvLockWaitTimeout, DefaultLockWaitTimeout),
		RedisAddr:       getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:   getEnvStr(EnvRedisPassword, ""),
		RedisDB:         getEnvNum(EnvRedisDB, DefaultRedisDB),

		EventsDriver:        strings.ToLower(getEnvStr(EnvEventsDriver, DefaultEventsDriver)),
		EventsQueueSize:     getEnvNum(EnvEventsQueueSize, DefaultEventsQueueSize),
		KafkaLedgerTopic:    getEnvStr(EnvKafkaLedgerTopic, DefaultKafkaLedgerTopic),
		KafkaLedgerDLQTopic: getEnvStr(EnvKafkaLedgerDLQTopic, DefaultKafkaLedgerDLQTopic),
		KafkaNotifierGroup:  getEnvStr(EnvKafkaNotifierGroup, DefaultKafkaNotifierGroup),
		RabbitMQURL:         getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),

		ApprovalPolicy: strings.ToLower(getEnvStr(EnvApprovalPolicy, DefaultApprovalPolicy)),
		AllowPastDates: getEnvBool(EnvAllowPastDates, DefaultAllowPastDates),
		LedgerTimezone: getEnvStr(EnvLedgerTimezone, DefaultLedgerTimezone),

		ActionLinkKey: getEnvStr(EnvActionLinkKey, ""),
		BaseURL:       strings.TrimRight(getEnvStr(EnvBaseURL, DefaultBaseURL), "/"),

		AssistantURL:     strings.TrimRight(getEnvStr(EnvAssistantURL, ""), "/"),
		AssistantTimeout: getEnvDuration(EnvAssistantTimeout, DefaultAssistantTimeout),
		MaxUploadSize:    getEnvNum(EnvMaxUploadSize, DefaultMaxUploadSize),

		NotifyInline: getEnvBool(EnvNotifyInline, DefaultNotifyInline),
		SMTPHost:     getEnvStr(EnvSMTPHost, ""),
		SMTPPort:     getEnvNum(EnvSMTPPort, DefaultSMTPPort),
		SMTPUser:     getEnvStr(EnvSMTPUser, ""),
		SMTPPassword: getEnvStr(EnvSMTPPassword, ""),
		AdminEmail:   getEnvStr(EnvAdminEmail, ""),

		CORSAllowedOrigins: splitList(getEnvStr(EnvCORSAllowedOrigins, DefaultCORSAllowedOrigins)),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Client: client.NewClient(),
	}

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})

	if loc, err := time.LoadLocation(cfg.LedgerTimezone); err == nil {
		cfg.Location = loc
	}

	if cfg.AdminEmail == "" {
		cfg.AdminEmail = cfg.SMTPUser
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// UsesMongo reports whether any component needs a Mongo connection.
func (cfg *Config) UsesMongo() bool {
	return cfg.StorageDriver == StorageMongo || cfg.LockDriver == LockMongo
}

func (cfg *Config) UsesRedis() bool {
	return cfg.LockDriver == LockRedis
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if !oneOf(cfg.StorageDriver, StorageMemory, StorageMongo) {
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [memory, mongo], got: %s", cfg.StorageDriver))
	}
	if !oneOf(cfg.LockDriver, LockMemory, LockMongo, LockRedis) {
		errors = append(errors, fmt.Sprintf("LockDriver must be one of [memory, mongo, redis], got: %s", cfg.LockDriver))
	}
	if !oneOf(cfg.EventsDriver, EventsNone, EventsKafka, EventsRabbitMQ) {
		errors = append(errors, fmt.Sprintf("EventsDriver must be one of [none, kafka, rabbitmq], got: %s", cfg.EventsDriver))
	}
	if !oneOf(cfg.ApprovalPolicy, PolicyRecheck, PolicyFirstApprovedWins) {
		errors = append(errors, fmt.Sprintf("ApprovalPolicy must be one of [recheck, first_approved_wins], got: %s", cfg.ApprovalPolicy))
	}

	if cfg.UsesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}
	if cfg.UsesRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when LockDriver is redis")
	}
	if cfg.EventsDriver == EventsKafka && cfg.KafkaLedgerTopic == "" {
		errors = append(errors, "KafkaLedgerTopic cannot be empty when EventsDriver is kafka")
	}
	if cfg.EventsDriver == EventsRabbitMQ && !strings.HasPrefix(cfg.RabbitMQURL, "amqp") {
		errors = append(errors, fmt.Sprintf("RabbitMQURL must start with 'amqp', got: %s", redactURI(cfg.RabbitMQURL)))
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("LedgerTimezone is not a known IANA zone: %s", cfg.LedgerTimezone))
	}

	if cfg.ActionLinkKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.ActionLinkKey)
		if err != nil || (len(key) != 16 && len(key) != 24 && len(key) != 32) {
			errors = append(errors, "ActionLinkKey must be a base64 encoded 16, 24 or 32 byte key")
		}
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("BaseURL must be an absolute URL, got: %s", cfg.BaseURL))
	}
	if cfg.AssistantURL != "" {
		if _, err := url.ParseRequestURI(cfg.AssistantURL); err != nil {
			errors = append(errors, fmt.Sprintf("AssistantURL must be an absolute URL, got: %s", cfg.AssistantURL))
		}
	}
	if cfg.NotifyInline && cfg.SMTPHost == "" {
		errors = append(errors, "SMTPHost is required when NotifyInline is enabled")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"LockTTL", cfg.LockTTL},
		{"LockWaitTimeout", cfg.LockWaitTimeout},
		{"AssistantTimeout", cfg.AssistantTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	// Lock leases are not renewed, so one must outlast the request holding it.
	if cfg.LockTTL > 0 && cfg.LockTTL < cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL must be at least RequestTimeout (%s), got: %s", cfg.RequestTimeout, cfg.LockTTL))
	}

	positiveNums := []struct {
		name  string
		value int
	}{
		{"EventsQueueSize", cfg.EventsQueueSize},
		{"MaxUploadSize", cfg.MaxUploadSize},
		{"RateLimitRequests", cfg.RateLimitRequests},
		{"MaxRequestSize", cfg.MaxRequestSize},
	}
	for _, n := range positiveNums {
		if n.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %d", n.name, n.value))
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"lock_driver", cfg.LockDriver,
		"lock_ttl", cfg.LockTTL,
		"lock_wait_timeout", cfg.LockWaitTimeout,
		"redis_addr", cfg.RedisAddr,
		"events_driver", cfg.EventsDriver,
		"events_queue_size", cfg.EventsQueueSize,
		"kafka_ledger_topic", cfg.KafkaLedgerTopic,
		"rabbitmq_url", redactURI(cfg.RabbitMQURL),
		"approval_policy", cfg.ApprovalPolicy,
		"allow_past_dates", cfg.AllowPastDates,
		"ledger_timezone", cfg.LedgerTimezone,
		"action_links_enabled", cfg.ActionLinkKey != "",
		"base_url", cfg.BaseURL,
		"assistant_url", cfg.AssistantURL,
		"assistant_timeout", cfg.AssistantTimeout,
		"max_upload_size", cfg.MaxUploadSize,
		"notify_inline", cfg.NotifyInline,
		"smtp_host", cfg.SMTPHost,
		"cors_allowed_origins", cfg.CORSAllowedOrigins,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

var credentialRegex = regexp.MustCompile(`(\w+(\+srv)?://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
