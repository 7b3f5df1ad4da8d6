package config

const (
	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStorageDriver     = "STORAGE_DRIVER"
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvLockDriver      = "LOCK_DRIVER"
	EnvLockTTL         = "LOCK_TTL"
	EnvLockWaitTimeout = "LOCK_WAIT_TIMEOUT"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvRedisDB         = "REDIS_DB"

	EnvEventsDriver        = "EVENTS_DRIVER"
	EnvEventsQueueSize     = "EVENTS_QUEUE_SIZE"
	EnvKafkaLedgerTopic    = "KAFKA_LEDGER_TOPIC"
	EnvKafkaLedgerDLQTopic = "KAFKA_LEDGER_DLQ_TOPIC"
	EnvKafkaNotifierGroup  = "KAFKA_NOTIFIER_GROUP"
	EnvRabbitMQURL         = "RABBITMQ_URL"

	EnvApprovalPolicy = "APPROVAL_POLICY"
	EnvAllowPastDates = "ALLOW_PAST_DATES"
	EnvLedgerTimezone = "LEDGER_TIMEZONE"

	EnvActionLinkKey = "ACTION_LINK_KEY"
	EnvBaseURL       = "BASE_URL"

	EnvAssistantURL     = "ASSISTANT_URL"
	EnvAssistantTimeout = "ASSISTANT_TIMEOUT"
	EnvMaxUploadSize    = "MAX_UPLOAD_SIZE"

	EnvNotifyInline = "NOTIFY_INLINE"
	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUser     = "SMTP_USER"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvAdminEmail   = "ADMIN_EMAIL"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
