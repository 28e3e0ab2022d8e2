package config

const EnvPrefix = "KHATABILL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "KHATABILL_APP_ENV"
	EnvPort     = "KHATABILL_APP_PORT"
	EnvLogLevel = "KHATABILL_LOG_LEVEL"

	EnvDBDSN  = "KHATABILL_DB_DSN"
	EnvDBHost = "KHATABILL_DB_HOST"
	EnvDBUser = "KHATABILL_DB_USER"
	EnvDBName = "KHATABILL_DB_NAME"

	EnvRedisURL = "KHATABILL_REDIS_URL"

	EnvJWTSecret = "KHATABILL_JWT_SECRET"
	EnvJWTIssuer = "KHATABILL_JWT_ISSUER"

	EnvUseSQLite   = "KHATABILL_USE_SQLITE"
	EnvAutoMigrate = "KHATABILL_AUTO_MIGRATE"

	EnvFreeInvoiceQuota = "KHATABILL_FREE_INVOICE_QUOTA"
	EnvAmountPlaces     = "KHATABILL_AMOUNT_PLACES"

	EnvGCPProjectID       = "KHATABILL_GCP_PROJECT_ID"
	EnvPubSubInvoiceTopic = "KHATABILL_PUBSUB_INVOICE_TOPIC"
	EnvCORSAllowedOrigins = "KHATABILL_CORS_ALLOWED_ORIGINS"
	EnvOutboxMaxAttempts  = "KHATABILL_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxPollInterval = "KHATABILL_OUTBOX_PUBLISH_POLL_MS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
