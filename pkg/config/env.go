package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	NotificationsModeInline = "inline"
	NotificationsModeOutbox = "outbox"

	defaultSQLiteDSN = "file:storefront.db?cache=shared&_fk=1"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvLogLevel          = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat         = "STOREFRONT_LOG_FORMAT"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
	EnvDBPassword        = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvJWTSecret         = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer         = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins        = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvAdminPasswordHash = "STOREFRONT_ADMIN_PASSWORD_HASH"
	EnvUseSQLite         = "STOREFRONT_USE_SQLITE"
	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubNotifyTopic = "STOREFRONT_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifySub   = "STOREFRONT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvSendgridAPIKey    = "STOREFRONT_SENDGRID_API_KEY"
	EnvNotificationsMode = "STOREFRONT_NOTIFICATIONS_MODE"
	EnvCheckoutTTL       = "STOREFRONT_CHECKOUT_INFLIGHT_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
