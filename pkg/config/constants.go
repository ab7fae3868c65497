package config

import "github.com/angelmondragon/promoredeem/pkg/env"

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = env.Prefix

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv         = "PROMOREDEEM_APP_ENV"
	EnvPort           = "PROMOREDEEM_APP_PORT"
	EnvDBDSN          = "PROMOREDEEM_DB_DSN"
	EnvDBHost         = "PROMOREDEEM_DB_HOST"
	EnvDBUser         = "PROMOREDEEM_DB_USER"
	EnvDBName         = "PROMOREDEEM_DB_NAME"
	EnvRedisURL       = "PROMOREDEEM_REDIS_URL"
	EnvJWTSecret      = "PROMOREDEEM_JWT_SECRET"
	EnvJWTIssuer      = "PROMOREDEEM_JWT_ISSUER"
	EnvJWTExp         = "PROMOREDEEM_JWT_EXPIRATION_MINUTES"
	EnvRedeemRLWindow = "PROMOREDEEM_REDEEM_RATE_LIMIT_WINDOW"
	EnvPubSubTopic    = "PROMOREDEEM_PUBSUB_REDEMPTION_TOPIC"
)

const (
	minVoucherCodeLength = 6
	maxVoucherCodeLength = 32
)
