package config

const EnvPrefix = "BLOCKSHELF"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "BLOCKSHELF_APP_ENV"
	EnvPort       = "BLOCKSHELF_APP_PORT"
	EnvDBDSN      = "BLOCKSHELF_DB_DSN"
	EnvDBHost     = "BLOCKSHELF_DB_HOST"
	EnvDBUser     = "BLOCKSHELF_DB_USER"
	EnvDBName     = "BLOCKSHELF_DB_NAME"
	EnvRedisURL   = "BLOCKSHELF_REDIS_URL"
	EnvJWTSecret  = "BLOCKSHELF_JWT_SECRET"
	EnvJWTIssuer  = "BLOCKSHELF_JWT_ISSUER"
	EnvJWTExpMins = "BLOCKSHELF_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
