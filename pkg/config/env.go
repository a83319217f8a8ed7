package config

const EnvPrefix = "STORYTELLING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "STORYTELLING_APP_ENV"
	EnvPort      = "STORYTELLING_APP_PORT"
	EnvDBDSN     = "STORYTELLING_DB_DSN"
	EnvDBHost    = "STORYTELLING_DB_HOST"
	EnvDBUser    = "STORYTELLING_DB_USER"
	EnvDBName    = "STORYTELLING_DB_NAME"
	EnvUseSQLite = "STORYTELLING_USE_SQLITE"
	EnvJWTSecret = "STORYTELLING_JWT_SECRET"
	EnvJWTIssuer = "STORYTELLING_JWT_ISSUER"
	EnvCoversBkt = "STORYTELLING_STORAGE_COVERS_BUCKET"
	EnvPagesBkt  = "STORYTELLING_STORAGE_PAGES_BUCKET"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	ObjectStoreGCS    = "gcs"
	ObjectStoreMemory = "memory"
)

const defaultSQLiteDSN = "file:storytelling.db?cache=shared"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
