package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified names.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ACTED_DB_DSN"
	EnvDBHost = "ACTED_DB_HOST"
	EnvDBUser = "ACTED_DB_USER"
	EnvDBName = "ACTED_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
