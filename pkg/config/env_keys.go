package config

// EnvPrefix scopes every environment variable this service reads.
const EnvPrefix = "PLATETRACK"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "PLATETRACK_APP_ENV"
	EnvPort   = "PLATETRACK_APP_PORT"

	EnvDBDSN  = "PLATETRACK_DB_DSN"
	EnvDBHost = "PLATETRACK_DB_HOST"
	EnvDBUser = "PLATETRACK_DB_USER"
	EnvDBName = "PLATETRACK_DB_NAME"

	EnvRedisURL = "PLATETRACK_REDIS_URL"

	EnvGCPProjectID = "PLATETRACK_GCP_PROJECT_ID"

	EnvSheetsSpreadsheetID = "PLATETRACK_SHEETS_SPREADSHEET_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
