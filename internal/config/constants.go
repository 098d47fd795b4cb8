package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 8000
	defaultEnv        = "development"

	defaultDBDriver   = "sqlite"
	defaultSQLitePath = "quiz_app.db"
	defaultDBHost     = "127.0.0.1"
	defaultMySQLPort  = 3306
	defaultPGPort     = 5432
	defaultDBUser     = "root"
	defaultDBName     = "wikiquiz"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultAIType            = "gemini"
	defaultAIMaxOutputTokens = 4096
	defaultAITimeoutSec      = 60

	defaultFetchUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultFetchTimeoutSec = 30
	defaultFetchMaxBodyMB  = 10

	defaultArchivePrefix = "articles"

	defaultGeneratePerMinute = 10
)
