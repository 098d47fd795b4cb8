package config

import "strings"

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Path = strings.TrimSpace(cfg.Path)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Charset = strings.TrimSpace(cfg.Charset)
	cfg.Loc = strings.TrimSpace(cfg.Loc)
	cfg.SSLMode = strings.TrimSpace(cfg.SSLMode)

	if inferred := inferDriver(cfg.DSN); inferred != "" {
		cfg.Driver = inferred
	}
	switch cfg.Driver {
	case "", "sqlite3":
		cfg.Driver = DriverSQLite
	case "postgresql", "pg":
		cfg.Driver = DriverPostgres
	case "mariadb":
		cfg.Driver = DriverMySQL
	}

	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		switch cfg.Driver {
		case DriverPostgres:
			cfg.Port = defaultPGPort
		case DriverMySQL:
			cfg.Port = defaultMySQLPort
		}
	}
	if cfg.User == "" {
		cfg.User = defaultDBUser
	}
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	if cfg.Charset == "" {
		cfg.Charset = defaultDBCharset
	}
	if cfg.Loc == "" {
		cfg.Loc = defaultDBLoc
	}
	if cfg.Path == "" {
		cfg.Path = defaultSQLitePath
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)

	if cfg.Host == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.DB < 0 {
		cfg.DB = defaultRedisDB
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

func normalizeAIConfig(cfg AIConfig) AIConfig {
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)

	switch cfg.Type {
	case "":
		cfg.Type = defaultAIType
	case "google", "gemini-openai":
		cfg.Type = "gemini"
	case "claude":
		cfg.Type = "anthropic"
	case "openai_compatible", "compatible":
		cfg.Type = "openai-compatible"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultAIMaxOutputTokens
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = defaultAITimeoutSec
	}
	return cfg
}

func normalizeArchiveConfig(cfg ArchiveConfig) ArchiveConfig {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return cfg
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	switch trimmed {
	case "":
		return defaultEnv
	case "dev":
		return defaultEnv
	case "prod":
		return "production"
	}
	return trimmed
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
