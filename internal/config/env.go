package config

import (
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func lookupString(lookup LookupFunc, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func lookupInt(lookup LookupFunc, keys ...string) (int, bool) {
	v, ok := lookupString(lookup, keys...)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// applyEnvOverrides lets deployment environments override the file.
func applyEnvOverrides(cfg *AppConfig, lookup LookupFunc) {
	if n, ok := lookupInt(lookup, "WIKIQUIZ_PORT", "PORT"); ok {
		cfg.Port = n
	}
	if v, ok := lookupString(lookup, "WIKIQUIZ_ENV"); ok {
		cfg.Env = v
	}
	if v, ok := lookupString(lookup, "ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = normalizeOrigins(strings.Split(v, ","))
	}

	if v, ok := lookupString(lookup, "DATABASE_URL"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := lookupString(lookup, "DATABASE_DRIVER"); ok {
		cfg.Database.Driver = v
	}

	if v, ok := lookupString(lookup, "REDIS_URL"); ok {
		cfg.Redis.URL = v
		cfg.Redis.Enable = true
	}

	if v, ok := lookupString(lookup, "AI_PROVIDER"); ok {
		cfg.AI.Type = v
	}
	if v, ok := lookupString(lookup, "AI_MODEL"); ok {
		cfg.AI.Model = v
	}
	if v, ok := lookupString(lookup, "AI_ENDPOINT"); ok {
		cfg.AI.Endpoint = v
	}
	if v, ok := lookupString(lookup, "AI_API_KEY"); ok {
		cfg.AI.APIKey = v
	} else if v, ok := lookupString(lookup, providerKeyEnv(cfg.AI.Type)...); ok {
		cfg.AI.APIKey = v
	}

	if v, ok := lookupString(lookup, "ARCHIVE_BUCKET"); ok {
		cfg.Archive.Bucket = v
		cfg.Archive.Enable = true
	}
	if n, ok := lookupInt(lookup, "RETENTION_DAYS"); ok {
		cfg.RetentionDays = n
	}
}

// providerKeyEnv names the vendor-specific key variables for an AI type.
func providerKeyEnv(aiType string) []string {
	switch strings.ToLower(strings.TrimSpace(aiType)) {
	case "", "gemini", "google":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai", "openai-compatible":
		return []string{"OPENAI_API_KEY"}
	case "anthropic", "claude":
		return []string{"ANTHROPIC_API_KEY"}
	case "openrouter":
		return []string{"OPENROUTER_API_KEY"}
	default:
		return nil
	}
}
