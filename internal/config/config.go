package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML and the environment.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AI             AIConfig              `yaml:"ai"`
	Fetch          FetchConfig           `yaml:"fetch"`
	Archive        ArchiveConfig         `yaml:"archive"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
	RetentionDays  int                   `yaml:"retention_days"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Timezone       string                `yaml:"timezone"`

	// DSN is the resolved driver-specific connection string.
	DSN string `yaml:"-"`
	// RedisURL is the resolved redis:// URL, empty when Redis is disabled.
	RedisURL string `yaml:"-"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // sqlite | mysql | postgres
	DSN       string            `yaml:"dsn"`
	Path      string            `yaml:"path"` // sqlite file
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	SSLMode   string            `yaml:"sslmode"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	Enable   bool              `yaml:"enable"`
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Params   map[string]string `yaml:"params"`
}

// AIConfig selects the language-model provider shared by the quiz and topics synthesizers.
type AIConfig struct {
	Type            string `yaml:"type"` // gemini | openai | openai-compatible | anthropic | openrouter
	APIKey          string `yaml:"api_key"`
	Endpoint        string `yaml:"endpoint"`
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

type FetchConfig struct {
	UserAgent  string `yaml:"user_agent"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxBodyMB  int    `yaml:"max_body_mb"`
}

// ArchiveConfig controls the optional S3 copy of fetched article markup.
type ArchiveConfig struct {
	Enable          bool   `yaml:"enable"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type RateLimitConfig struct {
	GeneratePerMinute int `yaml:"generate_per_minute"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// rawAppConfig mirrors AppConfig but accepts legacy flat keys.
type rawAppConfig struct {
	Port               int                   `yaml:"port"`
	Env                string                `yaml:"env"`
	AllowedOrigins     []string              `yaml:"allowed_origins"`
	CORSAllowedOrigins []string              `yaml:"cors_allowed_origins"`
	Database           DatabaseRuntimeConfig `yaml:"database"`
	DatabaseURL        string                `yaml:"database_url"`
	Redis              RedisRuntimeConfig    `yaml:"redis"`
	RedisURL           string                `yaml:"redis_url"`
	AI                 AIConfig              `yaml:"ai"`
	GeminiAPIKey       string                `yaml:"gemini_api_key"`
	Fetch              FetchConfig           `yaml:"fetch"`
	Archive            ArchiveConfig         `yaml:"archive"`
	RateLimit          RateLimitConfig       `yaml:"rate_limit"`
	RetentionDays      int                   `yaml:"retention_days"`
	Paths              RuntimePathsConfig    `yaml:"paths"`
	LogDir             string                `yaml:"log_dir"`
	Timezone           string                `yaml:"timezone"`
	TZ                 string                `yaml:"tz"`
}

// Load reads the YAML config at configPath, applies environment overrides and
// normalizes the result. A missing file is not an error.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		raw := rawAppConfig{}
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
		applyRawAppConfig(&cfg, raw)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg, os.LookupEnv)
	finalize(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Path:      defaultSQLitePath,
			Host:      defaultDBHost,
			User:      defaultDBUser,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		AI: AIConfig{
			Type:            defaultAIType,
			MaxOutputTokens: defaultAIMaxOutputTokens,
			TimeoutSec:      defaultAITimeoutSec,
		},
		Fetch: FetchConfig{
			UserAgent:  defaultFetchUserAgent,
			TimeoutSec: defaultFetchTimeoutSec,
			MaxBodyMB:  defaultFetchMaxBodyMB,
		},
		Archive: ArchiveConfig{
			Prefix: defaultArchivePrefix,
		},
		RateLimit: RateLimitConfig{
			GeneratePerMinute: defaultGeneratePerMinute,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.AI = applyRawAIConfig(cfg.AI, raw)

	if v := strings.TrimSpace(raw.Fetch.UserAgent); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if raw.Fetch.TimeoutSec > 0 {
		cfg.Fetch.TimeoutSec = raw.Fetch.TimeoutSec
	}
	if raw.Fetch.MaxBodyMB > 0 {
		cfg.Fetch.MaxBodyMB = raw.Fetch.MaxBodyMB
	}

	prefix := cfg.Archive.Prefix
	cfg.Archive = raw.Archive
	if strings.TrimSpace(cfg.Archive.Prefix) == "" {
		cfg.Archive.Prefix = prefix
	}

	if raw.RateLimit.GeneratePerMinute != 0 {
		cfg.RateLimit.GeneratePerMinute = raw.RateLimit.GeneratePerMinute
	}
	if raw.RetentionDays != 0 {
		cfg.RetentionDays = raw.RetentionDays
	}

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current
	in := raw.Database

	if v := strings.TrimSpace(in.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(in.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(in.Path); v != "" {
		cfg.Path = v
	}
	if v := strings.TrimSpace(in.Host); v != "" {
		cfg.Host = v
	}
	if in.Port != 0 {
		cfg.Port = in.Port
	}
	if v := strings.TrimSpace(in.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(in.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(in.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(in.Charset); v != "" {
		cfg.Charset = v
	}
	if v := strings.TrimSpace(in.Loc); v != "" {
		cfg.Loc = v
	}
	if v := strings.TrimSpace(in.SSLMode); v != "" {
		cfg.SSLMode = v
	}
	if in.Params != nil {
		cfg.Params = copyStringMap(in.Params)
	}
	return cfg
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	in := raw.Redis

	if in.Enable {
		cfg.Enable = true
	}
	if v := strings.TrimSpace(in.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
		cfg.Enable = true
	}
	if v := strings.TrimSpace(in.Host); v != "" {
		cfg.Host = v
	}
	if in.Port != 0 {
		cfg.Port = in.Port
	}
	if v := strings.TrimSpace(in.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(in.Password); v != "" {
		cfg.Password = v
	}
	if in.DB != 0 {
		cfg.DB = in.DB
	}
	if in.TLS {
		cfg.TLS = true
	}
	if in.Params != nil {
		cfg.Params = copyStringMap(in.Params)
	}
	return cfg
}

func applyRawAIConfig(current AIConfig, raw rawAppConfig) AIConfig {
	cfg := current
	in := raw.AI

	if v := strings.TrimSpace(in.Type); v != "" {
		cfg.Type = v
	}
	if v := strings.TrimSpace(in.APIKey); v != "" {
		cfg.APIKey = v
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(raw.GeminiAPIKey)
	}
	if v := strings.TrimSpace(in.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(in.Model); v != "" {
		cfg.Model = v
	}
	if in.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = in.MaxOutputTokens
	}
	if in.TimeoutSec > 0 {
		cfg.TimeoutSec = in.TimeoutSec
	}
	return cfg
}

// finalize normalizes every section and resolves derived connection strings.
func finalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.AI = normalizeAIConfig(cfg.AI)
	cfg.Archive = normalizeArchiveConfig(cfg.Archive)
	cfg.Paths.Logs = strings.TrimSpace(cfg.Paths.Logs)

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = ""
	if cfg.Redis.Enable {
		cfg.RedisURL = cfg.Redis.URLValue()
	}
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.Driver != DriverSQLite && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Enable && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Archive.Enable && c.Archive.Bucket == "" {
		return errors.New("archive.bucket is required when archive is enabled")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days %d, expected >= 0", c.RetentionDays)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// Addr returns the listen address.
func (c *AppConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

func (c *AppConfig) FetchMaxBytes() int64 {
	return int64(c.Fetch.MaxBodyMB) << 20
}

func (c *AppConfig) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSec) * time.Second
}

// PipelineTimeout bounds one generation run: the fetch, the concurrent model
// calls and a margin for storage.
func (c *AppConfig) PipelineTimeout() time.Duration {
	return c.FetchTimeout() + c.AITimeout() + 30*time.Second
}

// ResolveRuntimePath resolves runtime directories against the working directory.
func ResolveRuntimePath(raw string, fallbackSubdir string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallbackSubdir)
	}
	if target == "" {
		target = "."
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	wd, err := os.Getwd()
	if err != nil || strings.TrimSpace(wd) == "" {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(wd, target))
}
