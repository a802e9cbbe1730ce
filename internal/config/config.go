// Package config loads the server configuration from the environment, an
// optional .env file and an optional YAML file for the crusade catalog.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Port int    `env:"PORT,default=8787"`
	File string `env:"CONFIG_FILE"`

	Store    StoreConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	Supabase SupabaseConfig
	Photos   PhotoConfig
	Cache    CacheConfig
	HTTP     HTTPConfig
	Log      LogConfig

	// Set from the YAML file.
	Catalog    []crusade.Crusade
	PostHandle string
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER,default=memory"`
	DSN    string `env:"DATABASE_URL"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TTL,default=24h"`
}

type DiscordConfig struct {
	ClientID     string `env:"DISCORD_CLIENT_ID"`
	ClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	RedirectURI  string `env:"DISCORD_REDIRECT_URI"`
}

// Enabled reports whether Discord OAuth is configured.
func (d DiscordConfig) Enabled() bool {
	return d.ClientID != "" && d.ClientSecret != ""
}

type SupabaseConfig struct {
	URL        string `env:"SUPABASE_URL"`
	ServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	AnonKey    string `env:"SUPABASE_ANON_KEY"`
}

// Enabled reports whether a Supabase project is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.ServiceKey != ""
}

type PhotoConfig struct {
	Backend           string `env:"PHOTO_BACKEND,default=memory"`
	Bucket            string `env:"PHOTO_BUCKET,default=progress-photos"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION,default=auto"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	MinioEndpoint     string `env:"MINIO_ENDPOINT"`
	MinioUseSSL       bool   `env:"MINIO_USE_SSL,default=false"`
}

type CacheConfig struct {
	RedisURL       string        `env:"REDIS_URL"`
	LeaderboardTTL time.Duration `env:"LEADERBOARD_CACHE_TTL,default=30s"`
}

type HTTPConfig struct {
	AllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=20"`
	AuditLogPath   string  `env:"AUDIT_LOG_PATH"`
}

// Origins splits AllowedOrigins on commas.
func (h HTTPConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(h.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Load reads .env from the working directory when present, decodes the
// environment, then applies CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment without reading .env.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.File != "" {
		if err := cfg.applyFile(cfg.File); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// fileConfig is the YAML layout of CONFIG_FILE.
type fileConfig struct {
	PostHandle string         `yaml:"post_handle"`
	Crusades   []catalogEntry `yaml:"crusades"`
}

type catalogEntry struct {
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"`
	Description string     `yaml:"description"`
	Icon        string     `yaml:"icon"`
	Active      *bool      `yaml:"active"`
	StartDate   *time.Time `yaml:"start_date"`
	EndDate     *time.Time `yaml:"end_date"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.PostHandle != "" {
		c.PostHandle = strings.TrimPrefix(fc.PostHandle, "@")
	}
	for i, e := range fc.Crusades {
		t := crusade.Type(strings.ToLower(strings.TrimSpace(e.Type)))
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("config file %s: crusade %d has no name", path, i)
		}
		if !t.Valid() {
			return fmt.Errorf("config file %s: crusade %q has unknown type %q", path, e.Name, e.Type)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		c.Catalog = append(c.Catalog, crusade.Crusade{
			Name:        strings.TrimSpace(e.Name),
			Type:        t,
			Description: e.Description,
			Icon:        e.Icon,
			IsActive:    active,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
		})
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			problems = append(problems, fmt.Sprintf("DATABASE_URL is required for the %s store", c.Store.Driver))
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_DRIVER %q must be memory, sqlite or postgres", c.Store.Driver))
	}

	switch c.Photos.Backend {
	case "memory":
	case "s3":
		if c.Photos.S3AccessKeyID == "" || c.Photos.S3SecretAccessKey == "" {
			problems = append(problems, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 photo backend")
		}
	case "minio":
		if c.Photos.MinioEndpoint == "" {
			problems = append(problems, "MINIO_ENDPOINT is required for the minio photo backend")
		}
	case "supabase":
		if !c.Supabase.Enabled() {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase photo backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("PHOTO_BACKEND %q must be s3, minio, supabase or memory", c.Photos.Backend))
	}

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d is out of range", c.Port))
	}
	if c.HTTP.RateLimitRPS < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must not be negative")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
