package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSecret = "fallback-secret-key-for-dev-only"

// FileEnv names the environment variable holding an optional YAML config file path.
const FileEnv = "CRUDADMIN_CONFIG"

// Config holds application configuration
type Config struct {
	// Server
	Port      string
	Env       string
	MountPath string
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// honored. Empty means the direct peer address is always used.
	TrustedProxies []string

	// Host application database. AppDBDSN overrides the DB_* parts.
	AppDBDriver string
	AppDBDSN    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Admin database holding sessions, blacklist and logs
	AdminDBDriver string
	AdminDBDSN    string

	// Tokens
	SecretKey          string
	Algorithm          string
	AccessTokenExpire  time.Duration
	RefreshTokenExpire time.Duration

	// Sessions
	MaxSessionsPerUser int
	SessionTimeout     time.Duration
	CleanupInterval    time.Duration
	SecureCookies      bool

	// Events
	TrackEvents  bool
	LogRetention time.Duration

	// Redis blacklist cache; disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Bootstrap admin
	InitialAdminUsername string
	InitialAdminPassword string
}

// SupportedAlgorithms lists the HMAC signing algorithms accepted for ALGORITHM.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("MOUNT_PATH", "admin")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("APP_DB_DRIVER", "postgres")
	v.SetDefault("APP_DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "crudadmin")
	v.SetDefault("DB_PASSWORD", "crudadmin")
	v.SetDefault("DB_NAME", "crudadmin")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("ADMIN_DB_DRIVER", "sqlite")
	v.SetDefault("ADMIN_DB_DSN", "crudadmin_data/admin.db")

	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 1)

	v.SetDefault("MAX_SESSIONS_PER_USER", 5)
	v.SetDefault("SESSION_TIMEOUT_MINUTES", 30)
	v.SetDefault("CLEANUP_INTERVAL_MINUTES", 15)
	v.SetDefault("SECURE_COOKIES", true)

	v.SetDefault("TRACK_EVENTS", true)
	v.SetDefault("LOG_RETENTION_DAYS", 90)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("INITIAL_ADMIN_USERNAME", "")
	v.SetDefault("INITIAL_ADMIN_PASSWORD", "")
}

// Load loads configuration from an optional .env file, an optional YAML file
// named by CRUDADMIN_CONFIG, and environment variables, in increasing order
// of precedence.
func Load() (*Config, error) {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a validated Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:      v.GetString("PORT"),
		Env:       v.GetString("ENV"),
		MountPath: strings.Trim(v.GetString("MOUNT_PATH"), "/"),

		TrustedProxies: splitList(v.GetStringSlice("TRUSTED_PROXIES")),

		AppDBDriver: strings.ToLower(v.GetString("APP_DB_DRIVER")),
		AppDBDSN:    v.GetString("APP_DB_DSN"),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		AdminDBDriver: strings.ToLower(v.GetString("ADMIN_DB_DRIVER")),
		AdminDBDSN:    v.GetString("ADMIN_DB_DSN"),

		SecretKey:          v.GetString("SECRET_KEY"),
		Algorithm:          strings.ToUpper(v.GetString("ALGORITHM")),
		AccessTokenExpire:  time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		RefreshTokenExpire: time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour,

		MaxSessionsPerUser: v.GetInt("MAX_SESSIONS_PER_USER"),
		SessionTimeout:     time.Duration(v.GetInt("SESSION_TIMEOUT_MINUTES")) * time.Minute,
		CleanupInterval:    time.Duration(v.GetInt("CLEANUP_INTERVAL_MINUTES")) * time.Minute,
		SecureCookies:      v.GetBool("SECURE_COOKIES"),

		TrackEvents:  v.GetBool("TRACK_EVENTS"),
		LogRetention: time.Duration(v.GetInt("LOG_RETENTION_DAYS")) * 24 * time.Hour,

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		InitialAdminUsername: v.GetString("INITIAL_ADMIN_USERNAME"),
		InitialAdminPassword: v.GetString("INITIAL_ADMIN_PASSWORD"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SecretKey == "" {
		if c.IsProduction() {
			return fmt.Errorf("SECRET_KEY is required in production")
		}
		log.Println("Warning: SECRET_KEY not set, using development fallback")
		c.SecretKey = devSecret
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", p)
			}
		}
	}

	supported := false
	for _, alg := range SupportedAlgorithms {
		if c.Algorithm == alg {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported ALGORITHM %q (use one of %s)", c.Algorithm, strings.Join(SupportedAlgorithms, ", "))
	}

	for key, driver := range map[string]string{"ADMIN_DB_DRIVER": c.AdminDBDriver, "APP_DB_DRIVER": c.AppDBDriver} {
		switch driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unsupported %s %q (use sqlite or postgres)", key, driver)
		}
	}
	if c.AppDBDriver == "sqlite" && c.AppDBDSN == "" {
		return fmt.Errorf("APP_DB_DSN is required when APP_DB_DRIVER is sqlite")
	}

	positive := map[string]time.Duration{
		"ACCESS_TOKEN_EXPIRE_MINUTES": c.AccessTokenExpire,
		"REFRESH_TOKEN_EXPIRE_DAYS":   c.RefreshTokenExpire,
		"SESSION_TIMEOUT_MINUTES":     c.SessionTimeout,
		"CLEANUP_INTERVAL_MINUTES":    c.CleanupInterval,
		"LOG_RETENTION_DAYS":          c.LogRetention,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.MaxSessionsPerUser <= 0 {
		return fmt.Errorf("MAX_SESSIONS_PER_USER must be positive")
	}
	return nil
}

// splitList flattens comma separated entries from env or YAML lists.
func splitList(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CookiePath returns the path admin cookies are scoped to.
func (c *Config) CookiePath() string {
	return "/" + c.MountPath
}

// LogRetentionDays returns the log retention window in whole days.
func (c *Config) LogRetentionDays() int {
	return int(c.LogRetention / (24 * time.Hour))
}

// AppDSN returns the connection string for the host application database.
func (c *Config) AppDSN() string {
	if c.AppDBDSN != "" {
		return c.AppDBDSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
