package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Redis       RedisConfig       `yaml:"redis"`
	Security    SecurityConfig    `yaml:"security"`
	Log         LogConfig         `yaml:"log"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Mode           string   `yaml:"mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

// SessionConfig controls the signed session cookie and where session
// records live.
type SessionConfig struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	CookieName      string `yaml:"cookie_name"`
	CookieDomain    string `yaml:"cookie_domain"`
	Secure          bool   `yaml:"secure"`
	ExpiresIn       string `yaml:"expires_in"`
	Store           string `yaml:"store"` // database, redis
	CleanupInterval string `yaml:"cleanup_interval"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"` // host:port or redis:// URL
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type SecurityConfig struct {
	BcryptCost       int  `yaml:"bcrypt_cost"`
	AllowAdminSignup bool `yaml:"allow_admin_signup"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr or a file path
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

const (
	defaultSessionLifetime = 24 * time.Hour
	defaultCleanupInterval = 30 * time.Minute
)

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if secret := os.Getenv("NEXUS_SESSION_SECRET"); secret != "" {
		c.Session.Secret = secret
	}
	if store := os.Getenv("NEXUS_SESSION_STORE"); store != "" {
		c.Session.Store = store
	}
	if dbType := os.Getenv("NEXUS_DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}
	if dbPath := os.Getenv("NEXUS_DB_PATH"); dbPath != "" {
		c.Database.SQLite.Path = dbPath
	}
	if mysqlHost := os.Getenv("NEXUS_MYSQL_HOST"); mysqlHost != "" {
		c.Database.MySQL.Host = mysqlHost
	}
	if mysqlPort := os.Getenv("NEXUS_MYSQL_PORT"); mysqlPort != "" {
		if port, err := strconv.Atoi(mysqlPort); err == nil {
			c.Database.MySQL.Port = port
		}
	}
	if mysqlUser := os.Getenv("NEXUS_MYSQL_USER"); mysqlUser != "" {
		c.Database.MySQL.Username = mysqlUser
	}
	if mysqlPass := os.Getenv("NEXUS_MYSQL_PASSWORD"); mysqlPass != "" {
		c.Database.MySQL.Password = mysqlPass
	}
	if mysqlDB := os.Getenv("NEXUS_MYSQL_DATABASE"); mysqlDB != "" {
		c.Database.MySQL.Database = mysqlDB
	}
	if redisAddr := os.Getenv("NEXUS_REDIS_ADDR"); redisAddr != "" {
		c.Redis.Addr = redisAddr
	}
	if redisPass := os.Getenv("NEXUS_REDIS_PASSWORD"); redisPass != "" {
		c.Redis.Password = redisPass
	}
	if level := os.Getenv("NEXUS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "nexus_session"
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "nexus-care"
	}
	if c.Session.Store == "" {
		c.Session.Store = "database"
	}
	if c.Database.MySQL.Charset == "" {
		c.Database.MySQL.Charset = "utf8mb4"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "nexus:session:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("SQLite path is required")
		}
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}

	switch c.Session.Store {
	case "database", "":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis session store")
		}
	default:
		return fmt.Errorf("unsupported session store: %q", c.Session.Store)
	}

	if c.Session.ExpiresIn != "" {
		if _, err := time.ParseDuration(c.Session.ExpiresIn); err != nil {
			return fmt.Errorf("invalid session expires_in: %w", err)
		}
	}

	return nil
}

// SessionLifetime returns how long a login stays valid.
func (c *SessionConfig) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.ExpiresIn)
	if err != nil || d <= 0 {
		return defaultSessionLifetime
	}
	return d
}

func (c *SessionConfig) CleanupEvery() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return defaultCleanupInterval
	}
	return d
}

// DSN builds the go-sql-driver connection string.
func (c *MySQLConfig) DSN() string {
	dsn := mysql.NewConfig()
	dsn.User = c.Username
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.Local
	// Report matched rather than changed rows so idempotent updates are not
	// mistaken for missing records.
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{"charset": c.Charset}
	return dsn.FormatDSN()
}
