package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Cleaner  CleanerConfig  `yaml:"cleaner"`
}

type ServerConfig struct {
	Address       string   `yaml:"address"`
	APIPrefix     string   `yaml:"api_prefix"`
	UploadsPrefix string   `yaml:"uploads_prefix"`
	PublicURL     string   `yaml:"public_url"`
	CORSOrigins   []string `yaml:"cors_origins"`
	// StrictNotFound answers 404 for update/delete of a missing id instead
	// of 200 with zero rows affected.
	StrictNotFound bool `yaml:"strict_not_found"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type UploadsConfig struct {
	Dir          string   `yaml:"dir"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
	Allowed      []string `yaml:"allowed"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	ListTTL  time.Duration `yaml:"list_ttl"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

type CleanerConfig struct {
	Schedule string        `yaml:"schedule"`
	Grace    time.Duration `yaml:"grace"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Address:       ":5000",
			APIPrefix:     "/api",
			UploadsPrefix: "/uploads",
			CORSOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			Host:   "localhost",
			User:   "root",
			Name:   "kost",
		},
		Uploads: UploadsConfig{
			Dir:          "./uploads",
			MaxFileBytes: 1000000,
			Allowed:      []string{"jpeg", "jpg", "png", "gif"},
		},
		Redis: RedisConfig{ListTTL: 5 * time.Minute},
		Cleaner: CleanerConfig{
			Schedule: "@every 1h",
			Grace:    time.Hour,
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Path returns $CONFIG_PATH or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Address = ":" + strings.TrimPrefix(v, ":")
	}
	str("API_PREFIX", &c.Server.APIPrefix)
	str("PUBLIC_URL", &c.Server.PublicURL)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("STRICT_NOT_FOUND"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_NOT_FOUND: %w", err)
		}
		c.Server.StrictNotFound = b
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("DB_HOST", &c.Database.Host)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	if v, ok := lookup("DB_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		c.Database.Port = n
	}

	str("UPLOAD_DIR", &c.Uploads.Dir)
	if v, ok := lookup("MAX_FILE_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_FILE_BYTES: %w", err)
		}
		c.Uploads.MaxFileBytes = n
	}

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)

	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_REGION", &c.S3.Region)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("AWS_ACCESS_KEY_ID", &c.S3.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.S3.SecretKey)

	str("CLEANER_SCHEDULE", &c.Cleaner.Schedule)
	str("LOG_LEVEL", &c.LogLevel)
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "mariadb", "pgx", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		errs = append(errs, errors.New("database: url or host is required"))
	}
	if c.Uploads.Dir == "" {
		errs = append(errs, errors.New("uploads.dir is required"))
	}
	if c.Uploads.MaxFileBytes <= 0 {
		errs = append(errs, errors.New("uploads.max_file_bytes must be positive"))
	}
	if len(c.Uploads.Allowed) == 0 {
		errs = append(errs, errors.New("uploads.allowed is empty"))
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("server.api_prefix %q must start with /", c.Server.APIPrefix))
	}
	if !strings.HasPrefix(c.Server.UploadsPrefix, "/") || c.Server.UploadsPrefix == "/" {
		errs = append(errs, fmt.Errorf("server.uploads_prefix %q must be a path below /", c.Server.UploadsPrefix))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.S3.Bucket != "" && c.S3.Region == "" && c.S3.Endpoint == "" {
		errs = append(errs, errors.New("s3: region or endpoint is required with a bucket"))
	}
	if c.Cleaner.Schedule != "" && c.Cleaner.Grace <= 0 {
		errs = append(errs, errors.New("cleaner.grace must be positive"))
	}
	return errors.Join(errs...)
}

// DSN returns the data source name for the configured driver. MySQL DSNs
// always report matched rather than changed rows.
func (d DatabaseConfig) DSN() (string, error) {
	switch strings.ToLower(d.Driver) {
	case "pgx", "postgres", "postgresql":
		if d.URL != "" {
			return d.URL, nil
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.port(5432))),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	}

	var mc *mysql.Config
	if d.URL != "" {
		parsed, err := mysql.ParseDSN(d.URL)
		if err != nil {
			return "", fmt.Errorf("database.url: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.port(3306)))
		mc.DBName = d.Name
	}
	mc.ClientFoundRows = true
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

func (d DatabaseConfig) port(def int) int {
	if d.Port > 0 {
		return d.Port
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
