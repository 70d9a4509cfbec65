package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-events/pkg/simpleevents"
)

// Database kinds selected by the DATABASE_URL scheme
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"
)

// Storage kinds selected by the STORAGE_URL scheme
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                "8080",
		Environment:         "development",
		LogLevel:            "info",
		DatabaseURL:         DatabaseMemory,
		DatabaseName:        "simple_events",
		StorageURL:          "memory://",
		PublicBaseURL:       "http://localhost:8080",
		BannerFolder:        simpleevents.DefaultBannerFolder,
		SignedURLTTLSeconds: int(simpleevents.DefaultSignedURLTTL / time.Second),
		MaxFileSize:         5 << 20,
		AllowedFileTypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
	}
}

// ServerConfig represents server configuration for the simple-events service.
// Env tags are read by WithEnv.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL" env-default:"memory"`
	DatabaseName string `env:"DATABASE_NAME" env-default:"simple_events"` // MongoDB database

	// Storage configuration
	StorageURL          string `env:"STORAGE_URL" env-default:"memory://"`
	PublicBaseURL       string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	SigningSecret       string `env:"SIGNING_SECRET"`
	BannerFolder        string `env:"BANNER_FOLDER" env-default:"event-banners"`
	SignedURLTTLSeconds int    `env:"SIGNED_URL_TTL_SECONDS" env-default:"3600"`

	// Admission and upload policy
	StrictCapacity   bool     `env:"STRICT_CAPACITY" env-default:"false"`
	MaxFileSize      int64    `env:"MAX_FILE_SIZE" env-default:"5242880"`
	AllowedFileTypes []string `env:"ALLOWED_FILE_TYPES" env-separator:"," env-default:"image/jpeg,image/png,image/gif,image/webp"`

	AWS AWSConfig
}

// AWSConfig holds S3 settings that do not fit in STORAGE_URL
type AWSConfig struct {
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `env:"AWS_S3_PUBLIC_URL"`
	ACL             string `env:"AWS_S3_ACL"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// StorageLocation is a parsed STORAGE_URL
type StorageLocation struct {
	Kind      string // memory, fs, s3
	Path      string // fs base directory
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	dbKind, err := c.DatabaseKind()
	if err != nil {
		return err
	}
	if dbKind == DatabaseMongo && c.DatabaseName == "" {
		return errors.New("database_name is required when using mongodb")
	}

	storage, err := c.Storage()
	if err != nil {
		return err
	}
	if storage.Kind == StorageFS && c.SigningSecret == "" {
		return errors.New("signing_secret is required when using filesystem storage")
	}

	if c.BannerFolder == "" {
		return errors.New("banner_folder cannot be empty")
	}
	if c.SignedURLTTLSeconds <= 0 {
		return fmt.Errorf("signed_url_ttl_seconds must be positive, got: %d", c.SignedURLTTLSeconds)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got: %d", c.MaxFileSize)
	}
	if len(c.AllowedFileTypes) == 0 {
		return errors.New("allowed_file_types cannot be empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// DatabaseKind returns the backend selected by DatabaseURL
func (c *ServerConfig) DatabaseKind() (string, error) {
	return ParseDatabaseURL(c.DatabaseURL)
}

// Storage returns the blob store selected by StorageURL
func (c *ServerConfig) Storage() (*StorageLocation, error) {
	return ParseStorageURL(c.StorageURL)
}

// SignedURLTTL returns the default lifetime of signed banner URLs
func (c *ServerConfig) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

// IsProduction reports whether the service runs in production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ParseDatabaseURL maps a DATABASE_URL to a database kind.
// Empty and "memory" select the in-memory repository.
func ParseDatabaseURL(raw string) (string, error) {
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return DatabaseMemory, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabasePostgres, nil
	case strings.HasPrefix(raw, "mongodb://"), strings.HasPrefix(raw, "mongodb+srv://"):
		return DatabaseMongo, nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'mongodb://...')", raw)
	}
}

// ParseStorageURL parses one of:
//
//	memory://
//	file:///path/to/data
//	s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func ParseStorageURL(raw string) (*StorageLocation, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return &StorageLocation{Kind: StorageMemory}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "memory":
		return &StorageLocation{Kind: StorageMemory}, nil

	case "file":
		path := u.Path
		if u.Host != "" {
			// file://relative/dir
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return &StorageLocation{Kind: StorageFS, Path: path}, nil

	case "s3":
		if u.Host == "" {
			return nil, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		loc := &StorageLocation{
			Kind:     StorageS3,
			Bucket:   u.Host,
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}
		if v := q.Get("path_style"); v != "" {
			loc.PathStyle, err = strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
			}
		}
		return loc, nil
	}

	return nil, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// ParseLogLevel maps LOG_LEVEL to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
