package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads the environment into the config. Unset variables take the
// env-default of their field.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabaseURL selects the datastore by URL scheme
func WithDatabaseURL(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseDatabaseURL(url); err != nil {
			return err
		}
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseName sets the MongoDB database name
func WithDatabaseName(name string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseName = name
		return nil
	}
}

// WithStorageURL selects the blob store by URL scheme
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		if _, err := ParseStorageURL(url); err != nil {
			return err
		}
		c.StorageURL = url
		return nil
	}
}

// WithSigning sets the secret and public base URL used for signed file URLs
func WithSigning(secret, publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.SigningSecret = secret
		if publicBaseURL != "" {
			c.PublicBaseURL = publicBaseURL
		}
		return nil
	}
}

// WithBannerFolder sets the key prefix for uploaded banners
func WithBannerFolder(folder string) Option {
	return func(c *ServerConfig) error {
		if folder == "" {
			return fmt.Errorf("banner folder cannot be empty")
		}
		c.BannerFolder = folder
		return nil
	}
}

// WithStrictCapacity enables atomic admission
func WithStrictCapacity(strict bool) Option {
	return func(c *ServerConfig) error {
		c.StrictCapacity = strict
		return nil
	}
}

// WithUploadPolicy sets the banner size limit and accepted MIME types
func WithUploadPolicy(maxFileSize int64, allowedTypes ...string) Option {
	return func(c *ServerConfig) error {
		if maxFileSize <= 0 {
			return fmt.Errorf("max file size must be positive, got: %d", maxFileSize)
		}
		c.MaxFileSize = maxFileSize
		if len(allowedTypes) > 0 {
			c.AllowedFileTypes = allowedTypes
		}
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.AWS.AccessKeyID = accessKeyID
		c.AWS.SecretAccessKey = secretAccessKey
		return nil
	}
}
