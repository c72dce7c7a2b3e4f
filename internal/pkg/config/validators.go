// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingRequiredConfig is returned when a mandatory setting is empty
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// BasicValidator performs basic configuration validation
type BasicValidator struct{}

// Validate performs basic validation
func (v *BasicValidator) Validate(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("%w: app name", ErrMissingRequiredConfig)
	}
	if cfg.Server.Port == "" {
		return fmt.Errorf("%w: server port", ErrMissingRequiredConfig)
	}

	switch cfg.Store.Backend {
	case StoreHTTP:
		if cfg.Store.BaseURL != "" {
			u, err := url.Parse(cfg.Store.BaseURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("store base URL %q is not an absolute URL", cfg.Store.BaseURL)
			}
		}
	case StoreS3:
		if cfg.Store.Bucket == "" {
			return fmt.Errorf("%w: S3 bucket", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cfg.Mirror.Backend {
	case MirrorFile:
		if cfg.Mirror.Dir == "" {
			return fmt.Errorf("%w: mirror dir", ErrMissingRequiredConfig)
		}
	case MirrorRedis:
		if cfg.Mirror.RedisAddr == "" {
			return fmt.Errorf("%w: mirror redis address", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("unknown mirror backend %q", cfg.Mirror.Backend)
	}

	if !cfg.Business.ExchangeRate.IsPositive() {
		return fmt.Errorf("exchange rate must be positive")
	}
	if cfg.Business.ArchiveRetentionDays < 0 {
		return fmt.Errorf("archive retention days cannot be negative")
	}
	if cfg.Store.RequestRate <= 0 {
		return fmt.Errorf("store request rate must be positive")
	}
	if cfg.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate_limit_requests must be positive")
	}

	return nil
}

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if cfg.Store.Backend == StoreHTTP {
		if cfg.Store.BaseURL == "" {
			return fmt.Errorf("%w: store base URL", ErrMissingRequiredConfig)
		}
		if cfg.Store.Token == "" || strings.HasPrefix(cfg.Store.Token, "MISSING_") {
			return fmt.Errorf("%w: store token", ErrMissingRequiredConfig)
		}
		if !strings.HasPrefix(cfg.Store.BaseURL, "https://") {
			return fmt.Errorf("store base URL must use https in production")
		}
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("wildcard origin (*) not allowed in production")
		}
	}

	return nil
}
