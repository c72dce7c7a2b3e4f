// internal/core/domain/settings.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SettingsKey is the local mirror key of the runtime configuration blob.
const SettingsKey = "settings"

// Settings is the runtime configuration persisted next to the collections.
type Settings struct {
	Endpoint     string          `json:"endpoint"`
	Branch       string          `json:"branch,omitempty"`
	Token        string          `json:"token,omitempty"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	UserLabel    string          `json:"userLabel"`
}

// Validate checks the settings blob
func (s *Settings) Validate() error {
	if s.ExchangeRate.IsNegative() || s.ExchangeRate.IsZero() {
		return NewValidationError("exchangeRate", "must be positive")
	}
	if strings.TrimSpace(s.UserLabel) == "" {
		return NewValidationError("userLabel", "is required")
	}
	return nil
}

// Redacted returns a copy safe for display.
func (s Settings) Redacted() Settings {
	if s.Token != "" {
		s.Token = "[REDACTED]"
	}
	return s
}
