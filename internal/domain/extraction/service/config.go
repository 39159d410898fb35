package service

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// ErrInvalidConfig is returned for a pipeline configuration that cannot run.
var ErrInvalidConfig = errors.New("invalid extraction config")

// Mode selects how rows become records.
type Mode string

const (
	// ModePattern matches each row against the statement-line pattern.
	ModePattern Mode = "pattern"
	// ModeColumns reads fields from explicitly assigned columns.
	ModeColumns Mode = "columns"
)

// ParseMode accepts "pattern" and "columns".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePattern, ModeColumns:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// Config controls one pipeline run.
type Config struct {
	Mode Mode
	// Roles is required in column mode unless AutoRoles is set.
	Roles *parser.ColumnRoles
	// AutoRoles infers column roles from the rows when Roles is nil.
	AutoRoles bool
	// Strict drops column-mode rows that lack any of the three role cells.
	// Ignored in lossless mode.
	Strict bool
	// Lossless skips noise filtering and keeps every extracted record.
	Lossless bool
	// Classify assigns categories and fills the per-category totals.
	Classify bool
	// SplitFallback retries unmatched rows with the row splitter.
	SplitFallback bool
	// HeaderLabels are passed to the filter; nil uses the defaults.
	HeaderLabels []string
	// Issuer selects a stored rule set; empty uses the base rules.
	Issuer string
	// Currency renders the statement total.
	Currency string
	// TopN bounds the rankings in the summary.
	TopN int
}

// DefaultConfig is pattern mode with filtering, classification and the
// split fallback enabled.
func DefaultConfig() Config {
	return Config{
		Mode:          ModePattern,
		Classify:      true,
		SplitFallback: true,
		Currency:      money.DefaultCurrency,
	}
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePattern:
	case ModeColumns:
		if c.Roles == nil && !c.AutoRoles {
			return fmt.Errorf("%w: column mode needs column roles", ErrInvalidConfig)
		}
		if c.Roles != nil {
			if err := c.Roles.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// FromSettings builds a pipeline config from the environment settings.
// Column roles are used only when all three indices are set.
func FromSettings(ec config.ExtractConfig) (Config, error) {
	mode, err := ParseMode(ec.Mode)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:          mode,
		AutoRoles:     ec.AutoRoles,
		Strict:        ec.Strict,
		Lossless:      ec.Lossless,
		Classify:      ec.Classify,
		SplitFallback: ec.SplitFallback,
		HeaderLabels:  ec.HeaderLabels,
		Currency:      ec.Currency,
	}
	if ec.HasRoles() {
		cfg.Roles = &parser.ColumnRoles{Date: ec.DateCol, Description: ec.DescCol, Amount: ec.AmountCol}
	}
	return cfg, cfg.Validate()
}
