package sourcelink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

// HardRowCeiling is the global ceiling on spreadsheet rows materialized for
// one table read, regardless of what a caller or config requests.
const HardRowCeiling = 1000

// DefaultMaxDepth bounds recursion while parsing and walking nested literals.
const DefaultMaxDepth = 100

// Config represents the sourcelink configuration
type Config struct {
	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet"`
	Parser      ParserConfig      `yaml:"parser"`
}

// SpreadsheetConfig represents spreadsheet adapter settings
type SpreadsheetConfig struct {
	// MaxRowWindow caps rows per table read. Values above HardRowCeiling are
	// clamped down; the ceiling can never be raised from config.
	MaxRowWindow int `yaml:"max_row_window"`

	// TailRowWindow, when positive, reads tables from the end: the window
	// starts at max(0, totalRows - TailRowWindow) before MaxRowWindow applies.
	TailRowWindow int `yaml:"tail_row_window"`

	// WriteBackend selects the cell writer: "auto" (rich with automatic
	// fallback), "rich", or "compat".
	WriteBackend string `yaml:"write_backend"`
}

// ParserConfig represents shared parser settings
type ParserConfig struct {
	// MaxDepth is the maximum literal nesting depth before a parse is
	// aborted.
	MaxDepth int `yaml:"max_depth"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Spreadsheet: SpreadsheetConfig{
			MaxRowWindow: HardRowCeiling,
			WriteBackend: "auto",
		},
		Parser: ParserConfig{
			MaxDepth: DefaultMaxDepth,
		},
	}
}

// LoadConfig loads configuration from the given path. An empty path searches
// sourcelink.yaml / sourcelink.yml in the current directory. A missing file
// yields the defaults, not an error. A .env file next to the config is
// loaded first so the environment is populated before anything reads it.
func LoadConfig(configPath string) (*Config, error) {
	candidates := []string{configPath}
	if configPath == "" {
		candidates = []string{"sourcelink.yaml", "sourcelink.yml"}
	}

	var found string

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}

		if _, err := os.Stat(candidate); err == nil {
			found = candidate
			break
		}
	}

	if found == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
		return DefaultConfig(), nil
	}

	// Best effort: ignore a missing .env
	_ = godotenv.Load(filepath.Join(filepath.Dir(found), ".env"))

	data, err := os.ReadFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	config.clamp()

	return config, nil
}

// ErrConfigFileNotFound indicates an explicitly requested configuration file
// could not be located.
var ErrConfigFileNotFound = errors.New("configuration file not found")

func (c *Config) validate() error {
	switch c.Spreadsheet.WriteBackend {
	case "", "auto", "rich", "compat":
	default:
		return fmt.Errorf("%w: unknown write_backend %q", ErrConfigValidation, c.Spreadsheet.WriteBackend)
	}

	if c.Spreadsheet.MaxRowWindow < 0 {
		return fmt.Errorf("%w: max_row_window must not be negative", ErrConfigValidation)
	}

	if c.Spreadsheet.TailRowWindow < 0 {
		return fmt.Errorf("%w: tail_row_window must not be negative", ErrConfigValidation)
	}

	if c.Parser.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must not be negative", ErrConfigValidation)
	}

	return nil
}

// clamp enforces hard limits that configuration may lower but never raise.
func (c *Config) clamp() {
	if c.Spreadsheet.MaxRowWindow == 0 || c.Spreadsheet.MaxRowWindow > HardRowCeiling {
		c.Spreadsheet.MaxRowWindow = HardRowCeiling
	}

	if c.Parser.MaxDepth == 0 || c.Parser.MaxDepth > DefaultMaxDepth {
		c.Parser.MaxDepth = DefaultMaxDepth
	}

	if c.Spreadsheet.WriteBackend == "" {
		c.Spreadsheet.WriteBackend = "auto"
	}
}
