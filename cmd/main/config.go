package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/charloom/charloom/pkg/showcase"
)

// ServerConfig holds the configuration for the HTTP servers.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	ShowcaseAddr string `json:"showcase_addr"`
	LogLevel     string `json:"log_level"`
	DataDir      string `json:"data_dir"`
	DatabasePath string `json:"database_path"`
	TemplatePath string `json:"template_path"`
}

// GenerationConfig holds the request defaults and hard limits for the
// generation endpoints.
type GenerationConfig struct {
	// WindowLength is the context length given to models created without an
	// explicit one.
	WindowLength int `json:"window_length"`

	// Separator is appended after every line when a corpus is read from a
	// request body. Only the first rune is used; empty means newline.
	Separator string `json:"separator"`

	// DefaultLength is the number of characters generated when a request
	// does not name one.
	DefaultLength int `json:"default_length"`

	// MaxLength is the ceiling any single request can ask for.
	MaxLength int `json:"max_length"`

	// DefaultTemperature replaces absent or non-positive temperatures.
	DefaultTemperature float64 `json:"default_temperature"`

	// SheetTemperatures are the rows of a sample sheet when the request
	// does not pick its own.
	SheetTemperatures []float64 `json:"sheet_temperatures"`

	// KeepPartial controls whether a failed run still returns the text
	// accumulated before the failure.
	KeepPartial bool `json:"keep_partial"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server     *ServerConfig            `json:"server_config"`
	Generation *GenerationConfig        `json:"generation_config"`
	Showcase   *showcase.ShowcaseConfig `json:"showcase_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7310",
		ShowcaseAddr: ":7309",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/charloom.db",
		TemplatePath: "./data/templates",
	}
}

// DefaultGenerationConfig creates a generation configuration with default values.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		WindowLength:       8,
		Separator:          "\n",
		DefaultLength:      256,
		MaxLength:          4096,
		DefaultTemperature: 1.0,
		SheetTemperatures:  []float64{0.2, 0.5, 1.0, 1.5, 2.0},
		KeepPartial:        false,
	}
}

// separatorRune returns the configured line separator as a rune, falling
// back to newline when the config value is empty.
func (c *GenerationConfig) separatorRune() rune {
	if c.Separator == "" {
		return '\n'
	}
	return []rune(c.Separator)[0]
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	showcaseDefaults := showcase.DefaultConfig()
	config := &Config{
		Server:     DefaultServerConfig(),
		Generation: DefaultGenerationConfig(),
		Showcase:   &showcaseDefaults,
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ConfigManager handles thread-safe access to configuration and persistence.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	sm         *showcase.Manager
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetShowcaseManager registers the showcase manager to receive config updates.
func (cm *ConfigManager) SetShowcaseManager(sm *showcase.Manager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sm = sm
	// Ensure the manager starts with the current config.
	if sm != nil {
		sm.SetConfig(*cm.config.Showcase)
	}
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	// Return a dereferenced copy to prevent external modification of the internal state
	return *cm.config
}

// Update applies a new configuration to the live showcase manager, persists
// it to disk, and rolls the manager back if the new config is unusable.
func (cm *ConfigManager) Update(newConfig Config) error {
	if newConfig.Server == nil || newConfig.Generation == nil || newConfig.Showcase == nil {
		return fmt.Errorf("config update rejected: every section must be present")
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sm != nil {
		oldShowcase := *cm.config.Showcase

		cm.sm.SetConfig(*newConfig.Showcase)
		if err := cm.sm.Refresh(); err != nil {
			// Roll back to the old config
			cm.sm.SetConfig(oldShowcase)
			_ = cm.sm.Refresh()
			return fmt.Errorf("showcase configuration rejected: %w", err)
		}
	}

	*cm.config = newConfig

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
