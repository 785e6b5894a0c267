package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

// ErrUnknownKey is returned by Set for keys the config does not have.
var ErrUnknownKey = errors.New("unknown configuration key")

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	overrides  []func(*Config)
	mu         sync.RWMutex
}

// DefaultPath returns ~/.config/screencycler/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "screencycler", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile
// selects DefaultPath. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Int("output_hints", len(m.config.Outputs)).
		Msg("Config loaded")

	return m, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Outputs == nil {
		cfg.Outputs = Hints{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, override := range m.overrides {
		override(cfg)
	}
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Reload re-reads the file. On error the previous config stays in place.
func (m *Manager) Reload() (*Config, error) {
	if err := m.load(); err != nil {
		logger.WithComponent("config").Warn().
			Err(err).
			Str("path", m.configPath).
			Msg("Config change rejected, keeping previous config")
		return nil, err
	}
	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config reloaded")
	return m.Get(), nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	return m.config.Clone()
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update validates and replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg.Clone()
	m.mu.Unlock()
	return m.Save()
}

// override applies fn now and after every reload. Overrides live in
// memory only.
func (m *Manager) override(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = append(m.overrides, fn)
	fn(m.config)
}

// SetLogLevel overrides the log level in memory only.
func (m *Manager) SetLogLevel(level string) {
	m.override(func(c *Config) { c.LogLevel = level })
}

// SetPort overrides the server port in memory only.
func (m *Manager) SetPort(port int) {
	m.override(func(c *Config) { c.ServerPort = port })
}

// SetPollInterval overrides the poll interval in memory only.
func (m *Manager) SetPollInterval(d Duration) {
	m.override(func(c *Config) { c.PollInterval = d })
}

// SetTopologySource overrides the topology source in memory only.
func (m *Manager) SetTopologySource(source string) {
	m.override(func(c *Config) { c.TopologySource = source })
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetViper returns a viper view of the current configuration for key
// lookups such as "outputs.dp1.position".
func (m *Manager) GetViper() (*viper.Viper, error) {
	data, err := yaml.Marshal(m.Get())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load config into viper: %w", err)
	}
	return v, nil
}

// Set assigns one dotted key from its string form, validates, and saves.
func (m *Manager) Set(key, value string) error {
	cfg := m.Get()
	if err := assign(cfg, key, value); err != nil {
		return err
	}
	return m.Update(cfg)
}

func assign(cfg *Config, key, value string) error {
	parseBool := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		*dst = b
		return nil
	}
	parseDur := func(dst *Duration) error {
		d, err := ParseDuration(value)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	switch key {
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		cfg.LogLevel = value
	case "poll_interval":
		return parseDur(&cfg.PollInterval)
	case "settle_delay":
		return parseDur(&cfg.SettleDelay)
	case "start_delay":
		return parseDur(&cfg.StartDelay)
	case "fallback":
		return parseBool(&cfg.Fallback)
	case "fixed_width":
		return parseBool(&cfg.FixedWidth)
	case "ordered":
		return parseBool(&cfg.Ordered)
	case "refresh.desktop_notify":
		return parseBool(&cfg.Refresh.DesktopNotify)
	case "force_on_start":
		cfg.ForceOnStart = value
	case "format_clone":
		cfg.FormatClone = value
	case "format_extend":
		cfg.FormatExtend = value
	case "topology_source":
		cfg.TopologySource = value
	case "workspace_backend":
		cfg.WorkspaceBackend = value
	case "refresh.process":
		cfg.Refresh.Process = value
	case "refresh.signal":
		cfg.Refresh.Signal = value
	case "colors.good":
		cfg.Colors.Good = value
	case "colors.degraded":
		cfg.Colors.Degraded = value
	case "colors.bad":
		cfg.Colors.Bad = value
	case "server_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.ServerPort = port
	default:
		// outputs.<ID>.position / outputs.<ID>.workspaces
		parts := strings.Split(key, ".")
		if len(parts) != 3 || parts[0] != "outputs" || parts[1] == "" {
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		hint := cfg.Outputs[parts[1]]
		switch parts[2] {
		case "position":
			hint.Position = value
		case "workspaces":
			hint.Workspaces = value
		default:
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		cfg.Outputs[parts[1]] = hint
	}
	return nil
}
