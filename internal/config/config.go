// Package config handles configuration loading for stoac.
// Values come from defaults, then an optional YAML file, then environment
// variables (highest precedence).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	appDir    = "stoac"
	dbName    = "stoac-db"
	fileName  = "config.yaml"
	logName   = "stoac.log"
	maxDebug  = 3
	defaultSh = "bash"
)

// ErrNoHome is returned when neither XDG_CONFIG_HOME nor HOME is set.
var ErrNoHome = errors.New("cannot locate config directory: neither XDG_CONFIG_HOME nor HOME is set")

// Config holds the configuration for stoac.
type Config struct {
	DBPath     string `yaml:"db_path"`     // Database file, default: <config dir>/stoac/stoac-db
	StateDir   string `yaml:"state_dir"`   // Debug log directory, default: ~/.local/state/stoac
	HistoryDir string `yaml:"history_dir"` // Directory holding shell history files, default: $HOME
	Shell      string `yaml:"shell"`       // History format for --index-store: bash or zsh
	ExecShell  string `yaml:"exec_shell"`  // Shell that runs loaded commands, default: sh
	DebugLevel int    `yaml:"debug_level"` // 0-3, from STOAC_DEBUG

	ConfigFile string `yaml:"-"` // Path the file layer was read from (may not exist)
}

// environment is the subset of the process environment stoac reads.
type environment struct {
	ConfigHome string `env:"XDG_CONFIG_HOME"`
	StateHome  string `env:"XDG_STATE_HOME"`
	Home       string `env:"HOME"`
	LoginShell string `env:"SHELL"`

	DB         string `env:"STOAC_DB"`
	State      string `env:"STOAC_STATE"`
	HistoryDir string `env:"STOAC_HISTORY_DIR"`
	Shell      string `env:"STOAC_SHELL"`
	ExecShell  string `env:"STOAC_EXEC_SHELL"`
	Debug      string `env:"STOAC_DEBUG"`
}

// Load reads configuration from the environment and the config file under
// the resolved config directory.
func Load() (*Config, error) {
	var e environment
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	configDir, err := e.configDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{ConfigFile: filepath.Join(configDir, appDir, fileName)}
	if err := cfg.readFile(); err != nil {
		return nil, err
	}

	applyDefaults(cfg, e, configDir)
	applyEnvOverrides(cfg, e)

	if cfg.DebugLevel < 0 {
		cfg.DebugLevel = 0
	}
	if cfg.DebugLevel > maxDebug {
		cfg.DebugLevel = maxDebug
	}

	return cfg, nil
}

// LogPath returns the debug log file inside the state directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, logName)
}

// readFile loads the YAML layer. A missing file is not an error.
func (c *Config) readFile() error {
	data, err := os.ReadFile(c.ConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", c.ConfigFile, err)
	}
	return nil
}

func (e environment) configDir() (string, error) {
	if e.ConfigHome != "" {
		return e.ConfigHome, nil
	}
	if e.Home != "" {
		return filepath.Join(e.Home, ".config"), nil
	}
	return "", ErrNoHome
}

// applyDefaults sets default values for any empty config fields.
func applyDefaults(cfg *Config, e environment, configDir string) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(configDir, appDir, dbName)
	}
	if cfg.StateDir == "" {
		switch {
		case e.StateHome != "":
			cfg.StateDir = filepath.Join(e.StateHome, appDir)
		case e.Home != "":
			cfg.StateDir = filepath.Join(e.Home, ".local", "state", appDir)
		default:
			cfg.StateDir = filepath.Join(configDir, appDir)
		}
	}
	if cfg.HistoryDir == "" {
		cfg.HistoryDir = e.Home
	}
	if cfg.Shell == "" {
		cfg.Shell = loginShell(e.LoginShell)
	}
}

// applyEnvOverrides overrides config values with STOAC_* variables.
func applyEnvOverrides(cfg *Config, e environment) {
	if e.DB != "" {
		cfg.DBPath = e.DB
	}
	if e.State != "" {
		cfg.StateDir = e.State
	}
	if e.HistoryDir != "" {
		cfg.HistoryDir = e.HistoryDir
	}
	if e.Shell != "" {
		cfg.Shell = e.Shell
	}
	if e.ExecShell != "" {
		cfg.ExecShell = e.ExecShell
	}
	if e.Debug != "" {
		if level, err := strconv.Atoi(e.Debug); err == nil {
			cfg.DebugLevel = level
		}
	}
}

// loginShell maps $SHELL to a history format, falling back to bash.
func loginShell(path string) string {
	switch name := filepath.Base(strings.TrimSpace(path)); name {
	case "bash", "zsh":
		return name
	}
	return defaultSh
}
