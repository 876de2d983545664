package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion marks the supported config file version.
const CurrentConfigVersion = 1

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Serial        SerialConfig  `mapstructure:"serial" yaml:"serial"`
	Board         BoardConfig   `mapstructure:"board" yaml:"board"`
	Flash         FlashConfig   `mapstructure:"flash" yaml:"flash"`
	Shuttle       ShuttleConfig `mapstructure:"shuttle" yaml:"shuttle"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// SerialConfig selects the serial port and the driver used to open it.
// An empty Port means auto-detect by USB id.
type SerialConfig struct {
	Port   string `mapstructure:"port" yaml:"port"`
	Baud   int    `mapstructure:"baud" yaml:"baud"`
	Driver string `mapstructure:"driver" yaml:"driver"`
}

// BoardConfig tunes the session bring-up and status handling.
type BoardConfig struct {
	LogHistory         int    `mapstructure:"log_history" yaml:"log_history"`
	ProbeDelayMS       int    `mapstructure:"probe_delay_ms" yaml:"probe_delay_ms"`
	BootPollRetries    int    `mapstructure:"boot_poll_retries" yaml:"boot_poll_retries"`
	BootPollIntervalMS int    `mapstructure:"boot_poll_interval_ms" yaml:"boot_poll_interval_ms"`
	MonitorIntervalMS  int    `mapstructure:"monitor_interval_ms" yaml:"monitor_interval_ms"`
	ViolationPolicy    string `mapstructure:"violation_policy" yaml:"violation_policy"`
}

// FlashConfig tunes the flash uploader handshake.
type FlashConfig struct {
	AckTimeoutMS  int `mapstructure:"ack_timeout_ms" yaml:"ack_timeout_ms"`
	SettleDelayMS int `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
	WriteRetries  int `mapstructure:"write_retries" yaml:"write_retries"`
}

// ShuttleConfig points at the shuttle metadata index. Factory names a
// shuttle to load before any board reports one.
type ShuttleConfig struct {
	IndexURL string `mapstructure:"index_url" yaml:"index_url"`
	Factory  string `mapstructure:"factory" yaml:"factory"`
}

// HTTPConfig configures the browser front end.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Serial: SerialConfig{
			Baud:   BaudRate,
			Driver: SerialDriver,
		},
		Board: BoardConfig{
			LogHistory:         LogHistorySize,
			ProbeDelayMS:       int(ProbeDelay / time.Millisecond),
			BootPollRetries:    BootPollRetries,
			BootPollIntervalMS: int(BootPollInterval / time.Millisecond),
			MonitorIntervalMS:  MonitorIntervalMS,
			ViolationPolicy:    ViolationPolicy,
		},
		Flash: FlashConfig{
			AckTimeoutMS:  int(FlashAckTimeout / time.Millisecond),
			SettleDelayMS: int(FlashSettleDelay / time.Millisecond),
			WriteRetries:  FlashWriteRetries,
		},
		Shuttle: ShuttleConfig{IndexURL: ShuttleIndexURL},
		HTTP:    HTTPConfig{Addr: ServerAddr},
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tt-commander", ConfigFileName), nil
}

// Load reads configuration from path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}
	path = expandEnv(path)

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("serial.port", cfg.Serial.Port)
	v.SetDefault("serial.baud", cfg.Serial.Baud)
	v.SetDefault("serial.driver", cfg.Serial.Driver)
	v.SetDefault("board.log_history", cfg.Board.LogHistory)
	v.SetDefault("board.probe_delay_ms", cfg.Board.ProbeDelayMS)
	v.SetDefault("board.boot_poll_retries", cfg.Board.BootPollRetries)
	v.SetDefault("board.boot_poll_interval_ms", cfg.Board.BootPollIntervalMS)
	v.SetDefault("board.monitor_interval_ms", cfg.Board.MonitorIntervalMS)
	v.SetDefault("board.violation_policy", cfg.Board.ViolationPolicy)
	v.SetDefault("flash.ack_timeout_ms", cfg.Flash.AckTimeoutMS)
	v.SetDefault("flash.settle_delay_ms", cfg.Flash.SettleDelayMS)
	v.SetDefault("flash.write_retries", cfg.Flash.WriteRetries)
	v.SetDefault("shuttle.index_url", cfg.Shuttle.IndexURL)
	v.SetDefault("shuttle.factory", cfg.Shuttle.Factory)
	v.SetDefault("http.addr", cfg.HTTP.Addr)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Serial.Port = expandEnv(cfg.Serial.Port)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	switch c.Serial.Driver {
	case "bugst", "jacobsa":
	default:
		return fmt.Errorf("unsupported serial.driver %q", c.Serial.Driver)
	}
	switch c.Board.ViolationPolicy {
	case "ignore", "report", "abort":
	default:
		return fmt.Errorf("unsupported board.violation_policy %q", c.Board.ViolationPolicy)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive")
	}
	if c.Board.LogHistory <= 0 {
		return fmt.Errorf("board.log_history must be positive")
	}
	if c.Board.BootPollRetries < 0 {
		return fmt.Errorf("board.boot_poll_retries must not be negative")
	}
	return nil
}

// WriteDefault writes the default config to path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	path = expandEnv(path)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}
