package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Network settings
	Network      string   `mapstructure:"network" yaml:"network"`
	RPCEndpoints []string `mapstructure:"rpc_endpoints" yaml:"rpc_endpoints"`
	WSUrl        string   `mapstructure:"ws_url" yaml:"ws_url"`
	RPCAPIKey    string   `mapstructure:"rpc_api_key" yaml:"rpc_api_key"`

	// Wallet settings
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"`
	Mnemonic   string `mapstructure:"mnemonic" yaml:"mnemonic"`

	// Destination for transfers and reclaimed rent. Empty means "use the
	// owner wallet itself"; may also come from the prefs store.
	Destination string `mapstructure:"destination" yaml:"destination"`

	// Consolidation settings
	Consolidate ConsolidateConfig `mapstructure:"consolidate" yaml:"consolidate"`

	// Refresh settings
	Refresh RefreshConfig `mapstructure:"refresh" yaml:"refresh"`

	// Logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Preference storage
	PrefsPath string `mapstructure:"prefs_path" yaml:"prefs_path"`
}

// ConsolidateConfig contains transaction construction and confirmation settings
type ConsolidateConfig struct {
	SolReserveLamports uint64 `mapstructure:"sol_reserve_lamports" yaml:"sol_reserve_lamports"`
	ConfirmTimeoutSec  int    `mapstructure:"confirm_timeout_sec" yaml:"confirm_timeout_sec"`
	PollIntervalMs     int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	UseWSConfirmation  bool   `mapstructure:"use_ws_confirmation" yaml:"use_ws_confirmation"`
	SimulateFirst      bool   `mapstructure:"simulate_first" yaml:"simulate_first"`
}

// RefreshConfig contains balance-cache refresh throttling settings
type RefreshConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	CooldownSec int `mapstructure:"cooldown_sec" yaml:"cooldown_sec"`
	DebounceMs  int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("consolidator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("$HOME/.wallet-consolidator")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CONSOLIDATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, continue with defaults and env vars
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvVariables manually binds environment variables that viper might miss
func bindEnvVariables() {
	viper.BindEnv("network", "CONSOLIDATOR_NETWORK")
	viper.BindEnv("rpc_endpoints", "CONSOLIDATOR_RPC_ENDPOINTS")
	viper.BindEnv("ws_url", "CONSOLIDATOR_WS_URL")
	viper.BindEnv("rpc_api_key", "CONSOLIDATOR_RPC_API_KEY")
	viper.BindEnv("private_key", "CONSOLIDATOR_PRIVATE_KEY")
	viper.BindEnv("mnemonic", "CONSOLIDATOR_MNEMONIC")
	viper.BindEnv("destination", "CONSOLIDATOR_DESTINATION")

	viper.BindEnv("consolidate.sol_reserve_lamports", "CONSOLIDATOR_SOL_RESERVE_LAMPORTS")
	viper.BindEnv("consolidate.confirm_timeout_sec", "CONSOLIDATOR_CONFIRM_TIMEOUT_SEC")
	viper.BindEnv("consolidate.poll_interval_ms", "CONSOLIDATOR_POLL_INTERVAL_MS")
	viper.BindEnv("consolidate.use_ws_confirmation", "CONSOLIDATOR_USE_WS_CONFIRMATION")
	viper.BindEnv("consolidate.simulate_first", "CONSOLIDATOR_SIMULATE_FIRST")

	viper.BindEnv("refresh.interval_sec", "CONSOLIDATOR_REFRESH_INTERVAL_SEC")
	viper.BindEnv("refresh.cooldown_sec", "CONSOLIDATOR_REFRESH_COOLDOWN_SEC")
	viper.BindEnv("refresh.debounce_ms", "CONSOLIDATOR_REFRESH_DEBOUNCE_MS")

	viper.BindEnv("logging.level", "CONSOLIDATOR_LOGGING_LEVEL")
	viper.BindEnv("logging.format", "CONSOLIDATOR_LOGGING_FORMAT")
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("network", "mainnet")
	viper.SetDefault("rpc_endpoints", []string{})
	viper.SetDefault("ws_url", "")

	viper.SetDefault("consolidate.sol_reserve_lamports", SolSweepReserveLamports)
	viper.SetDefault("consolidate.confirm_timeout_sec", ConfirmTimeoutSec)
	viper.SetDefault("consolidate.poll_interval_ms", ConfirmPollIntervalMs)
	viper.SetDefault("consolidate.use_ws_confirmation", false)
	viper.SetDefault("consolidate.simulate_first", true)

	viper.SetDefault("refresh.interval_sec", RefreshIntervalSec)
	viper.SetDefault("refresh.cooldown_sec", RefreshCooldownSec)
	viper.SetDefault("refresh.debounce_ms", RefreshDebounceMs)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("prefs_path", "")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if len(config.RPCEndpoints) == 0 {
		config.RPCEndpoints = GetRPCEndpoints(config.Network)
	}
	if config.WSUrl == "" {
		config.WSUrl = GetWSEndpoint(config.Network)
	}

	if config.Consolidate.ConfirmTimeoutSec <= 0 {
		return fmt.Errorf("consolidate.confirm_timeout_sec must be positive")
	}
	if config.Consolidate.PollIntervalMs <= 0 {
		return fmt.Errorf("consolidate.poll_interval_ms must be positive")
	}
	if config.Refresh.CooldownSec < 0 || config.Refresh.DebounceMs < 0 {
		return fmt.Errorf("refresh throttling values must be non-negative")
	}
	if config.Refresh.IntervalSec > 0 && config.Refresh.IntervalSec*1000 < config.Refresh.DebounceMs {
		return fmt.Errorf("refresh.interval_sec (%d) cannot be shorter than refresh.debounce_ms (%d)",
			config.Refresh.IntervalSec, config.Refresh.DebounceMs)
	}

	return nil
}

// ConfirmTimeout returns the bounded confirmation deadline.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Consolidate.ConfirmTimeoutSec) * time.Second
}

// PollInterval returns the signature-status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Consolidate.PollIntervalMs) * time.Millisecond
}

// RefreshInterval returns the periodic background refresh interval; zero
// disables periodic refresh.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSec) * time.Second
}

// RefreshCooldown returns the manual-refresh cooldown window.
func (c *Config) RefreshCooldown() time.Duration {
	return time.Duration(c.Refresh.CooldownSec) * time.Second
}

// RefreshDebounce returns the automatic-refresh debounce delay.
func (c *Config) RefreshDebounce() time.Duration {
	return time.Duration(c.Refresh.DebounceMs) * time.Millisecond
}
