package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

// Config is the resolved application configuration. Values come from, in
// ascending precedence: built-in defaults, an optional config file
// (~/.treadmill-hud/config.yaml or --config), environment variables
// (TREADMILL_HUD_*), and command-line flags.
type Config struct {
	DBPath   string `mapstructure:"db_path"`
	LogPath  string `mapstructure:"log_path"`
	Simulate bool   `mapstructure:"simulate"`

	// HR strap address; empty connects to the first strap found.
	HeartRateAddress string `mapstructure:"heart_rate_address"`

	Profile    ProfileConfig    `mapstructure:"profile"`
	Adjustment AdjustmentConfig `mapstructure:"adjustment"`
}

// ProfileConfig holds the user's threshold values.
type ProfileConfig struct {
	LTHR int `mapstructure:"lthr"` // lactate threshold heart rate, bpm
	FTP  int `mapstructure:"ftp"`  // functional threshold power, watts
}

// AdjustmentConfig exposes the controller tuning knobs that users actually
// touch; the rest keep their defaults.
type AdjustmentConfig struct {
	SettlingWindowSeconds    int     `mapstructure:"settling_window_seconds"`
	MinTimeBetweenAdjSeconds int     `mapstructure:"min_time_between_adjustments_seconds"`
	MaxSpeedKph              float64 `mapstructure:"max_speed_kph"`
	MaxInclinePct            float64 `mapstructure:"max_incline_pct"`
}

// Load parses flags and merges all configuration sources.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("treadmill-hud", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to config file")
	flags.String("db-path", "", "path to the workout database")
	flags.String("log-path", "", "path to the log file")
	flags.Bool("simulate", false, "use the simulated treadmill instead of hardware")
	flags.String("heart-rate-address", "", "BLE address of the heart rate strap")
	flags.Int("lthr", 0, "lactate threshold heart rate, bpm")
	flags.Int("ftp", 0, "functional threshold power, watts")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TREADMILL_HUD")
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", *configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".treadmill-hud"))
		}
		if err := v.ReadInConfig(); err != nil {
			// Missing default config is fine; a broken one is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	// Bound flags only take effect when the user set them; defaults from
	// SetDefault above still win over unchanged flags.
	v.BindPFlag("db_path", flags.Lookup("db-path"))
	v.BindPFlag("log_path", flags.Lookup("log-path"))
	v.BindPFlag("simulate", flags.Lookup("simulate"))
	v.BindPFlag("heart_rate_address", flags.Lookup("heart-rate-address"))
	v.BindPFlag("profile.lthr", flags.Lookup("lthr"))
	v.BindPFlag("profile.ftp", flags.Lookup("ftp"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.Profile.LTHR <= 0 || cfg.Profile.FTP <= 0 {
		return nil, fmt.Errorf("profile.lthr and profile.ftp must be positive (got %d, %d)", cfg.Profile.LTHR, cfg.Profile.FTP)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".treadmill-hud")
	defaults := workout.DefaultControllerConfig()

	v.SetDefault("db_path", filepath.Join(base, "data.db"))
	v.SetDefault("log_path", filepath.Join(base, "treadmill-hud.log"))
	v.SetDefault("simulate", false)
	v.SetDefault("heart_rate_address", "")
	v.SetDefault("profile.lthr", 165)
	v.SetDefault("profile.ftp", 250)
	v.SetDefault("adjustment.settling_window_seconds", defaults.SettlingWindowSeconds)
	v.SetDefault("adjustment.min_time_between_adjustments_seconds", defaults.MinTimeBetweenAdjSeconds)
	v.SetDefault("adjustment.max_speed_kph", defaults.MaxSpeedKph)
	v.SetDefault("adjustment.max_incline_pct", defaults.MaxInclinePct)
}

// EngineConfig translates the resolved configuration into engine settings.
func (c *Config) EngineConfig() workout.EngineConfig {
	ctrl := workout.DefaultControllerConfig()
	if c.Adjustment.SettlingWindowSeconds > 0 {
		ctrl.SettlingWindowSeconds = c.Adjustment.SettlingWindowSeconds
	}
	if c.Adjustment.MinTimeBetweenAdjSeconds > 0 {
		ctrl.MinTimeBetweenAdjSeconds = c.Adjustment.MinTimeBetweenAdjSeconds
	}
	if c.Adjustment.MaxSpeedKph > 0 {
		ctrl.MaxSpeedKph = c.Adjustment.MaxSpeedKph
	}
	if c.Adjustment.MaxInclinePct > 0 {
		ctrl.MaxInclinePct = c.Adjustment.MaxInclinePct
	}
	return workout.EngineConfig{
		LTHR:       c.Profile.LTHR,
		FTP:        c.Profile.FTP,
		Controller: ctrl,
	}
}
