package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the optional config file inside the data directory.
const FileName = "config.yaml"

type Config struct {
	DataDir           string        `mapstructure:"data_dir" json:"dataDir" yaml:"dataDir"`
	DBFile            string        `mapstructure:"db_file" json:"dbFile" yaml:"dbFile"`
	ImagesDir         string        `mapstructure:"images_dir" json:"imagesDir" yaml:"imagesDir"`
	SharedListFile    string        `mapstructure:"shared_list_file" json:"sharedListFile" yaml:"sharedListFile"`
	SettingsFile      string        `mapstructure:"settings_file" json:"settingsFile" yaml:"settingsFile"`
	LogLevel          string        `mapstructure:"log_level" json:"logLevel" yaml:"logLevel"`
	LogConsole        bool          `mapstructure:"log_console" json:"logConsole" yaml:"logConsole"`
	NotificationDelay time.Duration `mapstructure:"notification_delay" json:"notificationDelay" yaml:"notificationDelay"`
	BusyTimeout       time.Duration `mapstructure:"busy_timeout" json:"busyTimeout" yaml:"busyTimeout"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".sewplan"
	}
	return filepath.Join(home, ".sewplan")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_file", "planner.sqlite")
	v.SetDefault("images_dir", "images")
	v.SetDefault("shared_list_file", filepath.Join("shared", "projects.json"))
	v.SetDefault("settings_file", "settings.json")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_console", true)
	v.SetDefault("notification_delay", 3*time.Second)
	v.SetDefault("busy_timeout", 5*time.Second)
}

// Load resolves configuration from, lowest precedence first: defaults,
// <dataDir>/config.yaml, a .env file in the working directory, SEWPLAN_*
// environment variables, and dataDirOverride (the --dir flag).
func Load(dataDirOverride string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		// Existing environment variables win over .env entries.
		if err := godotenv.Load(".env"); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SEWPLAN")
	v.AutomaticEnv()
	if err := v.BindEnv("data_dir", "SEWPLAN_DIR", "SEWPLAN_DATA_DIR"); err != nil {
		return nil, err
	}
	if d := strings.TrimSpace(dataDirOverride); d != "" {
		v.Set("data_dir", d)
	}

	dataDir := expandHome(v.GetString("data_dir"))
	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	// The data directory is never taken from the file that lives inside it.
	cfg.DataDir = dataDir
	return cfg, nil
}

func (c *Config) resolve(p string) string {
	p = expandHome(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (c *Config) DBPath() string         { return c.resolve(c.DBFile) }
func (c *Config) ImagesPath() string     { return c.resolve(c.ImagesDir) }
func (c *Config) SharedListPath() string { return c.resolve(c.SharedListFile) }
func (c *Config) SettingsPath() string   { return c.resolve(c.SettingsFile) }

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
