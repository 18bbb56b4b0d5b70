package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Download   DownloadConfig   `mapstructure:"download" yaml:"download"`
	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Course     CourseConfig     `mapstructure:"course" yaml:"course"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir           string        `mapstructure:"out_dir" yaml:"out_dir"`
	Workers          int           `mapstructure:"workers" yaml:"workers"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`
	RateLimitBPS     int64         `mapstructure:"rate_limit_bps" yaml:"rate_limit_bps"`
	UserAgent        string        `mapstructure:"user_agent" yaml:"user_agent"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	VideoQuality     string        `mapstructure:"video_quality" yaml:"video_quality"`

	// RefreshChangedArchives re-downloads an archive whose revision tag moved
	RefreshChangedArchives bool `mapstructure:"refresh_changed_archives" yaml:"refresh_changed_archives"`
}

type NetworkConfig struct {
	WifiOnly bool `mapstructure:"wifi_only" yaml:"wifi_only"`
	// Connection is the connection type reported to the policy checker: wifi, cellular or none
	Connection string `mapstructure:"connection" yaml:"connection"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"` // sqlite, postgres or memory
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

type CourseConfig struct {
	CacheDir  string `mapstructure:"cache_dir" yaml:"cache_dir"`
	SourceURL string `mapstructure:"source_url" yaml:"source_url"`
}

type ExtractionConfig struct {
	UseSystemUnzip bool `mapstructure:"use_system_unzip" yaml:"use_system_unzip"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.workers", 1)
	v.SetDefault("download.progress_interval", 200*time.Millisecond)
	v.SetDefault("download.rate_limit_bps", 0)
	v.SetDefault("download.user_agent", "edxoffline/1.0")
	v.SetDefault("download.connect_timeout", 30*time.Second)
	v.SetDefault("download.video_quality", "auto")
	v.SetDefault("download.refresh_changed_archives", true)
	v.SetDefault("network.wifi_only", true)
	v.SetDefault("network.connection", "wifi")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "edxoffline.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("course.cache_dir", "./cache/courses")
	v.SetDefault("course.source_url", "")
	v.SetDefault("extraction.use_system_unzip", false)
	v.SetDefault("log.path", "edxoffline.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
}

// Load reads the YAML file at path on top of the defaults, then applies
// EDXOFFLINE_* environment overrides. An empty path looks for config.yaml and
// /config/config.yaml and runs on defaults when neither exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = "config.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// FALLBACK: Docker mounts the config under /config
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else {
				path = ""
			}
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("EDXOFFLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}

	if c.Download.Workers <= 0 {
		// Default to a sane value
		c.Download.Workers = 1
	}

	if c.Download.ProgressInterval <= 0 {
		c.Download.ProgressInterval = 200 * time.Millisecond
	}

	if c.Download.RateLimitBPS < 0 {
		return errors.New("download.rate_limit_bps must not be negative")
	}

	switch strings.ToLower(c.Download.VideoQuality) {
	case "", "auto", "360p", "540p", "720p":
	default:
		return fmt.Errorf("download.video_quality %q: expected auto, 360p, 540p or 720p", c.Download.VideoQuality)
	}

	switch strings.ToLower(c.Network.Connection) {
	case "wifi", "cellular", "none":
	case "":
		c.Network.Connection = "wifi"
	default:
		return fmt.Errorf("network.connection %q: expected wifi, cellular or none", c.Network.Connection)
	}

	switch c.Store.Driver {
	case "", "sqlite":
		c.Store.Driver = "sqlite"
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver %q: expected sqlite, postgres or memory", c.Store.Driver)
	}

	return nil
}
