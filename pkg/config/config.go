// Package config loads claphost settings. Precedence is environment
// (CLAPHOST_ prefix) over the config file over defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLAPHOST_AUDIO_SAMPLE_RATE.
const EnvPrefix = "CLAPHOST"

// Config is the whole configuration tree.
type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Plugins PluginsConfig `mapstructure:"plugins" yaml:"plugins"`
}

// AudioConfig holds the processing defaults used when a job does not
// override them.
type AudioConfig struct {
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	MinBlock       uint32  `mapstructure:"min_block" yaml:"min_block"`
	MaxBlock       uint32  `mapstructure:"max_block" yaml:"max_block"`
	MaxEvents      int     `mapstructure:"max_events" yaml:"max_events"`
	QueueCapacity  int     `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	ErrorThreshold int     `mapstructure:"error_threshold" yaml:"error_threshold"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "console" for human output or "json".
	Format string `mapstructure:"format" yaml:"format"`
	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// PluginsConfig controls where plugins are found.
type PluginsConfig struct {
	SearchPaths []string `mapstructure:"search_paths" yaml:"search_paths"`
	// Builtin exposes the in-process reference plugins.
	Builtin bool `mapstructure:"builtin" yaml:"builtin"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", 44100.0)
	v.SetDefault("audio.min_block", 1)
	v.SetDefault("audio.max_block", 512)
	v.SetDefault("audio.max_events", 1024)
	v.SetDefault("audio.queue_capacity", 256)
	v.SetDefault("audio.error_threshold", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	v.SetDefault("plugins.search_paths", DefaultSearchPaths())
	v.SetDefault("plugins.builtin", true)
}

// New returns a viper instance with defaults and environment binding set.
// When path is empty the file is searched for as claphost.yaml in the
// working directory and the user config directory.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("claphost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "claphost"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Read loads the config file into v. A missing file is not an error unless
// it was named explicitly.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile is New, Read and Load in one call.
func LoadFile(path string) (*Config, error) {
	v := New(path)
	if err := Read(v); err != nil {
		return nil, err
	}
	return Load(v)
}

// Validate checks the audio settings against what activation accepts.
func (c *Config) Validate() error {
	a := c.Audio
	switch {
	case a.SampleRate <= 0 || math.IsInf(a.SampleRate, 0) || math.IsNaN(a.SampleRate):
		return fmt.Errorf("config: audio.sample_rate must be positive, got %v", a.SampleRate)
	case a.MinBlock < 1:
		return errors.New("config: audio.min_block must be at least 1")
	case a.MaxBlock < a.MinBlock:
		return fmt.Errorf("config: audio.max_block %d is below min_block %d", a.MaxBlock, a.MinBlock)
	case a.MaxEvents < 1:
		return fmt.Errorf("config: audio.max_events must be positive, got %d", a.MaxEvents)
	case a.QueueCapacity < 1:
		return fmt.Errorf("config: audio.queue_capacity must be positive, got %d", a.QueueCapacity)
	case a.ErrorThreshold < 0:
		return fmt.Errorf("config: audio.error_threshold must not be negative, got %d", a.ErrorThreshold)
	}
	return nil
}

// DefaultSearchPaths returns the conventional CLAP install locations for
// the running platform, preceded by any CLAP_PATH entries.
func DefaultSearchPaths() []string {
	var paths []string
	if env := os.Getenv("CLAP_PATH"); env != "" {
		for _, p := range filepath.SplitList(env) {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		if home != "" {
			paths = append(paths, filepath.Join(home, "Library", "Audio", "Plug-Ins", "CLAP"))
		}
		paths = append(paths, "/Library/Audio/Plug-Ins/CLAP")
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			paths = append(paths, filepath.Join(dir, "Programs", "Common", "CLAP"))
		}
		if dir := os.Getenv("COMMONPROGRAMFILES"); dir != "" {
			paths = append(paths, filepath.Join(dir, "CLAP"))
		}
	default:
		if home != "" {
			paths = append(paths, filepath.Join(home, ".clap"))
		}
		paths = append(paths, "/usr/lib/clap")
	}
	return paths
}
