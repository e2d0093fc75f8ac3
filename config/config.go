// Package config loads and saves user preferences. The preferences file is
// config.yaml in the config directory; config.toml is read instead when no
// YAML file exists. Environment variables override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/paths"
)

// Defaults.
const (
	DefaultFrameRate    = 30
	DefaultQuality      = capture.QualityHigh
	DefaultEncoder      = "ffmpeg"
	DefaultStopTimeout  = 6 * time.Second
	DefaultSavedDisplay = 4 * time.Second
	DefaultCountdown    = 3 * time.Second
)

// Environment overrides.
const (
	EnvSaveDir = "SCREENREC_SAVE_DIR"
	EnvEncoder = "SCREENREC_ENCODER"
	EnvDebug   = "SCREENREC_DEBUG"
)

// Format is the encoding of the preferences file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config holds the user preferences.
type Config struct {
	// SaveDir is empty when the platform default is used.
	SaveDir   string
	FrameRate int
	Quality   capture.Quality
	Audio     bool
	Container string

	// Encoder is the encoder binary name or path.
	Encoder             string
	StopTimeout         time.Duration
	SavedDisplay        time.Duration
	Countdown           time.Duration
	PauseWithoutSuspend bool // Allow bookkeeping-only pause where the encoder cannot be suspended
	EncoderLog          bool // Keep a per-session encoder log
	Debug               bool

	mu       sync.Mutex
	filePath string
	format   Format
}

// fileConfig is the on-disk shape. Durations are strings like "6s".
type fileConfig struct {
	SaveDir             string `yaml:"save_dir,omitempty" toml:"save_dir,omitempty"`
	FrameRate           int    `yaml:"frame_rate,omitempty" toml:"frame_rate,omitempty"`
	Quality             string `yaml:"quality,omitempty" toml:"quality,omitempty"`
	Audio               bool   `yaml:"audio" toml:"audio"`
	Container           string `yaml:"container,omitempty" toml:"container,omitempty"`
	Encoder             string `yaml:"encoder,omitempty" toml:"encoder,omitempty"`
	StopTimeout         string `yaml:"stop_timeout,omitempty" toml:"stop_timeout,omitempty"`
	SavedDisplay        string `yaml:"saved_display,omitempty" toml:"saved_display,omitempty"`
	Countdown           string `yaml:"countdown,omitempty" toml:"countdown,omitempty"`
	PauseWithoutSuspend bool   `yaml:"pause_without_suspend" toml:"pause_without_suspend"`
	EncoderLog          bool   `yaml:"encoder_log" toml:"encoder_log"`
	Debug               bool   `yaml:"debug" toml:"debug"`
}

// Default returns preferences with every field at its default, bound to the
// YAML path in the config directory when it can be resolved.
func Default() *Config {
	cfg := &Config{
		FrameRate:    DefaultFrameRate,
		Quality:      DefaultQuality,
		Container:    capture.DefaultContainer,
		Encoder:      DefaultEncoder,
		StopTimeout:  DefaultStopTimeout,
		SavedDisplay: DefaultSavedDisplay,
		Countdown:    DefaultCountdown,
		format:       FormatYAML,
	}
	if p, err := paths.ConfigFilePath(); err == nil {
		cfg.filePath = p
	}
	return cfg
}

// Load reads the preferences file, or returns defaults if none exists.
func Load() (*Config, error) {
	yamlPath, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(yamlPath); err == nil {
		return LoadFrom(yamlPath)
	}

	tomlPath, err := paths.TOMLConfigFilePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return LoadFrom(tomlPath)
	}

	cfg := Default()
	cfg.filePath = yamlPath
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFrom reads the preferences file at path. The format follows the
// extension: .toml is TOML, anything else YAML.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	cfg.filePath = path
	cfg.format = formatFor(path)

	var fc fileConfig
	switch cfg.format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.apply(fc); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func formatFor(path string) Format {
	if filepath.Ext(path) == ".toml" {
		return FormatTOML
	}
	return FormatYAML
}

// apply overlays the non-empty file values onto c.
func (c *Config) apply(fc fileConfig) error {
	if fc.SaveDir != "" {
		c.SaveDir = ExpandPath(fc.SaveDir)
	}
	if fc.FrameRate != 0 {
		c.FrameRate = fc.FrameRate
	}
	if fc.Quality != "" {
		q, err := capture.ParseQuality(fc.Quality)
		if err != nil {
			return err
		}
		c.Quality = q
	}
	if fc.Container != "" {
		c.Container = fc.Container
	}
	if fc.Encoder != "" {
		c.Encoder = fc.Encoder
	}
	c.Audio = fc.Audio
	c.PauseWithoutSuspend = fc.PauseWithoutSuspend
	c.EncoderLog = fc.EncoderLog
	c.Debug = fc.Debug

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"stop_timeout", fc.StopTimeout, &c.StopTimeout},
		{"saved_display", fc.SavedDisplay, &c.SavedDisplay},
		{"countdown", fc.Countdown, &c.Countdown},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSaveDir); v != "" {
		c.SaveDir = ExpandPath(v)
	}
	if v := os.Getenv(EnvEncoder); v != "" {
		c.Encoder = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Validate checks the values are usable for recording.
func (c *Config) Validate() error {
	var errs []error
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive, got %d", c.FrameRate))
	}
	if !c.Quality.Valid() {
		errs = append(errs, fmt.Errorf("unknown quality %q", c.Quality))
	}
	if !capture.IsContainer(c.Container) {
		errs = append(errs, fmt.Errorf("unknown container %q (want one of %v)", c.Container, capture.Containers))
	}
	if c.Encoder == "" {
		errs = append(errs, errors.New("encoder must not be empty"))
	}
	if c.StopTimeout < 0 || c.SavedDisplay < 0 || c.Countdown < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Path returns the file Save writes to.
func (c *Config) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filePath
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
	c.format = formatFor(path)
}

// SetSaveDir records dir as the save directory. Passing the platform
// default, or "", clears the override.
func (c *Config) SetSaveDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir = ExpandPath(dir)
	if def, err := paths.RecordingsDir(); err == nil && dir != "" && SamePath(dir, def) {
		dir = ""
	}
	c.SaveDir = dir
}

// ResolvedSaveDir returns the save directory, falling back to the platform
// default.
func (c *Config) ResolvedSaveDir() (string, error) {
	c.mu.Lock()
	dir := c.SaveDir
	c.mu.Unlock()
	if dir != "" {
		return dir, nil
	}
	return paths.RecordingsDir()
}

// Options returns capture options built from the preferences.
func (c *Config) Options() (capture.Options, error) {
	dir, err := c.ResolvedSaveDir()
	if err != nil {
		return capture.Options{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return capture.Options{
		FrameRate: c.FrameRate,
		Quality:   c.Quality,
		Audio:     c.Audio,
		SaveDir:   dir,
		Container: c.Container,
	}, nil
}

func (c *Config) toFile() fileConfig {
	fc := fileConfig{
		SaveDir:             c.SaveDir,
		FrameRate:           c.FrameRate,
		Quality:             string(c.Quality),
		Audio:               c.Audio,
		Container:           c.Container,
		Encoder:             c.Encoder,
		PauseWithoutSuspend: c.PauseWithoutSuspend,
		EncoderLog:          c.EncoderLog,
		Debug:               c.Debug,
	}
	if c.StopTimeout != DefaultStopTimeout {
		fc.StopTimeout = c.StopTimeout.String()
	}
	if c.SavedDisplay != DefaultSavedDisplay {
		fc.SavedDisplay = c.SavedDisplay.String()
	}
	if c.Countdown != DefaultCountdown {
		fc.Countdown = c.Countdown.String()
	}
	return fc
}

// Save writes the preferences to disk. The file is replaced atomically so a
// crash mid-write never leaves a truncated config behind.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return errors.New("config has no file path")
	}

	var buf bytes.Buffer
	fc := c.toFile()
	switch c.format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(fc); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(fc); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.filePath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
