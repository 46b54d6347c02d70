// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "FRAMEHAUL_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) envString(name, cur string) string {
	return ParseString(l.key(name), cur)
}

func (l *Loader) envInt(name string, cur int) int {
	return ParseInt(l.key(name), cur)
}

func (l *Loader) envFloat(name string, cur float64) float64 {
	return ParseFloat(l.key(name), cur)
}

func (l *Loader) envDuration(name string, cur time.Duration) time.Duration {
	return ParseDuration(l.key(name), cur)
}

func (l *Loader) envBool(name string, cur bool) bool {
	return ParseBool(l.key(name), cur)
}

func (l *Loader) envList(name string, cur []string) []string {
	return ParseList(l.key(name), cur)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.expand(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString("LOG_FORMAT", cfg.LogFormat)

	l.mergeStoreEnv("SOURCE_", &cfg.Source)
	l.mergeStoreEnv("FRAMES_", &cfg.Frames)

	h := &cfg.Harvest
	h.BaseDir = l.envString("BASE_DIR", h.BaseDir)
	h.FrameDir = l.envString("FRAME_DIR", h.FrameDir)
	h.FrameExt = l.envString("FRAME_EXT", h.FrameExt)
	h.Extensions = l.envList("EXTENSIONS", h.Extensions)
	h.SidecarName = l.envString("SIDECAR_NAME", h.SidecarName)
	h.Blacklist = l.envList("BLACKLIST", h.Blacklist)
	h.MaxFrames = l.envInt("MAX_FRAMES", h.MaxFrames)
	h.KeepVideos = l.envBool("KEEP_VIDEOS", h.KeepVideos)
	h.HistoryFile = l.envString("HISTORY_FILE", h.HistoryFile)

	cfg.Retry.Attempts = l.envInt("RETRY_ATTEMPTS", cfg.Retry.Attempts)
	cfg.Retry.Delay = l.envDuration("RETRY_DELAY", cfg.Retry.Delay)
	cfg.Retry.Jitter = l.envDuration("RETRY_JITTER", cfg.Retry.Jitter)
	cfg.Upload.Attempts = l.envInt("UPLOAD_ATTEMPTS", cfg.Upload.Attempts)
	cfg.Upload.Delay = l.envDuration("UPLOAD_DELAY", cfg.Upload.Delay)

	cfg.Sampling.EuroFPS = l.envFloat("EURO_FPS", cfg.Sampling.EuroFPS)
	cfg.Sampling.DefaultFPS = l.envFloat("DEFAULT_FPS", cfg.Sampling.DefaultFPS)

	cfg.Daemon.Interval = l.envDuration("DAEMON_INTERVAL", cfg.Daemon.Interval)
	cfg.Daemon.Listen = l.envString("LISTEN", cfg.Daemon.Listen)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func (l *Loader) mergeStoreEnv(prefix string, s *StoreConfig) {
	s.Kind = l.envString(prefix+"KIND", s.Kind)
	s.URL = l.envString(prefix+"URL", s.URL)
	s.User = l.envString(prefix+"USER", s.User)
	s.Password = l.envString(prefix+"PASSWORD", s.Password)
	s.Timeout = l.envDuration(prefix+"TIMEOUT", s.Timeout)
	s.Bucket = l.envString(prefix+"BUCKET", s.Bucket)
	s.Prefix = l.envString(prefix+"PREFIX", s.Prefix)
	s.Root = l.envString(prefix+"ROOT", s.Root)
	s.RateLimit = l.envFloat(prefix+"RATE_LIMIT", s.RateLimit)
	s.RateBurst = l.envInt(prefix+"RATE_BURST", s.RateBurst)
}

// expand resolves ${VAR} references in values that commonly carry secrets
// or host-specific paths.
func (l *Loader) expand(cfg *AppConfig) {
	for _, s := range []*StoreConfig{&cfg.Source, &cfg.Frames} {
		s.URL = expandEnv(s.URL)
		s.User = expandEnv(s.User)
		s.Password = expandEnv(s.Password)
		s.Root = expandEnv(s.Root)
	}
	cfg.DataDir = expandEnv(cfg.DataDir)
}
